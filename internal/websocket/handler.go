package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and runs them as hub clients, dispatching frames to handler.
func HandleWebSocket(hub *Hub, handler MessageHandler, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // Devices connect from app webviews on any origin
		})
		if err != nil {
			logger.Error("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, handler)
		logger.Debug("device connected", "client", client.ID)
		client.Run(r.Context())
		logger.Debug("device disconnected", "client", client.ID)
	}
}
