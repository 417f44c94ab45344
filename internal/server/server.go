package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rvlxssss/inventario-casa-sub000/internal/middleware"
	"github.com/rvlxssss/inventario-casa-sub000/internal/session"
	"github.com/rvlxssss/inventario-casa-sub000/internal/store"
	ws "github.com/rvlxssss/inventario-casa-sub000/internal/websocket"
)

// Server wires the relay together: one hub, one session registry, one
// sqlite-backed session store.
type Server struct {
	db       *sql.DB
	hub      *ws.Hub
	registry *session.Registry
	logger   *slog.Logger
}

func New(db *sql.DB, sessionTTL time.Duration, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	sessionStore := store.NewSessionStore(db)
	registry := session.NewRegistry(hub, sessionStore, sessionTTL, logger.With("component", "session"))

	return &Server{
		db:       db,
		hub:      hub,
		registry: registry,
		logger:   logger,
	}
}

// Registry returns the session registry for cleanup tasks.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /ws", ws.HandleWebSocket(s.hub, s.registry, s.logger.With("component", "websocket")))
	mux.HandleFunc("GET /health", s.healthHandler)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}
