// Package websocket carries the duplex sync channel between devices and the
// relay. The hub tracks connections and their room membership; a room is
// the broadcast group of every connection sharing one session code.
package websocket

import (
	"log/slog"
	"sync"
)

// Hub maintains the set of active connections, grouped into rooms.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a connection from the hub and its room, and closes its
// send channel. Leaving a room never touches the room's persisted snapshot.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.leaveRoomLocked(c)
	close(c.send)
}

// JoinRoom moves a connection into a room. A connection belongs to at most
// one room, so any previous membership is dropped first.
func (h *Hub) JoinRoom(c *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveRoomLocked(c)
	room, ok := h.rooms[roomID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[roomID] = room
	}
	room[c] = struct{}{}
	c.setRoom(roomID)
}

func (h *Hub) leaveRoomLocked(c *Client) {
	roomID := c.Room()
	if roomID == "" {
		return
	}
	if room, ok := h.rooms[roomID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
	c.setRoom("")
}

// BroadcastRoom sends data to every connection in the room except origin.
// Origin exclusion is what suppresses echo: a device never receives its own
// action back from the relay.
func (h *Hub) BroadcastRoom(roomID string, data []byte, origin *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[roomID] {
		if c == origin {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Peer buffer full; drop rather than block the room.
			h.logger.Warn("dropping message for slow peer", "room", roomID, "client", c.ID)
		}
	}
}

// RoomSize returns the number of connections in a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
