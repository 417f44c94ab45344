package websocket

import (
	"context"
	"sync"
	"time"

	ws "github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// MessageHandler processes one inbound frame from a connection. The session
// registry implements this; the transport stays protocol-agnostic.
type MessageHandler interface {
	HandleMessage(ctx context.Context, c *Client, data []byte)
	Disconnected(c *Client)
}

// Client represents a single device connection.
type Client struct {
	ID      string
	hub     *Hub
	conn    *ws.Conn
	handler MessageHandler
	send    chan []byte

	mu     sync.Mutex
	roomID string
}

// NewClient creates a Client tied to the given hub, connection, and handler.
func NewClient(hub *Hub, conn *ws.Conn, handler MessageHandler) *Client {
	return &Client{
		ID:      uuid.NewString(),
		hub:     hub,
		conn:    conn,
		handler: handler,
		send:    make(chan []byte, sendBufferSize),
	}
}

// Room returns the room this connection has joined, or "".
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *Client) setRoom(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
}

// Send queues a frame for this connection without blocking. It reports
// whether the frame was accepted; a full buffer drops the frame.
func (c *Client) Send(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection closes, then unregisters and notifies the
// handler so room membership is cleaned up.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer func() {
		c.handler.Disconnected(c)
		c.hub.Unregister(c)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump reads inbound frames and hands them to the message handler. It
// returns on error (connection close), which triggers cleanup.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		c.handler.HandleMessage(ctx, c, data)
	}
}

// writePump drains the send channel and writes frames to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Hub closed the channel — connection is done
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
