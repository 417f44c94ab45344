package session

import (
	"context"
	"errors"

	"github.com/rvlxssss/inventario-casa-sub000/internal/action"
	"github.com/rvlxssss/inventario-casa-sub000/internal/model"
	"github.com/rvlxssss/inventario-casa-sub000/internal/protocol"
	"github.com/rvlxssss/inventario-casa-sub000/internal/websocket"
)

// HandleMessage dispatches one inbound frame from a device connection. It
// implements websocket.MessageHandler, making the registry the protocol
// endpoint for session lifecycle and action replication.
func (r *Registry) HandleMessage(ctx context.Context, c *websocket.Client, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		r.logger.Warn("undecodable frame", "client", c.ID, "error", err)
		r.reply(c, protocol.ErrorEnvelope(protocol.ReasonMalformed, "could not parse message"))
		return
	}

	switch env.Type {
	case protocol.TypeCreateSession:
		r.handleCreate(c, env)
	case protocol.TypeJoinSession:
		r.handleJoin(c, env)
	case protocol.TypeSubmitAction:
		r.handleSubmit(c, env)
	default:
		r.logger.Warn("unknown message type", "client", c.ID, "type", env.Type)
		r.reply(c, protocol.ErrorEnvelope(protocol.ReasonMalformed, "unknown message type"))
	}
}

// Disconnected is called when a device connection closes. Room membership
// is cleaned up by the hub; the session snapshot is untouched so the room
// survives for the remaining and future peers.
func (r *Registry) Disconnected(c *websocket.Client) {
	if roomID := c.Room(); roomID != "" {
		r.logger.Debug("device left room", "client", c.ID, "room", roomID)
	}
}

func (r *Registry) handleCreate(c *websocket.Client, env protocol.Envelope) {
	snap := model.Snapshot{}
	if env.Snapshot != nil {
		snap = *env.Snapshot
	}

	code, err := r.Create(snap)
	if err != nil {
		r.logger.Error("create session", "client", c.ID, "error", err)
		r.reply(c, protocol.ErrorEnvelope(protocol.ReasonInternal, "could not create session"))
		return
	}

	// The creator is a room member from the start so it receives every
	// action submitted by joiners.
	r.hub.JoinRoom(c, code)
	r.reply(c, protocol.Envelope{Type: protocol.TypeSessionCreated, Code: code, RoomID: code})
}

func (r *Registry) handleJoin(c *websocket.Client, env protocol.Envelope) {
	snap, canonical, err := r.Join(env.Code)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		r.reply(c, protocol.ErrorEnvelope(protocol.ReasonNotFound, "no session with that code"))
		return
	case errors.Is(err, ErrSessionExpired):
		r.reply(c, protocol.ErrorEnvelope(protocol.ReasonExpired, "that session has expired"))
		return
	case err != nil:
		r.logger.Error("join session", "client", c.ID, "code", env.Code, "error", err)
		r.reply(c, protocol.ErrorEnvelope(protocol.ReasonInternal, "could not join session"))
		return
	}

	r.hub.JoinRoom(c, canonical)
	r.reply(c, protocol.Envelope{Type: protocol.TypeSessionJoined, Code: canonical, RoomID: canonical})
	// A join (or rejoin) always replays a full snapshot; the device's
	// cached state is never assumed valid.
	r.reply(c, protocol.Envelope{Type: protocol.TypeInitialSnapshot, RoomID: canonical, Snapshot: &snap})

	r.logger.Info("device joined session", "client", c.ID, "code", canonical, "peers", r.hub.RoomSize(canonical))
}

func (r *Registry) handleSubmit(c *websocket.Client, env protocol.Envelope) {
	roomID := c.Room()
	if roomID == "" || (env.RoomID != "" && env.RoomID != roomID) {
		r.reply(c, protocol.ErrorEnvelope(protocol.ReasonNotJoined, "not joined to that room"))
		return
	}
	if env.Action == nil {
		r.reply(c, protocol.ErrorEnvelope(protocol.ReasonMalformed, "submit_action requires an action"))
		return
	}

	err := r.ApplyAndBroadcast(roomID, *env.Action, c)
	switch {
	case errors.Is(err, action.ErrMalformedAction):
		r.logger.Warn("malformed action", "client", c.ID, "room", roomID, "error", err)
		r.reply(c, protocol.ErrorEnvelope(protocol.ReasonMalformed, "action was rejected"))
	case errors.Is(err, ErrRoomNotFound):
		r.reply(c, protocol.ErrorEnvelope(protocol.ReasonNotFound, "room no longer exists"))
	case err != nil:
		r.logger.Error("apply action", "client", c.ID, "room", roomID, "error", err)
		r.reply(c, protocol.ErrorEnvelope(protocol.ReasonInternal, "could not apply action"))
	}
}

func (r *Registry) reply(c *websocket.Client, env protocol.Envelope) {
	data, err := protocol.Encode(env)
	if err != nil {
		r.logger.Error("encode reply", "client", c.ID, "error", err)
		return
	}
	if !c.Send(data) {
		r.logger.Warn("dropping reply for slow device", "client", c.ID, "type", env.Type)
	}
}

func encodeRemoteAction(act action.Action) ([]byte, error) {
	return protocol.Encode(protocol.Envelope{Type: protocol.TypeRemoteAction, Action: &act})
}

var _ websocket.MessageHandler = (*Registry)(nil)
