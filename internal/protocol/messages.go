// Package protocol defines the wire envelopes exchanged between a device
// and the relay over one websocket connection. Both the server handler and
// the sync client adapter speak exactly this vocabulary.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/rvlxssss/inventario-casa-sub000/internal/action"
	"github.com/rvlxssss/inventario-casa-sub000/internal/model"
)

// Envelope types. Client to server: create_session, join_session,
// submit_action. Server to client: session_created, session_joined,
// initial_snapshot, remote_action, error.
const (
	TypeCreateSession   = "create_session"
	TypeSessionCreated  = "session_created"
	TypeJoinSession     = "join_session"
	TypeSessionJoined   = "session_joined"
	TypeInitialSnapshot = "initial_snapshot"
	TypeSubmitAction    = "submit_action"
	TypeRemoteAction    = "remote_action"
	TypeError           = "error"
)

// Error reasons surfaced in error envelopes.
const (
	ReasonNotFound  = "session_not_found"
	ReasonExpired   = "session_expired"
	ReasonMalformed = "malformed_action"
	ReasonNotJoined = "not_joined"
	ReasonInternal  = "internal"
)

// Envelope is the single wire message shape. Type decides which of the
// optional fields are meaningful.
type Envelope struct {
	Type     string          `json:"type"`
	Code     string          `json:"code,omitempty"`
	RoomID   string          `json:"roomId,omitempty"`
	Snapshot *model.Snapshot `json:"snapshot,omitempty"`
	Action   *action.Action  `json:"action,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Encode marshals an envelope for the wire.
func Encode(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses a wire envelope. Payload validation happens later, at the
// action codec; this only rejects unparseable frames.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// ErrorEnvelope builds an error reply with a single human-readable message.
func ErrorEnvelope(reason, message string) Envelope {
	return Envelope{Type: TypeError, Reason: reason, Message: message}
}
