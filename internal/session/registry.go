// Package session owns the server-side session records: short join codes,
// per-room authoritative snapshots, bounded lifetimes, and the serialized
// application of replicated actions.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rvlxssss/inventario-casa-sub000/internal/action"
	"github.com/rvlxssss/inventario-casa-sub000/internal/model"
	"github.com/rvlxssss/inventario-casa-sub000/internal/state"
	"github.com/rvlxssss/inventario-casa-sub000/internal/store"
	"github.com/rvlxssss/inventario-casa-sub000/internal/websocket"
)

var (
	// ErrSessionNotFound is returned when no session exists for a code.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when the session's lifetime elapsed.
	ErrSessionExpired = errors.New("session expired")
	// ErrRoomNotFound is returned when an action targets an unknown room.
	ErrRoomNotFound = errors.New("room not found")
)

// maxCodeAttempts bounds collision regeneration.
const maxCodeAttempts = 10

// room is the live state for one session: the authoritative snapshot plus
// the single-writer lock that serializes action application. Different
// rooms proceed fully in parallel.
type room struct {
	mu        sync.Mutex
	code      string
	snapshot  model.Snapshot
	expiresAt time.Time
}

// Registry maps session codes to rooms and replicated snapshots. It is the
// exclusive owner of session records; devices only ever hold a code.
type Registry struct {
	hub    *websocket.Hub
	store  *store.SessionStore
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	rooms map[string]*room
}

func NewRegistry(hub *websocket.Hub, st *store.SessionStore, ttl time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		hub:    hub,
		store:  st,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		rooms:  make(map[string]*room),
	}
}

// Create registers a new session seeded with the given snapshot and
// returns its canonical code. Codes are regenerated on collision.
func (r *Registry) Create(snapshot model.Snapshot) (string, error) {
	now := r.now()
	snap := snapshot.Clone()
	state.RefreshStatuses(&snap, now)

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		existing, err := r.store.GetByCode(code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if existing != nil {
			continue
		}
		if _, err := r.store.Create(code, snap, r.ttl); err != nil {
			return "", fmt.Errorf("persist session: %w", err)
		}

		r.mu.Lock()
		r.rooms[code] = &room{code: code, snapshot: snap, expiresAt: now.Add(r.ttl)}
		r.mu.Unlock()

		r.logger.Info("session created", "code", code, "products", len(snap.Products))
		return code, nil
	}
	return "", errors.New("could not allocate a unique session code")
}

// Join resolves a user-typed code to its canonical form and snapshot. The
// lookup is case-insensitive and tolerates the display dash. Reclaimed or
// unknown codes fail with ErrSessionExpired / ErrSessionNotFound.
func (r *Registry) Join(code string) (model.Snapshot, string, error) {
	canonical := NormalizeCode(code)
	rm, err := r.roomFor(canonical)
	if err != nil {
		return model.Snapshot{}, "", err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	snap := rm.snapshot.Clone()
	state.RefreshStatuses(&snap, r.now())
	return snap, canonical, nil
}

// roomFor returns the live room for a canonical code, hydrating it from
// the store after a restart.
func (r *Registry) roomFor(code string) (*room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, ok := r.rooms[code]; ok {
		if r.now().After(rm.expiresAt) {
			return nil, ErrSessionExpired
		}
		return rm, nil
	}

	sess, err := r.store.GetByCode(code)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.Expired(r.now()) {
		return nil, ErrSessionExpired
	}

	rm := &room{code: code, snapshot: sess.Snapshot, expiresAt: sess.ExpiresAt}
	r.rooms[code] = rm
	return rm, nil
}

// ApplyAndBroadcast applies an action to the room's authoritative snapshot
// under the room's writer lock, persists the result, and fans the action
// out to every room connection except the origin. Holding the lock across
// persist and broadcast gives the system its one ordering guarantee: a
// room-local total order of actions as observed by the registry.
func (r *Registry) ApplyAndBroadcast(roomID string, act action.Action, origin *websocket.Client) error {
	rm, err := r.roomFor(roomID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
			return ErrRoomNotFound
		}
		return err
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	next, _, err := state.Apply(rm.snapshot, act, r.now())
	if err != nil {
		return err
	}
	rm.snapshot = next

	if err := r.store.UpdateSnapshot(roomID, next); err != nil {
		// The in-memory room stays authoritative for connected peers; the
		// snapshot is re-persisted on the next action.
		r.logger.Error("persist snapshot", "room", roomID, "error", err)
	}

	data, err := encodeRemoteAction(act)
	if err != nil {
		return err
	}
	r.hub.BroadcastRoom(roomID, data, origin)
	return nil
}

// Snapshot returns a copy of a room's current authoritative snapshot.
func (r *Registry) Snapshot(roomID string) (model.Snapshot, error) {
	rm, err := r.roomFor(NormalizeCode(roomID))
	if err != nil {
		return model.Snapshot{}, err
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.snapshot.Clone(), nil
}

// ReapExpired reclaims expired sessions from the store and drops live
// rooms that expired and have no remaining connections.
func (r *Registry) ReapExpired() (int64, error) {
	count, err := r.store.DeleteExpired()
	if err != nil {
		return 0, err
	}

	now := r.now()
	r.mu.Lock()
	for code, rm := range r.rooms {
		if now.After(rm.expiresAt) && r.hub.RoomSize(code) == 0 {
			delete(r.rooms, code)
		}
	}
	r.mu.Unlock()

	if count > 0 {
		r.logger.Info("reclaimed expired sessions", "count", count)
	}
	return count, nil
}
