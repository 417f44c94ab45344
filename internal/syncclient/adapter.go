// Package syncclient bridges a device's local state store to the relay.
// Local submits apply optimistically before they are forwarded; remote
// actions and snapshots apply through the same single-threaded path. Echo
// suppression is structural: the relay never sends an action back to the
// connection that submitted it, so the adapter needs no suppression timers.
package syncclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ws "github.com/coder/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/rvlxssss/inventario-casa-sub000/internal/action"
	"github.com/rvlxssss/inventario-casa-sub000/internal/cache"
	"github.com/rvlxssss/inventario-casa-sub000/internal/ledger"
	"github.com/rvlxssss/inventario-casa-sub000/internal/model"
	"github.com/rvlxssss/inventario-casa-sub000/internal/protocol"
	"github.com/rvlxssss/inventario-casa-sub000/internal/session"
	"github.com/rvlxssss/inventario-casa-sub000/internal/state"
)

var (
	// ErrJoinTimeout is returned when the relay does not acknowledge a
	// create or join within the bounded wait.
	ErrJoinTimeout = errors.New("timed out waiting for session acknowledgement")
	// ErrNotConnected is returned for session operations while offline.
	ErrNotConnected = errors.New("not connected to the relay")
	// ErrSessionRejected is returned when the relay refuses a join.
	ErrSessionRejected = errors.New("session rejected")
)

const (
	ackTimeout   = 5 * time.Second
	writeTimeout = 5 * time.Second
)

// Cached collection names.
const (
	colProducts     = "products"
	colCategories   = "categories"
	colMembers      = "members"
	colTransactions = "transactions"
	colSession      = "session"
)

// Identity is the opaque current-user identity supplied by the host app.
// The adapter only ever compares the ID against the replicated member list.
type Identity struct {
	ID   string
	Name string
}

type Config struct {
	// URL of the relay websocket endpoint, e.g. "ws://host:8080/ws".
	URL      string
	CacheDir string
	Identity Identity
	Logger   *slog.Logger
}

// Adapter is the per-device sync component. The UI layer calls Submit and
// reads Snapshot/Ledger; it never touches the transport directly.
type Adapter struct {
	url      string
	identity Identity
	logger   *slog.Logger
	cache    *cache.Cache
	ledger   *ledger.Ledger
	now      func() time.Time

	// mu guards the snapshot and the session/connection flags; it is the
	// single-threaded apply path, so a local submit can never race an
	// in-flight remote apply.
	mu          sync.Mutex
	snapshot    model.Snapshot
	sessionCode string
	joined      bool
	conn        *ws.Conn
	closed      bool

	// opMu allows one create/join in flight at a time.
	opMu    sync.Mutex
	pending chan protocol.Envelope

	onChange func(model.Snapshot)
	cancel   context.CancelFunc
}

// New builds an adapter and hydrates it from the local cache, so the
// device is usable before (or without) any network join.
func New(cfg Config) (*Adapter, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c, err := cache.New(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	a := &Adapter{
		url:      cfg.URL,
		identity: cfg.Identity,
		logger:   cfg.Logger,
		cache:    c,
		ledger:   ledger.New(),
		now:      time.Now,
	}
	if err := a.hydrate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Adapter) hydrate() error {
	var snap model.Snapshot
	if _, err := a.cache.Load(colProducts, &snap.Products); err != nil {
		return err
	}
	if _, err := a.cache.Load(colCategories, &snap.Categories); err != nil {
		return err
	}
	if _, err := a.cache.Load(colMembers, &snap.Members); err != nil {
		return err
	}
	state.RefreshStatuses(&snap, a.now())
	a.markCurrentUser(&snap)

	var txs []model.Transaction
	if _, err := a.cache.Load(colTransactions, &txs); err != nil {
		return err
	}
	a.ledger.Replace(txs)

	var code string
	if _, err := a.cache.Load(colSession, &code); err != nil {
		return err
	}

	a.mu.Lock()
	a.snapshot = snap
	a.sessionCode = code
	a.mu.Unlock()
	return nil
}

// SetOnChange registers the observer the UI uses to re-render. It is
// invoked with a snapshot copy after every applied change, local or remote.
func (a *Adapter) SetOnChange(fn func(model.Snapshot)) {
	a.mu.Lock()
	a.onChange = fn
	a.mu.Unlock()
}

// Snapshot returns a copy of the current local state.
func (a *Adapter) Snapshot() model.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot.Clone()
}

// Ledger exposes the locally derived transaction log and aggregates.
func (a *Adapter) Ledger() *ledger.Ledger {
	return a.ledger
}

// SessionCode returns the cached canonical session code, or "".
func (a *Adapter) SessionCode() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionCode
}

// Connected reports whether the adapter currently has a live connection.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn != nil
}

// Connect dials the relay and starts the receive loop. If a session code
// is cached from a previous run, the adapter rejoins automatically so the
// device resumes receiving updates without user action.
func (a *Adapter) Connect(ctx context.Context) error {
	conn, _, err := ws.Dial(ctx, a.url, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.mu.Lock()
	a.conn = conn
	a.closed = false
	a.cancel = cancel
	a.mu.Unlock()

	go a.readLoop(runCtx, conn)

	if code := a.SessionCode(); code != "" {
		if err := a.Join(ctx, code); err != nil {
			a.logger.Warn("rejoin failed", "code", code, "error", err)
		}
	}
	return nil
}

// Close shuts the connection down and stops reconnecting.
func (a *Adapter) Close() {
	a.mu.Lock()
	a.closed = true
	conn := a.conn
	a.conn = nil
	a.joined = false
	cancel := a.cancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close(ws.StatusNormalClosure, "bye")
	}
}

// Create asks the relay for a new session seeded with the local snapshot
// and returns the canonical code. Bounded by the acknowledgement timeout.
func (a *Adapter) Create(ctx context.Context) (string, error) {
	snap := a.Snapshot()
	env, err := a.roundTrip(ctx, protocol.Envelope{Type: protocol.TypeCreateSession, Snapshot: &snap})
	if err != nil {
		return "", err
	}
	if env.Type != protocol.TypeSessionCreated {
		return "", fmt.Errorf("%w: %s", ErrSessionRejected, env.Message)
	}

	a.mu.Lock()
	a.sessionCode = env.Code
	a.joined = true
	a.mu.Unlock()
	if err := a.cache.Save(colSession, env.Code); err != nil {
		a.logger.Warn("cache session code", "error", err)
	}
	return env.Code, nil
}

// Join associates this device with an existing session. The code may be
// typed in any case, with or without the display dash. The full snapshot
// arrives asynchronously right after the acknowledgement.
func (a *Adapter) Join(ctx context.Context, code string) error {
	env, err := a.roundTrip(ctx, protocol.Envelope{Type: protocol.TypeJoinSession, Code: session.NormalizeCode(code)})
	if err != nil {
		return err
	}
	if env.Type != protocol.TypeSessionJoined {
		return fmt.Errorf("%w: %s", ErrSessionRejected, env.Message)
	}

	a.mu.Lock()
	a.sessionCode = env.Code
	a.joined = true
	a.mu.Unlock()
	if err := a.cache.Save(colSession, env.Code); err != nil {
		a.logger.Warn("cache session code", "error", err)
	}
	return nil
}

// Submit applies an action locally first, then forwards it to the relay
// when connected and joined. A failed or impossible send is not rolled
// back: the edit stays applied locally and consistency is eventual.
func (a *Adapter) Submit(act action.Action) error {
	if err := act.Validate(); err != nil {
		return err
	}
	if err := a.apply(act); err != nil {
		return err
	}

	a.mu.Lock()
	conn, joined, roomID := a.conn, a.joined, a.sessionCode
	a.mu.Unlock()
	if conn == nil || !joined {
		return nil
	}

	data, err := protocol.Encode(protocol.Envelope{Type: protocol.TypeSubmitAction, RoomID: roomID, Action: &act})
	if err != nil {
		return err
	}
	if err := a.write(conn, data); err != nil {
		a.logger.Warn("forward action failed", "type", act.Type, "error", err)
	}
	return nil
}

// apply runs an action through the state store and ledger and persists the
// result. Shared by local submits and remote actions so both derive the
// identical ledger entries.
func (a *Adapter) apply(act action.Action) error {
	now := a.now()

	a.mu.Lock()
	next, effects, err := state.Apply(a.snapshot, act, now)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.markCurrentUser(&next)
	a.snapshot = next
	onChange := a.onChange
	snapCopy := next.Clone()
	a.mu.Unlock()

	a.ledger.Record(effects, now)
	a.persist(snapCopy)
	if onChange != nil {
		onChange(snapCopy)
	}
	return nil
}

func (a *Adapter) persist(snap model.Snapshot) {
	for _, c := range []struct {
		name string
		v    any
	}{
		{colProducts, snap.Products},
		{colCategories, snap.Categories},
		{colMembers, snap.Members},
		{colTransactions, a.ledger.Transactions()},
	} {
		if err := a.cache.Save(c.name, c.v); err != nil {
			a.logger.Warn("cache save failed", "collection", c.name, "error", err)
		}
	}
}

// markCurrentUser recomputes the local-only current-user flag. The flag is
// never replicated; every device derives its own from its identity.
func (a *Adapter) markCurrentUser(snap *model.Snapshot) {
	for i := range snap.Members {
		snap.Members[i].IsCurrentUser = snap.Members[i].ID == a.identity.ID
	}
}

// roundTrip sends a request envelope and waits for its acknowledgement or
// an error envelope, bounded by ackTimeout.
func (a *Adapter) roundTrip(ctx context.Context, req protocol.Envelope) (protocol.Envelope, error) {
	a.opMu.Lock()
	defer a.opMu.Unlock()

	a.mu.Lock()
	conn := a.conn
	pending := make(chan protocol.Envelope, 1)
	a.pending = pending
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.pending = nil
		a.mu.Unlock()
	}()

	if conn == nil {
		return protocol.Envelope{}, ErrNotConnected
	}

	data, err := protocol.Encode(req)
	if err != nil {
		return protocol.Envelope{}, err
	}
	if err := a.write(conn, data); err != nil {
		return protocol.Envelope{}, fmt.Errorf("send %s: %w", req.Type, err)
	}

	select {
	case env := <-pending:
		return env, nil
	case <-time.After(ackTimeout):
		return protocol.Envelope{}, ErrJoinTimeout
	case <-ctx.Done():
		return protocol.Envelope{}, ctx.Err()
	}
}

func (a *Adapter) write(conn *ws.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return conn.Write(ctx, ws.MessageText, data)
}

// readLoop receives relay frames until the connection drops, then hands
// off to the reconnect loop unless the adapter was closed.
func (a *Adapter) readLoop(ctx context.Context, conn *ws.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			a.mu.Lock()
			if a.conn == conn {
				a.conn = nil
				a.joined = false
			}
			closed := a.closed
			a.mu.Unlock()

			if !closed && ctx.Err() == nil {
				a.logger.Info("connection lost, reconnecting")
				go a.reconnect(ctx)
			}
			return
		}
		a.handleFrame(data)
	}
}

func (a *Adapter) handleFrame(data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		a.logger.Warn("undecodable frame from relay", "error", err)
		return
	}

	switch env.Type {
	case protocol.TypeSessionCreated, protocol.TypeSessionJoined:
		a.deliver(env)

	case protocol.TypeError:
		// An in-flight create/join consumes the error; otherwise it is a
		// rejected action, which stays applied locally (eventual repair
		// comes from the next snapshot replay).
		if !a.tryDeliver(env) {
			a.logger.Warn("relay error", "reason", env.Reason, "message", env.Message)
		}

	case protocol.TypeInitialSnapshot:
		if env.Snapshot != nil {
			a.replaceSnapshot(*env.Snapshot)
		}

	case protocol.TypeRemoteAction:
		if env.Action == nil {
			return
		}
		if err := a.apply(*env.Action); err != nil {
			a.logger.Warn("apply remote action", "type", env.Action.Type, "error", err)
		}

	default:
		a.logger.Warn("unknown frame type from relay", "type", env.Type)
	}
}

func (a *Adapter) deliver(env protocol.Envelope) {
	if !a.tryDeliver(env) {
		a.logger.Warn("unexpected acknowledgement", "type", env.Type)
	}
}

func (a *Adapter) tryDeliver(env protocol.Envelope) bool {
	a.mu.Lock()
	pending := a.pending
	a.mu.Unlock()
	if pending == nil {
		return false
	}
	select {
	case pending <- env:
		return true
	default:
		return false
	}
}

// replaceSnapshot installs a relay snapshot wholesale. A rejoin always
// replays the full state, so cached local state is never assumed valid.
func (a *Adapter) replaceSnapshot(snap model.Snapshot) {
	now := a.now()
	state.RefreshStatuses(&snap, now)

	a.mu.Lock()
	a.markCurrentUser(&snap)
	a.snapshot = snap
	onChange := a.onChange
	snapCopy := snap.Clone()
	a.mu.Unlock()

	a.persist(snapCopy)
	if onChange != nil {
		onChange(snapCopy)
	}
}

// reconnect redials with backoff until it succeeds or the adapter closes,
// then rejoins the cached session so updates resume without user action.
func (a *Adapter) reconnect(ctx context.Context) {
	backoff := retry.WithCappedDuration(30*time.Second, retry.NewFibonacci(time.Second))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			return nil
		}
		a.mu.Unlock()

		if err := a.Connect(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		a.logger.Warn("reconnect abandoned", "error", err)
	}
}
