package session

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvlxssss/inventario-casa-sub000/internal/action"
	"github.com/rvlxssss/inventario-casa-sub000/internal/database"
	"github.com/rvlxssss/inventario-casa-sub000/internal/model"
	"github.com/rvlxssss/inventario-casa-sub000/internal/store"
	"github.com/rvlxssss/inventario-casa-sub000/internal/websocket"
)

func setupRegistry(t *testing.T, ttl time.Duration) (*Registry, *store.SessionStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := store.NewSessionStore(db)
	hub := websocket.NewHub(slog.Default())
	return NewRegistry(hub, st, ttl, slog.Default()), st
}

func seedSnapshot() model.Snapshot {
	return model.Snapshot{
		Products: []model.Product{
			{ID: "p1", Name: "Milk", Quantity: 2, Unit: "l", CategoryID: "c1", Cost: 4},
			{ID: "p2", Name: "Rice", Quantity: 1, Unit: "kg", CategoryID: "c2"},
		},
		Categories: []model.Category{
			{ID: "c1", Name: "Dairy", Icon: "milk"},
			{ID: "c2", Name: "Pantry", Icon: "jar"},
		},
		Members: []model.Member{{ID: "m1", Name: "Ana", Role: model.RoleOwner}},
	}
}

func TestCreateAndJoin(t *testing.T) {
	reg, _ := setupRegistry(t, time.Hour)

	code, err := reg.Create(seedSnapshot())
	require.NoError(t, err)
	assert.Len(t, code, 6)

	snap, canonical, err := reg.Join(code)
	require.NoError(t, err)
	assert.Equal(t, code, canonical)
	assert.Len(t, snap.Products, 2)
}

func TestJoinIsCaseInsensitiveAndIgnoresDash(t *testing.T) {
	reg, _ := setupRegistry(t, time.Hour)

	code, err := reg.Create(seedSnapshot())
	require.NoError(t, err)

	for _, input := range []string{
		code,                              // canonical
		FormatCode(code),                  // XXX-XXX as displayed
		strings.ToLower(code),             // lowercase
		strings.ToLower(FormatCode(code)), // lowercase with dash
	} {
		snap, canonical, err := reg.Join(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, code, canonical)
		assert.Len(t, snap.Products, 2)
	}
}

func TestJoinUnknownCode(t *testing.T) {
	reg, _ := setupRegistry(t, time.Hour)
	_, _, err := reg.Join("ZZZZZZ")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestJoinExpiredSession(t *testing.T) {
	reg, _ := setupRegistry(t, time.Hour)

	code, err := reg.Create(seedSnapshot())
	require.NoError(t, err)

	// Move the registry clock past the TTL.
	reg.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, _, err = reg.Join(code)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestJoinHydratesFromStoreAfterRestart(t *testing.T) {
	reg, st := setupRegistry(t, time.Hour)

	code, err := reg.Create(seedSnapshot())
	require.NoError(t, err)

	// A fresh registry over the same store simulates a relay restart.
	hub := websocket.NewHub(slog.Default())
	reg2 := NewRegistry(hub, st, time.Hour, slog.Default())

	snap, canonical, err := reg2.Join(code)
	require.NoError(t, err)
	assert.Equal(t, code, canonical)
	assert.Len(t, snap.Products, 2)
}

func TestApplyAndBroadcastUpdatesAuthoritativeSnapshot(t *testing.T) {
	reg, st := setupRegistry(t, time.Hour)

	code, err := reg.Create(seedSnapshot())
	require.NoError(t, err)

	upd := model.Product{ID: "p1", Name: "Milk", Quantity: 1, Cost: 4, CategoryID: "c1", Unit: "l"}
	err = reg.ApplyAndBroadcast(code, action.Action{Type: action.TypeUpdateProduct, Product: &upd}, nil)
	require.NoError(t, err)

	snap, err := reg.Snapshot(code)
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap.Products[0].Quantity)
	// Consumption halves the tracked cost (2 of 4 units at unit cost 2).
	assert.InDelta(t, 2.0, snap.Products[0].Cost, 1e-9)

	// The snapshot is persisted, not just held in memory.
	sess, err := st.GetByCode(code)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, 1.0, sess.Snapshot.Products[0].Quantity)
}

func TestApplyMalformedActionRejected(t *testing.T) {
	reg, _ := setupRegistry(t, time.Hour)

	code, err := reg.Create(seedSnapshot())
	require.NoError(t, err)

	err = reg.ApplyAndBroadcast(code, action.Action{Type: "bogus"}, nil)
	assert.ErrorIs(t, err, action.ErrMalformedAction)

	snap, err := reg.Snapshot(code)
	require.NoError(t, err)
	assert.Len(t, snap.Products, 2)
}

func TestApplyUnknownRoom(t *testing.T) {
	reg, _ := setupRegistry(t, time.Hour)
	err := reg.ApplyAndBroadcast("ZZZZZZ", action.Action{Type: action.TypeDeleteProduct, ID: "p1"}, nil)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

// Concurrent submits from many writers must serialize into some room-local
// total order: every submitted add lands exactly once and the final writer
// of a contended product wins outright.
func TestConcurrentApplySerializes(t *testing.T) {
	reg, _ := setupRegistry(t, time.Hour)

	code, err := reg.Create(seedSnapshot())
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := model.Product{ID: fmt.Sprintf("w%d", i), Name: fmt.Sprintf("Item %d", i), Quantity: 1}
			_ = reg.ApplyAndBroadcast(code, action.Action{Type: action.TypeAddProduct, Product: &p}, nil)

			upd := model.Product{ID: "p2", Name: "Rice", Quantity: float64(i + 10)}
			_ = reg.ApplyAndBroadcast(code, action.Action{Type: action.TypeUpdateProduct, Product: &upd}, nil)
		}(i)
	}
	wg.Wait()

	snap, err := reg.Snapshot(code)
	require.NoError(t, err)
	assert.Len(t, snap.Products, 2+writers)

	// p2's quantity is whatever the serialized last writer set: one of the
	// submitted values, never a torn intermediate.
	var rice *model.Product
	for i := range snap.Products {
		if snap.Products[i].ID == "p2" {
			rice = &snap.Products[i]
		}
	}
	require.NotNil(t, rice)
	assert.GreaterOrEqual(t, rice.Quantity, 10.0)
	assert.Less(t, rice.Quantity, 10.0+writers)
}

func TestReapExpired(t *testing.T) {
	reg, st := setupRegistry(t, -time.Minute)

	code, err := reg.Create(seedSnapshot())
	require.NoError(t, err)

	count, err := reg.ReapExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	sess, err := st.GetByCode(code)
	require.NoError(t, err)
	assert.Nil(t, sess)

	_, _, err = reg.Join(code)
	assert.Error(t, err)
}
