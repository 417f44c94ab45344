package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvlxssss/inventario-casa-sub000/internal/action"
	"github.com/rvlxssss/inventario-casa-sub000/internal/model"
	"github.com/rvlxssss/inventario-casa-sub000/internal/state"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// applyAndRecord runs an action through the state store and the deriver the
// way a peer does, returning the new snapshot.
func applyAndRecord(t *testing.T, l *Ledger, snap model.Snapshot, act action.Action) model.Snapshot {
	t.Helper()
	next, effects, err := state.Apply(snap, act, testNow)
	require.NoError(t, err)
	l.Record(effects, testNow)
	return next
}

func TestAddWithCostRecordsExpense(t *testing.T) {
	l := New()
	p := model.Product{ID: "p1", Name: "Olive oil", Quantity: 6, Unit: "u", Cost: 6000}

	snap := applyAndRecord(t, l, model.Snapshot{}, action.Action{Type: action.TypeAddProduct, Product: &p})

	txs := l.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, model.TransactionExpense, txs[0].Type)
	assert.Equal(t, 6000.0, txs[0].Amount)
	assert.Equal(t, 6.0, txs[0].Quantity)
	assert.Equal(t, "Olive oil", txs[0].ProductName)
	assert.Equal(t, 6000.0, snap.Products[0].Cost)

	assert.Equal(t, 6000.0, l.MonthlyExpenses()["2026-03"])
}

func TestAddWithoutCostRecordsNothing(t *testing.T) {
	l := New()
	p := model.Product{ID: "p1", Name: "Salt", Quantity: 1}
	applyAndRecord(t, l, model.Snapshot{}, action.Action{Type: action.TypeAddProduct, Product: &p})
	assert.Empty(t, l.Transactions())
	assert.Empty(t, l.MonthlyExpenses())
}

func TestRestockExplicitPrice(t *testing.T) {
	l := New()
	snap := model.Snapshot{Products: []model.Product{{ID: "p1", Name: "Milk", Quantity: 2, Cost: 4}}}

	// Caller supplies the new total cost explicitly.
	upd := model.Product{ID: "p1", Name: "Milk", Quantity: 4, Cost: 9}
	snap = applyAndRecord(t, l, snap, action.Action{Type: action.TypeUpdateProduct, Product: &upd})

	txs := l.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, model.TransactionExpense, txs[0].Type)
	assert.Equal(t, 5.0, txs[0].Amount)
	assert.Equal(t, 2.0, txs[0].Quantity)
	assert.Equal(t, 9.0, snap.Products[0].Cost)
}

func TestRestockInferredUnitCost(t *testing.T) {
	l := New()
	snap := model.Snapshot{Products: []model.Product{{ID: "p1", Name: "Milk", Quantity: 2, Cost: 4}}}

	// No explicit new cost: restock is priced at the old unit cost (2/unit).
	upd := model.Product{ID: "p1", Name: "Milk", Quantity: 5, Cost: 4}
	snap = applyAndRecord(t, l, snap, action.Action{Type: action.TypeUpdateProduct, Product: &upd})

	txs := l.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, model.TransactionExpense, txs[0].Type)
	assert.InDelta(t, 6.0, txs[0].Amount, 1e-9)
	assert.InDelta(t, 10.0, snap.Products[0].Cost, 1e-9)
}

func TestRestockWithoutTrackedCost(t *testing.T) {
	l := New()
	snap := model.Snapshot{Products: []model.Product{{ID: "p1", Name: "Salt", Quantity: 1}}}

	upd := model.Product{ID: "p1", Name: "Salt", Quantity: 3}
	applyAndRecord(t, l, snap, action.Action{Type: action.TypeUpdateProduct, Product: &upd})

	assert.Empty(t, l.Transactions())
}

func TestConsumptionRecordsUsage(t *testing.T) {
	l := New()
	snap := model.Snapshot{Products: []model.Product{{ID: "p1", Name: "Milk", Quantity: 4, Cost: 8}}}

	upd := model.Product{ID: "p1", Name: "Milk", Quantity: 1, Cost: 8}
	snap = applyAndRecord(t, l, snap, action.Action{Type: action.TypeUpdateProduct, Product: &upd})

	txs := l.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, model.TransactionUsage, txs[0].Type)
	assert.Equal(t, 3.0, txs[0].Quantity)
	assert.InDelta(t, 6.0, txs[0].Amount, 1e-9)
	assert.InDelta(t, 2.0, snap.Products[0].Cost, 1e-9)

	// Usage never touches the expense aggregate.
	assert.Empty(t, l.MonthlyExpenses())
}

func TestConsumptionWithoutCostStillRecordsUsage(t *testing.T) {
	l := New()
	snap := model.Snapshot{Products: []model.Product{{ID: "p1", Name: "Salt", Quantity: 2}}}

	upd := model.Product{ID: "p1", Name: "Salt", Quantity: 1}
	applyAndRecord(t, l, snap, action.Action{Type: action.TypeUpdateProduct, Product: &upd})

	txs := l.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, model.TransactionUsage, txs[0].Type)
	assert.Equal(t, 0.0, txs[0].Amount)
}

func TestZeroDiffRecordsNothing(t *testing.T) {
	l := New()
	exp := testNow.AddDate(0, 1, 0)
	snap := model.Snapshot{Products: []model.Product{{ID: "p1", Name: "Milk", Quantity: 2, Cost: 4}}}

	// Name, expiry, and category change but quantity does not.
	upd := model.Product{ID: "p1", Name: "Whole milk", Quantity: 2, Cost: 4, ExpiryDate: &exp, CategoryID: "c9"}
	applyAndRecord(t, l, snap, action.Action{Type: action.TypeUpdateProduct, Product: &upd})

	assert.Empty(t, l.Transactions())
}

func TestDeleteRecordsNothing(t *testing.T) {
	l := New()
	snap := model.Snapshot{Products: []model.Product{{ID: "p1", Name: "Milk", Quantity: 2, Cost: 4}}}

	applyAndRecord(t, l, snap, action.Action{Type: action.TypeDeleteProduct, ID: "p1"})

	assert.Empty(t, l.Transactions())
}

func TestExpenseSumMatchesCostInflow(t *testing.T) {
	l := New()
	snap := model.Snapshot{}

	p := model.Product{ID: "p1", Name: "Coffee", Quantity: 2, Cost: 10}
	snap = applyAndRecord(t, l, snap, action.Action{Type: action.TypeAddProduct, Product: &p})

	// Inferred restock: +3 units at 5/unit = 15.
	upd := model.Product{ID: "p1", Name: "Coffee", Quantity: 5, Cost: 10}
	snap = applyAndRecord(t, l, snap, action.Action{Type: action.TypeUpdateProduct, Product: &upd})

	// Explicit restock: cost 25 -> 31, inflow 6.
	upd2 := model.Product{ID: "p1", Name: "Coffee", Quantity: 6, Cost: 31}
	snap = applyAndRecord(t, l, snap, action.Action{Type: action.TypeUpdateProduct, Product: &upd2})

	// Consumption does not contribute to expenses.
	upd3 := model.Product{ID: "p1", Name: "Coffee", Quantity: 4, Cost: 31}
	applyAndRecord(t, l, snap, action.Action{Type: action.TypeUpdateProduct, Product: &upd3})

	var expenseSum float64
	for _, tx := range l.Transactions() {
		if tx.Type == model.TransactionExpense {
			expenseSum += tx.Amount
		}
	}
	assert.InDelta(t, 10+15+6, expenseSum, 1e-9)
	assert.InDelta(t, expenseSum, l.MonthlyExpenses()["2026-03"], 1e-9)
	assert.Equal(t, []string{"2026-03"}, l.Months())
}

func TestReplaceRebuildsAggregate(t *testing.T) {
	l := New()
	txs := []model.Transaction{
		{ID: "t1", Timestamp: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), Type: model.TransactionExpense, Amount: 10},
		{ID: "t2", Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Type: model.TransactionExpense, Amount: 5},
		{ID: "t3", Timestamp: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Type: model.TransactionUsage, Amount: 2},
	}
	l.Replace(txs)

	assert.Len(t, l.Transactions(), 3)
	assert.Equal(t, 10.0, l.MonthlyExpenses()["2026-02"])
	assert.Equal(t, 5.0, l.MonthlyExpenses()["2026-03"])
	assert.Equal(t, []string{"2026-02", "2026-03"}, l.Months())
}
