// Package ledger derives expense/usage transactions and month aggregates
// from product effects. Every peer runs the same derivation over the same
// before/after states, so ledger entries are never replicated: they are a
// deterministic local projection of the action stream.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rvlxssss/inventario-casa-sub000/internal/model"
	"github.com/rvlxssss/inventario-casa-sub000/internal/state"
)

// Ledger holds the append-only transaction log and the materialized
// month-keyed expense aggregate. The aggregate is an incrementally updated
// view of the log, never an independent source of truth.
type Ledger struct {
	mu           sync.RWMutex
	transactions []model.Transaction
	expenses     map[string]float64
}

func New() *Ledger {
	return &Ledger{expenses: make(map[string]float64)}
}

// Record derives ledger entries from the effects of one applied mutation.
// It must run exactly once per applied action, on every peer, including for
// remotely originated actions.
func (l *Ledger) Record(effects []state.Effect, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range effects {
		switch e.Kind {
		case state.EffectProductAdded:
			l.recordAdd(e.After, now)
		case state.EffectProductUpdated:
			l.recordUpdate(e.Before, e.After, now)
		case state.EffectProductDeleted:
			// History is preserved independent of the product's existence;
			// deletion never appends a transaction.
		}
	}
}

func (l *Ledger) recordAdd(p *model.Product, now time.Time) {
	if p.Cost <= 0 {
		return
	}
	l.append(model.Transaction{
		ID:          uuid.NewString(),
		Timestamp:   now,
		Type:        model.TransactionExpense,
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    p.Quantity,
		Amount:      p.Cost,
	})
}

// recordUpdate turns a quantity change into ledger entries. The state store
// has already applied the cost accounting rules, so the expense or usage
// amount is exactly the before/after cost delta.
func (l *Ledger) recordUpdate(before, after *model.Product, now time.Time) {
	diff := after.Quantity - before.Quantity

	switch {
	case diff > 0:
		addedCost := after.Cost - before.Cost
		if addedCost > 0 {
			l.append(model.Transaction{
				ID:          uuid.NewString(),
				Timestamp:   now,
				Type:        model.TransactionExpense,
				ProductID:   after.ID,
				ProductName: after.Name,
				Quantity:    diff,
				Amount:      addedCost,
			})
		}

	case diff < 0:
		consumed := -diff
		consumedValue := before.Cost - after.Cost
		if consumedValue < 0 {
			consumedValue = 0
		}
		// A usage entry is always appended; amount is zero when the product
		// had no tracked cost.
		l.append(model.Transaction{
			ID:          uuid.NewString(),
			Timestamp:   now,
			Type:        model.TransactionUsage,
			ProductID:   after.ID,
			ProductName: after.Name,
			Quantity:    consumed,
			Amount:      consumedValue,
		})
	}
}

func (l *Ledger) append(tx model.Transaction) {
	l.transactions = append(l.transactions, tx)
	if tx.Type == model.TransactionExpense {
		l.expenses[model.MonthKey(tx.Timestamp)] += tx.Amount
	}
}

// Transactions returns a copy of the transaction log, oldest first.
func (l *Ledger) Transactions() []model.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Transaction, len(l.transactions))
	copy(out, l.transactions)
	return out
}

// MonthlyExpenses returns a copy of the month-keyed expense aggregate.
func (l *Ledger) MonthlyExpenses() map[string]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]float64, len(l.expenses))
	for k, v := range l.expenses {
		out[k] = v
	}
	return out
}

// Months returns the aggregate keys in ascending order.
func (l *Ledger) Months() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.expenses))
	for k := range l.expenses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Replace swaps in a previously persisted log and rebuilds the month
// aggregate from it. Used when hydrating the device cache on startup.
func (l *Ledger) Replace(transactions []model.Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transactions = make([]model.Transaction, len(transactions))
	copy(l.transactions, transactions)
	l.expenses = make(map[string]float64)
	for _, tx := range l.transactions {
		if tx.Type == model.TransactionExpense {
			l.expenses[model.MonthKey(tx.Timestamp)] += tx.Amount
		}
	}
}
