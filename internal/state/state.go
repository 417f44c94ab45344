// Package state implements the pure state store for one household snapshot.
// Apply is deterministic: the same snapshot, action, and clock input always
// produce the same result, so every peer that applies the same action stream
// converges to the same state.
package state

import (
	"time"

	"github.com/rvlxssss/inventario-casa-sub000/internal/action"
	"github.com/rvlxssss/inventario-casa-sub000/internal/model"
)

// EffectKind identifies what an applied action did to a product.
type EffectKind string

const (
	EffectProductAdded   EffectKind = "product_added"
	EffectProductUpdated EffectKind = "product_updated"
	EffectProductDeleted EffectKind = "product_deleted"
)

// Effect records the before/after view of a product change so the ledger
// deriver can run without re-reading state. Before is nil for adds, After is
// nil for deletes.
type Effect struct {
	Kind   EffectKind
	Before *model.Product
	After  *model.Product
}

// Apply applies a validated action to a snapshot and returns the new
// snapshot plus the product effects it produced. The input snapshot is not
// mutated. Unknown action types are rejected with ErrMalformedAction.
// Deleting a nonexistent id is a no-op. Product status is recomputed from
// the expiry date and the explicit now on every application.
func Apply(snap model.Snapshot, act action.Action, now time.Time) (model.Snapshot, []Effect, error) {
	if err := act.Validate(); err != nil {
		return snap, nil, err
	}

	next := snap.Clone()
	var effects []Effect

	switch act.Type {
	case action.TypeAddProduct:
		p := *act.Product
		if p.AddedDate.IsZero() {
			p.AddedDate = now
		}
		p.Status = model.ComputeStatus(p.ExpiryDate, now)
		if i := productIndex(next.Products, p.ID); i >= 0 {
			// Re-adding an existing id behaves as an update; keeps the
			// action idempotent when a peer replays it.
			before := next.Products[i]
			next.Products[i] = p
			effects = append(effects, Effect{Kind: EffectProductUpdated, Before: &before, After: &p})
		} else {
			next.Products = append(next.Products, p)
			effects = append(effects, Effect{Kind: EffectProductAdded, After: &p})
		}

	case action.TypeUpdateProduct:
		i := productIndex(next.Products, act.Product.ID)
		if i < 0 {
			return snap, nil, nil
		}
		before := next.Products[i]
		p := *act.Product
		if p.AddedDate.IsZero() {
			p.AddedDate = before.AddedDate
		}
		p.Status = model.ComputeStatus(p.ExpiryDate, now)
		p.Cost = adjustCost(before, p)
		next.Products[i] = p
		effects = append(effects, Effect{Kind: EffectProductUpdated, Before: &before, After: &p})

	case action.TypeDeleteProduct:
		i := productIndex(next.Products, act.ID)
		if i < 0 {
			return snap, nil, nil
		}
		before := next.Products[i]
		next.Products = append(next.Products[:i], next.Products[i+1:]...)
		effects = append(effects, Effect{Kind: EffectProductDeleted, Before: &before})

	case action.TypeAddCategory:
		c := *act.Category
		if i := categoryIndex(next.Categories, c.ID); i >= 0 {
			next.Categories[i] = c
		} else {
			next.Categories = append(next.Categories, c)
		}

	case action.TypeUpdateCategory:
		i := categoryIndex(next.Categories, act.Category.ID)
		if i < 0 {
			return snap, nil, nil
		}
		next.Categories[i] = *act.Category

	case action.TypeDeleteCategory:
		i := categoryIndex(next.Categories, act.ID)
		if i < 0 {
			return snap, nil, nil
		}
		next.Categories = append(next.Categories[:i], next.Categories[i+1:]...)
		// Cascade: products in the deleted category go with it, atomically
		// within this one application so peers never observe orphans.
		kept := next.Products[:0]
		for _, p := range next.Products {
			if p.CategoryID == act.ID {
				before := p
				effects = append(effects, Effect{Kind: EffectProductDeleted, Before: &before})
				continue
			}
			kept = append(kept, p)
		}
		next.Products = kept

	case action.TypeReplaceMembers:
		next.Members = make([]model.Member, len(act.Members))
		copy(next.Members, act.Members)

	default:
		return snap, nil, action.ErrMalformedAction
	}

	refreshStatuses(next.Products, now)
	return next, effects, nil
}

// RefreshStatuses recomputes the derived status of every product in the
// snapshot, in place. Used when hydrating a cached or received snapshot so a
// stale status is never trusted.
func RefreshStatuses(snap *model.Snapshot, now time.Time) {
	refreshStatuses(snap.Products, now)
}

func refreshStatuses(products []model.Product, now time.Time) {
	for i := range products {
		products[i].Status = model.ComputeStatus(products[i].ExpiryDate, now)
	}
}

// adjustCost applies the cost accounting rules for a quantity change. It
// runs inside Apply so that every peer and the registry converge on the
// same stored cost; the ledger then derives transaction amounts from the
// before/after cost delta.
//
// Restock with an explicitly higher cost keeps the supplied total. Restock
// without one is priced at the old unit cost. Consumption reduces the cost
// by consumed value, floored at zero. Without a tracked cost the supplied
// value passes through unchanged.
func adjustCost(before, payload model.Product) float64 {
	diff := payload.Quantity - before.Quantity
	switch {
	case diff > 0:
		if payload.Cost > before.Cost {
			return payload.Cost
		}
		if before.Cost > 0 && before.Quantity > 0 {
			unitCost := before.Cost / before.Quantity
			return before.Cost + unitCost*diff
		}
		return payload.Cost
	case diff < 0:
		if before.Cost > 0 && before.Quantity > 0 {
			unitCost := before.Cost / before.Quantity
			cost := before.Cost - unitCost*(-diff)
			if cost < 0 {
				cost = 0
			}
			return cost
		}
		return payload.Cost
	default:
		return payload.Cost
	}
}

func productIndex(products []model.Product, id string) int {
	for i := range products {
		if products[i].ID == id {
			return i
		}
	}
	return -1
}

func categoryIndex(categories []model.Category, id string) int {
	for i := range categories {
		if categories[i].ID == id {
			return i
		}
	}
	return -1
}
