// Package ledger owns all weighted-average-cost mutation. Every purchase
// flows through RecordPurchase so the WAC invariants (non-negative, reset on
// depletion) are enforced in exactly one place.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/warungworks/costing-cli/internal/model"
	"github.com/warungworks/costing-cli/internal/store"
)

// Ledger maintains each ingredient's running weighted-average unit cost.
type Ledger struct {
	store store.Store

	// Per-ingredient locks serialize the read-modify-write of the WAC update.
	// At most one RecordPurchase is in flight per ingredient id.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Ledger over the given store.
func New(s store.Store) *Ledger {
	return &Ledger{
		store: s,
		locks: make(map[string]*sync.Mutex),
	}
}

func (l *Ledger) lockFor(ingredientID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[ingredientID]
	if !ok {
		lk = &sync.Mutex{}
		l.locks[ingredientID] = lk
	}
	return lk
}

// RecordPurchase applies one purchase to an ingredient: recomputes the
// weighted-average cost, adds the quantity to stock, and appends an
// observation. A zero occurredAt means now.
//
// The new WAC is (oldStock*oldWAC + qty*unitPrice) / (oldStock + qty). When
// stock was fully depleted the purchase resets the cost basis to its unit
// price outright, which also avoids dividing by zero.
func (l *Ledger) RecordPurchase(ctx context.Context, ingredientID string, qty, unitPrice float64, occurredAt time.Time) (*model.Ingredient, error) {
	if qty <= 0 {
		return nil, eris.Wrapf(model.ErrInvalidInput, "ledger: quantity must be positive, got %v", qty)
	}
	if unitPrice < 0 {
		return nil, eris.Wrapf(model.ErrInvalidInput, "ledger: unit price must not be negative, got %v", unitPrice)
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	lk := l.lockFor(ingredientID)
	lk.Lock()
	defer lk.Unlock()

	ing, err := l.store.GetIngredient(ctx, ingredientID)
	if err != nil {
		return nil, err
	}

	if ing.CurrentStock <= 0 {
		ing.WeightedAvgCost = unitPrice
	} else {
		ing.WeightedAvgCost = (ing.CurrentStock*ing.WeightedAvgCost + qty*unitPrice) / (ing.CurrentStock + qty)
	}
	ing.CurrentStock += qty
	ing.PurchaseCount++
	ing.UpdatedAt = time.Now().UTC()

	if err := l.store.SaveIngredient(ctx, ing); err != nil {
		return nil, err
	}

	obs := model.PurchaseObservation{
		ID:           uuid.New().String(),
		IngredientID: ingredientID,
		Quantity:     qty,
		UnitPrice:    unitPrice,
		OccurredAt:   occurredAt,
	}
	if err := l.store.AppendPurchase(ctx, obs); err != nil {
		return nil, err
	}

	zap.L().Debug("purchase recorded",
		zap.String("ingredient", ingredientID),
		zap.Float64("qty", qty),
		zap.Float64("unit_price", unitPrice),
		zap.Float64("wac", ing.WeightedAvgCost),
	)
	return ing, nil
}

// ConsumeStock reduces stock without touching the cost basis, e.g. when a
// batch is produced. Draining below zero clamps at zero.
func (l *Ledger) ConsumeStock(ctx context.Context, ingredientID string, qty float64) (*model.Ingredient, error) {
	if qty <= 0 {
		return nil, eris.Wrapf(model.ErrInvalidInput, "ledger: quantity must be positive, got %v", qty)
	}

	lk := l.lockFor(ingredientID)
	lk.Lock()
	defer lk.Unlock()

	ing, err := l.store.GetIngredient(ctx, ingredientID)
	if err != nil {
		return nil, err
	}
	ing.CurrentStock -= qty
	if ing.CurrentStock < 0 {
		ing.CurrentStock = 0
	}
	ing.UpdatedAt = time.Now().UTC()
	if err := l.store.SaveIngredient(ctx, ing); err != nil {
		return nil, err
	}
	return ing, nil
}

// UnitCost returns the ingredient's current cost basis: the weighted average
// once any purchase exists, the list price before that.
func (l *Ledger) UnitCost(ctx context.Context, ingredientID string) (float64, error) {
	ing, err := l.store.GetIngredient(ctx, ingredientID)
	if err != nil {
		return 0, err
	}
	return ing.UnitCost(), nil
}
