// Package detector persists cost snapshots and turns purchase-price movement
// into cost-change alerts. Detection is deterministic; deduplication and
// delivery state belong to the notification side.
package detector

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warungworks/costing-cli/internal/compiler"
	"github.com/warungworks/costing-cli/internal/config"
	"github.com/warungworks/costing-cli/internal/model"
	"github.com/warungworks/costing-cli/internal/store"
)

// Detector compares successive purchase observations and attributes material
// price moves to the recipes that use the ingredient.
type Detector struct {
	store           store.Store
	compiler        *compiler.Compiler
	noiseFloorPct   float64
	highSeverityPct float64
}

// New creates a Detector with the given alert thresholds.
func New(s store.Store, c *compiler.Compiler, cfg config.AlertsConfig) *Detector {
	return &Detector{
		store:           s,
		compiler:        c,
		noiseFloorPct:   cfg.NoiseFloorPct,
		highSeverityPct: cfg.HighSeverityPct,
	}
}

// Snapshot compiles a recipe and persists the result as an immutable,
// timestamped capture. One snapshot per explicit request; plain reads never
// write history.
func (d *Detector) Snapshot(ctx context.Context, recipeID string) (*model.CostSnapshot, error) {
	b, err := d.compiler.Compile(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	snap := &model.CostSnapshot{
		ID:           uuid.New().String(),
		RecipeID:     recipeID,
		MaterialCost: b.MaterialCost,
		LaborCost:    b.LaborCost,
		OverheadCost: b.OverheadCost,
		TotalCost:    b.TotalCost,
		CostPerUnit:  b.CostPerUnit,
		CapturedAt:   time.Now().UTC(),
	}
	if err := d.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// DetectChanges compares the two most recent purchase observations of an
// ingredient and returns at most one alert.
//
// Fewer than two observations, a non-positive previous price, a move inside
// the noise floor, and a change that lands in no recipe are all normal
// no-alert states, not errors.
func (d *Detector) DetectChanges(ctx context.Context, ingredientID string) ([]model.CostChangeAlert, error) {
	obs, err := d.store.RecentPurchases(ctx, ingredientID, 2)
	if err != nil {
		return nil, err
	}
	if len(obs) < 2 {
		return nil, nil
	}

	latest, previous := obs[0], obs[1]
	if previous.UnitPrice <= 0 {
		return nil, nil
	}

	changeAmount := latest.UnitPrice - previous.UnitPrice
	changePercent := changeAmount / previous.UnitPrice * 100
	if math.Abs(changePercent) <= d.noiseFloorPct {
		return nil, nil
	}

	comps, err := d.store.ComponentsByIngredient(ctx, ingredientID)
	if err != nil {
		return nil, err
	}
	var impacts []model.RecipeImpact
	for _, comp := range comps {
		impact := changeAmount * comp.QuantityPerBatch
		if impact == 0 {
			continue
		}
		impacts = append(impacts, model.RecipeImpact{RecipeID: comp.RecipeID, CostImpact: impact})
	}
	// A price change only matters if the ingredient is used somewhere.
	if len(impacts) == 0 {
		return nil, nil
	}
	sort.Slice(impacts, func(i, j int) bool { return impacts[i].RecipeID < impacts[j].RecipeID })

	severity := model.SeverityNormal
	if math.Abs(changePercent) > d.highSeverityPct {
		severity = model.SeverityHigh
	}

	return []model.CostChangeAlert{{
		IngredientID:      ingredientID,
		PreviousUnitPrice: previous.UnitPrice,
		CurrentUnitPrice:  latest.UnitPrice,
		ChangePercent:     changePercent,
		ChangeAmount:      changeAmount,
		Severity:          severity,
		AffectedRecipes:   impacts,
		ObservedAt:        latest.OccurredAt,
	}}, nil
}

// DetectResult pairs one ingredient of a sweep with its alerts or failure.
type DetectResult struct {
	IngredientID string
	Alerts       []model.CostChangeAlert
	Err          error
}

// Sweep runs DetectChanges for each ingredient with at most maxConcurrent in
// flight. Results keep the input order and one ingredient's failure never
// cancels its siblings.
func (d *Detector) Sweep(ctx context.Context, ingredientIDs []string, maxConcurrent int) []DetectResult {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	results := make([]DetectResult, len(ingredientIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i, id := range ingredientIDs {
		i, id := i, id
		g.Go(func() error {
			alerts, err := d.DetectChanges(gctx, id)
			if err != nil {
				zap.L().Warn("change detection failed",
					zap.String("ingredient", id),
					zap.Error(err),
				)
			}
			results[i] = DetectResult{IngredientID: id, Alerts: alerts, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Flatten collects the alerts of a sweep in ingredient-check order.
func Flatten(results []DetectResult) []model.CostChangeAlert {
	var alerts []model.CostChangeAlert
	for _, r := range results {
		alerts = append(alerts, r.Alerts...)
	}
	return alerts
}
