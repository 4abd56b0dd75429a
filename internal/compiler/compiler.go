// Package compiler turns a recipe's component list into a cost breakdown
// (HPP): material plus allocated labor and overhead, per batch and per unit.
package compiler

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warungworks/costing-cli/internal/model"
	"github.com/warungworks/costing-cli/internal/store"
)

// CostSource resolves an ingredient's current unit cost. The ledger is the
// production implementation.
type CostSource interface {
	UnitCost(ctx context.Context, ingredientID string) (float64, error)
}

// Compiler compiles recipe cost breakdowns. Compilation is a pure read:
// repeated calls with unchanged state return identical breakdowns and
// persist nothing.
type Compiler struct {
	store    store.Store
	costs    CostSource
	labor    Policy
	overhead Policy
}

// New creates a Compiler. Nil policies default to percent-of-material.
func New(s store.Store, costs CostSource, labor, overhead Policy) *Compiler {
	if labor == nil {
		labor = PercentOfMaterial
	}
	if overhead == nil {
		overhead = PercentOfMaterial
	}
	return &Compiler{store: s, costs: costs, labor: labor, overhead: overhead}
}

// Compile produces the cost breakdown for one recipe.
//
// A recipe without components yields a zero-cost breakdown with Empty set
// rather than an error, so batch callers and the UI can show "no ingredients
// yet" without special-casing. Non-positive servings fail with
// ErrInvalidServings.
func (c *Compiler) Compile(ctx context.Context, recipeID string) (*model.CostBreakdown, error) {
	recipe, err := c.store.GetRecipe(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	comps, err := c.store.ComponentsByRecipe(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if len(comps) == 0 {
		return &model.CostBreakdown{RecipeID: recipeID, Servings: recipe.Servings, Empty: true}, nil
	}

	if recipe.Servings <= 0 {
		return nil, eris.Wrapf(model.ErrInvalidServings, "compiler: recipe %s has servings %d", recipeID, recipe.Servings)
	}

	b := &model.CostBreakdown{
		RecipeID: recipeID,
		Servings: recipe.Servings,
		Lines:    make([]model.IngredientLine, 0, len(comps)),
	}
	for _, comp := range comps {
		ing, err := c.store.GetIngredient(ctx, comp.IngredientID)
		if err != nil {
			return nil, err
		}
		unitCost, err := c.costs.UnitCost(ctx, comp.IngredientID)
		if err != nil {
			return nil, err
		}
		line := model.IngredientLine{
			IngredientID: comp.IngredientID,
			Name:         ing.Name,
			Unit:         comp.Unit,
			Quantity:     comp.QuantityPerBatch,
			UnitCost:     unitCost,
			LineCost:     comp.QuantityPerBatch * unitCost,
		}
		b.Lines = append(b.Lines, line)
		b.MaterialCost += line.LineCost
	}

	b.LaborCost = c.labor(b.MaterialCost, recipe.LaborRate, recipe.Servings)
	b.OverheadCost = c.overhead(b.MaterialCost, recipe.OverheadRate, recipe.Servings)
	b.TotalCost = b.MaterialCost + b.LaborCost + b.OverheadCost
	b.CostPerUnit = b.TotalCost / float64(recipe.Servings)

	return b, nil
}

// CompileResult pairs one recipe of a batch with its breakdown or failure.
type CompileResult struct {
	RecipeID  string
	Breakdown *model.CostBreakdown
	Err       error
}

// CompileAll compiles each recipe independently with at most maxConcurrent
// in flight. One recipe's failure never aborts the batch; results keep the
// input order.
func (c *Compiler) CompileAll(ctx context.Context, recipeIDs []string, maxConcurrent int) []CompileResult {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	results := make([]CompileResult, len(recipeIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i, id := range recipeIDs {
		i, id := i, id
		g.Go(func() error {
			b, err := c.Compile(gctx, id)
			if err != nil {
				zap.L().Warn("compile failed",
					zap.String("recipe", id),
					zap.Error(err),
				)
			}
			results[i] = CompileResult{RecipeID: id, Breakdown: b, Err: err}
			return nil // failures are reported per recipe, never fatal
		})
	}
	_ = g.Wait()

	return results
}
