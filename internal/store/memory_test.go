package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warungworks/costing-cli/internal/model"
)

func TestMemory_IngredientRoundTrip(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.GetIngredient(ctx, "flour")
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, s.SaveIngredient(ctx, &model.Ingredient{
		ID: "flour", Name: "Flour", Unit: "kg", WeightedAvgCost: 1000,
	}))

	ing, err := s.GetIngredient(ctx, "flour")
	require.NoError(t, err)
	assert.Equal(t, "Flour", ing.Name)

	// Callers get a copy, not a handle on stored state.
	ing.WeightedAvgCost = 9999
	again, err := s.GetIngredient(ctx, "flour")
	require.NoError(t, err)
	assert.InDelta(t, 1000, again.WeightedAvgCost, 1e-9)
}

func TestMemory_ListIngredientIDsSorted(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	for _, id := range []string{"chili", "beef", "anchovy"} {
		require.NoError(t, s.SaveIngredient(ctx, &model.Ingredient{ID: id}))
	}

	ids, err := s.ListIngredientIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"anchovy", "beef", "chili"}, ids)
}

func TestMemory_RecentPurchasesNewestFirst(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, price := range []float64{1000, 1100, 1200} {
		require.NoError(t, s.AppendPurchase(ctx, model.PurchaseObservation{
			ID:           string(rune('a' + i)),
			IngredientID: "beef",
			UnitPrice:    price,
			OccurredAt:   base.Add(time.Duration(i) * time.Hour),
		}))
	}

	obs, err := s.RecentPurchases(ctx, "beef", 2)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.InDelta(t, 1200, obs[0].UnitPrice, 1e-9)
	assert.InDelta(t, 1100, obs[1].UnitPrice, 1e-9)
}

func TestMemory_RecentPurchasesTieBreakByInsertion(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendPurchase(ctx, model.PurchaseObservation{
		ID: "first", IngredientID: "beef", UnitPrice: 1000, OccurredAt: at,
	}))
	require.NoError(t, s.AppendPurchase(ctx, model.PurchaseObservation{
		ID: "second", IngredientID: "beef", UnitPrice: 1100, OccurredAt: at,
	}))

	obs, err := s.RecentPurchases(ctx, "beef", 2)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, "second", obs[0].ID)
	assert.Equal(t, "first", obs[1].ID)
}

func TestMemory_PruneObservations(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendPurchase(ctx, model.PurchaseObservation{
			ID:           string(rune('a' + i)),
			IngredientID: "beef",
			UnitPrice:    1000 + float64(i),
			OccurredAt:   base.Add(time.Duration(i) * time.Hour),
		}))
	}

	pruned, err := s.PruneObservations(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, pruned)

	obs, err := s.RecentPurchases(ctx, "beef", 10)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.InDelta(t, 1004, obs[0].UnitPrice, 1e-9)
	assert.InDelta(t, 1003, obs[1].UnitPrice, 1e-9)
}

func TestMemory_SaveComponentUpserts(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.SaveComponent(ctx, model.RecipeComponent{
		RecipeID: "rendang", IngredientID: "beef", QuantityPerBatch: 2, Unit: "kg",
	}))
	require.NoError(t, s.SaveComponent(ctx, model.RecipeComponent{
		RecipeID: "rendang", IngredientID: "beef", QuantityPerBatch: 2.5, Unit: "kg",
	}))

	comps, err := s.ComponentsByRecipe(ctx, "rendang")
	require.NoError(t, err)
	require.Len(t, comps, 1)
	assert.InDelta(t, 2.5, comps[0].QuantityPerBatch, 1e-9)
}

func TestMemory_ComponentsByIngredient(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.SaveComponent(ctx, model.RecipeComponent{
		RecipeID: "rendang", IngredientID: "beef", QuantityPerBatch: 2,
	}))
	require.NoError(t, s.SaveComponent(ctx, model.RecipeComponent{
		RecipeID: "bakso", IngredientID: "beef", QuantityPerBatch: 5,
	}))
	require.NoError(t, s.SaveComponent(ctx, model.RecipeComponent{
		RecipeID: "sambal", IngredientID: "chili", QuantityPerBatch: 1,
	}))

	comps, err := s.ComponentsByIngredient(ctx, "beef")
	require.NoError(t, err)
	require.Len(t, comps, 2)
	assert.Equal(t, "bakso", comps[0].RecipeID)
	assert.Equal(t, "rendang", comps[1].RecipeID)
}

func TestMemory_ImportCounts(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	n, err := s.ImportIngredients(ctx, []model.Ingredient{
		{ID: "beef"}, {ID: "chili"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.ImportComponents(ctx, []model.RecipeComponent{
		{RecipeID: "rendang", IngredientID: "beef", QuantityPerBatch: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemory_LatestSnapshotsNewestFirst(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveSnapshot(ctx, &model.CostSnapshot{
			ID:         string(rune('a' + i)),
			RecipeID:   "rendang",
			TotalCost:  2900 + float64(i),
			CapturedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	snaps, err := s.LatestSnapshots(ctx, "rendang", 2)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "c", snaps[0].ID)
	assert.Equal(t, "b", snaps[1].ID)
}

func TestMemory_RecipeNotFound(t *testing.T) {
	s := NewMemory()
	_, err := s.GetRecipe(context.Background(), "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
