package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warungworks/costing-cli/internal/ledger"
	"github.com/warungworks/costing-cli/internal/model"
	"github.com/warungworks/costing-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fixture builds a store with one recipe: 2 kg of beef at WAC 1100 per kg,
// flat labor 500 per batch, 10% overhead, 4 servings.
func fixture(t *testing.T) store.Store {
	t.Helper()
	s := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, s.SaveIngredient(ctx, &model.Ingredient{
		ID: "beef", Name: "Beef", Unit: "kg",
		CurrentStock: 20, WeightedAvgCost: 1100, PurchaseCount: 2,
	}))
	require.NoError(t, s.SaveRecipe(ctx, &model.Recipe{
		ID: "rendang", Name: "Rendang", Servings: 4,
		LaborRate: 500, OverheadRate: 10,
	}))
	require.NoError(t, s.SaveComponent(ctx, model.RecipeComponent{
		RecipeID: "rendang", IngredientID: "beef", QuantityPerBatch: 2, Unit: "kg",
	}))
	return s
}

func TestCompile_Breakdown(t *testing.T) {
	s := fixture(t)
	c := New(s, ledger.New(s), FlatAmount, PercentOfMaterial)

	b, err := c.Compile(context.Background(), "rendang")
	require.NoError(t, err)

	assert.InDelta(t, 2200, b.MaterialCost, 1e-9)
	assert.InDelta(t, 500, b.LaborCost, 1e-9)
	assert.InDelta(t, 220, b.OverheadCost, 1e-9)
	assert.InDelta(t, 2920, b.TotalCost, 1e-9)
	assert.InDelta(t, 730, b.CostPerUnit, 1e-9)
	assert.Equal(t, 4, b.Servings)
	assert.False(t, b.Empty)

	require.Len(t, b.Lines, 1)
	assert.Equal(t, "beef", b.Lines[0].IngredientID)
	assert.InDelta(t, 1100, b.Lines[0].UnitCost, 1e-9)
	assert.InDelta(t, 2200, b.Lines[0].LineCost, 1e-9)
}

func TestCompile_MaterialIsSumOfLines(t *testing.T) {
	s := fixture(t)
	ctx := context.Background()
	require.NoError(t, s.SaveIngredient(ctx, &model.Ingredient{
		ID: "coconut-milk", Name: "Coconut milk", Unit: "l",
		WeightedAvgCost: 300, PurchaseCount: 1,
	}))
	require.NoError(t, s.SaveComponent(ctx, model.RecipeComponent{
		RecipeID: "rendang", IngredientID: "coconut-milk", QuantityPerBatch: 1.5, Unit: "l",
	}))

	c := New(s, ledger.New(s), FlatAmount, PercentOfMaterial)
	b, err := c.Compile(ctx, "rendang")
	require.NoError(t, err)

	var sum float64
	for _, line := range b.Lines {
		sum += line.LineCost
	}
	assert.InDelta(t, sum, b.MaterialCost, 1e-9)
	assert.InDelta(t, 2200+450, b.MaterialCost, 1e-9)
	assert.InDelta(t, b.MaterialCost+b.LaborCost+b.OverheadCost, b.TotalCost, 1e-9)
}

func TestCompile_ListPriceBeforeFirstPurchase(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, s.SaveIngredient(ctx, &model.Ingredient{
		ID: "chili", Name: "Chili", Unit: "kg", ListPrice: 40000,
	}))
	require.NoError(t, s.SaveRecipe(ctx, &model.Recipe{ID: "sambal", Servings: 10}))
	require.NoError(t, s.SaveComponent(ctx, model.RecipeComponent{
		RecipeID: "sambal", IngredientID: "chili", QuantityPerBatch: 0.5, Unit: "kg",
	}))

	c := New(s, ledger.New(s), nil, nil)
	b, err := c.Compile(ctx, "sambal")
	require.NoError(t, err)
	assert.InDelta(t, 20000, b.MaterialCost, 1e-9)
}

func TestCompile_EmptyRecipe(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, s.SaveRecipe(ctx, &model.Recipe{ID: "draft", Servings: 4}))

	c := New(s, ledger.New(s), nil, nil)
	b, err := c.Compile(ctx, "draft")
	require.NoError(t, err)

	assert.True(t, b.Empty)
	assert.Zero(t, b.TotalCost)
	assert.Zero(t, b.CostPerUnit)
	assert.Empty(t, b.Lines)
}

func TestCompile_InvalidServings(t *testing.T) {
	s := fixture(t)
	ctx := context.Background()
	require.NoError(t, s.SaveRecipe(ctx, &model.Recipe{
		ID: "rendang", Servings: 0, LaborRate: 500, OverheadRate: 10,
	}))

	c := New(s, ledger.New(s), FlatAmount, PercentOfMaterial)
	_, err := c.Compile(ctx, "rendang")
	assert.ErrorIs(t, err, model.ErrInvalidServings)
}

func TestCompile_UnknownRecipe(t *testing.T) {
	s := store.NewMemory()
	c := New(s, ledger.New(s), nil, nil)
	_, err := c.Compile(context.Background(), "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCompile_Idempotent(t *testing.T) {
	s := fixture(t)
	c := New(s, ledger.New(s), FlatAmount, PercentOfMaterial)
	ctx := context.Background()

	first, err := c.Compile(ctx, "rendang")
	require.NoError(t, err)
	second, err := c.Compile(ctx, "rendang")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCompileAll_PartialFailure(t *testing.T) {
	s := fixture(t)
	c := New(s, ledger.New(s), FlatAmount, PercentOfMaterial)

	ids := []string{"rendang", "missing", "rendang"}
	results := c.CompileAll(context.Background(), ids, 2)
	require.Len(t, results, 3)

	// Input order survives the concurrent fan-out.
	assert.Equal(t, "rendang", results[0].RecipeID)
	assert.Equal(t, "missing", results[1].RecipeID)
	assert.Equal(t, "rendang", results[2].RecipeID)

	assert.NoError(t, results[0].Err)
	assert.InDelta(t, 2920, results[0].Breakdown.TotalCost, 1e-9)
	assert.ErrorIs(t, results[1].Err, model.ErrNotFound)
	assert.NoError(t, results[2].Err)
}

func TestCompileAll_ZeroConcurrency(t *testing.T) {
	s := fixture(t)
	c := New(s, ledger.New(s), FlatAmount, PercentOfMaterial)

	results := c.CompileAll(context.Background(), []string{"rendang"}, 0)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
}

func TestPolicies(t *testing.T) {
	tests := []struct {
		name     string
		policy   Policy
		material float64
		rate     float64
		servings int
		want     float64
	}{
		{"percent of material", PercentOfMaterial, 2200, 10, 4, 220},
		{"percent zero rate", PercentOfMaterial, 2200, 0, 4, 0},
		{"flat amount", FlatAmount, 2200, 500, 4, 500},
		{"per serving", PerServing, 2200, 150, 4, 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy(tt.material, tt.rate, tt.servings)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestPolicyByName(t *testing.T) {
	for _, name := range []string{"", "percent", "flat", "per_serving"} {
		p, err := PolicyByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, p)
	}

	_, err := PolicyByName("hourly")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}
