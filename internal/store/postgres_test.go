package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warungworks/costing-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgres_GetIngredient(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, name, unit, current_stock").
		WithArgs("beef").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "unit", "current_stock", "weighted_avg_cost", "list_price", "purchase_count", "updated_at",
		}).AddRow("beef", "Beef", "kg", 20.0, 1100.0, 0.0, 2, now))

	ing, err := s.GetIngredient(context.Background(), "beef")
	require.NoError(t, err)
	assert.Equal(t, "Beef", ing.Name)
	assert.InDelta(t, 1100, ing.WeightedAvgCost, 1e-9)
	assert.Equal(t, 2, ing.PurchaseCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetIngredientNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, unit, current_stock").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetIngredient(context.Background(), "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveIngredientUpserts(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO ingredients").
		WithArgs("beef", "Beef", "kg", 20.0, 1100.0, 0.0, 2, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveIngredient(context.Background(), &model.Ingredient{
		ID: "beef", Name: "Beef", Unit: "kg",
		CurrentStock: 20, WeightedAvgCost: 1100, PurchaseCount: 2, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecentPurchases(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, ingredient_id, quantity, unit_price, occurred_at FROM purchase_observations").
		WithArgs("beef", 2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "ingredient_id", "quantity", "unit_price", "occurred_at"}).
			AddRow("b", "beef", 10.0, 1400.0, now).
			AddRow("a", "beef", 10.0, 1200.0, now.Add(-time.Hour)))

	obs, err := s.RecentPurchases(context.Background(), "beef", 2)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.InDelta(t, 1400, obs[0].UnitPrice, 1e-9)
	assert.InDelta(t, 1200, obs[1].UnitPrice, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PruneObservations(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM purchase_observations").
		WithArgs(2).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.PruneObservations(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRecipeNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, servings, selling_price").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRecipe(context.Background(), "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ComponentsByIngredient(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT recipe_id, ingredient_id, quantity_per_batch, unit FROM recipe_components WHERE ingredient_id").
		WithArgs("beef").
		WillReturnRows(pgxmock.NewRows([]string{"recipe_id", "ingredient_id", "quantity_per_batch", "unit"}).
			AddRow("bakso", "beef", 5.0, "kg").
			AddRow("rendang", "beef", 2.0, "kg"))

	comps, err := s.ComponentsByIngredient(context.Background(), "beef")
	require.NoError(t, err)
	require.Len(t, comps, 2)
	assert.Equal(t, "bakso", comps[0].RecipeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ImportIngredients(t *testing.T) {
	s, mock := newMockStore(t)

	// 2 rows x 8 columns; pgxmock/v3 requires the argument count to match
	// even when individual values are not asserted.
	anyArgs := make([]any, 16)
	for i := range anyArgs {
		anyArgs[i] = pgxmock.AnyArg()
	}
	mock.ExpectExec(`INSERT INTO "ingredients"`).
		WithArgs(anyArgs...).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	n, err := s.ImportIngredients(context.Background(), []model.Ingredient{
		{ID: "beef", Name: "Beef"},
		{ID: "chili", Name: "Chili"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveSnapshot(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO cost_snapshots").
		WithArgs("snap-1", "rendang", 2200.0, 500.0, 220.0, 2920.0, 730.0, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveSnapshot(context.Background(), &model.CostSnapshot{
		ID: "snap-1", RecipeID: "rendang",
		MaterialCost: 2200, LaborCost: 500, OverheadCost: 220,
		TotalCost: 2920, CostPerUnit: 730, CapturedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ingredients").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
