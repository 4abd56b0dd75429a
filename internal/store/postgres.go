package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/warungworks/costing-cli/internal/db"
	"github.com/warungworks/costing-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot ledger and compiler paths.
var preparedStatements = map[string]string{
	"get_ingredient":        `SELECT id, name, unit, current_stock, weighted_avg_cost, list_price, purchase_count, updated_at FROM ingredients WHERE id = $1`,
	"save_ingredient":       `INSERT INTO ingredients (id, name, unit, current_stock, weighted_avg_cost, list_price, purchase_count, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (id) DO UPDATE SET name = $2, unit = $3, current_stock = $4, weighted_avg_cost = $5, list_price = $6, purchase_count = $7, updated_at = $8`,
	"append_purchase":       `INSERT INTO purchase_observations (id, ingredient_id, quantity, unit_price, occurred_at) VALUES ($1, $2, $3, $4, $5)`,
	"recent_purchases":      `SELECT id, ingredient_id, quantity, unit_price, occurred_at FROM purchase_observations WHERE ingredient_id = $1 ORDER BY occurred_at DESC, id DESC LIMIT $2`,
	"components_by_recipe":  `SELECT recipe_id, ingredient_id, quantity_per_batch, unit FROM recipe_components WHERE recipe_id = $1 ORDER BY ingredient_id`,
	"save_snapshot":         `INSERT INTO cost_snapshots (id, recipe_id, material_cost, labor_cost, overhead_cost, total_cost, cost_per_unit, captured_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS ingredients (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL DEFAULT '',
	unit              TEXT NOT NULL DEFAULT '',
	current_stock     DOUBLE PRECISION NOT NULL DEFAULT 0,
	weighted_avg_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	list_price        DOUBLE PRECISION NOT NULL DEFAULT 0,
	purchase_count    INTEGER NOT NULL DEFAULT 0,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS purchase_observations (
	id            TEXT PRIMARY KEY,
	ingredient_id TEXT NOT NULL REFERENCES ingredients(id),
	quantity      DOUBLE PRECISION NOT NULL,
	unit_price    DOUBLE PRECISION NOT NULL,
	occurred_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS recipes (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	servings      INTEGER NOT NULL DEFAULT 1,
	selling_price DOUBLE PRECISION NOT NULL DEFAULT 0,
	labor_rate    DOUBLE PRECISION NOT NULL DEFAULT 0,
	overhead_rate DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS recipe_components (
	recipe_id          TEXT NOT NULL REFERENCES recipes(id),
	ingredient_id      TEXT NOT NULL REFERENCES ingredients(id),
	quantity_per_batch DOUBLE PRECISION NOT NULL,
	unit               TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (recipe_id, ingredient_id)
);

CREATE TABLE IF NOT EXISTS cost_snapshots (
	id            TEXT PRIMARY KEY,
	recipe_id     TEXT NOT NULL REFERENCES recipes(id),
	material_cost DOUBLE PRECISION NOT NULL,
	labor_cost    DOUBLE PRECISION NOT NULL,
	overhead_cost DOUBLE PRECISION NOT NULL,
	total_cost    DOUBLE PRECISION NOT NULL,
	cost_per_unit DOUBLE PRECISION NOT NULL,
	captured_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_purchases_ingredient_time ON purchase_observations(ingredient_id, occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_components_ingredient ON recipe_components(ingredient_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_recipe_time ON cost_snapshots(recipe_id, captured_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetIngredient(ctx context.Context, id string) (*model.Ingredient, error) {
	var ing model.Ingredient
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, unit, current_stock, weighted_avg_cost, list_price, purchase_count, updated_at FROM ingredients WHERE id = $1`,
		id,
	).Scan(&ing.ID, &ing.Name, &ing.Unit, &ing.CurrentStock, &ing.WeightedAvgCost, &ing.ListPrice, &ing.PurchaseCount, &ing.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: ingredient %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get ingredient %s", id)
	}
	return &ing, nil
}

func (s *PostgresStore) SaveIngredient(ctx context.Context, ing *model.Ingredient) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingredients (id, name, unit, current_stock, weighted_avg_cost, list_price, purchase_count, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET name = $2, unit = $3, current_stock = $4, weighted_avg_cost = $5, list_price = $6, purchase_count = $7, updated_at = $8`,
		ing.ID, ing.Name, ing.Unit, ing.CurrentStock, ing.WeightedAvgCost, ing.ListPrice, ing.PurchaseCount, ing.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: save ingredient %s", ing.ID)
}

func (s *PostgresStore) ImportIngredients(ctx context.Context, ings []model.Ingredient) (int, error) {
	rows := make([][]any, 0, len(ings))
	now := time.Now().UTC()
	for _, ing := range ings {
		rows = append(rows, []any{ing.ID, ing.Name, ing.Unit, ing.CurrentStock, ing.WeightedAvgCost, ing.ListPrice, ing.PurchaseCount, now})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "ingredients",
		Columns:      []string{"id", "name", "unit", "current_stock", "weighted_avg_cost", "list_price", "purchase_count", "updated_at"},
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import ingredients")
	}
	return int(n), nil
}

func (s *PostgresStore) ListIngredientIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM ingredients ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ingredient ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ingredient id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list ingredient ids iterate")
}

func (s *PostgresStore) AppendPurchase(ctx context.Context, obs model.PurchaseObservation) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO purchase_observations (id, ingredient_id, quantity, unit_price, occurred_at) VALUES ($1, $2, $3, $4, $5)`,
		obs.ID, obs.IngredientID, obs.Quantity, obs.UnitPrice, obs.OccurredAt,
	)
	return eris.Wrapf(err, "postgres: append purchase for %s", obs.IngredientID)
}

func (s *PostgresStore) RecentPurchases(ctx context.Context, ingredientID string, n int) ([]model.PurchaseObservation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ingredient_id, quantity, unit_price, occurred_at FROM purchase_observations
		 WHERE ingredient_id = $1 ORDER BY occurred_at DESC, id DESC LIMIT $2`,
		ingredientID, n,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: recent purchases for %s", ingredientID)
	}
	defer rows.Close()

	var obs []model.PurchaseObservation
	for rows.Next() {
		var o model.PurchaseObservation
		if err := rows.Scan(&o.ID, &o.IngredientID, &o.Quantity, &o.UnitPrice, &o.OccurredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan purchase")
		}
		obs = append(obs, o)
	}
	return obs, eris.Wrap(rows.Err(), "postgres: recent purchases iterate")
}

func (s *PostgresStore) PruneObservations(ctx context.Context, keep int) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM purchase_observations WHERE id IN (
			SELECT id FROM (
				SELECT id, row_number() OVER (PARTITION BY ingredient_id ORDER BY occurred_at DESC, id DESC) AS rn
				FROM purchase_observations
			) ranked WHERE ranked.rn > $1
		)`,
		keep,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: prune observations")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetRecipe(ctx context.Context, id string) (*model.Recipe, error) {
	var r model.Recipe
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, servings, selling_price, labor_rate, overhead_rate FROM recipes WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.Name, &r.Servings, &r.SellingPrice, &r.LaborRate, &r.OverheadRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: recipe %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get recipe %s", id)
	}
	return &r, nil
}

func (s *PostgresStore) SaveRecipe(ctx context.Context, r *model.Recipe) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO recipes (id, name, servings, selling_price, labor_rate, overhead_rate)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET name = $2, servings = $3, selling_price = $4, labor_rate = $5, overhead_rate = $6`,
		r.ID, r.Name, r.Servings, r.SellingPrice, r.LaborRate, r.OverheadRate,
	)
	return eris.Wrapf(err, "postgres: save recipe %s", r.ID)
}

func (s *PostgresStore) ListRecipeIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM recipes ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recipe ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan recipe id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list recipe ids iterate")
}

func (s *PostgresStore) ComponentsByRecipe(ctx context.Context, recipeID string) ([]model.RecipeComponent, error) {
	return s.queryComponents(ctx,
		`SELECT recipe_id, ingredient_id, quantity_per_batch, unit FROM recipe_components WHERE recipe_id = $1 ORDER BY ingredient_id`,
		recipeID,
	)
}

func (s *PostgresStore) ComponentsByIngredient(ctx context.Context, ingredientID string) ([]model.RecipeComponent, error) {
	return s.queryComponents(ctx,
		`SELECT recipe_id, ingredient_id, quantity_per_batch, unit FROM recipe_components WHERE ingredient_id = $1 ORDER BY recipe_id`,
		ingredientID,
	)
}

func (s *PostgresStore) queryComponents(ctx context.Context, query string, arg any) ([]model.RecipeComponent, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query components")
	}
	defer rows.Close()

	var comps []model.RecipeComponent
	for rows.Next() {
		var c model.RecipeComponent
		if err := rows.Scan(&c.RecipeID, &c.IngredientID, &c.QuantityPerBatch, &c.Unit); err != nil {
			return nil, eris.Wrap(err, "postgres: scan component")
		}
		comps = append(comps, c)
	}
	return comps, eris.Wrap(rows.Err(), "postgres: query components iterate")
}

func (s *PostgresStore) SaveComponent(ctx context.Context, c model.RecipeComponent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO recipe_components (recipe_id, ingredient_id, quantity_per_batch, unit)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (recipe_id, ingredient_id) DO UPDATE SET quantity_per_batch = $3, unit = $4`,
		c.RecipeID, c.IngredientID, c.QuantityPerBatch, c.Unit,
	)
	return eris.Wrapf(err, "postgres: save component %s/%s", c.RecipeID, c.IngredientID)
}

func (s *PostgresStore) ImportComponents(ctx context.Context, comps []model.RecipeComponent) (int, error) {
	rows := make([][]any, 0, len(comps))
	for _, c := range comps {
		rows = append(rows, []any{c.RecipeID, c.IngredientID, c.QuantityPerBatch, c.Unit})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "recipe_components",
		Columns:      []string{"recipe_id", "ingredient_id", "quantity_per_batch", "unit"},
		ConflictKeys: []string{"recipe_id", "ingredient_id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import components")
	}
	return int(n), nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *model.CostSnapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cost_snapshots (id, recipe_id, material_cost, labor_cost, overhead_cost, total_cost, cost_per_unit, captured_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		snap.ID, snap.RecipeID, snap.MaterialCost, snap.LaborCost, snap.OverheadCost, snap.TotalCost, snap.CostPerUnit, snap.CapturedAt,
	)
	return eris.Wrapf(err, "postgres: save snapshot for %s", snap.RecipeID)
}

func (s *PostgresStore) LatestSnapshots(ctx context.Context, recipeID string, n int) ([]model.CostSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, recipe_id, material_cost, labor_cost, overhead_cost, total_cost, cost_per_unit, captured_at
		 FROM cost_snapshots WHERE recipe_id = $1 ORDER BY captured_at DESC, id DESC LIMIT $2`,
		recipeID, n,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest snapshots for %s", recipeID)
	}
	defer rows.Close()

	var snaps []model.CostSnapshot
	for rows.Next() {
		var sn model.CostSnapshot
		if err := rows.Scan(&sn.ID, &sn.RecipeID, &sn.MaterialCost, &sn.LaborCost, &sn.OverheadCost, &sn.TotalCost, &sn.CostPerUnit, &sn.CapturedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		snaps = append(snaps, sn)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: latest snapshots iterate")
}
