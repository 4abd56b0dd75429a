package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/warungworks/costing-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the zero-setup
// backend for single-operator installs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS ingredients (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL DEFAULT '',
	unit              TEXT NOT NULL DEFAULT '',
	current_stock     REAL NOT NULL DEFAULT 0,
	weighted_avg_cost REAL NOT NULL DEFAULT 0,
	list_price        REAL NOT NULL DEFAULT 0,
	purchase_count    INTEGER NOT NULL DEFAULT 0,
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS purchase_observations (
	id            TEXT PRIMARY KEY,
	ingredient_id TEXT NOT NULL REFERENCES ingredients(id),
	quantity      REAL NOT NULL,
	unit_price    REAL NOT NULL,
	occurred_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS recipes (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	servings      INTEGER NOT NULL DEFAULT 1,
	selling_price REAL NOT NULL DEFAULT 0,
	labor_rate    REAL NOT NULL DEFAULT 0,
	overhead_rate REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS recipe_components (
	recipe_id          TEXT NOT NULL REFERENCES recipes(id),
	ingredient_id      TEXT NOT NULL REFERENCES ingredients(id),
	quantity_per_batch REAL NOT NULL,
	unit               TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (recipe_id, ingredient_id)
);

CREATE TABLE IF NOT EXISTS cost_snapshots (
	id            TEXT PRIMARY KEY,
	recipe_id     TEXT NOT NULL REFERENCES recipes(id),
	material_cost REAL NOT NULL,
	labor_cost    REAL NOT NULL,
	overhead_cost REAL NOT NULL,
	total_cost    REAL NOT NULL,
	cost_per_unit REAL NOT NULL,
	captured_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_purchases_ingredient_time ON purchase_observations(ingredient_id, occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_components_ingredient ON recipe_components(ingredient_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_recipe_time ON cost_snapshots(recipe_id, captured_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetIngredient(ctx context.Context, id string) (*model.Ingredient, error) {
	var ing model.Ingredient
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, unit, current_stock, weighted_avg_cost, list_price, purchase_count, updated_at FROM ingredients WHERE id = ?`,
		id,
	).Scan(&ing.ID, &ing.Name, &ing.Unit, &ing.CurrentStock, &ing.WeightedAvgCost, &ing.ListPrice, &ing.PurchaseCount, &ing.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: ingredient %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get ingredient %s", id)
	}
	return &ing, nil
}

func (s *SQLiteStore) SaveIngredient(ctx context.Context, ing *model.Ingredient) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingredients (id, name, unit, current_stock, weighted_avg_cost, list_price, purchase_count, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, unit = excluded.unit,
		   current_stock = excluded.current_stock, weighted_avg_cost = excluded.weighted_avg_cost,
		   list_price = excluded.list_price, purchase_count = excluded.purchase_count, updated_at = excluded.updated_at`,
		ing.ID, ing.Name, ing.Unit, ing.CurrentStock, ing.WeightedAvgCost, ing.ListPrice, ing.PurchaseCount, ing.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: save ingredient %s", ing.ID)
}

func (s *SQLiteStore) ImportIngredients(ctx context.Context, ings []model.Ingredient) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import ingredients begin")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, ing := range ings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ingredients (id, name, unit, current_stock, weighted_avg_cost, list_price, purchase_count, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET name = excluded.name, unit = excluded.unit,
			   current_stock = excluded.current_stock, weighted_avg_cost = excluded.weighted_avg_cost,
			   list_price = excluded.list_price, purchase_count = excluded.purchase_count, updated_at = excluded.updated_at`,
			ing.ID, ing.Name, ing.Unit, ing.CurrentStock, ing.WeightedAvgCost, ing.ListPrice, ing.PurchaseCount, now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import ingredient %s", ing.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import ingredients commit")
	}
	return len(ings), nil
}

func (s *SQLiteStore) ListIngredientIDs(ctx context.Context) ([]string, error) {
	return s.listIDs(ctx, `SELECT id FROM ingredients ORDER BY id`)
}

func (s *SQLiteStore) AppendPurchase(ctx context.Context, obs model.PurchaseObservation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO purchase_observations (id, ingredient_id, quantity, unit_price, occurred_at) VALUES (?, ?, ?, ?, ?)`,
		obs.ID, obs.IngredientID, obs.Quantity, obs.UnitPrice, obs.OccurredAt,
	)
	return eris.Wrapf(err, "sqlite: append purchase for %s", obs.IngredientID)
}

func (s *SQLiteStore) RecentPurchases(ctx context.Context, ingredientID string, n int) ([]model.PurchaseObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ingredient_id, quantity, unit_price, occurred_at FROM purchase_observations
		 WHERE ingredient_id = ? ORDER BY occurred_at DESC, id DESC LIMIT ?`,
		ingredientID, n,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: recent purchases for %s", ingredientID)
	}
	defer rows.Close()

	var obs []model.PurchaseObservation
	for rows.Next() {
		var o model.PurchaseObservation
		if err := rows.Scan(&o.ID, &o.IngredientID, &o.Quantity, &o.UnitPrice, &o.OccurredAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan purchase")
		}
		obs = append(obs, o)
	}
	return obs, eris.Wrap(rows.Err(), "sqlite: recent purchases iterate")
}

func (s *SQLiteStore) PruneObservations(ctx context.Context, keep int) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM purchase_observations WHERE id IN (
			SELECT id FROM (
				SELECT id, row_number() OVER (PARTITION BY ingredient_id ORDER BY occurred_at DESC, id DESC) AS rn
				FROM purchase_observations
			) WHERE rn > ?
		)`,
		keep,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune observations")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune observations rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) GetRecipe(ctx context.Context, id string) (*model.Recipe, error) {
	var r model.Recipe
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, servings, selling_price, labor_rate, overhead_rate FROM recipes WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.Name, &r.Servings, &r.SellingPrice, &r.LaborRate, &r.OverheadRate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: recipe %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get recipe %s", id)
	}
	return &r, nil
}

func (s *SQLiteStore) SaveRecipe(ctx context.Context, r *model.Recipe) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recipes (id, name, servings, selling_price, labor_rate, overhead_rate)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, servings = excluded.servings,
		   selling_price = excluded.selling_price, labor_rate = excluded.labor_rate, overhead_rate = excluded.overhead_rate`,
		r.ID, r.Name, r.Servings, r.SellingPrice, r.LaborRate, r.OverheadRate,
	)
	return eris.Wrapf(err, "sqlite: save recipe %s", r.ID)
}

func (s *SQLiteStore) ListRecipeIDs(ctx context.Context) ([]string, error) {
	return s.listIDs(ctx, `SELECT id FROM recipes ORDER BY id`)
}

func (s *SQLiteStore) listIDs(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list ids iterate")
}

func (s *SQLiteStore) ComponentsByRecipe(ctx context.Context, recipeID string) ([]model.RecipeComponent, error) {
	return s.queryComponents(ctx,
		`SELECT recipe_id, ingredient_id, quantity_per_batch, unit FROM recipe_components WHERE recipe_id = ? ORDER BY ingredient_id`,
		recipeID,
	)
}

func (s *SQLiteStore) ComponentsByIngredient(ctx context.Context, ingredientID string) ([]model.RecipeComponent, error) {
	return s.queryComponents(ctx,
		`SELECT recipe_id, ingredient_id, quantity_per_batch, unit FROM recipe_components WHERE ingredient_id = ? ORDER BY recipe_id`,
		ingredientID,
	)
}

func (s *SQLiteStore) queryComponents(ctx context.Context, query string, arg any) ([]model.RecipeComponent, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query components")
	}
	defer rows.Close()

	var comps []model.RecipeComponent
	for rows.Next() {
		var c model.RecipeComponent
		if err := rows.Scan(&c.RecipeID, &c.IngredientID, &c.QuantityPerBatch, &c.Unit); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan component")
		}
		comps = append(comps, c)
	}
	return comps, eris.Wrap(rows.Err(), "sqlite: query components iterate")
}

func (s *SQLiteStore) SaveComponent(ctx context.Context, c model.RecipeComponent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recipe_components (recipe_id, ingredient_id, quantity_per_batch, unit)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (recipe_id, ingredient_id) DO UPDATE SET quantity_per_batch = excluded.quantity_per_batch, unit = excluded.unit`,
		c.RecipeID, c.IngredientID, c.QuantityPerBatch, c.Unit,
	)
	return eris.Wrapf(err, "sqlite: save component %s/%s", c.RecipeID, c.IngredientID)
}

func (s *SQLiteStore) ImportComponents(ctx context.Context, comps []model.RecipeComponent) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import components begin")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, c := range comps {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO recipe_components (recipe_id, ingredient_id, quantity_per_batch, unit)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (recipe_id, ingredient_id) DO UPDATE SET quantity_per_batch = excluded.quantity_per_batch, unit = excluded.unit`,
			c.RecipeID, c.IngredientID, c.QuantityPerBatch, c.Unit,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import component %s/%s", c.RecipeID, c.IngredientID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import components commit")
	}
	return len(comps), nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *model.CostSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cost_snapshots (id, recipe_id, material_cost, labor_cost, overhead_cost, total_cost, cost_per_unit, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.RecipeID, snap.MaterialCost, snap.LaborCost, snap.OverheadCost, snap.TotalCost, snap.CostPerUnit, snap.CapturedAt,
	)
	return eris.Wrapf(err, "sqlite: save snapshot for %s", snap.RecipeID)
}

func (s *SQLiteStore) LatestSnapshots(ctx context.Context, recipeID string, n int) ([]model.CostSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recipe_id, material_cost, labor_cost, overhead_cost, total_cost, cost_per_unit, captured_at
		 FROM cost_snapshots WHERE recipe_id = ? ORDER BY captured_at DESC, id DESC LIMIT ?`,
		recipeID, n,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest snapshots for %s", recipeID)
	}
	defer rows.Close()

	var snaps []model.CostSnapshot
	for rows.Next() {
		var sn model.CostSnapshot
		if err := rows.Scan(&sn.ID, &sn.RecipeID, &sn.MaterialCost, &sn.LaborCost, &sn.OverheadCost, &sn.TotalCost, &sn.CostPerUnit, &sn.CapturedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		snaps = append(snaps, sn)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: latest snapshots iterate")
}
