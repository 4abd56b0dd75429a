package main

import (
	"context"
	"os"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warungworks/costing-cli/internal/model"
)

var (
	importIngredients string
	importRecipes     string
	importComponents  string
	importPurchases   string
)

// ingredientRow mirrors one line of an ingredients CSV.
type ingredientRow struct {
	ID        string  `csv:"id"`
	Name      string  `csv:"name"`
	Unit      string  `csv:"unit"`
	ListPrice float64 `csv:"list_price"`
}

// recipeRow mirrors one line of a recipes CSV.
type recipeRow struct {
	ID           string  `csv:"id"`
	Name         string  `csv:"name"`
	Servings     int     `csv:"servings"`
	SellingPrice float64 `csv:"selling_price"`
	LaborRate    float64 `csv:"labor_rate"`
	OverheadRate float64 `csv:"overhead_rate"`
}

// componentRow mirrors one line of a components CSV.
type componentRow struct {
	RecipeID         string  `csv:"recipe_id"`
	IngredientID     string  `csv:"ingredient_id"`
	QuantityPerBatch float64 `csv:"quantity_per_batch"`
	Unit             string  `csv:"unit"`
}

// purchaseRow mirrors one line of a purchase backfill CSV.
type purchaseRow struct {
	IngredientID string    `csv:"ingredient_id"`
	Quantity     float64   `csv:"quantity"`
	UnitPrice    float64   `csv:"unit_price"`
	OccurredAt   time.Time `csv:"occurred_at"`
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk load ingredients, recipes, components, and purchase history from CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initCosting(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if importIngredients != "" {
			var rows []ingredientRow
			if err := readCSV(importIngredients, &rows); err != nil {
				return err
			}
			ings := make([]model.Ingredient, 0, len(rows))
			for _, r := range rows {
				ings = append(ings, model.Ingredient{
					ID:        r.ID,
					Name:      r.Name,
					Unit:      r.Unit,
					ListPrice: r.ListPrice,
				})
			}
			n, err := env.Store.ImportIngredients(ctx, ings)
			if err != nil {
				return err
			}
			zap.L().Info("ingredients imported", zap.Int("rows", n))
		}

		if importRecipes != "" {
			var rows []recipeRow
			if err := readCSV(importRecipes, &rows); err != nil {
				return err
			}
			for _, r := range rows {
				recipe := model.Recipe{
					ID:           r.ID,
					Name:         r.Name,
					Servings:     r.Servings,
					SellingPrice: r.SellingPrice,
					LaborRate:    r.LaborRate,
					OverheadRate: r.OverheadRate,
				}
				if err := env.Store.SaveRecipe(ctx, &recipe); err != nil {
					return err
				}
			}
			zap.L().Info("recipes imported", zap.Int("rows", len(rows)))
		}

		if importComponents != "" {
			var rows []componentRow
			if err := readCSV(importComponents, &rows); err != nil {
				return err
			}
			comps := make([]model.RecipeComponent, 0, len(rows))
			for _, r := range rows {
				comps = append(comps, model.RecipeComponent{
					RecipeID:         r.RecipeID,
					IngredientID:     r.IngredientID,
					QuantityPerBatch: r.QuantityPerBatch,
					Unit:             r.Unit,
				})
			}
			n, err := env.Store.ImportComponents(ctx, comps)
			if err != nil {
				return err
			}
			zap.L().Info("components imported", zap.Int("rows", n))
		}

		if importPurchases != "" {
			n, err := replayPurchases(ctx, env, importPurchases)
			if err != nil {
				return err
			}
			zap.L().Info("purchases replayed", zap.Int("rows", n))
		}

		return nil
	},
}

// replayPurchases runs backfill rows through the ledger in file order so the
// weighted-average invariants hold instead of writing observations directly.
func replayPurchases(ctx context.Context, env *costingEnv, path string) (int, error) {
	var rows []purchaseRow
	if err := readCSV(path, &rows); err != nil {
		return 0, err
	}
	for i, r := range rows {
		if _, err := env.Ledger.RecordPurchase(ctx, r.IngredientID, r.Quantity, r.UnitPrice, r.OccurredAt); err != nil {
			return i, eris.Wrapf(err, "import: purchase row %d", i+1)
		}
	}
	return len(rows), nil
}

// readCSV decodes a whole CSV file into typed rows.
func readCSV(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "import: read %s", path)
	}
	if err := csvutil.Unmarshal(data, out); err != nil {
		return eris.Wrapf(err, "import: parse %s", path)
	}
	return nil
}

func init() {
	importCmd.Flags().StringVar(&importIngredients, "ingredients", "", "ingredients CSV file")
	importCmd.Flags().StringVar(&importRecipes, "recipes", "", "recipes CSV file")
	importCmd.Flags().StringVar(&importComponents, "components", "", "components CSV file")
	importCmd.Flags().StringVar(&importPurchases, "purchases", "", "purchase backfill CSV file")
	rootCmd.AddCommand(importCmd)
}
