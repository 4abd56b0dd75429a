// Package store persists ingredients, recipes, purchase observations, and
// cost snapshots behind a typed interface. The core never issues raw queries.
package store

import (
	"context"

	"github.com/warungworks/costing-cli/internal/model"
)

// Store defines the persistence interface for the costing engine.
//
// Get* methods return model.ErrNotFound (wrapped) for unknown ids. Purchase
// observations are append-only; RecentPurchases returns newest first.
type Store interface {
	// Ingredients
	GetIngredient(ctx context.Context, id string) (*model.Ingredient, error)
	SaveIngredient(ctx context.Context, ing *model.Ingredient) error
	ImportIngredients(ctx context.Context, ings []model.Ingredient) (int, error)
	ListIngredientIDs(ctx context.Context) ([]string, error)

	// Purchase observations
	AppendPurchase(ctx context.Context, obs model.PurchaseObservation) error
	RecentPurchases(ctx context.Context, ingredientID string, n int) ([]model.PurchaseObservation, error)
	PruneObservations(ctx context.Context, keep int) (int, error)

	// Recipes and components
	GetRecipe(ctx context.Context, id string) (*model.Recipe, error)
	SaveRecipe(ctx context.Context, r *model.Recipe) error
	ListRecipeIDs(ctx context.Context) ([]string, error)
	ComponentsByRecipe(ctx context.Context, recipeID string) ([]model.RecipeComponent, error)
	ComponentsByIngredient(ctx context.Context, ingredientID string) ([]model.RecipeComponent, error)
	SaveComponent(ctx context.Context, c model.RecipeComponent) error
	ImportComponents(ctx context.Context, comps []model.RecipeComponent) (int, error)

	// Cost snapshots
	SaveSnapshot(ctx context.Context, snap *model.CostSnapshot) error
	LatestSnapshots(ctx context.Context, recipeID string, n int) ([]model.CostSnapshot, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
