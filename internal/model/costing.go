// Package model defines the domain types shared across the costing engine.
package model

import "time"

// Severity classifies how urgent a cost-change alert is.
type Severity string

const (
	SeverityNormal Severity = "normal"
	SeverityHigh   Severity = "high"
)

// Ingredient is a purchasable raw material with a running weighted-average
// unit cost. Only the ledger mutates it; everything else reads.
type Ingredient struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Unit            string    `json:"unit"`
	CurrentStock    float64   `json:"current_stock"`
	WeightedAvgCost float64   `json:"weighted_avg_cost"`
	ListPrice       float64   `json:"list_price"` // fallback cost before any purchase exists
	PurchaseCount   int       `json:"purchase_count"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// UnitCost returns the effective cost basis: the weighted average once a
// purchase has been recorded, the supplier list price before that.
func (i *Ingredient) UnitCost() float64 {
	if i.PurchaseCount > 0 {
		return i.WeightedAvgCost
	}
	return i.ListPrice
}

// PurchaseObservation is one recorded purchase of an ingredient. Append-only;
// the two most recent per ingredient drive change detection.
type PurchaseObservation struct {
	ID           string    `json:"id"`
	IngredientID string    `json:"ingredient_id"`
	Quantity     float64   `json:"quantity"`
	UnitPrice    float64   `json:"unit_price"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Recipe is a sellable product built from ingredient components.
type Recipe struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Servings     int     `json:"servings"`
	SellingPrice float64 `json:"selling_price"` // 0 = not set yet
	LaborRate    float64 `json:"labor_rate"`
	OverheadRate float64 `json:"overhead_rate"`
}

// RecipeComponent links a recipe to an ingredient with a per-batch quantity.
type RecipeComponent struct {
	RecipeID         string  `json:"recipe_id"`
	IngredientID     string  `json:"ingredient_id"`
	QuantityPerBatch float64 `json:"quantity_per_batch"`
	Unit             string  `json:"unit"`
}

// IngredientLine is one per-ingredient row of a compiled breakdown.
type IngredientLine struct {
	IngredientID string  `json:"ingredient_id"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	Quantity     float64 `json:"quantity"`
	UnitCost     float64 `json:"unit_cost"`
	LineCost     float64 `json:"line_cost"`
}

// CostBreakdown is the compiled cost of one recipe batch. It is a derived
// value, always recomputable from current ingredient and component state.
type CostBreakdown struct {
	RecipeID     string           `json:"recipe_id"`
	MaterialCost float64          `json:"material_cost"`
	LaborCost    float64          `json:"labor_cost"`
	OverheadCost float64          `json:"overhead_cost"`
	TotalCost    float64          `json:"total_cost"`
	CostPerUnit  float64          `json:"cost_per_unit"`
	Servings     int              `json:"servings"`
	Empty        bool             `json:"empty"` // recipe has no components yet
	Lines        []IngredientLine `json:"lines,omitempty"`
}

// CostSnapshot is an immutable, timestamped capture of a compiled breakdown.
type CostSnapshot struct {
	ID           string    `json:"id"`
	RecipeID     string    `json:"recipe_id"`
	MaterialCost float64   `json:"material_cost"`
	LaborCost    float64   `json:"labor_cost"`
	OverheadCost float64   `json:"overhead_cost"`
	TotalCost    float64   `json:"total_cost"`
	CostPerUnit  float64   `json:"cost_per_unit"`
	CapturedAt   time.Time `json:"captured_at"`
}

// RecipeImpact attributes a slice of an ingredient price change to one recipe.
type RecipeImpact struct {
	RecipeID   string  `json:"recipe_id"`
	CostImpact float64 `json:"cost_impact"` // change in unit price x quantity per batch
}

// CostChangeAlert reports a material purchase-price movement. Deduplication
// and delivery state belong to the notification collaborator, not here.
type CostChangeAlert struct {
	IngredientID      string         `json:"ingredient_id"`
	PreviousUnitPrice float64        `json:"previous_unit_price"`
	CurrentUnitPrice  float64        `json:"current_unit_price"`
	ChangePercent     float64        `json:"change_percent"`
	ChangeAmount      float64        `json:"change_amount"`
	Severity          Severity       `json:"severity"`
	AffectedRecipes   []RecipeImpact `json:"affected_recipes"`
	ObservedAt        time.Time      `json:"observed_at"`
}
