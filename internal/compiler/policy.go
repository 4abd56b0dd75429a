package compiler

import (
	"github.com/rotisserie/eris"

	"github.com/warungworks/costing-cli/internal/model"
)

// Policy allocates a labor or overhead cost for one batch. Inputs are the
// compiled material cost, the recipe's rate field, and the servings count;
// which of them matter depends on the allocation scheme.
type Policy func(materialCost, rate float64, servings int) float64

// PercentOfMaterial treats the rate as a percentage of material cost.
// This is the default scheme.
func PercentOfMaterial(materialCost, rate float64, _ int) float64 {
	return materialCost * rate / 100
}

// FlatAmount treats the rate as a fixed cost per batch.
func FlatAmount(_, rate float64, _ int) float64 {
	return rate
}

// PerServing treats the rate as a fixed cost per serving.
func PerServing(_, rate float64, servings int) float64 {
	return rate * float64(servings)
}

// PolicyByName resolves a config policy name to its allocation function.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "percent":
		return PercentOfMaterial, nil
	case "flat":
		return FlatAmount, nil
	case "per_serving":
		return PerServing, nil
	default:
		return nil, eris.Wrapf(model.ErrInvalidInput, "compiler: unknown cost policy %q", name)
	}
}
