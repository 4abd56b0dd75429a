// Package advisor derives suggested selling-price tiers from a compiled cost
// breakdown and evaluates whether an existing price is profitable.
package advisor

import (
	"github.com/shopspring/decimal"

	"github.com/warungworks/costing-cli/internal/config"
	"github.com/warungworks/costing-cli/internal/model"
)

// MarginPolicy holds the markup percentages for the three suggestion tiers
// and an optional rounding increment for menu-friendly prices.
type MarginPolicy struct {
	EconomyPct  float64
	StandardPct float64
	PremiumPct  float64
	// RoundIncrement rounds each suggested price up to the nearest multiple
	// (100 gives rupiah-style menu prices). 0 keeps the raw markup price.
	RoundIncrement float64
}

// DefaultPolicy returns the stock 30/60/100 markup tiers with no rounding.
func DefaultPolicy() MarginPolicy {
	return MarginPolicy{EconomyPct: 30, StandardPct: 60, PremiumPct: 100}
}

// PolicyFromConfig builds a MarginPolicy from pricing configuration.
func PolicyFromConfig(cfg config.PricingConfig) MarginPolicy {
	return MarginPolicy{
		EconomyPct:     cfg.EconomyMarginPct,
		StandardPct:    cfg.StandardMarginPct,
		PremiumPct:     cfg.PremiumMarginPct,
		RoundIncrement: cfg.RoundIncrement,
	}
}

// Suggestion is one suggested price point.
type Suggestion struct {
	Price         float64 `json:"price"`
	MarginPercent float64 `json:"margin_percent"`
	Positioning   string  `json:"positioning"`
}

// Suggestions holds the three price tiers derived from one cost breakdown.
type Suggestions struct {
	Economy  Suggestion `json:"economy"`
	Standard Suggestion `json:"standard"`
	Premium  Suggestion `json:"premium"`
}

// Evaluation reports whether an existing selling price covers cost.
type Evaluation struct {
	IsProfitable  bool    `json:"is_profitable"`
	MarginPercent float64 `json:"margin_percent"`
}

// Advisor derives pricing suggestions. Pure computation, no persistence.
type Advisor struct {
	policy MarginPolicy
}

// New creates an Advisor with the given default policy.
func New(policy MarginPolicy) *Advisor {
	return &Advisor{policy: policy}
}

// Suggest derives economy/standard/premium prices from the breakdown's cost
// per unit using additive markup: price = cost * (1 + margin/100). Passing a
// policy overrides the advisor's default for this call only.
func (a *Advisor) Suggest(b *model.CostBreakdown, override ...MarginPolicy) Suggestions {
	p := a.policy
	if len(override) > 0 {
		p = override[0]
	}
	return Suggestions{
		Economy:  suggest(b.CostPerUnit, p.EconomyPct, p.RoundIncrement, "economy"),
		Standard: suggest(b.CostPerUnit, p.StandardPct, p.RoundIncrement, "standard"),
		Premium:  suggest(b.CostPerUnit, p.PremiumPct, p.RoundIncrement, "premium"),
	}
}

func suggest(costPerUnit, marginPct, roundIncrement float64, positioning string) Suggestion {
	price := decimal.NewFromFloat(costPerUnit).
		Mul(decimal.NewFromFloat(1 + marginPct/100))
	if roundIncrement > 0 {
		inc := decimal.NewFromFloat(roundIncrement)
		price = price.Div(inc).Ceil().Mul(inc)
	}
	return Suggestion{
		Price:         price.InexactFloat64(),
		MarginPercent: marginPct,
		Positioning:   positioning,
	}
}

// Evaluate checks an existing selling price against the compiled cost per
// unit. An unset or non-positive price is a normal state and reports
// {false, 0} rather than failing.
func (a *Advisor) Evaluate(b *model.CostBreakdown, sellingPrice float64) Evaluation {
	if sellingPrice <= 0 {
		return Evaluation{}
	}
	margin := (sellingPrice - b.CostPerUnit) / sellingPrice * 100
	return Evaluation{
		IsProfitable:  sellingPrice > b.CostPerUnit,
		MarginPercent: margin,
	}
}
