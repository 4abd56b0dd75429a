package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warungworks/costing-cli/internal/advisor"
)

var (
	pricingEconomy  float64
	pricingStandard float64
	pricingPremium  float64
)

var pricingCmd = &cobra.Command{
	Use:   "pricing <recipe-id>",
	Short: "Suggest selling-price tiers for a recipe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		recipeID := args[0]

		env, err := initCosting(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		b, err := env.Compiler.Compile(ctx, recipeID)
		if err != nil {
			return err
		}
		if b.Empty {
			fmt.Printf("%s: no ingredients yet, nothing to price\n", recipeID)
			return nil
		}

		policy := advisor.PolicyFromConfig(cfg.Pricing)
		if cmd.Flags().Changed("economy") {
			policy.EconomyPct = pricingEconomy
		}
		if cmd.Flags().Changed("standard") {
			policy.StandardPct = pricingStandard
		}
		if cmd.Flags().Changed("premium") {
			policy.PremiumPct = pricingPremium
		}

		s := env.Advisor.Suggest(b, policy)
		fmt.Printf("%s: cost per unit %s\n", recipeID, money(b.CostPerUnit))
		for _, tier := range []advisor.Suggestion{s.Economy, s.Standard, s.Premium} {
			fmt.Printf("  %-8s %12s (markup %s)\n", tier.Positioning, money(tier.Price), pct(tier.MarginPercent))
		}

		recipe, err := env.Store.GetRecipe(ctx, recipeID)
		if err != nil {
			return err
		}
		if recipe.SellingPrice > 0 {
			eval := env.Advisor.Evaluate(b, recipe.SellingPrice)
			verdict := "NOT profitable"
			if eval.IsProfitable {
				verdict = "profitable"
			}
			fmt.Printf("  current price %s is %s (margin %s)\n",
				money(recipe.SellingPrice), verdict, pct(eval.MarginPercent))
		} else {
			fmt.Println("  no selling price set yet")
		}
		return nil
	},
}

func init() {
	pricingCmd.Flags().Float64Var(&pricingEconomy, "economy", 30, "economy tier markup percent")
	pricingCmd.Flags().Float64Var(&pricingStandard, "standard", 60, "standard tier markup percent")
	pricingCmd.Flags().Float64Var(&pricingPremium, "premium", 100, "premium tier markup percent")
	rootCmd.AddCommand(pricingCmd)
}
