package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warungworks/costing-cli/internal/model"
)

var compileSnapshot bool

var compileCmd = &cobra.Command{
	Use:   "compile <recipe-id>",
	Short: "Compile a recipe's cost breakdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		recipeID := args[0]

		env, err := initCosting(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if compileSnapshot {
			snap, err := env.Detector.Snapshot(ctx, recipeID)
			if err != nil {
				return err
			}
			zap.L().Info("snapshot captured",
				zap.String("recipe", recipeID),
				zap.String("snapshot_id", snap.ID),
			)
		}

		b, err := env.Compiler.Compile(ctx, recipeID)
		if err != nil {
			return err
		}
		printBreakdown(b)
		return nil
	},
}

func printBreakdown(b *model.CostBreakdown) {
	if b.Empty {
		fmt.Printf("%s: no ingredients yet\n", b.RecipeID)
		return
	}
	fmt.Printf("%s (per batch of %d)\n", b.RecipeID, b.Servings)
	for _, line := range b.Lines {
		fmt.Printf("  %-24s %8.3f %-6s x %12s = %12s\n",
			line.Name, line.Quantity, line.Unit, money(line.UnitCost), money(line.LineCost))
	}
	fmt.Printf("  material  %s\n", money(b.MaterialCost))
	fmt.Printf("  labor     %s\n", money(b.LaborCost))
	fmt.Printf("  overhead  %s\n", money(b.OverheadCost))
	fmt.Printf("  total     %s\n", money(b.TotalCost))
	fmt.Printf("  per unit  %s\n", money(b.CostPerUnit))
}

func init() {
	compileCmd.Flags().BoolVar(&compileSnapshot, "snapshot", false, "persist the result as a cost snapshot")
	rootCmd.AddCommand(compileCmd)
}
