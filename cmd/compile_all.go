package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var compileAllLimit int

var compileAllCmd = &cobra.Command{
	Use:   "compile-all",
	Short: "Batch compile every recipe's cost breakdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initCosting(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ids, err := env.Store.ListRecipeIDs(ctx)
		if err != nil {
			return err
		}
		if compileAllLimit > 0 && len(ids) > compileAllLimit {
			ids = ids[:compileAllLimit]
		}

		results := env.Compiler.CompileAll(ctx, ids, cfg.Batch.MaxConcurrent)

		succeeded, failed := 0, 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				fmt.Printf("%s: FAILED: %v\n", r.RecipeID, r.Err)
				continue
			}
			succeeded++
			if r.Breakdown.Empty {
				fmt.Printf("%s: no ingredients yet\n", r.RecipeID)
				continue
			}
			fmt.Printf("%s: total %s, per unit %s\n",
				r.RecipeID, money(r.Breakdown.TotalCost), money(r.Breakdown.CostPerUnit))
		}

		zap.L().Info("batch compile complete",
			zap.Int("recipes", len(ids)),
			zap.Int("succeeded", succeeded),
			zap.Int("failed", failed),
		)
		return nil
	},
}

func init() {
	compileAllCmd.Flags().IntVar(&compileAllLimit, "limit", 0, "max number of recipes to compile (0 = all)")
	rootCmd.AddCommand(compileAllCmd)
}
