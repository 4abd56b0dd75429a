package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warungworks/costing-cli/internal/detector"
	"github.com/warungworks/costing-cli/internal/model"
)

var sweepPrune bool

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Cost-change alert operations",
}

var alertsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run change detection across all ingredients and publish alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initCosting(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ids, err := env.Store.ListIngredientIDs(ctx)
		if err != nil {
			return err
		}

		results := env.Detector.Sweep(ctx, ids, cfg.Batch.MaxConcurrent)
		alerts := detector.Flatten(results)

		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}

		sent := env.Notifier.Publish(ctx, alerts)
		zap.L().Info("sweep complete",
			zap.Int("ingredients", len(ids)),
			zap.Int("alerts", len(alerts)),
			zap.Int("sent", sent),
			zap.Int("failed", failed),
		)
		printAlerts(alerts)

		if sweepPrune {
			// Change detection only ever reads the two newest observations.
			pruned, err := env.Store.PruneObservations(ctx, 2)
			if err != nil {
				return err
			}
			zap.L().Info("observations pruned", zap.Int("removed", pruned))
		}
		return nil
	},
}

func printAlerts(alerts []model.CostChangeAlert) {
	for _, a := range alerts {
		fmt.Printf("[%s] %s: %s -> %s (%s)\n",
			a.Severity, a.IngredientID,
			money(a.PreviousUnitPrice), money(a.CurrentUnitPrice), pct(a.ChangePercent))
		for _, imp := range a.AffectedRecipes {
			fmt.Printf("    %s: batch cost %+.2f\n", imp.RecipeID, imp.CostImpact)
		}
	}
}

func init() {
	alertsSweepCmd.Flags().BoolVar(&sweepPrune, "prune", false, "prune observations older than the two most recent per ingredient")
	alertsCmd.AddCommand(alertsSweepCmd)
	rootCmd.AddCommand(alertsCmd)
}
