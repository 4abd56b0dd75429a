package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	purchaseIngredient string
	purchaseQty        float64
	purchasePrice      float64
	purchaseAt         string
)

var purchaseCmd = &cobra.Command{
	Use:   "purchase",
	Short: "Record an ingredient purchase and run change detection",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initCosting(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var occurredAt time.Time
		if purchaseAt != "" {
			occurredAt, err = time.Parse(time.RFC3339, purchaseAt)
			if err != nil {
				return eris.Wrapf(err, "parse --at %q", purchaseAt)
			}
		}

		ing, err := env.Ledger.RecordPurchase(ctx, purchaseIngredient, purchaseQty, purchasePrice, occurredAt)
		if err != nil {
			return err
		}
		fmt.Printf("%s: stock %.3f %s, weighted average cost %s\n",
			ing.ID, ing.CurrentStock, ing.Unit, money(ing.WeightedAvgCost))

		// Detection runs after the ledger update so the alert reflects the
		// observation that was just appended.
		alerts, err := env.Detector.DetectChanges(ctx, purchaseIngredient)
		if err != nil {
			return err
		}
		if len(alerts) == 0 {
			return nil
		}

		sent := env.Notifier.Publish(ctx, alerts)
		zap.L().Info("alerts published", zap.Int("alerts", len(alerts)), zap.Int("sent", sent))
		printAlerts(alerts)
		return nil
	},
}

func init() {
	purchaseCmd.Flags().StringVar(&purchaseIngredient, "ingredient", "", "ingredient id (required)")
	purchaseCmd.Flags().Float64Var(&purchaseQty, "qty", 0, "purchased quantity (required)")
	purchaseCmd.Flags().Float64Var(&purchasePrice, "price", 0, "unit price paid (required)")
	purchaseCmd.Flags().StringVar(&purchaseAt, "at", "", "purchase time, RFC3339 (default now)")
	_ = purchaseCmd.MarkFlagRequired("ingredient")
	_ = purchaseCmd.MarkFlagRequired("qty")
	_ = purchaseCmd.MarkFlagRequired("price")
	rootCmd.AddCommand(purchaseCmd)
}
