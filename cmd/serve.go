package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warungworks/costing-cli/internal/advisor"
	"github.com/warungworks/costing-cli/internal/detector"
	"github.com/warungworks/costing-cli/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for costing operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initCosting(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the HTTP boundary: thin request validation mapped onto the
// ledger, compiler, detector, and advisor contracts.
func newRouter(env *costingEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/cost/purchase", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			IngredientID string    `json:"ingredient_id"`
			Quantity     float64   `json:"quantity"`
			UnitPrice    float64   `json:"unit_price"`
			OccurredAt   time.Time `json:"occurred_at"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.IngredientID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ingredient_id is required"})
			return
		}

		ing, err := env.Ledger.RecordPurchase(req.Context(), body.IngredientID, body.Quantity, body.UnitPrice, body.OccurredAt)
		if err != nil {
			writeError(w, err)
			return
		}

		alerts, err := env.Detector.DetectChanges(req.Context(), body.IngredientID)
		if err != nil {
			writeError(w, err)
			return
		}
		if len(alerts) > 0 {
			env.Notifier.Publish(req.Context(), alerts)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"ingredient": ing,
			"alerts":     alerts,
		})
	})

	r.Get("/cost/recipe/{id}", func(w http.ResponseWriter, req *http.Request) {
		b, err := env.Compiler.Compile(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	})

	r.Post("/cost/recipe/{id}/snapshot", func(w http.ResponseWriter, req *http.Request) {
		snap, err := env.Detector.Snapshot(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, snap)
	})

	r.Get("/cost/recipe/{id}/pricing", func(w http.ResponseWriter, req *http.Request) {
		recipeID := chi.URLParam(req, "id")
		b, err := env.Compiler.Compile(req.Context(), recipeID)
		if err != nil {
			writeError(w, err)
			return
		}
		if b.Empty {
			writeJSON(w, http.StatusOK, map[string]any{"breakdown": b})
			return
		}

		recipe, err := env.Store.GetRecipe(req.Context(), recipeID)
		if err != nil {
			writeError(w, err)
			return
		}

		var eval *advisor.Evaluation
		if recipe.SellingPrice > 0 {
			e := env.Advisor.Evaluate(b, recipe.SellingPrice)
			eval = &e
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"breakdown":   b,
			"suggestions": env.Advisor.Suggest(b),
			"evaluation":  eval,
		})
	})

	r.Post("/cost/alerts/sweep", func(w http.ResponseWriter, req *http.Request) {
		ids, err := env.Store.ListIngredientIDs(req.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		results := env.Detector.Sweep(req.Context(), ids, cfg.Batch.MaxConcurrent)
		alerts := detector.Flatten(results)
		sent := env.Notifier.Publish(req.Context(), alerts)
		writeJSON(w, http.StatusOK, map[string]any{
			"checked": len(ids),
			"alerts":  alerts,
			"sent":    sent,
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. Storage failures pass
// through as 500s untouched.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrInvalidServings):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
