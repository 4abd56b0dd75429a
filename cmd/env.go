package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/warungworks/costing-cli/internal/advisor"
	"github.com/warungworks/costing-cli/internal/compiler"
	"github.com/warungworks/costing-cli/internal/config"
	"github.com/warungworks/costing-cli/internal/detector"
	"github.com/warungworks/costing-cli/internal/ledger"
	"github.com/warungworks/costing-cli/internal/notify"
	"github.com/warungworks/costing-cli/internal/store"
)

// costingEnv wires the four core components over one store.
type costingEnv struct {
	Store    store.Store
	Ledger   *ledger.Ledger
	Compiler *compiler.Compiler
	Detector *detector.Detector
	Advisor  *advisor.Advisor
	Notifier notify.Notifier
}

// initStore opens the configured store backend.
func initStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "costing.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		})
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

// initCosting builds the full component graph from configuration.
func initCosting(ctx context.Context) (*costingEnv, error) {
	st, err := initStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	env, err := newCostingEnv(st, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	return env, nil
}

// newCostingEnv wires components over an already-open store.
func newCostingEnv(st store.Store, cfg *config.Config) (*costingEnv, error) {
	laborPolicy, err := compiler.PolicyByName(cfg.Costing.LaborPolicy)
	if err != nil {
		return nil, err
	}
	overheadPolicy, err := compiler.PolicyByName(cfg.Costing.OverheadPolicy)
	if err != nil {
		return nil, err
	}

	led := ledger.New(st)
	comp := compiler.New(st, led, laborPolicy, overheadPolicy)

	return &costingEnv{
		Store:    st,
		Ledger:   led,
		Compiler: comp,
		Detector: detector.New(st, comp, cfg.Alerts),
		Advisor:  advisor.New(advisor.PolicyFromConfig(cfg.Pricing)),
		Notifier: notify.FromConfig(cfg.Notify),
	}, nil
}

// Close releases the store.
func (e *costingEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}
