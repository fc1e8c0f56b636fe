package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/metrics-cli/internal/adapter"
	"github.com/sells-group/metrics-cli/internal/adapter/quotepage"
	"github.com/sells-group/metrics-cli/internal/adapter/registryfile"
	"github.com/sells-group/metrics-cli/internal/adapter/statsapi"
	"github.com/sells-group/metrics-cli/internal/collect"
	"github.com/sells-group/metrics-cli/internal/normalize"
	"github.com/sells-group/metrics-cli/internal/reconcile"
	"github.com/sells-group/metrics-cli/internal/sched"
	"github.com/sells-group/metrics-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "metrics.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initRegistry() (*adapter.Registry, error) {
	client := &http.Client{Timeout: 30 * time.Second}

	reg := adapter.NewRegistry()
	for _, name := range cfg.Adapters.Enabled {
		var a adapter.Adapter
		switch name {
		case "quotepage":
			a = quotepage.New(cfg.Adapters.QuotePageBaseURL, client)
		case "statsapi":
			a = statsapi.New(cfg.Adapters.StatsAPIBaseURL, client)
		case "registryfile":
			a = registryfile.New(cfg.Adapters.RegistryFilePath)
		default:
			return nil, eris.Errorf("unknown adapter: %s", name)
		}
		if err := reg.Register(a); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// initRuntime assembles the full pipeline: store, adapters, scheduler,
// reconciliation engine.
func initRuntime(ctx context.Context) (*collect.Runner, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	reg, err := initRegistry()
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	metas := make([]adapter.Metadata, 0, len(reg.All()))
	for _, a := range reg.All() {
		metas = append(metas, a.Metadata())
	}

	if len(cfg.Reconcile.DefaultPriority) == 0 {
		cfg.Reconcile.DefaultPriority = reg.SourceOrder()
	}

	runner := &collect.Runner{
		Scheduler: sched.New(cfg.Scheduler, sched.NewMetrics(prometheus.DefaultRegisterer)),
		Registry:  reg,
		Engine:    reconcile.New(cfg.Reconcile, normalize.DefaultSpecs(), metas),
		Store:     st,
	}
	return runner, st, nil
}
