package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/modelforge/paramd/internal/hierarchy"
	"github.com/modelforge/paramd/internal/history"
	"github.com/modelforge/paramd/internal/params"
	"github.com/modelforge/paramd/internal/resolve"
	"github.com/modelforge/paramd/internal/template"
)

// initStore opens the parameter store named by cfg.Store.Driver.
func initStore(ctx context.Context) (params.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "paramd.db"
		}
		return params.NewSQLite(path)
	case "postgres":
		return params.NewPostgres(ctx, cfg.Store.DatabaseURL, &params.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// paramEnv holds the wired subsystem: store, entity catalog, resolver,
// version history, write service, and template applier.
type paramEnv struct {
	Store    params.Store
	Catalog  *hierarchy.Catalog
	Resolver *resolve.Resolver
	History  *history.Manager
	Service  *params.Service
	Applier  *template.Applier
}

// Close releases resources held by the environment.
func (e *paramEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the config for the given mode, opens and migrates
// the store, and wires the full parameter stack. When an entity file is
// configured its catalog is synced in before anything else runs.
// Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*paramEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	catalog := hierarchy.NewCatalog(st)
	if cfg.Hierarchy.EntityFile != "" {
		entities, err := hierarchy.LoadEntitiesFromFile(cfg.Hierarchy.EntityFile)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load entity file")
		}
		n, err := catalog.Sync(ctx, entities)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "sync entity file")
		}
		zap.L().Info("entity file loaded",
			zap.String("path", cfg.Hierarchy.EntityFile),
			zap.Int("entities", n),
		)
	}

	resolver := resolve.NewResolver(catalog, st, cfg.Hierarchy.Lookup.Retry(), cfg.Hierarchy.Lookup.Breaker())
	hist := history.NewManager(st)
	svc := params.NewService(st, resolver, hist)

	return &paramEnv{
		Store:    st,
		Catalog:  catalog,
		Resolver: resolver,
		History:  hist,
		Service:  svc,
		Applier:  template.NewApplier(st, svc),
	}, nil
}
