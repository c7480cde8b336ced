package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/habitat-api/internal/cache"
	"github.com/sells-group/habitat-api/internal/config"
	"github.com/sells-group/habitat-api/internal/dataset"
	"github.com/sells-group/habitat-api/internal/ingest"
	"github.com/sells-group/habitat-api/internal/ledger"
	"github.com/sells-group/habitat-api/internal/resilience"
	"github.com/sells-group/habitat-api/internal/score"
	"github.com/sells-group/habitat-api/internal/store"
)

// appEnv holds the store and the services built on it for one command.
type appEnv struct {
	Store    store.Store
	Cache    *cache.ScoreCache
	Profiles *dataset.Registry
	Ingester *ingest.Ingester
	Scores   *score.Service
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore connects to the configured datastore with bounded retry.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	return store.Open(ctx, store.OpenConfig{
		Driver:      c.Store.Driver,
		DatabaseURL: c.Store.DatabaseURL,
		Pool:        &store.PoolConfig{MaxConns: c.Store.MaxConns, MinConns: c.Store.MinConns},
		Retry:       resilience.FromSettings(c.Store.ConnectAttempts, c.Store.ConnectBackoffMs),
	})
}

// initEnv validates c for mode, connects and migrates the store, and wires
// the cache, profiles, ingester and score service. Callers should defer
// env.Close().
func initEnv(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	algo, err := ledger.ParseAlgorithm(c.Ingest.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	profiles, err := dataset.LoadRegistry(c.Ingest.ProfilesPath)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	sc, err := cache.New(ctx, c.Cache.RedisURL, c.Cache.TTL())
	if err != nil {
		zap.L().Warn("score cache unavailable, continuing without it", zap.Error(err))
	}

	return &appEnv{
		Store:    st,
		Cache:    sc,
		Profiles: profiles,
		Ingester: ingest.New(st, ledger.New(c.Ingest.LedgerPath),
			ingest.WithHashAlgorithm(algo),
			ingest.WithCache(sc),
		),
		Scores: score.NewService(st, sc),
	}, nil
}

func settleDuration(c *config.Config) time.Duration {
	return time.Duration(c.Ingest.WatchSettleMs) * time.Millisecond
}
