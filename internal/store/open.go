package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/habitat-api/internal/resilience"
)

// Drivers accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// OpenConfig selects and tunes a store backend.
type OpenConfig struct {
	Driver      string
	DatabaseURL string
	Pool        *PoolConfig
	Retry       resilience.RetryConfig
}

// Open connects to the configured backend. Transient connection failures are
// retried with backoff; when every attempt fails the returned error wraps a
// *resilience.ExhaustedError.
func Open(ctx context.Context, cfg OpenConfig) (Store, error) {
	retry := cfg.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("store connect")
	}

	switch cfg.Driver {
	case DriverPostgres, "":
		st, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*PostgresStore, error) {
			return NewPostgres(ctx, cfg.DatabaseURL, cfg.Pool)
		})
		if err != nil {
			return nil, eris.Wrap(err, "store: connect postgres")
		}
		zap.L().Info("store: connected", zap.String("driver", DriverPostgres))
		return st, nil
	case DriverSQLite:
		st, err := NewSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "store: open sqlite")
		}
		if err := resilience.Do(ctx, retry, st.Ping); err != nil {
			st.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "store: ping sqlite")
		}
		zap.L().Info("store: connected", zap.String("driver", DriverSQLite), zap.String("path", cfg.DatabaseURL))
		return st, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
