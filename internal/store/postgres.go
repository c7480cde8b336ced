package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/habitat-api/internal/db"
	"github.com/sells-group/habitat-api/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var (
	getHeatSQL  = fmt.Sprintf(`SELECT %s FROM heat WHERE country = $1`, strings.Join(heatColumns, ", "))
	getAirSQL   = fmt.Sprintf(`SELECT %s FROM air WHERE country = $1`, strings.Join(airColumns, ", "))
	listHeatSQL = fmt.Sprintf(`SELECT %s FROM heat ORDER BY country`, strings.Join(heatColumns, ", "))
	listAirSQL  = fmt.Sprintf(`SELECT %s FROM air ORDER BY country`, strings.Join(airColumns, ", "))
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS heat (
	country      TEXT PRIMARY KEY,
	min_gradient DOUBLE PRECISION,
	min_offset   DOUBLE PRECISION,
	avg_gradient DOUBLE PRECISION,
	avg_offset   DOUBLE PRECISION,
	max_gradient DOUBLE PRECISION,
	max_offset   DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS air (
	country      TEXT PRIMARY KEY,
	co2_gradient DOUBLE PRECISION,
	co2_offset   DOUBLE PRECISION,
	no_gradient  DOUBLE PRECISION,
	no_offset    DOUBLE PRECISION
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetHeat(ctx context.Context, country string) (*model.HeatRecord, error) {
	rec, err := scanHeat(s.pool.QueryRow(ctx, getHeatSQL, country))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: heat %s", country)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get heat %s", country)
	}
	return &rec, nil
}

func (s *PostgresStore) GetAir(ctx context.Context, country string) (*model.AirRecord, error) {
	rec, err := scanAir(s.pool.QueryRow(ctx, getAirSQL, country))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: air %s", country)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get air %s", country)
	}
	return &rec, nil
}

func (s *PostgresStore) ListHeat(ctx context.Context) ([]model.HeatRecord, error) {
	rows, err := s.pool.Query(ctx, listHeatSQL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list heat")
	}
	defer rows.Close()

	var out []model.HeatRecord
	for rows.Next() {
		rec, err := scanHeat(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan heat")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list heat rows")
}

func (s *PostgresStore) ListAir(ctx context.Context) ([]model.AirRecord, error) {
	rows, err := s.pool.Query(ctx, listAirSQL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list air")
	}
	defer rows.Close()

	var out []model.AirRecord
	for rows.Next() {
		rec, err := scanAir(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan air")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list air rows")
}

func (s *PostgresStore) UpsertHeat(ctx context.Context, records []model.HeatRecord) (int64, error) {
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "heat",
		Columns:      heatColumns,
		ConflictKeys: []string{"country"},
		Coalesce:     true,
	}, heatRows(records))
	return n, eris.Wrap(err, "postgres: upsert heat")
}

func (s *PostgresStore) UpsertAir(ctx context.Context, records []model.AirRecord) (int64, error) {
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "air",
		Columns:      airColumns,
		ConflictKeys: []string{"country"},
		Coalesce:     true,
	}, airRows(records))
	return n, eris.Wrap(err, "postgres: upsert air")
}
