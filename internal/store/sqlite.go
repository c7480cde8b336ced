package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/habitat-api/internal/model"
)

var (
	sqliteGetHeatSQL = strings.Replace(getHeatSQL, "$1", "?", 1)
	sqliteGetAirSQL  = strings.Replace(getAirSQL, "$1", "?", 1)
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS heat (
	country      TEXT PRIMARY KEY,
	min_gradient REAL,
	min_offset   REAL,
	avg_gradient REAL,
	avg_offset   REAL,
	max_gradient REAL,
	max_offset   REAL
);

CREATE TABLE IF NOT EXISTS air (
	country      TEXT PRIMARY KEY,
	co2_gradient REAL,
	co2_offset   REAL,
	no_gradient  REAL,
	no_offset    REAL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetHeat(ctx context.Context, country string) (*model.HeatRecord, error) {
	rec, err := scanHeat(s.db.QueryRowContext(ctx, sqliteGetHeatSQL, country))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: heat %s", country)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get heat %s", country)
	}
	return &rec, nil
}

func (s *SQLiteStore) GetAir(ctx context.Context, country string) (*model.AirRecord, error) {
	rec, err := scanAir(s.db.QueryRowContext(ctx, sqliteGetAirSQL, country))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: air %s", country)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get air %s", country)
	}
	return &rec, nil
}

func (s *SQLiteStore) ListHeat(ctx context.Context) ([]model.HeatRecord, error) {
	rows, err := s.db.QueryContext(ctx, listHeatSQL)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list heat")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.HeatRecord
	for rows.Next() {
		rec, err := scanHeat(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan heat")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list heat rows")
}

func (s *SQLiteStore) ListAir(ctx context.Context) ([]model.AirRecord, error) {
	rows, err := s.db.QueryContext(ctx, listAirSQL)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list air")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.AirRecord
	for rows.Next() {
		rec, err := scanAir(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan air")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list air rows")
}

func (s *SQLiteStore) UpsertHeat(ctx context.Context, records []model.HeatRecord) (int64, error) {
	return s.upsert(ctx, "heat", heatColumns, heatRows(records))
}

func (s *SQLiteStore) UpsertAir(ctx context.Context, records []model.AirRecord) (int64, error) {
	return s.upsert(ctx, "air", airColumns, airRows(records))
}

// upsert writes rows in one transaction. Column 0 is the conflict key; the
// rest keep their stored value when the incoming one is NULL.
func (s *SQLiteStore) upsert(ctx context.Context, table string, cols []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: upsert %s: begin tx", table)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertSQL(table, cols))
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: upsert %s: prepare", table)
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert %s %v", table, row[0])
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "sqlite: upsert %s: commit", table)
	}
	return n, nil
}

func sqliteUpsertSQL(table string, cols []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	sets := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		sets = append(sets, fmt.Sprintf("%s = COALESCE(excluded.%s, %s.%s)", c, c, table, c))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		table, strings.Join(cols, ", "), placeholders, cols[0], strings.Join(sets, ", "))
}
