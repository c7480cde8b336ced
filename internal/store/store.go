// Package store persists per-country trend coefficients.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/habitat-api/internal/model"
)

// ErrNotFound is returned when a country has no record in the requested table.
var ErrNotFound = eris.New("store: not found")

// Reader retrieves coefficient records.
type Reader interface {
	GetHeat(ctx context.Context, country string) (*model.HeatRecord, error)
	GetAir(ctx context.Context, country string) (*model.AirRecord, error)
	ListHeat(ctx context.Context) ([]model.HeatRecord, error)
	ListAir(ctx context.Context) ([]model.AirRecord, error)
}

// Writer upserts coefficient records. A curve absent from an incoming record
// leaves the stored curve untouched. Records without curves are ignored.
// The returned count is the number of records written.
type Writer interface {
	UpsertHeat(ctx context.Context, records []model.HeatRecord) (int64, error)
	UpsertAir(ctx context.Context, records []model.AirRecord) (int64, error)
}

// Store defines the persistence interface for coefficient tables.
type Store interface {
	Reader
	Writer

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	heatColumns = []string{"country", "min_gradient", "min_offset", "avg_gradient", "avg_offset", "max_gradient", "max_offset"}
	airColumns  = []string{"country", "co2_gradient", "co2_offset", "no_gradient", "no_offset"}
)

// scannable is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanHeat(row scannable) (model.HeatRecord, error) {
	var rec model.HeatRecord
	var vals [6]*float64
	if err := row.Scan(&rec.Country, &vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5]); err != nil {
		return rec, err
	}
	rec.Min = model.CurveFromNullable(vals[0], vals[1])
	rec.Avg = model.CurveFromNullable(vals[2], vals[3])
	rec.Max = model.CurveFromNullable(vals[4], vals[5])
	return rec, nil
}

func scanAir(row scannable) (model.AirRecord, error) {
	var rec model.AirRecord
	var vals [4]*float64
	if err := row.Scan(&rec.Country, &vals[0], &vals[1], &vals[2], &vals[3]); err != nil {
		return rec, err
	}
	rec.CO2 = model.CurveFromNullable(vals[0], vals[1])
	rec.NO = model.CurveFromNullable(vals[2], vals[3])
	return rec, nil
}

// heatRows flattens records into column order, skipping records without curves.
func heatRows(records []model.HeatRecord) [][]any {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		if !r.HasCurves() {
			continue
		}
		row := []any{r.Country}
		for _, c := range []model.Curve{r.Min, r.Avg, r.Max} {
			g, o := c.Nullable()
			row = append(row, g, o)
		}
		rows = append(rows, row)
	}
	return rows
}

func airRows(records []model.AirRecord) [][]any {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		if !r.HasCurves() {
			continue
		}
		row := []any{r.Country}
		for _, c := range []model.Curve{r.CO2, r.NO} {
			g, o := c.Nullable()
			row = append(row, g, o)
		}
		rows = append(rows, row)
	}
	return rows
}
