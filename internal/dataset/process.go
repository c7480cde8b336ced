package dataset

import (
	"context"
	"errors"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/habitat-api/internal/model"
	"github.com/sells-group/habitat-api/internal/trend"
)

// Result is the set of coefficient records fitted from one dataset.
type Result struct {
	Profile string
	Kind    Kind
	Heat    []model.HeatRecord
	Air     []model.AirRecord

	RowsRead         int
	RowsSkipped      int
	CurvesSkipped    int
	CountriesDropped int
}

// Len returns the number of records produced.
func (r *Result) Len() int {
	return len(r.Heat) + len(r.Air)
}

// Countries returns the countries with at least one fitted curve, sorted.
func (r *Result) Countries() []string {
	out := make([]string, 0, r.Len())
	for _, h := range r.Heat {
		out = append(out, h.Country)
	}
	for _, a := range r.Air {
		out = append(out, a.Country)
	}
	sort.Strings(out)
	return out
}

// accumulator collects rows for one dataset kind and fits them at the end.
type accumulator interface {
	add(row []string) error
	finish(res *Result, log *zap.Logger)
}

// Process reads the dataset at path with profile p, groups rows by country
// and fits the profile's curves. Rows with unparseable cells are skipped.
// Countries whose every fit was degenerate are left out of the result.
func Process(ctx context.Context, path string, p *Profile) (*Result, error) {
	tbl, err := OpenTable(ctx, path)
	if err != nil {
		return nil, err
	}
	defer tbl.Close() //nolint:errcheck

	cols, err := p.Resolve(tbl.Header)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("component", "dataset"),
		zap.String("profile", p.Name),
		zap.String("path", path),
	)

	var acc accumulator
	switch p.Kind {
	case KindPollutant:
		acc = newPollutantAccumulator(cols)
	case KindTemperature:
		acc = newTemperatureAccumulator(cols)
	default:
		return nil, eris.Errorf("dataset: profile %s has unknown kind %q", p.Name, p.Kind)
	}

	res := &Result{Profile: p.Name, Kind: p.Kind}
	line := 1
	for row := range tbl.Rows {
		line++
		res.RowsRead++
		if err := acc.add(row); err != nil {
			res.RowsSkipped++
			log.Debug("dataset: skipping row", zap.Int("line", line), zap.Error(err))
		}
	}
	if err := tbl.Err(); err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}

	acc.finish(res, log)

	log.Info("dataset: processed",
		zap.Int("rows", res.RowsRead),
		zap.Int("rows_skipped", res.RowsSkipped),
		zap.Int("records", res.Len()),
		zap.Int("curves_skipped", res.CurvesSkipped),
		zap.Int("countries_dropped", res.CountriesDropped),
	)
	return res, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func countryCell(row []string, cols Columns) (string, error) {
	country, _ := model.CanonicalCountry(cell(row, cols[RoleCountry]))
	if country == "" {
		return "", eris.New("empty country")
	}
	return country, nil
}

// fitCurve fits one curve, treating a degenerate series as absent.
func fitCurve(xs, ys []float64, res *Result) model.Curve {
	line, err := trend.Fit(xs, ys)
	if err != nil {
		if !errors.Is(err, trend.ErrDegenerateFit) {
			zap.L().Warn("dataset: fit failed", zap.Error(err))
		}
		res.CurvesSkipped++
		return model.Absent()
	}
	return model.Present(line)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
