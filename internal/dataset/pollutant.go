package dataset

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/habitat-api/internal/model"
)

type series struct {
	xs, ys []float64
}

func (s *series) add(x, y float64) {
	s.xs = append(s.xs, x)
	s.ys = append(s.ys, y)
}

type pollutantSeries struct {
	co2 series
	no  series
}

// pollutantAccumulator fits co2 and nitrous oxide against year, once per
// country. An empty value cell leaves that series out for the row only.
type pollutantAccumulator struct {
	cols      Columns
	countries map[string]*pollutantSeries
}

func newPollutantAccumulator(cols Columns) *pollutantAccumulator {
	return &pollutantAccumulator{cols: cols, countries: make(map[string]*pollutantSeries)}
}

func (a *pollutantAccumulator) add(row []string) error {
	country, err := countryCell(row, a.cols)
	if err != nil {
		return err
	}
	year, err := parseYear(cell(row, a.cols[RoleYear]))
	if err != nil {
		return err
	}

	co2, hasCO2, err := a.optionalValue(row, RoleCO2)
	if err != nil {
		return err
	}
	no, hasNO, err := a.optionalValue(row, RoleNitrousOxide)
	if err != nil {
		return err
	}

	s, ok := a.countries[country]
	if !ok {
		s = &pollutantSeries{}
		a.countries[country] = s
	}
	if hasCO2 {
		s.co2.add(float64(year), co2)
	}
	if hasNO {
		s.no.add(float64(year), no)
	}
	return nil
}

func (a *pollutantAccumulator) optionalValue(row []string, role Role) (float64, bool, error) {
	idx, ok := a.cols[role]
	if !ok {
		return 0, false, nil
	}
	raw := cell(row, idx)
	if strings.TrimSpace(raw) == "" {
		return 0, false, nil
	}
	v, err := parseFloat(raw)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (a *pollutantAccumulator) finish(res *Result, log *zap.Logger) {
	for _, country := range sortedKeys(a.countries) {
		s := a.countries[country]
		rec := model.AirRecord{Country: country}
		if a.cols.Has(RoleCO2) {
			rec.CO2 = fitCurve(s.co2.xs, s.co2.ys, res)
		}
		if a.cols.Has(RoleNitrousOxide) {
			rec.NO = fitCurve(s.no.xs, s.no.ys, res)
		}
		if !rec.HasCurves() {
			res.CountriesDropped++
			log.Debug("dataset: no curves fitted", zap.String("country", country))
			continue
		}
		res.Air = append(res.Air, rec)
	}
}
