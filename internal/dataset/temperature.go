package dataset

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/habitat-api/internal/model"
)

// yearStat tracks the extremes of one calendar year and its earliest date.
type yearStat struct {
	min, max float64
	first    float64
}

type temperatureSeries struct {
	all   series
	years map[int]*yearStat
}

// temperatureAccumulator fits the average curve over every reading and the
// min/max curves over per-year extremes, using the YYYYMMDD date as x.
type temperatureAccumulator struct {
	cols      Columns
	countries map[string]*temperatureSeries
}

func newTemperatureAccumulator(cols Columns) *temperatureAccumulator {
	return &temperatureAccumulator{cols: cols, countries: make(map[string]*temperatureSeries)}
}

func (a *temperatureAccumulator) add(row []string) error {
	country, err := countryCell(row, a.cols)
	if err != nil {
		return err
	}
	date, err := parseDate(cell(row, a.cols[RoleDate]))
	if err != nil {
		return err
	}
	value, err := parseFloat(cell(row, a.cols[RoleValue]))
	if err != nil {
		return err
	}

	s, ok := a.countries[country]
	if !ok {
		s = &temperatureSeries{years: make(map[int]*yearStat)}
		a.countries[country] = s
	}
	x := DateInt(date)
	s.all.add(x, value)

	st, ok := s.years[date.Year()]
	if !ok {
		s.years[date.Year()] = &yearStat{min: value, max: value, first: x}
		return nil
	}
	st.min = min(st.min, value)
	st.max = max(st.max, value)
	st.first = min(st.first, x)
	return nil
}

func (a *temperatureAccumulator) finish(res *Result, log *zap.Logger) {
	for _, country := range sortedKeys(a.countries) {
		s := a.countries[country]

		years := make([]int, 0, len(s.years))
		for y := range s.years {
			years = append(years, y)
		}
		sort.Ints(years)

		var lows, highs series
		for _, y := range years {
			st := s.years[y]
			lows.add(st.first, st.min)
			highs.add(st.first, st.max)
		}

		rec := model.HeatRecord{
			Country: country,
			Min:     fitCurve(lows.xs, lows.ys, res),
			Avg:     fitCurve(s.all.xs, s.all.ys, res),
			Max:     fitCurve(highs.xs, highs.ys, res),
		}
		if !rec.HasCurves() {
			res.CountriesDropped++
			log.Debug("dataset: no curves fitted", zap.String("country", country))
			continue
		}
		res.Heat = append(res.Heat, rec)
	}
}
