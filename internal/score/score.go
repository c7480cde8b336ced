package score

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/habitat-api/internal/model"
)

// AirScore predicts both pollutant curves at year and averages whichever
// normalize successfully. ok is false when neither does.
func AirScore(rec *model.AirRecord, year float64) (float64, bool) {
	if rec == nil {
		return 0, false
	}

	var sum float64
	var n int
	add := func(name string, c model.Curve, norm func(float64) (float64, error)) {
		v, ok := c.Predict(year)
		if !ok {
			return
		}
		s, err := norm(v)
		if err != nil {
			zap.L().Debug("score: dropping sub-metric",
				zap.String("country", rec.Country),
				zap.String("metric", name),
				zap.Float64("prediction", v),
				zap.Error(err),
			)
			return
		}
		sum += s
		n++
	}
	add("co2", rec.CO2, NormalizeCO2)
	add("nitrous_oxide", rec.NO, NormalizeNO)

	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// HeatScore predicts the average temperature curve at year and normalizes
// it. The min and max curves do not contribute.
func HeatScore(rec *model.HeatRecord, year float64) (float64, bool) {
	if rec == nil {
		return 0, false
	}
	v, ok := rec.Avg.Predict(year)
	if !ok {
		return 0, false
	}
	s := NormalizeHeat(v)
	if !finite(s) {
		return 0, false
	}
	return s, true
}

// Overall averages the sub-scores that are present and finite. It returns
// nil when neither is.
func Overall(heat, air *float64) *float64 {
	var sum float64
	var n int
	for _, s := range []*float64{heat, air} {
		if s != nil && finite(*s) {
			sum += *s
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
