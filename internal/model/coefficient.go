package model

import (
	"github.com/sells-group/habitat-api/internal/trend"
)

// Family identifies a group of curves stored together for a country.
type Family string

const (
	FamilyHeat Family = "heat"
	FamilyAir  Family = "air"
)

// Curve is an optional fitted line. A zero Curve is absent.
type Curve struct {
	Line  trend.Line
	Valid bool
}

// Present wraps a fitted line as a present curve.
func Present(l trend.Line) Curve {
	return Curve{Line: l, Valid: true}
}

// Absent returns a curve with no coefficients.
func Absent() Curve {
	return Curve{}
}

// CurveFromNullable builds a curve from two nullable columns. Both must be
// set for the curve to be present.
func CurveFromNullable(gradient, offset *float64) Curve {
	if gradient == nil || offset == nil {
		return Absent()
	}
	return Present(trend.Line{Gradient: *gradient, Offset: *offset})
}

// Nullable returns the gradient and offset as nullable column values.
func (c Curve) Nullable() (gradient, offset *float64) {
	if !c.Valid {
		return nil, nil
	}
	g, o := c.Line.Gradient, c.Line.Offset
	return &g, &o
}

// Predict evaluates the curve at x. The second return is false when the
// curve is absent.
func (c Curve) Predict(x float64) (float64, bool) {
	if !c.Valid {
		return 0, false
	}
	return c.Line.Predict(x), true
}

// HeatRecord holds the temperature trend curves for one country.
type HeatRecord struct {
	Country string `json:"country"`
	Min     Curve  `json:"-"`
	Avg     Curve  `json:"-"`
	Max     Curve  `json:"-"`
}

// HasCurves reports whether at least one curve is present.
func (r HeatRecord) HasCurves() bool {
	return r.Min.Valid || r.Avg.Valid || r.Max.Valid
}

// AirRecord holds the pollutant trend curves for one country.
type AirRecord struct {
	Country string `json:"country"`
	CO2     Curve  `json:"-"`
	NO      Curve  `json:"-"`
}

// HasCurves reports whether at least one curve is present.
func (r AirRecord) HasCurves() bool {
	return r.CO2.Valid || r.NO.Valid
}

