// Package trend fits ordinary least-squares lines to paired series.
package trend

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"
)

// ErrDegenerateFit is returned when a series has too little variation in x
// to fit a line (a single point, or every x identical).
var ErrDegenerateFit = eris.New("trend: degenerate fit")

// Line is a fitted line y = Gradient + Offset*x.
//
// Gradient holds the intercept and Offset holds the slope. The naming matches
// the stored coefficient columns and must not be swapped.
type Line struct {
	Gradient float64 `json:"gradient"`
	Offset   float64 `json:"offset"`
}

// Predict evaluates the line at x.
func (l Line) Predict(x float64) float64 {
	return l.Gradient + l.Offset*x
}

// String renders the line in slope-intercept notation.
func (l Line) String() string {
	return fmt.Sprintf("y = %gx + %g", l.Offset, l.Gradient)
}

// Fit computes the ordinary least-squares line through (xs, ys).
func Fit(xs, ys []float64) (Line, error) {
	if len(xs) != len(ys) {
		return Line{}, eris.Errorf("trend: fit: length mismatch (%d xs, %d ys)", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return Line{}, ErrDegenerateFit
	}
	if stat.Variance(xs, nil) == 0 {
		return Line{}, ErrDegenerateFit
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if !finite(alpha) || !finite(beta) {
		return Line{}, ErrDegenerateFit
	}
	return Line{Gradient: alpha, Offset: beta}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
