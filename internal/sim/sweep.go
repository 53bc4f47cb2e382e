package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/dynsens/internal/dynamo"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// PeriodParam selects the run period as the swept quantity.
const PeriodParam = -1

type SweepPoint struct {
	Value  float64
	Result *dynamo.TangentResult
}

// Sweep runs one tangent simulation per value, each seeded with a unit
// tangent on the swept quantity: params[param], or the period when param is
// PeriodParam. Runs are sequential; progress, if set, is called after each.
func Sweep(ctx context.Context, sys dynamo.System, x0 dynamo.State, params []float64, param int, values []float64, opts Options, progress func(done, total int)) ([]SweepPoint, error) {
	if param != PeriodParam && (param < 0 || param >= len(params)) {
		return nil, fmt.Errorf("sweep parameter %d out of range [0, %d): %w", param, len(params), dynamo.ErrDimensionMismatch)
	}

	dx0 := make(dynamo.State, len(x0))
	points := make([]SweepPoint, 0, len(values))

	for i, v := range values {
		p := append([]float64(nil), params...)
		dp := make([]float64, len(params))
		o := opts
		dPeriod := 0.0
		if param == PeriodParam {
			o.Period = v
			dPeriod = 1
		} else {
			p[param] = v
			dp[param] = 1
		}

		res, err := SimulateWithTangent(ctx, sys, x0, dx0, p, dp, dPeriod, o)
		if err != nil {
			return points, fmt.Errorf("sweep point %d (value %g): %w", i, v, err)
		}
		logrus.Debugf("sim: sweep %d/%d value=%g ts=%.6g", i+1, len(values), v, res.Ts)
		points = append(points, SweepPoint{Value: v, Result: res})
		if progress != nil {
			progress(i+1, len(values))
		}
	}
	return points, nil
}

// Linspace returns n evenly spaced values covering [lo, hi].
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}
