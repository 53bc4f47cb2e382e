package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/dynsens/internal/dynamo"
	"github.com/san-kum/dynsens/internal/experiment"
	"github.com/san-kum/dynsens/internal/sim"
	"github.com/sirupsen/logrus"
)

type ShootOptions struct {
	Target   float64
	Tol      float64 // on |objective - target|
	MaxIters int
	MaxMove  float64 // largest parameter change per iteration, 0 for none
}

func DefaultShootOptions(target float64) ShootOptions {
	return ShootOptions{Target: target, Tol: 1e-9, MaxIters: 20}
}

type ShootResult struct {
	Param      float64
	Value      float64
	Derivative float64
	Iterations int
}

// Shoot adjusts one parameter, or the period, until objective reaches the
// target, with Newton steps whose slope comes from a tangent run.
func Shoot(ctx context.Context, e *experiment.Experiment, param, objective string, opts ShootOptions) (*ShootResult, error) {
	idx, err := e.ParamIndex(param)
	if err != nil {
		return nil, err
	}
	if opts.MaxIters <= 0 {
		return nil, fmt.Errorf("shoot: max iterations must be positive, got %d", opts.MaxIters)
	}

	run := *e
	run.Params = append([]float64(nil), e.Params...)
	run.DX0 = make(dynamo.State, len(e.X0))
	run.DParams = make([]float64, len(e.Params))
	run.DPeriod = 0
	p := run.Options.Period
	if idx == sim.PeriodParam {
		run.DPeriod = 1
	} else {
		run.DParams[idx] = 1
		p = run.Params[idx]
	}

	res := &ShootResult{Param: p}
	for res.Iterations < opts.MaxIters {
		if idx == sim.PeriodParam {
			run.Options.Period = p
		} else {
			run.Params[idx] = p
		}
		tr, err := run.RunTangent(ctx)
		if err != nil {
			return res, fmt.Errorf("shoot: %s=%g: %w", param, p, err)
		}
		res.Iterations++

		v, err := Value(tr.Ts, tr.Constraints, objective)
		if err != nil {
			return res, err
		}
		d, _ := Value(tr.DTs, tr.DConstraints, objective)
		res.Param, res.Value, res.Derivative = p, v, d

		miss := v - opts.Target
		logrus.Debugf("optim: shoot %s=%.9g %s=%.9g d=%.6g", param, p, objective, v, d)
		if math.Abs(miss) <= opts.Tol {
			return res, nil
		}
		if d == 0 {
			return res, fmt.Errorf("shoot: %s does not depend on %s at %g", objective, param, p)
		}
		move := -miss / d
		if opts.MaxMove > 0 && math.Abs(move) > opts.MaxMove {
			move = math.Copysign(opts.MaxMove, move)
		}
		p += move
	}
	return res, fmt.Errorf("shoot: %s=%g still %g from target after %d iterations",
		objective, res.Value, res.Value-opts.Target, res.Iterations)
}
