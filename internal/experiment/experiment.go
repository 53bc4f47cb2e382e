package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/dynsens/internal/config"
	"github.com/san-kum/dynsens/internal/dynamo"
	"github.com/san-kum/dynsens/internal/models"
	"github.com/san-kum/dynsens/internal/sens"
	"github.com/san-kum/dynsens/internal/sim"
	"github.com/sirupsen/logrus"
)

// Experiment is a config resolved against a registry: a model, its initial
// state and parameters, a tangent direction and the run options.
type Experiment struct {
	Name    string
	Model   models.Model
	X0      dynamo.State
	Params  []float64
	DX0     dynamo.State
	DParams []float64
	DPeriod float64
	Options sim.Options
}

func New(cfg *config.Config, reg *Registry) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m, err := reg.GetModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	stepper, err := reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	names := m.Names()
	x0 := m.DefaultState()
	if len(cfg.X0) > 0 {
		if len(cfg.X0) != len(names) {
			return nil, fmt.Errorf("x0 has %d entries for states %v: %w", len(cfg.X0), names, dynamo.ErrDimensionMismatch)
		}
		x0 = dynamo.State(cfg.X0).Clone()
	}
	params, err := models.Params(m, cfg.Params)
	if err != nil {
		return nil, err
	}

	dx0 := make(dynamo.State, len(names))
	if len(cfg.Tangent.DX0) > 0 {
		if len(cfg.Tangent.DX0) != len(names) {
			return nil, fmt.Errorf("tangent dx0 has %d entries for states %v: %w", len(cfg.Tangent.DX0), names, dynamo.ErrDimensionMismatch)
		}
		copy(dx0, cfg.Tangent.DX0)
	}
	dparams := make([]float64, len(params))
	for name, v := range cfg.Tangent.DParams {
		i := dynamo.Index(m.ParamNames(), name)
		if i < 0 {
			return nil, fmt.Errorf("tangent: model %s has no parameter %q", cfg.Model, name)
		}
		dparams[i] = v
	}

	cond, set, err := cfg.Plan()
	if err != nil {
		return nil, err
	}

	opts := sim.DefaultOptions()
	opts.Period = cfg.Period
	opts.H0 = cfg.H0
	opts.Tol = cfg.Tol
	opts.MaxStep = cfg.MaxStep
	opts.MaxSteps = cfg.MaxSteps
	opts.Mode = cfg.Mode
	opts.Stop = cond
	opts.Constraints = set
	opts.Stepper = stepper

	return &Experiment{
		Name:    cfg.Model,
		Model:   m,
		X0:      x0,
		Params:  params,
		DX0:     dx0,
		DParams: dparams,
		DPeriod: cfg.Tangent.DPeriod,
		Options: opts,
	}, nil
}

func (e *Experiment) Run(ctx context.Context) (*dynamo.Result, error) {
	logrus.Infof("running %s until %s", e.Name, e.Options.Stop)
	return sim.Simulate(ctx, e.Model, e.X0, e.Params, e.Options)
}

func (e *Experiment) RunTangent(ctx context.Context) (*dynamo.TangentResult, error) {
	logrus.Infof("running %s with tangents until %s", e.Name, e.Options.Stop)
	return sim.SimulateWithTangent(ctx, e.Model, e.X0, e.DX0, e.Params, e.DParams, e.DPeriod, e.Options)
}

// Sweep varies the named parameter, or the period for "period", over values.
func (e *Experiment) Sweep(ctx context.Context, param string, values []float64, progress func(done, total int)) ([]sim.SweepPoint, error) {
	idx, err := e.ParamIndex(param)
	if err != nil {
		return nil, err
	}
	logrus.Infof("sweeping %s of %s over %d values", param, e.Name, len(values))
	return sim.Sweep(ctx, e.Model, e.X0, e.Params, idx, values, e.Options, progress)
}

// ParamIndex resolves a parameter name, mapping "period" to sim.PeriodParam.
func (e *Experiment) ParamIndex(param string) (int, error) {
	if param == "period" {
		return sim.PeriodParam, nil
	}
	idx := dynamo.Index(e.Model.ParamNames(), param)
	if idx < 0 {
		return 0, fmt.Errorf("model %s has no parameter %q (have %v)", e.Name, param, e.Model.ParamNames())
	}
	return idx, nil
}

// Problem is the experiment as seen by the sensitivity tools.
func (e *Experiment) Problem() sens.Problem {
	return sens.Problem{System: e.Model, X0: e.X0, Params: e.Params, Options: e.Options}
}

func (e *Experiment) Direction() sens.Direction {
	return sens.Direction{DX0: e.DX0, DParams: e.DParams, DPeriod: e.DPeriod}
}
