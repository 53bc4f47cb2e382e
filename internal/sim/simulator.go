package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/dynsens/internal/constraint"
	"github.com/san-kum/dynsens/internal/dynamo"
	"github.com/san-kum/dynsens/internal/integrators"
	"github.com/san-kum/dynsens/internal/stop"
	"github.com/sirupsen/logrus"
)

// Simulate integrates sys from x0 at t = 0 until opts.Stop fires and returns
// the stop time, final state and output, and the finalized constraints.
func Simulate(ctx context.Context, sys dynamo.System, x0 dynamo.State, params []float64, opts Options) (*dynamo.Result, error) {
	r, err := newRunner(sys, x0, nil, params, nil, 0, opts, false)
	if err != nil {
		return nil, err
	}
	out, err := r.run(ctx, x0, nil)
	if err != nil {
		return nil, err
	}
	return &out.Result, nil
}

// SimulateWithTangent runs the same integration as Simulate while carrying
// the first-order response of every output to the input direction
// (dx0, dparams, dPeriod). A nil dparams is the zero direction.
func SimulateWithTangent(ctx context.Context, sys dynamo.System, x0, dx0 dynamo.State, params, dparams []float64, dPeriod float64, opts Options) (*dynamo.TangentResult, error) {
	r, err := newRunner(sys, x0, dx0, params, dparams, dPeriod, opts, true)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, x0, dx0)
}

// runner is the integration loop shared by both entry points. Every control
// decision reads primal values only; the tangent lane rides along when
// tangent is set.
type runner struct {
	sys     dynamo.System
	lin     dynamo.Linearized
	cmd     dynamo.Commander
	stepper integrators.Stepper
	opts    Options
	sig     int
	bank    *constraint.Bank
	env     dynamo.Env
	dparams []float64
	period  constraint.Dual
	tangent bool
}

func newRunner(sys dynamo.System, x0, dx0 dynamo.State, params, dparams []float64, dPeriod float64, opts Options, tangent bool) (*runner, error) {
	names := sys.Names()
	if len(x0) != len(names) {
		return nil, fmt.Errorf("x0 has %d entries for states %v: %w", len(x0), names, dynamo.ErrDimensionMismatch)
	}
	if tangent {
		if len(dx0) != len(x0) {
			return nil, fmt.Errorf("dx0 has %d entries, x0 has %d: %w", len(dx0), len(x0), dynamo.ErrDimensionMismatch)
		}
		if dparams == nil {
			dparams = make([]float64, len(params))
		}
		if len(dparams) != len(params) {
			return nil, fmt.Errorf("dparams has %d entries, params has %d: %w", len(dparams), len(params), dynamo.ErrDimensionMismatch)
		}
	}
	if err := opts.validate(names); err != nil {
		return nil, err
	}
	bank, err := constraint.NewBank(opts.Constraints, names)
	if err != nil {
		return nil, err
	}

	r := &runner{
		sys:     sys,
		stepper: opts.Stepper,
		opts:    opts,
		sig:     opts.Stop.SignalIndex(names),
		bank:    bank,
		env:     dynamo.Env{Params: append([]float64(nil), params...), Period: opts.Period},
		dparams: append([]float64(nil), dparams...),
		period:  constraint.Dual{V: opts.Period, D: dPeriod},
		tangent: tangent,
	}
	if r.stepper == nil {
		r.stepper = integrators.NewRK45()
	}
	if c, ok := sys.(dynamo.Commander); ok {
		r.cmd = c
	}
	if l, ok := sys.(dynamo.Linearized); ok {
		r.lin = l
	} else if tangent {
		logrus.Warnf("sim: %T has no analytic JVP, differentiating numerically", sys)
		r.lin = numeric{sys: sys}
	}
	return r, nil
}

func (r *runner) run(ctx context.Context, x0, dx0 dynamo.State) (*dynamo.TangentResult, error) {
	c := r.opts.Stop
	env := r.env
	env.Mode = r.opts.Mode
	env = r.command(env, 0)

	cur := r.observe(sample{x: x0.Clone(), dx: dx0.Clone()}, env)
	r.bank.Init(cur.x, cur.dx, r.period)
	r.notify(cur)

	steps, rejected := 0, 0
	h := c.Limit(0, r.opts.cap(r.opts.H0))

	for h > 0 {
		if err := ctx.Err(); err != nil {
			return nil, r.fail(steps, cur, fmt.Errorf("%w: %v", dynamo.ErrContextCanceled, err))
		}
		if r.opts.MaxSteps > 0 && steps >= r.opts.MaxSteps {
			return nil, r.fail(steps, cur, fmt.Errorf("%w: %d steps without %s", dynamo.ErrStepLimit, steps, c))
		}

		env = r.command(env, cur.t)
		f := r.field(env)

		res, err := r.stepper.Step(f, cur.x, cur.t, h, r.opts.Tol)
		if err != nil {
			return nil, r.fail(steps, cur, err)
		}
		steps++
		rejected += res.Rejected

		next := sample{t: cur.t + res.H, x: res.X}
		if r.tangent {
			next.dx = r.stepper.Tangent(f, r.fieldJVP(env), cur.x, cur.dx, cur.t, res.H)
		}
		next = r.observe(next, env)
		if r.opts.ValidateState && !next.x.IsValid() {
			return nil, r.fail(steps, next, dynamo.ErrInvalidState)
		}

		done := false
		switch c.Kind {
		case stop.Predicate:
			if c.Pred(cur.t, next.t, r.bank.Raw()) {
				logrus.Debugf("sim: %s fired at t=%.9g", c, cur.t)
				// the candidate is discarded; constraint tangents stay at
				// the fixed sample time since the stop jumps between samples
				final := cur
				if r.tangent {
					xdot := f(cur.x, cur.t)
					dts := stopTimeTangent(cur.dx, xdot, r.sig)
					final = retime(cur, dts, xdot, slope(cur.y, next.y, cur.t, next.t))
				}
				return r.finish(final, constraint.Const(final.t), env, steps, rejected), nil
			}
		case stop.Threshold:
			if at, hit := crossing(c, r.sig, cur, next); hit {
				if width := r.opts.bracket(); res.H > width {
					// retry from cur with a step landing just past the
					// chord root so the final bracket is at most width wide
					h = math.Min((at.t-cur.t)+width/2, 0.9*res.H)
					rejected++
					continue
				}
				if r.tangent {
					xdot := f(at.x, at.t)
					dts := stopTimeTangent(at.dx, xdot, r.sig)
					at = retime(at, dts, xdot, slope(cur.y, next.y, cur.t, next.t))
				}
				next = at
				done = true
			}
		case stop.FinalTime:
			next = clipFinal(c, cur, next)
		}

		r.bank.Step(cur.time(), next.time(), cur.x, cur.dx, next.x, next.dx, r.period)
		cur = next
		r.notify(cur)
		if done {
			break
		}
		h = c.Limit(cur.t, r.opts.cap(res.Next))
	}
	return r.finish(cur, cur.time(), env, steps, rejected), nil
}

// command applies the sample-and-hold command in force from time t.
func (r *runner) command(env dynamo.Env, t float64) dynamo.Env {
	if r.cmd != nil {
		env.Mode, env.Command = r.cmd.Command(t, env.Period, env.Mode)
	}
	return env
}

func (r *runner) field(env dynamo.Env) integrators.Field {
	return func(x dynamo.State, t float64) dynamo.State {
		return r.sys.Derivative(x, t, env)
	}
}

func (r *runner) fieldJVP(env dynamo.Env) integrators.FieldJVP {
	return func(x, dx dynamo.State, t float64) dynamo.State {
		return r.lin.DerivativeJVP(x, dx, t, env, r.dparams)
	}
}

// observe fills in the output of s and, in tangent mode, its tangent.
func (r *runner) observe(s sample, env dynamo.Env) sample {
	s.y = r.sys.Output(s.x, s.t, env)
	if r.tangent {
		s.dy = r.lin.OutputJVP(s.x, s.dx, s.t, env, r.dparams)
	}
	return s
}

func (r *runner) notify(s sample) {
	if r.opts.Observer != nil {
		r.opts.Observer(s.t, s.x, s.y)
	}
}

// finish closes the run at s. duration is the elapsed time as seen by the
// constraints.
func (r *runner) finish(s sample, duration constraint.Dual, env dynamo.Env, steps, rejected int) *dynamo.TangentResult {
	vals, tans := r.bank.Finalize(duration, s.x, s.dx, r.period)
	out := &dynamo.TangentResult{
		Result: dynamo.Result{
			Ts:          s.t,
			X:           s.x,
			Y:           s.y,
			Constraints: vals,
			Mode:        env.Mode,
			Steps:       steps,
			Rejected:    rejected,
		},
	}
	if r.tangent {
		out.DTs = s.dt
		out.DX = s.dx
		out.DY = s.dy
		out.DConstraints = tans
	}
	logrus.Debugf("sim: stopped on %s at t=%.9g after %d steps (%d rejected)", r.opts.Stop, s.t, steps, rejected)
	return out
}

func (r *runner) fail(step int, s sample, err error) error {
	return &dynamo.SimulationError{Step: step, Time: s.t, State: s.x.Clone(), Wrapped: err}
}
