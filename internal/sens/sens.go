// Package sens checks and assembles forward sensitivities of simulation
// outputs.
//
// Outputs of a run are flattened in a fixed order: the stop time, the final
// state, the final output, then the constraints sorted by name.
package sens

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/dynsens/internal/dynamo"
	"github.com/san-kum/dynsens/internal/sim"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const DefaultStep = 1e-6

// Problem is everything a run needs besides a tangent direction.
type Problem struct {
	System  dynamo.System
	X0      dynamo.State
	Params  []float64
	Options sim.Options
}

// Direction perturbs the initial state, the parameters and the period.
type Direction struct {
	DX0     dynamo.State
	DParams []float64
	DPeriod float64
}

func (d Direction) normalize(p Problem) Direction {
	if d.DX0 == nil {
		d.DX0 = make(dynamo.State, len(p.X0))
	}
	if d.DParams == nil {
		d.DParams = make([]float64, len(p.Params))
	}
	return d
}

func (p Problem) shifted(s float64, d Direction) (dynamo.State, []float64, sim.Options) {
	x := p.X0.AddScaled(s, d.DX0)
	params := append([]float64(nil), p.Params...)
	floats.AddScaled(params, s, d.DParams)
	opts := p.Options
	opts.Period += s * d.DPeriod
	return x, params, opts
}

// Labels names the flattened outputs of res.
func Labels(sys dynamo.System, res *dynamo.Result) []string {
	labels := []string{"ts"}
	for _, name := range sys.Names() {
		labels = append(labels, "x."+name)
	}
	for i := range res.Y {
		labels = append(labels, fmt.Sprintf("y[%d]", i))
	}
	for _, name := range constraintNames(res.Constraints) {
		labels = append(labels, "c."+name)
	}
	return labels
}

func constraintNames(c map[string]float64) []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flatten lays the primal outputs of res out in label order.
func Flatten(res *dynamo.Result) []float64 {
	out := []float64{res.Ts}
	out = append(out, res.X...)
	out = append(out, res.Y...)
	for _, name := range constraintNames(res.Constraints) {
		out = append(out, res.Constraints[name])
	}
	return out
}

// FlattenTangent lays the tangents of res out in label order.
func FlattenTangent(res *dynamo.TangentResult) []float64 {
	out := []float64{res.DTs}
	out = append(out, res.DX...)
	out = append(out, res.DY...)
	for _, name := range constraintNames(res.Constraints) {
		out = append(out, res.DConstraints[name])
	}
	return out
}

// DirectionalDerivative estimates the derivative of every output along d
// with a central difference of step h over values-only runs.
func DirectionalDerivative(ctx context.Context, p Problem, d Direction, h float64) ([]float64, error) {
	d = d.normalize(p)
	base, err := sim.Simulate(ctx, p.System, p.X0, p.Params, p.Options)
	if err != nil {
		return nil, err
	}
	m := len(Flatten(base))

	var runErr error
	dst := mat.NewDense(m, 1, nil)
	fd.Jacobian(dst, func(y, s []float64) {
		if runErr != nil {
			return
		}
		x, params, opts := p.shifted(s[0], d)
		res, err := sim.Simulate(ctx, p.System, x, params, opts)
		if err != nil {
			runErr = err
			return
		}
		flat := Flatten(res)
		if len(flat) != m {
			runErr = fmt.Errorf("perturbed run has %d outputs, want %d: %w", len(flat), m, dynamo.ErrDimensionMismatch)
			return
		}
		copy(y, flat)
	}, []float64{0}, &fd.JacobianSettings{Formula: fd.Central, Step: h})
	if runErr != nil {
		return nil, runErr
	}
	return mat.Col(nil, 0, dst), nil
}

// Report compares tangent outputs with finite differences.
type Report struct {
	Labels  []string
	Tangent []float64
	FD      []float64
	AbsErr  []float64
	Worst   string  // label with the largest relative error
	MaxRel  float64 // |tangent - fd| / (1 + |fd|)
}

func (r *Report) OK(tol float64) bool {
	return r.MaxRel <= tol
}

// Check runs one tangent simulation along d and compares it with a central
// finite difference of step h.
func Check(ctx context.Context, p Problem, d Direction, h float64) (*Report, error) {
	d = d.normalize(p)
	tr, err := sim.SimulateWithTangent(ctx, p.System, p.X0, d.DX0, p.Params, d.DParams, d.DPeriod, p.Options)
	if err != nil {
		return nil, err
	}
	approx, err := DirectionalDerivative(ctx, p, d, h)
	if err != nil {
		return nil, err
	}

	r := &Report{
		Labels:  Labels(p.System, &tr.Result),
		Tangent: FlattenTangent(tr),
		FD:      approx,
	}
	r.AbsErr = make([]float64, len(r.Tangent))
	for i := range r.Tangent {
		r.AbsErr[i] = math.Abs(r.Tangent[i] - r.FD[i])
		rel := r.AbsErr[i] / (1 + math.Abs(r.FD[i]))
		if rel > r.MaxRel || r.Worst == "" {
			r.MaxRel = math.Max(r.MaxRel, rel)
			r.Worst = r.Labels[i]
		}
	}
	return r, nil
}

// Jacobian assembles the sensitivity of every output to every initial state
// component and parameter, one tangent run per column. Columns are labelled
// "x0.<name>" then "p[<i>]".
func Jacobian(ctx context.Context, p Problem) (*mat.Dense, []string, []string, error) {
	n, k := len(p.X0), len(p.Params)
	if n+k == 0 {
		return nil, nil, nil, fmt.Errorf("nothing to differentiate: %w", dynamo.ErrDimensionMismatch)
	}
	var jac *mat.Dense
	var rows []string
	cols := make([]string, 0, n+k)

	for j := 0; j < n+k; j++ {
		d := Direction{}.normalize(p)
		if j < n {
			d.DX0[j] = 1
			cols = append(cols, "x0."+p.System.Names()[j])
		} else {
			d.DParams[j-n] = 1
			cols = append(cols, fmt.Sprintf("p[%d]", j-n))
		}

		tr, err := sim.SimulateWithTangent(ctx, p.System, p.X0, d.DX0, p.Params, d.DParams, 0, p.Options)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("column %s: %w", cols[j], err)
		}
		col := FlattenTangent(tr)
		if jac == nil {
			rows = Labels(p.System, &tr.Result)
			jac = mat.NewDense(len(col), n+k, nil)
		}
		jac.SetCol(j, col)
	}
	return jac, rows, cols, nil
}
