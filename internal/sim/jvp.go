package sim

import (
	"github.com/san-kum/dynsens/internal/dynamo"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DirectionalJVP differentiates f at (x, p) along (dx, dp) with a central
// finite difference over the scalar s in f(x + s dx, p + s dp).
func DirectionalJVP(f func(x dynamo.State, p []float64) dynamo.State, x, dx dynamo.State, p, dp []float64) dynamo.State {
	m := len(f(x, p))
	if m == 0 {
		return dynamo.State{}
	}
	dst := mat.NewDense(m, 1, nil)
	xs := make(dynamo.State, len(x))
	ps := make([]float64, len(p))

	fd.Jacobian(dst, func(y, s []float64) {
		copy(xs, x)
		if dx != nil {
			floats.AddScaled(xs, s[0], dx)
		}
		copy(ps, p)
		if dp != nil {
			floats.AddScaled(ps, s[0], dp)
		}
		copy(y, f(xs, ps))
	}, []float64{0}, &fd.JacobianSettings{Formula: fd.Central})

	return dynamo.State(mat.Col(nil, 0, dst))
}

// numeric stands in for dynamo.Linearized on systems that do not implement it.
type numeric struct {
	sys dynamo.System
}

func (n numeric) DerivativeJVP(x, dx dynamo.State, t float64, env dynamo.Env, dp []float64) dynamo.State {
	return DirectionalJVP(func(x dynamo.State, p []float64) dynamo.State {
		e := env
		e.Params = p
		return n.sys.Derivative(x, t, e)
	}, x, dx, env.Params, dp)
}

func (n numeric) OutputJVP(x, dx dynamo.State, t float64, env dynamo.Env, dp []float64) dynamo.State {
	return DirectionalJVP(func(x dynamo.State, p []float64) dynamo.State {
		e := env
		e.Params = p
		return n.sys.Output(x, t, e)
	}, x, dx, env.Params, dp)
}
