package models

import "github.com/san-kum/dynsens/internal/dynamo"

// VanDerPol implements the Van der Pol oscillator.
// State: [x, y] where y = dx/dt
// Equations:
//
//	dx/dt = y
//	dy/dt = μ(1 - x²)y - x
type VanDerPol struct{}

func NewVanDerPol() *VanDerPol { return &VanDerPol{} }

func (*VanDerPol) Names() []string            { return []string{"x", "y"} }
func (*VanDerPol) ParamNames() []string       { return []string{"mu"} }
func (*VanDerPol) DefaultParams() []float64   { return []float64{1} }
func (*VanDerPol) DefaultState() dynamo.State { return dynamo.State{2, 0} }

func (*VanDerPol) Derivative(s dynamo.State, _ float64, env dynamo.Env) dynamo.State {
	mu := env.Params[0]
	x, y := s[0], s[1]
	return dynamo.State{y, mu*(1-x*x)*y - x}
}

func (*VanDerPol) Output(s dynamo.State, _ float64, _ dynamo.Env) dynamo.State { return identity(s) }

func (*VanDerPol) DerivativeJVP(s, ds dynamo.State, _ float64, env dynamo.Env, dp []float64) dynamo.State {
	mu, dmu := env.Params[0], tangentOf(dp, 0)
	x, y := s[0], s[1]
	dx, dy := ds[0], ds[1]
	return dynamo.State{
		dy,
		dmu*(1-x*x)*y - 2*mu*x*dx*y + mu*(1-x*x)*dy - dx,
	}
}

func (*VanDerPol) OutputJVP(_, ds dynamo.State, _ float64, _ dynamo.Env, _ []float64) dynamo.State {
	return identityJVP(ds)
}
