package models

import "github.com/san-kum/dynsens/internal/dynamo"

type Lorenz struct{}

func NewLorenz() *Lorenz { return &Lorenz{} }

func (*Lorenz) Names() []string            { return []string{"x", "y", "z"} }
func (*Lorenz) ParamNames() []string       { return []string{"sigma", "rho", "beta"} }
func (*Lorenz) DefaultParams() []float64   { return []float64{10, 28, 8.0 / 3.0} }
func (*Lorenz) DefaultState() dynamo.State { return dynamo.State{1, 1, 1} }

// Derivative calculates the Lorenz attractor derivatives.
func (*Lorenz) Derivative(s dynamo.State, _ float64, env dynamo.Env) dynamo.State {
	sigma, rho, beta := env.Params[0], env.Params[1], env.Params[2]
	return dynamo.State{sigma * (s[1] - s[0]), s[0]*(rho-s[2]) - s[1], s[0]*s[1] - beta*s[2]}
}

func (*Lorenz) Output(s dynamo.State, _ float64, _ dynamo.Env) dynamo.State { return identity(s) }

func (*Lorenz) DerivativeJVP(s, ds dynamo.State, _ float64, env dynamo.Env, dp []float64) dynamo.State {
	sigma, rho, beta := env.Params[0], env.Params[1], env.Params[2]
	dsigma, drho, dbeta := tangentOf(dp, 0), tangentOf(dp, 1), tangentOf(dp, 2)
	x, y, z := s[0], s[1], s[2]
	dx, dy, dz := ds[0], ds[1], ds[2]
	return dynamo.State{
		dsigma*(y-x) + sigma*(dy-dx),
		dx*(rho-z) + x*(drho-dz) - dy,
		dx*y + x*dy - dbeta*z - beta*dz,
	}
}

func (*Lorenz) OutputJVP(_, ds dynamo.State, _ float64, _ dynamo.Env, _ []float64) dynamo.State {
	return identityJVP(ds)
}
