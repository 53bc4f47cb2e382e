package models

import (
	"math"

	"github.com/san-kum/dynsens/internal/dynamo"
)

// Duffing implements a nonlinear forced oscillator:
//
//	x'' + δx' + αx + βx³ = γ cos(ωt)
type Duffing struct{}

func NewDuffing() *Duffing { return &Duffing{} }

func (*Duffing) Names() []string { return []string{"x", "v"} }

func (*Duffing) ParamNames() []string {
	return []string{"alpha", "beta", "delta", "gamma", "omega"}
}

func (*Duffing) DefaultParams() []float64   { return []float64{-1, 1, 0.3, 0.5, 1.2} }
func (*Duffing) DefaultState() dynamo.State { return dynamo.State{1, 0} }

func (*Duffing) Derivative(s dynamo.State, t float64, env dynamo.Env) dynamo.State {
	p := env.Params
	alpha, beta, delta, gamma, omega := p[0], p[1], p[2], p[3], p[4]
	x, v := s[0], s[1]
	return dynamo.State{v, -delta*v - alpha*x - beta*x*x*x + gamma*math.Cos(omega*t)}
}

// Output: [x, energy] of the unforced oscillator.
func (*Duffing) Output(s dynamo.State, _ float64, env dynamo.Env) dynamo.State {
	alpha, beta := env.Params[0], env.Params[1]
	x, v := s[0], s[1]
	return dynamo.State{x, 0.5*v*v + 0.5*alpha*x*x + 0.25*beta*x*x*x*x}
}

func (*Duffing) DerivativeJVP(s, ds dynamo.State, t float64, env dynamo.Env, dp []float64) dynamo.State {
	p := env.Params
	alpha, beta, delta, gamma, omega := p[0], p[1], p[2], p[3], p[4]
	x, v := s[0], s[1]
	dx, dv := ds[0], ds[1]

	dacc := -delta*dv - tangentOf(dp, 2)*v -
		alpha*dx - tangentOf(dp, 0)*x -
		3*beta*x*x*dx - tangentOf(dp, 1)*x*x*x +
		tangentOf(dp, 3)*math.Cos(omega*t) - gamma*t*math.Sin(omega*t)*tangentOf(dp, 4)
	return dynamo.State{dv, dacc}
}

func (*Duffing) OutputJVP(s, ds dynamo.State, _ float64, env dynamo.Env, dp []float64) dynamo.State {
	alpha, beta := env.Params[0], env.Params[1]
	x, v := s[0], s[1]
	dE := v*ds[1] + alpha*x*ds[0] + 0.5*tangentOf(dp, 0)*x*x + beta*x*x*x*ds[0] + 0.25*tangentOf(dp, 1)*x*x*x*x
	return dynamo.State{ds[0], dE}
}
