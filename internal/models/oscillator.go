package models

import "github.com/san-kum/dynsens/internal/dynamo"

// Oscillator is a damped spring-mass: m v' = -k x - c v.
// Output: [x, energy].
type Oscillator struct{}

func NewOscillator() *Oscillator { return &Oscillator{} }

func (*Oscillator) Names() []string            { return []string{"x", "v"} }
func (*Oscillator) ParamNames() []string       { return []string{"k", "c", "m"} }
func (*Oscillator) DefaultParams() []float64   { return []float64{10, 0.5, 1} }
func (*Oscillator) DefaultState() dynamo.State { return dynamo.State{1, 0} }

func (*Oscillator) Derivative(x dynamo.State, _ float64, env dynamo.Env) dynamo.State {
	k, c, m := env.Params[0], env.Params[1], env.Params[2]
	pos, vel := x[0], x[1]
	return dynamo.State{vel, (-k*pos - c*vel) / m}
}

func (*Oscillator) Output(x dynamo.State, _ float64, env dynamo.Env) dynamo.State {
	k, m := env.Params[0], env.Params[2]
	pos, vel := x[0], x[1]
	return dynamo.State{pos, 0.5*m*vel*vel + 0.5*k*pos*pos}
}

func (*Oscillator) DerivativeJVP(x, dx dynamo.State, _ float64, env dynamo.Env, dp []float64) dynamo.State {
	k, c, m := env.Params[0], env.Params[1], env.Params[2]
	dk, dc, dm := tangentOf(dp, 0), tangentOf(dp, 1), tangentOf(dp, 2)
	pos, vel := x[0], x[1]

	force := -k*pos - c*vel
	dforce := -k*dx[0] - dk*pos - c*dx[1] - dc*vel
	return dynamo.State{dx[1], dforce/m - force*dm/(m*m)}
}

func (*Oscillator) OutputJVP(x, dx dynamo.State, _ float64, env dynamo.Env, dp []float64) dynamo.State {
	k, m := env.Params[0], env.Params[2]
	dk, dm := tangentOf(dp, 0), tangentOf(dp, 2)
	pos, vel := x[0], x[1]
	dE := m*vel*dx[1] + 0.5*dm*vel*vel + k*pos*dx[0] + 0.5*dk*pos*pos
	return dynamo.State{dx[0], dE}
}
