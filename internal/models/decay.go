package models

import "github.com/san-kum/dynsens/internal/dynamo"

// Decay is dx/dt = -k x.
type Decay struct{}

func NewDecay() *Decay { return &Decay{} }

func (*Decay) Names() []string            { return []string{"x"} }
func (*Decay) ParamNames() []string       { return []string{"k"} }
func (*Decay) DefaultParams() []float64   { return []float64{1} }
func (*Decay) DefaultState() dynamo.State { return dynamo.State{1} }

func (*Decay) Derivative(x dynamo.State, _ float64, env dynamo.Env) dynamo.State {
	return dynamo.State{-env.Params[0] * x[0]}
}

func (*Decay) Output(x dynamo.State, _ float64, _ dynamo.Env) dynamo.State { return identity(x) }

func (*Decay) DerivativeJVP(x, dx dynamo.State, _ float64, env dynamo.Env, dp []float64) dynamo.State {
	k := env.Params[0]
	return dynamo.State{-k*dx[0] - tangentOf(dp, 0)*x[0]}
}

func (*Decay) OutputJVP(_, dx dynamo.State, _ float64, _ dynamo.Env, _ []float64) dynamo.State {
	return identityJVP(dx)
}

// Ramp is dx/dt = k.
type Ramp struct{}

func NewRamp() *Ramp { return &Ramp{} }

func (*Ramp) Names() []string            { return []string{"x"} }
func (*Ramp) ParamNames() []string       { return []string{"k"} }
func (*Ramp) DefaultParams() []float64   { return []float64{1} }
func (*Ramp) DefaultState() dynamo.State { return dynamo.State{0} }

func (*Ramp) Derivative(_ dynamo.State, _ float64, env dynamo.Env) dynamo.State {
	return dynamo.State{env.Params[0]}
}

func (*Ramp) Output(x dynamo.State, _ float64, _ dynamo.Env) dynamo.State { return identity(x) }

func (*Ramp) DerivativeJVP(_, _ dynamo.State, _ float64, _ dynamo.Env, dp []float64) dynamo.State {
	return dynamo.State{tangentOf(dp, 0)}
}

func (*Ramp) OutputJVP(_, dx dynamo.State, _ float64, _ dynamo.Env, _ []float64) dynamo.State {
	return identityJVP(dx)
}
