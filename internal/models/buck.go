package models

import (
	"math"

	"github.com/san-kum/dynsens/internal/dynamo"
)

const (
	BuckOff = iota
	BuckOn
)

// Buck is an ideal step-down converter: a switch chops vin at the run
// period with the given duty cycle into an L-C filter loaded by R.
//
//	L i' = u vin - v
//	C v' = i - v/R
//
// The switch state u is the command; the mode records it between steps.
type Buck struct {
	Duty float64
}

func NewBuck() *Buck { return &Buck{Duty: 0.5} }

func (*Buck) Names() []string            { return []string{"i", "v"} }
func (*Buck) ParamNames() []string       { return []string{"vin", "L", "C", "R"} }
func (*Buck) DefaultParams() []float64   { return []float64{10, 1, 1, 0.5} }
func (*Buck) DefaultState() dynamo.State { return dynamo.State{0, 0} }

// Command closes the switch during the first Duty fraction of each period.
func (b *Buck) Command(t, period float64, mode int) (int, float64) {
	if period <= 0 {
		return mode, float64(mode)
	}
	phase := t/period - math.Floor(t/period)
	if phase < b.Duty {
		return BuckOn, 1
	}
	return BuckOff, 0
}

func (*Buck) Derivative(x dynamo.State, _ float64, env dynamo.Env) dynamo.State {
	vin, l, c, r := env.Params[0], env.Params[1], env.Params[2], env.Params[3]
	i, v := x[0], x[1]
	return dynamo.State{(env.Command*vin - v) / l, (i - v/r) / c}
}

func (*Buck) Output(x dynamo.State, _ float64, _ dynamo.Env) dynamo.State { return identity(x) }

// DerivativeJVP holds the switching instants fixed.
func (*Buck) DerivativeJVP(x, dx dynamo.State, _ float64, env dynamo.Env, dp []float64) dynamo.State {
	vin, l, c, r := env.Params[0], env.Params[1], env.Params[2], env.Params[3]
	dvin, dl, dc, dr := tangentOf(dp, 0), tangentOf(dp, 1), tangentOf(dp, 2), tangentOf(dp, 3)
	i, v := x[0], x[1]
	u := env.Command

	emf := u*vin - v
	demf := u*dvin - dx[1]
	cur := i - v/r
	dcur := dx[0] - dx[1]/r + v*dr/(r*r)

	return dynamo.State{
		demf/l - emf*dl/(l*l),
		dcur/c - cur*dc/(c*c),
	}
}

func (*Buck) OutputJVP(_, dx dynamo.State, _ float64, _ dynamo.Env, _ []float64) dynamo.State {
	return identityJVP(dx)
}
