package dynamo

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

type State []float64

func (s State) Clone() State {
	if s == nil {
		return nil
	}
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	return floats.Norm(s, 2)
}

func (s State) Add(other State) State {
	result := s.Clone()
	floats.Add(result, other)
	return result
}

func (s State) Scale(factor float64) State {
	result := s.Clone()
	floats.Scale(factor, result)
	return result
}

func (s State) Sub(other State) State {
	result := s.Clone()
	floats.Sub(result, other)
	return result
}

// AddScaled returns s + alpha*other.
func (s State) AddScaled(alpha float64, other State) State {
	result := s.Clone()
	floats.AddScaled(result, alpha, other)
	return result
}

// Index returns the position of name in names, or -1.
func Index(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// Env carries everything a system sees besides the state and time.
type Env struct {
	Params  []float64
	Period  float64
	Mode    int
	Command float64
}

type System interface {
	Names() []string
	Derivative(x State, t float64, env Env) State
	Output(x State, t float64, env Env) State
}

// Linearized systems supply Jacobian-vector products of their derivative and
// output maps in direction (dx, dp). Systems without it are differentiated
// numerically.
type Linearized interface {
	DerivativeJVP(x, dx State, t float64, env Env, dp []float64) State
	OutputJVP(x, dx State, t float64, env Env, dp []float64) State
}

// Commander drives a discrete mode and a scalar command from time and period.
// The returned mode is threaded through the simulation loop and handed back
// on the next call; the system itself is never mutated.
type Commander interface {
	Command(t, period float64, mode int) (int, float64)
}

type Result struct {
	Ts          float64
	X           State
	Y           State
	Constraints map[string]float64
	Mode        int
	Steps       int
	Rejected    int
}

type TangentResult struct {
	Result
	DTs          float64
	DX           State
	DY           State
	DConstraints map[string]float64
}
