package integrators

import (
	"fmt"

	"github.com/san-kum/dynsens/internal/dynamo"
)

// Field is a vector field with parameters and command already bound.
type Field func(x dynamo.State, t float64) dynamo.State

// FieldJVP is the directional derivative of a Field at x in direction dx
// (parameter directions already bound).
type FieldJVP func(x, dx dynamo.State, t float64) dynamo.State

type StepResult struct {
	X        dynamo.State
	H        float64 // size of the accepted step
	Next     float64 // proposed size of the following step
	Rejected int
}

// Stepper is one single-step integration scheme plus its tangent map.
type Stepper interface {
	Name() string
	Step(f Field, x dynamo.State, t, h, tol float64) (StepResult, error)
	Tangent(f Field, jf FieldJVP, x, dx dynamo.State, t, h float64) dynamo.State
}

func New(name string) (Stepper, error) {
	switch name {
	case "", "rk45":
		return NewRK45(), nil
	case "rk4":
		return NewRK4(), nil
	case "euler":
		return NewEuler(), nil
	default:
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
}

func Names() []string {
	return []string{"rk45", "rk4", "euler"}
}
