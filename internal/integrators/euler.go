package integrators

import "github.com/san-kum/dynsens/internal/dynamo"

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string { return "euler" }

func (e *Euler) Step(f Field, x dynamo.State, t, h, _ float64) (StepResult, error) {
	return StepResult{X: x.AddScaled(h, f(x, t)), H: h, Next: h}, nil
}

func (e *Euler) Tangent(_ Field, jf FieldJVP, x, dx dynamo.State, t, h float64) dynamo.State {
	return dx.AddScaled(h, jf(x, dx, t))
}
