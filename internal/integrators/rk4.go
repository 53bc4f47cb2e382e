package integrators

import "github.com/san-kum/dynsens/internal/dynamo"

// RK4 is the classic fixed-step scheme. It never rejects and keeps h.
type RK4 struct {
	scratch dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Name() string { return "rk4" }

func (r *RK4) ensureScratch(n int) {
	if len(r.scratch) != n {
		r.scratch = make(dynamo.State, n)
	}
}

func (r *RK4) Step(f Field, x dynamo.State, t, h, _ float64) (StepResult, error) {
	n := len(x)
	r.ensureScratch(n)

	k1 := f(x, t)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + h*0.5*k1[i]
	}
	k2 := f(r.scratch, t+h*0.5)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + h*0.5*k2[i]
	}
	k3 := f(r.scratch, t+h*0.5)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + h*k3[i]
	}
	k4 := f(r.scratch, t+h)

	result := make(dynamo.State, n)
	h6 := h / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + h6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}

	return StepResult{X: result, H: h, Next: h}, nil
}

func (r *RK4) Tangent(f Field, jf FieldJVP, x, dx dynamo.State, t, h float64) dynamo.State {
	n := len(x)
	xs := make(dynamo.State, n)
	dxs := make(dynamo.State, n)

	k1 := f(x, t)
	dk1 := jf(x, dx, t)

	for i := 0; i < n; i++ {
		xs[i] = x[i] + h*0.5*k1[i]
		dxs[i] = dx[i] + h*0.5*dk1[i]
	}
	k2 := f(xs, t+h*0.5)
	dk2 := jf(xs, dxs, t+h*0.5)

	for i := 0; i < n; i++ {
		xs[i] = x[i] + h*0.5*k2[i]
		dxs[i] = dx[i] + h*0.5*dk2[i]
	}
	dk3 := jf(xs, dxs, t+h*0.5)
	k3 := f(xs, t+h*0.5)

	for i := 0; i < n; i++ {
		xs[i] = x[i] + h*k3[i]
		dxs[i] = dx[i] + h*dk3[i]
	}
	dk4 := jf(xs, dxs, t+h)

	result := make(dynamo.State, n)
	h6 := h / 6.0
	for i := 0; i < n; i++ {
		result[i] = dx[i] + h6*(dk1[i]+2*dk2[i]+2*dk3[i]+dk4[i])
	}
	return result
}
