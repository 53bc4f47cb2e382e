package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/dynsens/internal/dynamo"
	"github.com/sirupsen/logrus"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// stage tableau: node, coupling row, 5th order weight
var (
	dpNodes   = [6]float64{0, a2, a3, a4, a5, 1}
	dpCouple  = [6][5]float64{{}, {b21}, {b31, b32}, {b41, b42, b43}, {b51, b52, b53, b54}, {b61, b62, b63, b64, b65}}
	dpWeights = [6]float64{c1, 0, c3, c4, c5, c6}
	dpErr     = [7]float64{dc1, 0, dc3, dc4, dc5, dc6, dc7}
)

type RK45 struct {
	safety     float64
	minScale   float64
	maxScale   float64
	minStep    float64
	maxRejects int
}

func NewRK45() *RK45 {
	return &RK45{
		safety:     0.9,
		minScale:   0.2,
		maxScale:   10.0,
		minStep:    1e-14,
		maxRejects: 64,
	}
}

func (r *RK45) Name() string { return "rk45" }

// stages evaluates the six stage derivatives of one step of size h and
// returns them along with the 5th order solution.
func (r *RK45) stages(f Field, x dynamo.State, t, h float64) ([6]dynamo.State, dynamo.State) {
	n := len(x)
	var k [6]dynamo.State

	k[0] = f(x, t)
	for s := 1; s < 6; s++ {
		xs := make(dynamo.State, n)
		for i := 0; i < n; i++ {
			acc := 0.0
			for j := 0; j < s; j++ {
				acc += dpCouple[s][j] * k[j][i]
			}
			xs[i] = x[i] + h*acc
		}
		k[s] = f(xs, t+dpNodes[s]*h)
	}

	xNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		acc := 0.0
		for s := 0; s < 6; s++ {
			acc += dpWeights[s] * k[s][i]
		}
		xNew[i] = x[i] + h*acc
	}
	return k, xNew
}

// errorRatio is the scaled local error estimate; values <= 1 are accepted.
func (r *RK45) errorRatio(f Field, k [6]dynamo.State, x, xNew dynamo.State, t, h, tol float64) float64 {
	k7 := f(xNew, t+h)

	errMax := 0.0
	for i := range x {
		errEst := dpErr[6] * k7[i]
		for s := 0; s < 6; s++ {
			errEst += dpErr[s] * k[s][i]
		}
		errEst *= h
		scale := tol * (1 + math.Max(math.Abs(x[i]), math.Abs(xNew[i])))
		errMax = math.Max(errMax, math.Abs(errEst)/scale)
	}
	return errMax
}

func (r *RK45) nextStep(h, errRatio float64) float64 {
	if errRatio > 1 {
		return h * math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
	}
	if errRatio > 0 {
		return h * math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
	}
	return h * r.maxScale
}

// Step advances x from t by an accepted adaptive step, shrinking h until the
// local error estimate falls below tol.
func (r *RK45) Step(f Field, x dynamo.State, t, h, tol float64) (StepResult, error) {
	rejected := 0
	for {
		k, xNew := r.stages(f, x, t, h)
		errRatio := r.errorRatio(f, k, x, xNew, t, h, tol)
		next := r.nextStep(h, errRatio)

		if errRatio <= 1 {
			return StepResult{X: xNew, H: h, Next: next, Rejected: rejected}, nil
		}

		rejected++
		logrus.Debugf("rk45: rejected step at t=%.6g h=%.3g (err ratio %.3g)", t, h, errRatio)
		if next < r.minStep || rejected > r.maxRejects || math.IsNaN(errRatio) {
			return StepResult{}, fmt.Errorf("rk45 at t=%g, h=%g: %w", t, next, dynamo.ErrStepTooSmall)
		}
		h = next
	}
}

// Tangent propagates dx through one step of size h taken from (x, t). The
// step size is held fixed: only the stage arithmetic is differentiated.
func (r *RK45) Tangent(f Field, jf FieldJVP, x, dx dynamo.State, t, h float64) dynamo.State {
	n := len(x)
	var k, dk [6]dynamo.State

	k[0] = f(x, t)
	dk[0] = jf(x, dx, t)
	for s := 1; s < 6; s++ {
		xs := make(dynamo.State, n)
		dxs := make(dynamo.State, n)
		for i := 0; i < n; i++ {
			acc, dacc := 0.0, 0.0
			for j := 0; j < s; j++ {
				acc += dpCouple[s][j] * k[j][i]
				dacc += dpCouple[s][j] * dk[j][i]
			}
			xs[i] = x[i] + h*acc
			dxs[i] = dx[i] + h*dacc
		}
		ts := t + dpNodes[s]*h
		k[s] = f(xs, ts)
		dk[s] = jf(xs, dxs, ts)
	}

	dxNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		dacc := 0.0
		for s := 0; s < 6; s++ {
			dacc += dpWeights[s] * dk[s][i]
		}
		dxNew[i] = dx[i] + h*dacc
	}
	return dxNew
}
