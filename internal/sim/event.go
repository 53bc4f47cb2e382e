package sim

import (
	"github.com/san-kum/dynsens/internal/constraint"
	"github.com/san-kum/dynsens/internal/dynamo"
	"github.com/san-kum/dynsens/internal/integrators"
	"github.com/san-kum/dynsens/internal/stop"
	"github.com/sirupsen/logrus"
)

// sample is one point of the trajectory. The d* fields are its tangents and
// stay nil in a values-only run; dt is nonzero only on a sample placed by an
// event whose time moves with the inputs.
type sample struct {
	t, dt float64
	x, dx dynamo.State
	y, dy dynamo.State
}

func (s sample) time() constraint.Dual {
	return constraint.Dual{V: s.t, D: s.dt}
}

// blend moves a toward b by alpha. alpha is a primal decision and carries no
// tangent of its own.
func blend(a, b sample, alpha float64) sample {
	return sample{
		t:  integrators.LerpScalar(a.t, b.t, alpha),
		x:  integrators.Lerp(a.x, b.x, alpha),
		dx: integrators.Lerp(a.dx, b.dx, alpha),
		y:  integrators.Lerp(a.y, b.y, alpha),
		dy: integrators.Lerp(a.dy, b.dy, alpha),
	}
}

// crossing reports whether the threshold signal changes sign between a and
// b, and if so the sample interpolated to its root.
func crossing(c stop.Condition, idx int, a, b sample) (sample, bool) {
	gPrev, gNew := c.Offset(a.x, idx), c.Offset(b.x, idx)
	if !stop.Crossed(gPrev, gNew) {
		return b, false
	}
	alpha := integrators.Root(gPrev, gNew)
	at := blend(a, b, alpha)
	logrus.Debugf("sim: %s crossed in [%.6g, %.6g], root at t=%.9g", c, a.t, b.t, at.t)
	return at, true
}

// clipFinal lands a candidate that overshoots the final time exactly on it.
func clipFinal(c stop.Condition, a, b sample) sample {
	alpha, clipped := c.Clip(a.t, b.t)
	if !clipped {
		return b
	}
	at := blend(a, b, alpha)
	at.t = c.Final
	return at
}

// stopTimeTangent is the first-order shift of the stop time from the
// implicit condition x[idx](ts) = const: -dx[idx] / xdot[idx].
func stopTimeTangent(dx, xdot dynamo.State, idx int) float64 {
	if idx < 0 || dx == nil {
		return 0
	}
	if xdot[idx] == 0 {
		logrus.Warnf("sim: stop variable %d is stationary at the event, stop time tangent set to 0", idx)
		return 0
	}
	return -dx[idx] / xdot[idx]
}

// retime turns fixed-time tangents at s into total derivatives for a stop
// time that moves by dts.
func retime(s sample, dts float64, xdot, ydot dynamo.State) sample {
	s.dt = dts
	if s.dx != nil {
		s.dx = s.dx.AddScaled(dts, xdot)
	}
	if s.dy != nil {
		s.dy = s.dy.AddScaled(dts, ydot)
	}
	return s
}

// slope is the finite difference (b - a) / (tb - ta) of two samples.
func slope(a, b dynamo.State, ta, tb float64) dynamo.State {
	if tb == ta {
		return make(dynamo.State, len(a))
	}
	return b.Sub(a).Scale(1 / (tb - ta))
}
