package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/dynsens/internal/dynamo"
	"github.com/san-kum/dynsens/internal/sim"
	"github.com/san-kum/dynsens/internal/stop"
	"github.com/sirupsen/logrus"
)

// Lyapunov controls the segmented estimate. Each segment is a separate
// fixed-duration run that restarts the clock at zero, so the system must be
// autonomous.
type Lyapunov struct {
	Segment   float64 // duration between renormalizations
	Segments  int     // segments averaged
	Transient int     // leading segments discarded
}

func DefaultLyapunov() Lyapunov {
	return Lyapunov{Segment: 1, Segments: 50, Transient: 5}
}

func (l Lyapunov) validate() error {
	if l.Segment <= 0 || l.Segments <= 0 || l.Transient < 0 {
		return fmt.Errorf("lyapunov: need a positive segment and count and a non-negative transient, got %g, %d, %d",
			l.Segment, l.Segments, l.Transient)
	}
	return nil
}

// LargestExponent estimates the largest Lyapunov exponent by propagating a
// tangent of the initial state and renormalizing it after every segment:
// lambda = sum(ln |dx|) / (segments * segment).
func LargestExponent(ctx context.Context, sys dynamo.System, x0 dynamo.State, params []float64, opts sim.Options, l Lyapunov) (float64, error) {
	if len(x0) == 0 {
		return 0, fmt.Errorf("lyapunov: empty state: %w", dynamo.ErrDimensionMismatch)
	}
	dx := make(dynamo.State, len(x0))
	for i := range dx {
		dx[i] = 1
	}
	return growthRate(ctx, sys, x0, dx.Scale(1/dx.Norm()), params, opts, l)
}

// Spectrum returns the growth rate of a tangent seeded on each state
// component in turn. Without reorthonormalization every entry converges to
// the largest exponent over long horizons; over short ones it separates the
// directions that grow from those that decay.
func Spectrum(ctx context.Context, sys dynamo.System, x0 dynamo.State, params []float64, opts sim.Options, l Lyapunov) ([]float64, error) {
	rates := make([]float64, len(x0))
	for i := range x0 {
		dx := make(dynamo.State, len(x0))
		dx[i] = 1
		r, err := growthRate(ctx, sys, x0, dx, params, opts, l)
		if err != nil {
			return nil, fmt.Errorf("direction %s: %w", sys.Names()[i], err)
		}
		rates[i] = r
	}
	return rates, nil
}

func growthRate(ctx context.Context, sys dynamo.System, x0, dx dynamo.State, params []float64, opts sim.Options, l Lyapunov) (float64, error) {
	if err := l.validate(); err != nil {
		return 0, err
	}
	opts.Stop = stop.TempsFinal(l.Segment)
	opts.Constraints = nil
	opts.Observer = nil

	x := x0.Clone()
	sumLog := 0.0
	for i := 0; i < l.Transient+l.Segments; i++ {
		tr, err := sim.SimulateWithTangent(ctx, sys, x, dx, params, nil, 0, opts)
		if err != nil {
			return 0, fmt.Errorf("segment %d: %w", i, err)
		}
		g := tr.DX.Norm()
		if g == 0 || math.IsInf(g, 0) || math.IsNaN(g) {
			return 0, fmt.Errorf("segment %d: tangent norm %g: %w", i, g, dynamo.ErrInvalidState)
		}
		if i >= l.Transient {
			sumLog += math.Log(g)
		}
		x = tr.X
		dx = tr.DX.Scale(1 / g)
	}
	lambda := sumLog / (float64(l.Segments) * l.Segment)
	logrus.Debugf("analysis: lyapunov estimate %.6g over %d segments", lambda, l.Segments)
	return lambda, nil
}
