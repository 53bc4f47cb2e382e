package sim

import (
	"fmt"
	"math"

	"github.com/san-kum/dynsens/internal/constraint"
	"github.com/san-kum/dynsens/internal/dynamo"
	"github.com/san-kum/dynsens/internal/integrators"
	"github.com/san-kum/dynsens/internal/stop"
)

const (
	DefaultH0       = 1e-5
	DefaultTol      = 1.48e-8
	DefaultMaxSteps = 1_000_000
)

// Observer sees every accepted sample, the final one included.
type Observer func(t float64, x, y dynamo.State)

type Options struct {
	Period      float64
	H0          float64
	Tol         float64
	Stop        stop.Condition
	Constraints constraint.Set
	Mode        int // initial discrete mode handed to a Commander

	MaxSteps int     // 0 disables the guard
	MaxStep  float64 // 0 leaves the step uncapped

	Stepper       integrators.Stepper // nil means RK45
	ValidateState bool
	Observer      Observer
}

func DefaultOptions() Options {
	return Options{
		H0:       DefaultH0,
		Tol:      DefaultTol,
		MaxSteps: DefaultMaxSteps,
		Stop:     stop.TempsFinal(1),
	}
}

func (o Options) validate(names []string) error {
	if o.H0 <= 0 || math.IsNaN(o.H0) {
		return fmt.Errorf("h0 must be positive, got %g", o.H0)
	}
	if o.Tol <= 0 || math.IsNaN(o.Tol) {
		return fmt.Errorf("tolerance must be positive, got %g", o.Tol)
	}
	if o.MaxStep < 0 {
		return fmt.Errorf("max step must be non-negative, got %g", o.MaxStep)
	}
	if o.Period < 0 || math.IsNaN(o.Period) {
		return fmt.Errorf("period must be non-negative, got %g", o.Period)
	}
	if err := o.Stop.Validate(names); err != nil {
		return err
	}
	if o.Constraints.NeedsPeriod() && o.Period == 0 {
		return fmt.Errorf("%w: periodic constraint needs a run period", dynamo.ErrBadConstraint)
	}
	return nil
}

// bracket is the widest step a threshold root is interpolated over. The
// chord error shrinks with the square of this width.
func (o Options) bracket() float64 {
	return math.Sqrt(o.Tol)
}

// cap applies MaxStep to a proposed step.
func (o Options) cap(h float64) float64 {
	if o.MaxStep > 0 && h > o.MaxStep {
		return o.MaxStep
	}
	return h
}
