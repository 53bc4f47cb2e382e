// Package stop defines how a simulation decides it is finished.
//
// A [Condition] is one of three kinds:
//
//   - [Threshold] (built by [Seuil]): stop where a state variable crosses a level
//   - [FinalTime] (built by [TempsFinal]): stop exactly at a given time
//   - [Predicate]: stop when a user function of the sample times and the
//     running constraint accumulators says so (e.g. periodic steady state)
package stop

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/dynsens/internal/dynamo"
)

type Kind int

const (
	Threshold Kind = iota
	FinalTime
	Predicate
)

func (k Kind) String() string {
	switch k {
	case Threshold:
		return "seuil"
	case FinalTime:
		return "temps_final"
	case Predicate:
		return "predicate"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "seuil", "threshold":
		return Threshold, nil
	case "temps_final", "final_time", "final":
		return FinalTime, nil
	case "predicate", "rp", "regime":
		return Predicate, nil
	}
	return 0, fmt.Errorf("%w: %q", dynamo.ErrUnknownStop, s)
}

// Func decides, for a candidate step from tPrev to tNew, whether the run is
// over. acc holds the raw (unfinalized) constraint accumulators as of tPrev.
type Func func(tPrev, tNew float64, acc map[string]float64) bool

type Condition struct {
	Kind Kind

	// Threshold
	Var   string
	Level float64

	// FinalTime
	Final float64

	// Predicate
	Pred     Func
	Label    string
	PhaseVar string // coordinate used for the stop-time derivative; last state if empty
}

// Seuil stops when state variable name crosses level.
func Seuil(name string, level float64) Condition {
	return Condition{Kind: Threshold, Var: name, Level: level}
}

// TempsFinal stops at exactly t = final.
func TempsFinal(final float64) Condition {
	return Condition{Kind: FinalTime, Final: final}
}

func NewPredicate(label string, fn Func, phaseVar string) Condition {
	return Condition{Kind: Predicate, Pred: fn, Label: label, PhaseVar: phaseVar}
}

func (c Condition) String() string {
	switch c.Kind {
	case Threshold:
		return fmt.Sprintf("seuil(%s=%g)", c.Var, c.Level)
	case FinalTime:
		return fmt.Sprintf("temps_final(%g)", c.Final)
	case Predicate:
		if c.Label != "" {
			return c.Label
		}
		return "predicate"
	}
	return c.Kind.String()
}

// Validate rejects conditions that could never be evaluated against names.
func (c Condition) Validate(names []string) error {
	switch c.Kind {
	case Threshold:
		if dynamo.Index(names, c.Var) < 0 {
			return fmt.Errorf("stop %s: %w %q", c, dynamo.ErrUnknownVariable, c.Var)
		}
	case FinalTime:
		if c.Final < 0 || math.IsNaN(c.Final) || math.IsInf(c.Final, 0) {
			return fmt.Errorf("stop %s: final time must be finite and non-negative", c)
		}
	case Predicate:
		if c.Pred == nil {
			return fmt.Errorf("stop %s: nil predicate", c)
		}
		if c.PhaseVar != "" && dynamo.Index(names, c.PhaseVar) < 0 {
			return fmt.Errorf("stop %s: %w %q", c, dynamo.ErrUnknownVariable, c.PhaseVar)
		}
	default:
		return fmt.Errorf("%w: %d", dynamo.ErrUnknownStop, int(c.Kind))
	}
	return nil
}

// SignalIndex is the state coordinate whose derivative defines the stop-time
// sensitivity, or -1 when the stop time does not move (final time).
func (c Condition) SignalIndex(names []string) int {
	switch c.Kind {
	case Threshold:
		return dynamo.Index(names, c.Var)
	case Predicate:
		if c.PhaseVar == "" {
			return len(names) - 1
		}
		return dynamo.Index(names, c.PhaseVar)
	}
	return -1
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// Crossed reports whether the signal offsets of two consecutive samples
// differ in sign. A sample sitting exactly on the level counts as a change.
func Crossed(gPrev, gNew float64) bool {
	return sign(gPrev) != sign(gNew)
}

// Offset is the signed distance of x from the threshold level.
func (c Condition) Offset(x dynamo.State, idx int) float64 {
	return x[idx] - c.Level
}

// Clip reports whether a candidate step overshoots the final time, and the
// blend fraction that lands exactly on it.
func (c Condition) Clip(tPrev, tNew float64) (float64, bool) {
	if c.Kind != FinalTime || tNew < c.Final {
		return 1, false
	}
	if tNew == tPrev {
		return 1, true
	}
	return (c.Final - tPrev) / (tNew - tPrev), true
}

// Limit caps a proposed step so a final-time run lands on its end; the
// returned value is zero once t has reached it.
func (c Condition) Limit(t, h float64) float64 {
	if c.Kind != FinalTime {
		return h
	}
	return math.Max(0, math.Min(h, c.Final-t))
}
