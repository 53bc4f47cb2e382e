package constraint

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/dynsens/internal/dynamo"
)

// Gate decides whether a constraint updates at sample time t for window
// length period. A nil Gate is always active.
type Gate func(t, period float64) bool

// InactivePolicy says what a periodic accumulator does on a gated-off sample.
type InactivePolicy int

const (
	// ResetOnInactive restarts the accumulator from the instantaneous value.
	ResetOnInactive InactivePolicy = iota
	// HoldOnInactive keeps the last accumulated value.
	HoldOnInactive
)

// Segment is one accepted step of the tracked variable, tangents included.
type Segment struct {
	TPrev, T Dual
	XPrev, X Dual
}

type Spec struct {
	Kind     Kind
	Var      string
	Period   float64 // window length for periodic kinds; 0 uses the run period
	Active   Gate
	Inactive InactivePolicy
}

func Min(name string) Spec  { return Spec{Kind: KindMin, Var: name} }
func Max(name string) Spec  { return Spec{Kind: KindMax, Var: name} }
func Moy(name string) Spec  { return Spec{Kind: KindAvg, Var: name} }
func Eff(name string) Spec  { return Spec{Kind: KindRMS, Var: name} }
func MoyT(name string) Spec { return Spec{Kind: KindAvgT, Var: name} }
func EffT(name string) Spec { return Spec{Kind: KindRMST, Var: name} }

func MinT(period float64, name string) Spec {
	return Spec{Kind: KindMinT, Var: name, Period: period}
}

func MaxT(period float64, name string) Spec {
	return Spec{Kind: KindMaxT, Var: name, Period: period}
}

// Gated returns a copy of s that only updates while g holds.
func (s Spec) Gated(g Gate, policy InactivePolicy) Spec {
	s.Active = g
	s.Inactive = policy
	return s
}

func PeriodIndex(t, period float64) int64 {
	return int64(math.Floor(t / period))
}

// EvenPeriods is active during periods 0, 2, 4, ...
func EvenPeriods(t, period float64) bool {
	return period > 0 && PeriodIndex(t, period)%2 == 0
}

// OddPeriods is active during periods 1, 3, 5, ...
func OddPeriods(t, period float64) bool {
	return period > 0 && PeriodIndex(t, period)%2 != 0
}

func crossedPeriod(tPrev, t, period float64) bool {
	if period <= 0 {
		return false
	}
	return PeriodIndex(tPrev, period) != PeriodIndex(t, period)
}

// window resolves the period this spec accumulates over. An explicit
// Period is a constant and carries no tangent.
func (s Spec) window(run Dual) Dual {
	if s.Period > 0 {
		return Const(s.Period)
	}
	return run
}

func (s Spec) active(t, period float64) bool {
	return s.Active == nil || s.Active(t, period)
}

// Init is the accumulator at t = 0 for tracked value x.
func (s Spec) Init(x Dual, period Dual) Dual {
	if !s.active(0, s.window(period).V) {
		return s.Kind.neutral()
	}
	return s.Kind.restart(x)
}

// Step folds one accepted segment into acc.
func (s Spec) Step(acc Dual, seg Segment, period Dual) Dual {
	T := s.window(period).V
	periodic := s.Kind.Periodic()

	if !s.active(seg.T.V, T) {
		if periodic && s.Inactive == ResetOnInactive {
			return s.Kind.restart(seg.X)
		}
		return acc
	}
	if periodic && crossedPeriod(seg.TPrev.V, seg.T.V, T) {
		return s.Kind.restart(seg.X)
	}
	return s.Kind.accumulate(acc, seg)
}

// Finalize converts the accumulator to the reported statistic.
func (s Spec) Finalize(acc, duration, period, xFinal Dual) Dual {
	return s.Kind.finalize(acc, duration, s.window(period), xFinal)
}

func (s Spec) String() string {
	if s.Kind == KindMinT || s.Kind == KindMaxT {
		return fmt.Sprintf("%s(%g, %s)", s.Kind, s.Period, s.Var)
	}
	return fmt.Sprintf("%s(%s)", s.Kind, s.Var)
}

// Set maps constraint names to their specs.
type Set map[string]Spec

func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s Set) Validate(stateNames []string) error {
	for _, name := range s.Names() {
		spec := s[name]
		if name == "" {
			return fmt.Errorf("%w: empty constraint name", dynamo.ErrBadConstraint)
		}
		if _, ok := kindNames[spec.Kind]; !ok {
			return fmt.Errorf("constraint %q: %w: kind %d", name, dynamo.ErrBadConstraint, int(spec.Kind))
		}
		if dynamo.Index(stateNames, spec.Var) < 0 {
			return fmt.Errorf("constraint %q: %w %q", name, dynamo.ErrUnknownVariable, spec.Var)
		}
		if spec.Period < 0 || math.IsNaN(spec.Period) {
			return fmt.Errorf("constraint %q: %w: negative period", name, dynamo.ErrBadConstraint)
		}
	}
	return nil
}

// NeedsPeriod reports whether some periodic spec relies on the run period.
func (s Set) NeedsPeriod() bool {
	for _, spec := range s {
		if spec.Kind.Periodic() && spec.Period == 0 {
			return true
		}
	}
	return false
}

// Merge combines two sets; a name present in both is an error.
func (s Set) Merge(other Set) (Set, error) {
	out := make(Set, len(s)+len(other))
	for name, spec := range s {
		out[name] = spec
	}
	for _, name := range other.Names() {
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("%w: duplicate constraint %q", dynamo.ErrBadConstraint, name)
		}
		out[name] = other[name]
	}
	return out, nil
}
