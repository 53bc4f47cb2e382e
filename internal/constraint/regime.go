package constraint

import (
	"fmt"
	"math"

	"github.com/san-kum/dynsens/internal/dynamo"
	"github.com/san-kum/dynsens/internal/stop"
)

const (
	evenSuffix = "_even"
	oddSuffix  = "_odd"
)

// RegPerm builds a periodic steady-state detector ("regime permanent").
// For every tracked name it averages even and odd periods separately and
// stops at a period boundary once at least nPeriods periods are complete
// and each even/odd pair agrees within atol.
//
// The returned set must be merged into the run's constraints.
func RegPerm(period float64, nPeriods int, names []string, atol float64) (stop.Condition, Set, error) {
	switch {
	case !(period > 0) || math.IsInf(period, 0):
		return stop.Condition{}, nil, fmt.Errorf("rp: %w: period %g must be positive", dynamo.ErrBadConstraint, period)
	case len(names) == 0:
		return stop.Condition{}, nil, fmt.Errorf("rp: %w: no tracked variables", dynamo.ErrBadConstraint)
	case !(atol > 0):
		return stop.Condition{}, nil, fmt.Errorf("rp: %w: atol %g must be positive", dynamo.ErrBadConstraint, atol)
	}

	set := make(Set, 2*len(names))
	for _, name := range names {
		set[name+evenSuffix] = Spec{Kind: KindAvgT, Var: name, Period: period}.Gated(EvenPeriods, HoldOnInactive)
		set[name+oddSuffix] = Spec{Kind: KindAvgT, Var: name, Period: period}.Gated(OddPeriods, HoldOnInactive)
	}

	minPeriods := int64(nPeriods)
	if minPeriods < 2 {
		minPeriods = 2
	}
	tracked := append([]string(nil), names...)

	pred := func(tPrev, tNew float64, acc map[string]float64) bool {
		if !crossedPeriod(tPrev, tNew, period) {
			return false
		}
		if PeriodIndex(tNew, period) < minPeriods {
			return false
		}
		for _, name := range tracked {
			even, odd := acc[name+evenSuffix]/period, acc[name+oddSuffix]/period
			if math.Abs(even-odd) > atol {
				return false
			}
		}
		return true
	}

	return stop.NewPredicate("rp", pred, ""), set, nil
}
