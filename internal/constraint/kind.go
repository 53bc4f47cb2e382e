package constraint

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/dynsens/internal/dynamo"
)

type Kind int

const (
	KindMin Kind = iota
	KindMax
	KindAvg
	KindRMS
	KindMinT
	KindMaxT
	KindAvgT
	KindRMST
)

var kindNames = map[Kind]string{
	KindMin:  "min",
	KindMax:  "max",
	KindAvg:  "moy",
	KindRMS:  "eff",
	KindMinT: "min_T",
	KindMaxT: "max_T",
	KindAvgT: "moy_T",
	KindRMST: "eff_T",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "min":
		return KindMin, nil
	case "max":
		return KindMax, nil
	case "moy", "avg", "mean":
		return KindAvg, nil
	case "eff", "rms":
		return KindRMS, nil
	case "min_t":
		return KindMinT, nil
	case "max_t":
		return KindMaxT, nil
	case "moy_t", "avg_t":
		return KindAvgT, nil
	case "eff_t", "rms_t":
		return KindRMST, nil
	}
	return 0, fmt.Errorf("%w: unknown kind %q", dynamo.ErrBadConstraint, s)
}

func (k Kind) Periodic() bool {
	return k >= KindMinT && k <= KindRMST
}

func (k Kind) extremum() bool {
	return k == KindMin || k == KindMax || k == KindMinT || k == KindMaxT
}

func (k Kind) squared() bool {
	return k == KindRMS || k == KindRMST
}

// neutral is the accumulator value before any active sample.
func (k Kind) neutral() Dual {
	switch k {
	case KindMin, KindMinT:
		return Const(math.Inf(1))
	case KindMax, KindMaxT:
		return Const(math.Inf(-1))
	}
	return Dual{}
}

// restart is the accumulator value right after a reset at sample x.
func (k Kind) restart(x Dual) Dual {
	if k.extremum() {
		return x
	}
	return Dual{}
}

// better reports whether candidate replaces best. Ties go to the candidate.
func (k Kind) better(candidate, best Dual) bool {
	if k == KindMin || k == KindMinT {
		return candidate.V <= best.V
	}
	return candidate.V >= best.V
}

// accumulate folds the segment [tPrev, t] into acc.
func (k Kind) accumulate(acc Dual, seg Segment) Dual {
	if k.extremum() {
		if k.better(seg.X, acc) {
			return seg.X
		}
		return acc
	}

	a, b := seg.XPrev, seg.X
	if k.squared() {
		a, b = a.Mul(a), b.Mul(b)
	}
	h := seg.T.Sub(seg.TPrev)
	return acc.Add(h.Mul(a.Add(b)).Scale(0.5))
}

// finalize turns the accumulator into the reported statistic. duration is
// the elapsed run time, period the window length; xFinal is the tracked
// value at the last sample.
func (k Kind) finalize(acc, duration, period, xFinal Dual) Dual {
	switch k {
	case KindMin, KindMax, KindMinT, KindMaxT:
		return acc
	case KindAvg, KindRMS:
		if duration.V == 0 {
			return Dual{}
		}
		m := acc.Div(duration)
		if k == KindRMS {
			return m.Sqrt()
		}
		return m
	case KindAvgT, KindRMST:
		if period.V == 0 {
			return Dual{}
		}
		T := period.V
		x := xFinal
		if k == KindRMST {
			x = xFinal.Mul(xFinal)
		}
		m := Dual{V: acc.V / T, D: acc.D / T}
		m.D += (x.V - m.V) / T * period.D
		if k == KindRMST {
			return m.Sqrt()
		}
		return m
	}
	return acc
}
