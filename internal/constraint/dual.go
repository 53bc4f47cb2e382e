package constraint

import "math"

// Dual is a value with its first-order tangent. Every accumulator rule is
// written once over Dual, so the same code yields the statistic and its
// derivative; in a values-only run D stays zero.
type Dual struct {
	V, D float64
}

func Const(v float64) Dual { return Dual{V: v} }

func (a Dual) Add(b Dual) Dual { return Dual{a.V + b.V, a.D + b.D} }

func (a Dual) Sub(b Dual) Dual { return Dual{a.V - b.V, a.D - b.D} }

func (a Dual) Mul(b Dual) Dual { return Dual{a.V * b.V, a.D*b.V + a.V*b.D} }

func (a Dual) Scale(s float64) Dual { return Dual{a.V * s, a.D * s} }

func (a Dual) Div(b Dual) Dual {
	return Dual{a.V / b.V, (a.D*b.V - a.V*b.D) / (b.V * b.V)}
}

// Sqrt has a zero tangent at zero rather than an infinite one.
func (a Dual) Sqrt() Dual {
	v := math.Sqrt(a.V)
	if v == 0 {
		return Dual{}
	}
	return Dual{v, a.D / (2 * v)}
}
