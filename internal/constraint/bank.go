package constraint

import (
	"fmt"

	"github.com/san-kum/dynsens/internal/dynamo"
)

// Bank holds the live accumulators of one run.
type Bank struct {
	names []string
	specs []Spec
	idx   []int
	acc   []Dual
}

func NewBank(set Set, stateNames []string) (*Bank, error) {
	if err := set.Validate(stateNames); err != nil {
		return nil, err
	}
	b := &Bank{names: set.Names()}
	for _, name := range b.names {
		spec := set[name]
		b.specs = append(b.specs, spec)
		b.idx = append(b.idx, dynamo.Index(stateNames, spec.Var))
	}
	b.acc = make([]Dual, len(b.names))
	return b, nil
}

// at pairs x[i] with its tangent; a nil tangent means a values-only run.
func at(x, dx dynamo.State, i int) Dual {
	if dx == nil {
		return Const(x[i])
	}
	return Dual{x[i], dx[i]}
}

func (b *Bank) Init(x, dx dynamo.State, period Dual) {
	for i, spec := range b.specs {
		b.acc[i] = spec.Init(at(x, dx, b.idx[i]), period)
	}
}

// Step folds the step (tPrev, xPrev) -> (t, x) into every accumulator.
func (b *Bank) Step(tPrev, t Dual, xPrev, dxPrev, x, dx dynamo.State, period Dual) {
	for i, spec := range b.specs {
		seg := Segment{
			TPrev: tPrev,
			T:     t,
			XPrev: at(xPrev, dxPrev, b.idx[i]),
			X:     at(x, dx, b.idx[i]),
		}
		b.acc[i] = spec.Step(b.acc[i], seg, period)
	}
}

// Raw returns the unfinalized accumulator values.
func (b *Bank) Raw() map[string]float64 {
	out := make(map[string]float64, len(b.names))
	for i, name := range b.names {
		out[name] = b.acc[i].V
	}
	return out
}

// Finalize returns every statistic and its tangent at the end of a run of
// the given duration.
func (b *Bank) Finalize(duration Dual, x, dx dynamo.State, period Dual) (map[string]float64, map[string]float64) {
	vals := make(map[string]float64, len(b.names))
	tans := make(map[string]float64, len(b.names))
	for i, spec := range b.specs {
		d := spec.Finalize(b.acc[i], duration, period, at(x, dx, b.idx[i]))
		vals[b.names[i]] = d.V
		tans[b.names[i]] = d.D
	}
	return vals, tans
}

func (b *Bank) String() string {
	return fmt.Sprintf("bank%v", b.names)
}
