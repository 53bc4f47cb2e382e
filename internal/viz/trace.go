package viz

import (
	"fmt"

	"github.com/san-kum/dynsens/internal/dynamo"
)

// Trace records the samples a run reports to its observer. It is the only
// place trajectories exist, and only for display.
type Trace struct {
	Names []string
	T     []float64
	X     [][]float64
	Y     [][]float64
	every int
	seen  int
}

// NewTrace keeps one sample in every, plus the first.
func NewTrace(names []string, every int) *Trace {
	if every < 1 {
		every = 1
	}
	return &Trace{Names: names, every: every}
}

// Record has the signature of sim.Observer.
func (tr *Trace) Record(t float64, x, y dynamo.State) {
	tr.seen++
	if (tr.seen-1)%tr.every != 0 {
		return
	}
	tr.T = append(tr.T, t)
	tr.X = append(tr.X, x.Clone())
	tr.Y = append(tr.Y, y.Clone())
}

func (tr *Trace) Len() int { return len(tr.T) }

// Series returns a state by name, or an output as "y[i]".
func (tr *Trace) Series(name string) ([]float64, error) {
	if i := dynamo.Index(tr.Names, name); i >= 0 {
		return column(tr.X, i), nil
	}
	var i int
	if _, err := fmt.Sscanf(name, "y[%d]", &i); err == nil && len(tr.Y) > 0 && i >= 0 && i < len(tr.Y[0]) {
		return column(tr.Y, i), nil
	}
	return nil, fmt.Errorf("no series %q in trace of %v", name, tr.Names)
}

func column(rows [][]float64, j int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r[j]
	}
	return out
}
