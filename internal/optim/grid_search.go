package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/dynsens/internal/experiment"
	"github.com/sirupsen/logrus"
)

// Point is an evaluated parameter assignment.
type Point struct {
	Params map[string]float64
	Value  float64
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Search evaluates objective on every grid point and returns the smallest.
// Points whose experiment cannot be built or run are logged and skipped.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	objective string,
) (*Point, int, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, fmt.Errorf("grid: %d parameters, %d ranges", len(g.paramNames), len(g.ranges))
	}

	best := &Point{Value: math.Inf(1)}
	evaluated := 0
	err := g.searchRecursive(ctx, 0, make(map[string]float64), buildExperiment, objective, best, &evaluated)
	if err != nil {
		return nil, evaluated, err
	}
	if best.Params == nil {
		return nil, evaluated, fmt.Errorf("grid: no point of %d evaluated", evaluated)
	}
	return best, evaluated, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	buildExperiment func(map[string]float64) (*experiment.Experiment, error),
	objective string,
	best *Point,
	evaluated *int,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		exp, err := buildExperiment(current)
		if err != nil {
			logrus.Warnf("optim: skipping %v: %v", current, err)
			return nil
		}
		result, err := exp.Run(ctx)
		if err != nil {
			logrus.Warnf("optim: skipping %v: %v", current, err)
			return nil
		}
		*evaluated++

		val, err := Value(result.Ts, result.Constraints, objective)
		if err != nil {
			return err
		}
		if val < best.Value {
			best.Value = val
			best.Params = make(map[string]float64, len(current))
			for k, v := range current {
				best.Params[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, buildExperiment, objective, best, evaluated); err != nil {
			return err
		}
	}
	return nil
}

// Value picks an objective out of a run: "ts" for the stop time, otherwise
// a constraint by name.
func Value(ts float64, constraints map[string]float64, objective string) (float64, error) {
	if objective == "ts" {
		return ts, nil
	}
	v, ok := constraints[objective]
	if !ok {
		return 0, fmt.Errorf("no objective %q: the run has no such constraint", objective)
	}
	return v, nil
}
