package models

import (
	"fmt"

	"github.com/san-kum/dynsens/internal/dynamo"
)

type Model interface {
	dynamo.System
	dynamo.Linearized
	ParamNames() []string
	DefaultParams() []float64
	DefaultState() dynamo.State
}

// Params returns m's default parameters with the named overrides applied.
func Params(m Model, overrides map[string]float64) ([]float64, error) {
	names := m.ParamNames()
	p := append([]float64(nil), m.DefaultParams()...)
	for name, v := range overrides {
		i := dynamo.Index(names, name)
		if i < 0 {
			return nil, fmt.Errorf("model has no parameter %q (have %v)", name, names)
		}
		p[i] = v
	}
	return p, nil
}

// ParamMap pairs parameter names with values.
func ParamMap(m Model, p []float64) map[string]float64 {
	out := make(map[string]float64, len(p))
	for i, name := range m.ParamNames() {
		if i < len(p) {
			out[name] = p[i]
		}
	}
	return out
}

// tangentOf returns dp[i], treating a missing direction as zero.
func tangentOf(dp []float64, i int) float64 {
	if i < len(dp) {
		return dp[i]
	}
	return 0
}

// identity is the output map of models that observe their full state.
func identity(x dynamo.State) dynamo.State { return x.Clone() }

func identityJVP(dx dynamo.State) dynamo.State { return dx.Clone() }
