package config

import (
	"math"
	"sort"
)

var Presets = map[string]map[string]*Config{
	"decay": {
		"half-life": {
			Model: "decay", Integrator: "rk45", H0: DefaultH0, Tol: DefaultTol, MaxSteps: DefaultMaxSteps,
			X0: []float64{1}, Params: map[string]float64{"k": 1},
			Stop:    StopConfig{Kind: "seuil", Var: "x", Level: 0.5},
			Tangent: TangentConfig{DParams: map[string]float64{"k": 1}},
		},
		"window": {
			Model: "decay", Integrator: "rk45", H0: DefaultH0, Tol: DefaultTol, MaxSteps: DefaultMaxSteps, MaxStep: 1e-2,
			X0:   []float64{2},
			Stop: StopConfig{Kind: "temps_final", Final: 3},
			Constraints: []ConstraintConfig{
				{Name: "avg", Kind: "moy", Var: "x"},
				{Name: "rms", Kind: "eff", Var: "x"},
			},
			Tangent: TangentConfig{DX0: []float64{1}},
		},
	},
	"ramp": {
		"linear": {
			Model: "ramp", Integrator: "rk45", H0: DefaultH0, Tol: DefaultTol, MaxSteps: DefaultMaxSteps,
			Stop: StopConfig{Kind: "temps_final", Final: 5},
			Constraints: []ConstraintConfig{
				{Name: "avg", Kind: "moy", Var: "x"},
				{Name: "peak", Kind: "max", Var: "x"},
			},
			Tangent: TangentConfig{DParams: map[string]float64{"k": 1}},
		},
	},
	"oscillator": {
		"quarter": {
			Model: "oscillator", Integrator: "rk45", H0: DefaultH0, Tol: DefaultTol, MaxSteps: DefaultMaxSteps,
			Stop:    StopConfig{Kind: "seuil", Var: "x", Level: 0},
			Tangent: TangentConfig{DParams: map[string]float64{"k": 1}},
		},
		"ring": {
			Model: "oscillator", Integrator: "rk45", H0: DefaultH0, Tol: DefaultTol, MaxSteps: DefaultMaxSteps, MaxStep: 1e-2,
			Stop: StopConfig{Kind: "temps_final", Final: 10},
			Constraints: []ConstraintConfig{
				{Name: "peak", Kind: "max", Var: "x"},
				{Name: "trough", Kind: "min", Var: "x"},
				{Name: "rms", Kind: "eff", Var: "v"},
			},
			Tangent: TangentConfig{DParams: map[string]float64{"c": 1}},
		},
	},
	"vanderpol": {
		"cycle": {
			Model: "vanderpol", Integrator: "rk45", H0: DefaultH0, Tol: DefaultTol, MaxSteps: DefaultMaxSteps, MaxStep: 1e-2,
			Stop: StopConfig{Kind: "temps_final", Final: 20},
			Constraints: []ConstraintConfig{
				{Name: "amplitude", Kind: "max", Var: "x"},
				{Name: "rms", Kind: "eff", Var: "y"},
			},
			Tangent: TangentConfig{DParams: map[string]float64{"mu": 1}},
		},
	},
	"duffing": {
		"forced": {
			Model: "duffing", Integrator: "rk45", H0: DefaultH0, Tol: DefaultTol, MaxSteps: DefaultMaxSteps, MaxStep: 1e-2,
			Period: 2 * math.Pi / 1.2,
			Stop:   StopConfig{Kind: "temps_final", Final: 40},
			Constraints: []ConstraintConfig{
				{Name: "cycle_avg", Kind: "moy_T", Var: "x"},
				{Name: "cycle_peak", Kind: "max_T", Var: "x"},
			},
			Tangent: TangentConfig{DParams: map[string]float64{"gamma": 1}},
		},
	},
	"lorenz": {
		"butterfly": {
			Model: "lorenz", Integrator: "rk45", H0: DefaultH0, Tol: DefaultTol, MaxSteps: DefaultMaxSteps,
			Stop: StopConfig{Kind: "temps_final", Final: 2},
			Constraints: []ConstraintConfig{
				{Name: "zmax", Kind: "max", Var: "z"},
			},
			Tangent: TangentConfig{DX0: []float64{1, 0, 0}},
		},
	},
	"buck": {
		"steady": {
			Model: "buck", Integrator: "rk45", H0: DefaultH0, Tol: DefaultTol, MaxSteps: DefaultMaxSteps,
			Period: 0.1, MaxStep: 5e-4,
			Stop:    StopConfig{Kind: "rp"},
			Regime:  &RegimeConfig{Periods: 4, Names: []string{"v"}, Atol: 1e-3},
			Tangent: TangentConfig{DParams: map[string]float64{"vin": 1}},
		},
		"startup": {
			Model: "buck", Integrator: "rk45", H0: DefaultH0, Tol: DefaultTol, MaxSteps: DefaultMaxSteps,
			Period: 0.1, MaxStep: 5e-4,
			Stop: StopConfig{Kind: "temps_final", Final: 3},
			Constraints: []ConstraintConfig{
				{Name: "overshoot", Kind: "max", Var: "v"},
				{Name: "ripple_avg", Kind: "moy_T", Var: "v"},
				{Name: "ripple_rms", Kind: "eff_T", Var: "i"},
			},
			Tangent: TangentConfig{DParams: map[string]float64{"R": 1}},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
