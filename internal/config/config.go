package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/san-kum/dynsens/internal/constraint"
	"github.com/san-kum/dynsens/internal/sim"
	"github.com/san-kum/dynsens/internal/stop"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel      = "decay"
	DefaultIntegrator = "rk45"
	DefaultH0         = sim.DefaultH0
	DefaultTol        = sim.DefaultTol
	DefaultMaxSteps   = sim.DefaultMaxSteps
	DefaultFinal      = 10.0
)

type Config struct {
	Model       string             `yaml:"model"`
	Integrator  string             `yaml:"integrator"`
	X0          []float64          `yaml:"x0,omitempty"`
	Params      map[string]float64 `yaml:"params,omitempty"`
	Period      float64            `yaml:"period"`
	H0          float64            `yaml:"h0"`
	Tol         float64            `yaml:"tol"`
	MaxStep     float64            `yaml:"max_step"`
	MaxSteps    int                `yaml:"max_steps"`
	Mode        int                `yaml:"mode"`
	Stop        StopConfig         `yaml:"stop"`
	Constraints []ConstraintConfig `yaml:"constraints,omitempty"`
	Regime      *RegimeConfig      `yaml:"regime,omitempty"`
	Tangent     TangentConfig      `yaml:"tangent"`
}

type StopConfig struct {
	Kind  string  `yaml:"kind"`
	Var   string  `yaml:"var,omitempty"`
	Level float64 `yaml:"level,omitempty"`
	Final float64 `yaml:"final,omitempty"`
}

type ConstraintConfig struct {
	Name   string  `yaml:"name"`
	Kind   string  `yaml:"kind"`
	Var    string  `yaml:"var"`
	Period float64 `yaml:"period,omitempty"`
	Gate   string  `yaml:"gate,omitempty"` // "", "even" or "odd"
	Hold   bool    `yaml:"hold,omitempty"`
}

// RegimeConfig drives the periodic steady-state stop.
type RegimeConfig struct {
	Periods int      `yaml:"periods"`
	Names   []string `yaml:"names"`
	Atol    float64  `yaml:"atol"`
}

type TangentConfig struct {
	DX0     []float64          `yaml:"dx0,omitempty"`
	DParams map[string]float64 `yaml:"dparams,omitempty"`
	DPeriod float64            `yaml:"dperiod,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      DefaultModel,
		Integrator: DefaultIntegrator,
		H0:         DefaultH0,
		Tol:        DefaultTol,
		MaxSteps:   DefaultMaxSteps,
		Stop:       StopConfig{Kind: "temps_final", Final: DefaultFinal},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy so presets can be customised in place.
func (c *Config) Clone() *Config {
	out := *c
	out.X0 = append([]float64(nil), c.X0...)
	out.Params = cloneMap(c.Params)
	out.Constraints = append([]ConstraintConfig(nil), c.Constraints...)
	if c.Regime != nil {
		r := *c.Regime
		r.Names = append([]string(nil), c.Regime.Names...)
		out.Regime = &r
	}
	out.Tangent.DX0 = append([]float64(nil), c.Tangent.DX0...)
	out.Tangent.DParams = cloneMap(c.Tangent.DParams)
	return &out
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Validate checks everything that can be checked without the model.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.H0 <= 0 {
		return fmt.Errorf("h0 must be positive, got %g", c.H0)
	}
	if c.Tol <= 0 {
		return fmt.Errorf("tol must be positive, got %g", c.Tol)
	}
	if c.MaxStep < 0 || c.Period < 0 || c.MaxSteps < 0 {
		return fmt.Errorf("max_step, period and max_steps must be non-negative")
	}

	kind, err := stop.ParseKind(c.Stop.Kind)
	if err != nil {
		return err
	}
	switch kind {
	case stop.Threshold:
		if c.Stop.Var == "" {
			return fmt.Errorf("stop %s needs a var", c.Stop.Kind)
		}
	case stop.FinalTime:
		if c.Stop.Final < 0 {
			return fmt.Errorf("stop final time must be non-negative, got %g", c.Stop.Final)
		}
	case stop.Predicate:
		if c.Regime == nil {
			return fmt.Errorf("stop %s needs a regime section", c.Stop.Kind)
		}
		if c.Period <= 0 {
			return fmt.Errorf("stop %s needs a positive period", c.Stop.Kind)
		}
		if len(c.Regime.Names) == 0 || c.Regime.Atol <= 0 {
			return fmt.Errorf("regime needs names and a positive atol")
		}
	}

	seen := make(map[string]bool, len(c.Constraints))
	for _, cc := range c.Constraints {
		if cc.Name == "" {
			return fmt.Errorf("constraint on %q has no name", cc.Var)
		}
		if seen[cc.Name] {
			return fmt.Errorf("duplicate constraint %q", cc.Name)
		}
		seen[cc.Name] = true
		if _, err := constraint.ParseKind(cc.Kind); err != nil {
			return fmt.Errorf("constraint %q: %w", cc.Name, err)
		}
		if _, err := gate(cc.Gate); err != nil {
			return fmt.Errorf("constraint %q: %w", cc.Name, err)
		}
	}
	return nil
}

func gate(name string) (constraint.Gate, error) {
	switch strings.ToLower(name) {
	case "", "always":
		return nil, nil
	case "even":
		return constraint.EvenPeriods, nil
	case "odd":
		return constraint.OddPeriods, nil
	}
	return nil, fmt.Errorf("unknown gate %q", name)
}

// Plan turns the stop, constraint and regime sections into the stop
// condition and constraint set of a run.
func (c *Config) Plan() (stop.Condition, constraint.Set, error) {
	set := make(constraint.Set, len(c.Constraints))
	for _, cc := range c.Constraints {
		kind, err := constraint.ParseKind(cc.Kind)
		if err != nil {
			return stop.Condition{}, nil, fmt.Errorf("constraint %q: %w", cc.Name, err)
		}
		g, err := gate(cc.Gate)
		if err != nil {
			return stop.Condition{}, nil, fmt.Errorf("constraint %q: %w", cc.Name, err)
		}
		spec := constraint.Spec{Kind: kind, Var: cc.Var, Period: cc.Period}
		if g != nil {
			policy := constraint.ResetOnInactive
			if cc.Hold {
				policy = constraint.HoldOnInactive
			}
			spec = spec.Gated(g, policy)
		}
		set[cc.Name] = spec
	}

	kind, err := stop.ParseKind(c.Stop.Kind)
	if err != nil {
		return stop.Condition{}, nil, err
	}
	switch kind {
	case stop.Threshold:
		return stop.Seuil(c.Stop.Var, c.Stop.Level), set, nil
	case stop.FinalTime:
		return stop.TempsFinal(c.Stop.Final), set, nil
	}

	if c.Regime == nil {
		return stop.Condition{}, nil, fmt.Errorf("stop %s needs a regime section", c.Stop.Kind)
	}
	cond, regime, err := constraint.RegPerm(c.Period, c.Regime.Periods, c.Regime.Names, c.Regime.Atol)
	if err != nil {
		return stop.Condition{}, nil, err
	}
	merged, err := set.Merge(regime)
	if err != nil {
		return stop.Condition{}, nil, err
	}
	return cond, merged, nil
}
