package automation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/san-kum/dynsens/internal/config"
	"github.com/san-kum/dynsens/internal/experiment"
	"github.com/san-kum/dynsens/internal/models"
	"github.com/san-kum/dynsens/internal/sens"
	"github.com/san-kum/dynsens/internal/storage"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one run: a preset or an inline config, optionally with
// tangents.
type ScenarioStep struct {
	Name    string         `yaml:"name"`
	Preset  string         `yaml:"preset,omitempty"`
	Config  *config.Config `yaml:"config,omitempty"`
	Model   string         `yaml:"model,omitempty"`
	Tangent bool           `yaml:"tangent,omitempty"`
	Save    bool           `yaml:"save,omitempty"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%s: scenario has no steps", path)
	}
	return &scenario, nil
}

func (s ScenarioStep) config() (*config.Config, error) {
	switch {
	case s.Preset != "" && s.Config != nil:
		return nil, fmt.Errorf("preset and config are exclusive")
	case s.Preset != "":
		cfg := config.GetPreset(s.Model, s.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %s/%s (available: %v)", s.Model, s.Preset, config.ListPresets(s.Model))
		}
		return cfg, nil
	case s.Config != nil:
		return s.Config.Clone(), nil
	}
	return nil, fmt.Errorf("needs a preset or a config")
}

// RunScenario executes every step in order and returns their summaries.
// Steps marked save are stored when store is not nil.
func RunScenario(ctx context.Context, scenario *Scenario, registry *experiment.Registry, store *storage.Store) ([]storage.RunSummary, error) {
	results := make([]storage.RunSummary, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		logrus.Infof("scenario %s: step %d/%d %s", scenario.Name, i+1, len(scenario.Steps), step.Name)

		cfg, err := step.config()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		exp, err := experiment.New(cfg, registry)
		if err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		names := exp.Model.Names()
		params := models.ParamMap(exp.Model, exp.Params)
		stopName := exp.Options.Stop.String()
		var summary storage.RunSummary
		if step.Tangent {
			tr, err := exp.RunTangent(ctx)
			if err != nil {
				return results, fmt.Errorf("step %d run: %w", i+1, err)
			}
			summary = storage.Summarize(cfg.Model, cfg.Integrator, names, params, stopName, cfg.Period, &tr.Result).
				WithTangent(names, tr, exp.DX0, models.ParamMap(exp.Model, exp.DParams), exp.DPeriod)
		} else {
			res, err := exp.Run(ctx)
			if err != nil {
				return results, fmt.Errorf("step %d run: %w", i+1, err)
			}
			summary = storage.Summarize(cfg.Model, cfg.Integrator, names, params, stopName, cfg.Period, res)
		}

		if step.Save && store != nil {
			id, err := store.Save(summary)
			if err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
			summary.ID = id
		}
		results = append(results, summary)
	}
	return results, nil
}

// MonteCarloConfig perturbs the initial state uniformly by up to
// Perturbation in every component.
type MonteCarloConfig struct {
	Perturbation float64
	NumTrials    int
	Seed         int64
}

// OutputStats summarizes one flattened output over the trials, next to the
// spread predicted by the tangents at the nominal point.
type OutputStats struct {
	Label     string
	Nominal   float64
	Mean      float64
	StdDev    float64
	Predicted float64
}

// RunMonteCarlo runs the experiment from randomly perturbed initial states.
// Predicted is the first-order standard deviation sqrt(sum_j (J_ij a)^2 / 3)
// for independent uniform perturbations of half-width a.
func RunMonteCarlo(ctx context.Context, exp *experiment.Experiment, cfg MonteCarloConfig) ([]OutputStats, error) {
	if cfg.NumTrials < 2 || cfg.Perturbation <= 0 {
		return nil, fmt.Errorf("monte carlo needs at least 2 trials and a positive perturbation, got %d and %g", cfg.NumTrials, cfg.Perturbation)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	if cfg.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	nominal, err := exp.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("nominal run: %w", err)
	}
	labels := sens.Labels(exp.Model, nominal)
	base := sens.Flatten(nominal)

	jac, _, _, err := sens.Jacobian(ctx, exp.Problem())
	if err != nil {
		return nil, fmt.Errorf("nominal tangents: %w", err)
	}

	samples := make([][]float64, len(labels))
	for trial := 0; trial < cfg.NumTrials; trial++ {
		x0 := exp.X0.Clone()
		for i := range x0 {
			x0[i] += (rng.Float64() - 0.5) * 2 * cfg.Perturbation
		}
		run := *exp
		run.X0 = x0
		res, err := run.Run(ctx)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", trial, err)
		}
		flat := sens.Flatten(res)
		if len(flat) != len(labels) {
			return nil, fmt.Errorf("trial %d: %d outputs, nominal has %d", trial, len(flat), len(labels))
		}
		for i, v := range flat {
			samples[i] = append(samples[i], v)
		}
		if (trial+1)%10 == 0 {
			logrus.Infof("monte carlo: %d/%d trials complete", trial+1, cfg.NumTrials)
		}
	}

	out := make([]OutputStats, len(labels))
	for i, label := range labels {
		mean, std := stat.MeanStdDev(samples[i], nil)
		variance := 0.0
		// the leading columns are the initial state directions
		for j := range exp.X0 {
			g := jac.At(i, j) * cfg.Perturbation
			variance += g * g / 3
		}
		out[i] = OutputStats{Label: label, Nominal: base[i], Mean: mean, StdDev: std, Predicted: math.Sqrt(variance)}
	}
	return out, nil
}
