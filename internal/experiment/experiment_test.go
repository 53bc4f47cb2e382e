package experiment

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/dynsens/internal/config"
	"github.com/san-kum/dynsens/internal/dynamo"
	"github.com/san-kum/dynsens/internal/sens"
	"github.com/san-kum/dynsens/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"buck", "decay", "duffing", "lorenz", "oscillator", "ramp", "vanderpol"}, r.ListModels())
	assert.Equal(t, []string{"euler", "rk4", "rk45"}, r.ListIntegrators())

	_, err := r.GetModel("pendulum")
	assert.Error(t, err)

	s, err := r.GetIntegrator("")
	require.NoError(t, err)
	assert.Equal(t, "rk45", s.Name())

	_, err = r.GetIntegrator("verlet")
	assert.Error(t, err)
}

func TestEveryPresetBuilds(t *testing.T) {
	r := NewRegistry()
	for model, presets := range config.Presets {
		for name := range presets {
			_, err := New(config.GetPreset(model, name), r)
			assert.NoError(t, err, "%s/%s", model, name)
		}
	}
}

func TestNewResolvesTangent(t *testing.T) {
	cfg := config.GetPreset("oscillator", "quarter")
	cfg.Params = map[string]float64{"k": 4}
	cfg.Tangent.DX0 = []float64{1, 0}

	e, err := New(cfg, NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 0.5, 1}, e.Params)
	assert.Equal(t, []float64{1, 0, 0}, e.DParams)
	assert.Equal(t, dynamo.State{1, 0}, e.DX0)
}

func TestNewErrors(t *testing.T) {
	r := NewRegistry()

	cfg := config.DefaultConfig()
	cfg.Model = "pendulum"
	_, err := New(cfg, r)
	assert.Error(t, err)

	cfg = config.DefaultConfig()
	cfg.X0 = []float64{1, 2}
	_, err = New(cfg, r)
	assert.True(t, errors.Is(err, dynamo.ErrDimensionMismatch))

	cfg = config.DefaultConfig()
	cfg.Tangent.DParams = map[string]float64{"tau": 1}
	_, err = New(cfg, r)
	assert.Error(t, err)

	cfg = config.DefaultConfig()
	cfg.Params = map[string]float64{"tau": 1}
	_, err = New(cfg, r)
	assert.Error(t, err)
}

func TestRunHalfLife(t *testing.T) {
	e, err := New(config.GetPreset("decay", "half-life"), NewRegistry())
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, math.Ln2, res.Ts, 1e-3)

	tr, err := e.RunTangent(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, -math.Ln2, tr.DTs, 1e-3)
}

func TestSweep(t *testing.T) {
	e, err := New(config.GetPreset("ramp", "linear"), NewRegistry())
	require.NoError(t, err)

	calls := 0
	points, err := e.Sweep(context.Background(), "k", sim.Linspace(1, 3, 3), func(done, total int) {
		calls++
		assert.Equal(t, 3, total)
	})
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 3, calls)

	for _, p := range points {
		// avg over [0, 5] of k t is 2.5 k
		assert.InDelta(t, 2.5*p.Value, p.Result.Constraints["avg"], 1e-9)
		assert.InDelta(t, 2.5, p.Result.DConstraints["avg"], 1e-9)
	}

	_, err = e.Sweep(context.Background(), "nope", []float64{1}, nil)
	assert.Error(t, err)

	idx, err := e.ParamIndex("period")
	require.NoError(t, err)
	assert.Equal(t, sim.PeriodParam, idx)
}

func TestHalfLifeTangentMatchesFiniteDifference(t *testing.T) {
	e, err := New(config.GetPreset("decay", "half-life"), NewRegistry())
	require.NoError(t, err)
	e.Options.MaxStep = 1e-3

	report, err := sens.Check(context.Background(), e.Problem(), e.Direction(), sens.DefaultStep)
	require.NoError(t, err)
	assert.True(t, report.OK(1e-3), "worst %s at %g", report.Worst, report.MaxRel)
	assert.Equal(t, e.DParams, e.Direction().DParams)
}
