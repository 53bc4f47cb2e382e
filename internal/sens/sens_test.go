package sens

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/dynsens/internal/constraint"
	"github.com/san-kum/dynsens/internal/dynamo"
	"github.com/san-kum/dynsens/internal/models"
	"github.com/san-kum/dynsens/internal/sim"
	"github.com/san-kum/dynsens/internal/stop"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.ErrorLevel)
	m.Run()
}

func decayProblem(final float64) Problem {
	opts := sim.DefaultOptions()
	opts.Stop = stop.TempsFinal(final)
	opts.MaxStep = 1e-3
	opts.Constraints = constraint.Set{"avg": constraint.Moy("x"), "peak": constraint.Max("x")}
	return Problem{System: models.NewDecay(), X0: dynamo.State{2}, Params: []float64{0.5}, Options: opts}
}

func TestLabelsAndFlatten(t *testing.T) {
	p := decayProblem(1)
	res, err := sim.Simulate(context.Background(), p.System, p.X0, p.Params, p.Options)
	require.NoError(t, err)

	labels := Labels(p.System, res)
	assert.Equal(t, []string{"ts", "x.x", "y[0]", "c.avg", "c.peak"}, labels)

	flat := Flatten(res)
	require.Len(t, flat, len(labels))
	assert.Equal(t, 1.0, flat[0])
	assert.Equal(t, 2.0, flat[4])
}

func TestDirectionalDerivative(t *testing.T) {
	p := decayProblem(2)
	got, err := DirectionalDerivative(context.Background(), p, Direction{DParams: []float64{1}}, DefaultStep)
	require.NoError(t, err)

	// x(T) = x0 e^{-kT}
	want := -2 * 2 * math.Exp(-0.5*2)
	assert.InDelta(t, 0, got[0], 1e-9, "final time does not move")
	assert.InDelta(t, want, got[1], 1e-6)
	assert.InDelta(t, 0, got[4], 1e-9, "peak is x0")
}

func TestCheck(t *testing.T) {
	r, err := Check(context.Background(), decayProblem(2), Direction{DX0: dynamo.State{1}, DParams: []float64{0.3}}, DefaultStep)
	require.NoError(t, err)
	assert.True(t, r.OK(1e-5), "worst %s at %g", r.Worst, r.MaxRel)
	assert.Len(t, r.AbsErr, len(r.Labels))
}

func TestCheckThreshold(t *testing.T) {
	p := decayProblem(0)
	p.Options.Stop = stop.Seuil("x", 1)
	r, err := Check(context.Background(), p, Direction{DParams: []float64{1}}, DefaultStep)
	require.NoError(t, err)
	// ts = ln 2 / k
	assert.InDelta(t, -math.Ln2/0.25, r.Tangent[0], 1e-2)
	assert.True(t, r.OK(1e-3), "worst %s at %g", r.Worst, r.MaxRel)
}

func TestJacobian(t *testing.T) {
	jac, rows, cols, err := Jacobian(context.Background(), decayProblem(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"x0.x", "p[0]"}, cols)
	assert.Equal(t, "x.x", rows[1])

	r, c := jac.Dims()
	assert.Equal(t, len(rows), r)
	assert.Equal(t, 2, c)

	e := math.Exp(-1)
	assert.InDelta(t, e, jac.At(1, 0), 1e-7)
	assert.InDelta(t, -2*2*e, jac.At(1, 1), 1e-6)
	assert.InDelta(t, 1.0, jac.At(4, 0), 1e-12, "peak follows x0")
}

func TestJacobianEmpty(t *testing.T) {
	_, _, _, err := Jacobian(context.Background(), Problem{System: models.NewDecay()})
	assert.Error(t, err)
}
