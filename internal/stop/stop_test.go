package stop

import (
	"errors"
	"testing"

	"github.com/san-kum/dynsens/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var names = []string{"iL", "vC", "phase"}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"seuil", Threshold},
		{"THRESHOLD", Threshold},
		{"temps_final", FinalTime},
		{"final_time", FinalTime},
		{"rp", Predicate},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseKind("forever")
	assert.True(t, errors.Is(err, dynamo.ErrUnknownStop))
}

func TestValidate(t *testing.T) {
	always := func(_, _ float64, _ map[string]float64) bool { return true }

	tests := []struct {
		name    string
		cond    Condition
		wantErr error
	}{
		{"threshold ok", Seuil("vC", 1), nil},
		{"threshold unknown var", Seuil("x", 1), dynamo.ErrUnknownVariable},
		{"final ok", TempsFinal(5), nil},
		{"final zero", TempsFinal(0), nil},
		{"predicate ok", NewPredicate("rp", always, "phase"), nil},
		{"predicate default phase", NewPredicate("rp", always, ""), nil},
		{"predicate unknown phase", NewPredicate("rp", always, "theta"), dynamo.ErrUnknownVariable},
		{"unknown kind", Condition{Kind: Kind(9)}, dynamo.ErrUnknownStop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cond.Validate(names)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	assert.Error(t, TempsFinal(-1).Validate(names))
	assert.Error(t, NewPredicate("rp", nil, "").Validate(names))
}

func TestSignalIndex(t *testing.T) {
	always := func(_, _ float64, _ map[string]float64) bool { return true }

	assert.Equal(t, 1, Seuil("vC", 0).SignalIndex(names))
	assert.Equal(t, -1, TempsFinal(1).SignalIndex(names))
	assert.Equal(t, 2, NewPredicate("rp", always, "").SignalIndex(names))
	assert.Equal(t, 0, NewPredicate("rp", always, "iL").SignalIndex(names))
}

func TestCrossed(t *testing.T) {
	assert.False(t, Crossed(1, 0.5))
	assert.False(t, Crossed(-1, -0.5))
	assert.True(t, Crossed(1, -0.5))
	assert.True(t, Crossed(-1, 2))
	assert.True(t, Crossed(0.1, 0))
}

func TestClipAndLimit(t *testing.T) {
	c := TempsFinal(5)

	alpha, clipped := c.Clip(4, 4.5)
	assert.False(t, clipped)
	assert.Equal(t, 1.0, alpha)

	alpha, clipped = c.Clip(4, 6)
	assert.True(t, clipped)
	assert.InDelta(t, 0.5, alpha, 1e-15)

	assert.Equal(t, 0.5, c.Limit(4.5, 2))
	assert.Equal(t, 0.1, c.Limit(1, 0.1))
	assert.Equal(t, 0.0, c.Limit(5, 0.1))

	s := Seuil("vC", 0)
	_, clipped = s.Clip(4, 6)
	assert.False(t, clipped)
	assert.Equal(t, 3.0, s.Limit(100, 3))
}

func TestOffsetAndString(t *testing.T) {
	c := Seuil("vC", 2)
	assert.Equal(t, -0.5, c.Offset(dynamo.State{0, 1.5, 0}, 1))
	assert.Equal(t, "seuil(vC=2)", c.String())
	assert.Equal(t, "temps_final(5)", TempsFinal(5).String())
}
