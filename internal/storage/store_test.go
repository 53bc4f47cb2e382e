package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/dynsens/internal/dynamo"
	"github.com/san-kum/dynsens/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *dynamo.TangentResult {
	return &dynamo.TangentResult{
		Result: dynamo.Result{
			Ts:          0.69,
			X:           dynamo.State{0.5},
			Y:           dynamo.State{0.5},
			Constraints: map[string]float64{"avg": 0.72},
			Steps:       40,
		},
		DTs:          -0.69,
		DX:           dynamo.State{0},
		DY:           dynamo.State{0},
		DConstraints: map[string]float64{"avg": -0.1},
	}
}

func TestSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	tr := sampleResult()
	names := []string{"x"}
	summary := Summarize("decay", "rk45", names, map[string]float64{"k": 1}, "seuil(x=0.5)", 0, &tr.Result).
		WithTangent(names, tr, nil, map[string]float64{"k": 1}, 0)

	id, err := st.Save(summary)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	meta, err := st.Load(id)
	require.NoError(t, err)
	assert.Equal(t, id, meta.ID)
	assert.Equal(t, KindRun, meta.Kind)
	assert.Equal(t, "decay", meta.Model)
	assert.Equal(t, 0.5, meta.State["x"])
	assert.Equal(t, 0.72, meta.Constraints["avg"])
	require.NotNil(t, meta.Tangent)
	assert.Equal(t, -0.69, meta.Tangent.DTs)
	assert.Equal(t, -0.1, meta.Tangent.DConstraints["avg"])
}

func TestListSkipsJunk(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	require.NoError(t, st.Init())

	_, err := st.Save(Summarize("ramp", "rk45", []string{"x"}, nil, "temps_final(5)", 0, &sampleResult().Result))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "broken"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken", metadataFile), []byte("{"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.txt"), nil, 0644))

	runs, err := st.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "ramp", runs[0].Model)
}

func TestListMissingDir(t *testing.T) {
	runs, err := New(filepath.Join(t.TempDir(), "nope")).List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSweepRoundTrip(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	points := []sim.SweepPoint{
		{Value: 1, Result: sampleResult()},
		{Value: 2, Result: sampleResult()},
	}
	table := NewSweepTable(points)
	assert.Equal(t, []string{"value", "ts", "dts", "avg", "davg"}, table.Columns)

	id, err := st.SaveSweep(RunSummary{Model: "decay", SweepParam: "k"}, table)
	require.NoError(t, err)

	loaded, err := st.LoadSweep(id)
	require.NoError(t, err)
	assert.Equal(t, table.Columns, loaded.Columns)
	assert.Equal(t, table.Rows, loaded.Rows)
	assert.Equal(t, []float64{1, 2}, loaded.Column("value"))
	assert.Nil(t, loaded.Column("missing"))

	meta, err := st.Load(id)
	require.NoError(t, err)
	assert.Equal(t, KindSweep, meta.Kind)
	assert.Equal(t, 2, meta.SweepPoints)
}

func TestLoadErrors(t *testing.T) {
	st := New(t.TempDir())
	_, err := st.Load("missing")
	assert.Error(t, err)
	_, err = st.LoadSweep("missing")
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, Summarize("decay", "rk45", []string{"x"}, nil, "s", 0, &sampleResult().Result)))

	var back RunSummary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, 0.69, back.Ts)
}
