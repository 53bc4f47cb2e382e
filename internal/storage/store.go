package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/dynsens/internal/dynamo"
	"github.com/san-kum/dynsens/internal/sim"
)

const (
	metadataFile = "metadata.json"
	sweepFile    = "sweep.csv"

	KindRun   = "run"
	KindSweep = "sweep"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunSummary is what gets persisted of a run: its setup and terminal
// values. Trajectories are never stored.
type RunSummary struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	Model       string             `json:"model"`
	Integrator  string             `json:"integrator"`
	Stop        string             `json:"stop"`
	Timestamp   time.Time          `json:"timestamp"`
	Period      float64            `json:"period,omitempty"`
	Params      map[string]float64 `json:"params,omitempty"`
	Ts          float64            `json:"ts"`
	State       map[string]float64 `json:"state,omitempty"`
	Output      []float64          `json:"output,omitempty"`
	Constraints map[string]float64 `json:"constraints,omitempty"`
	Mode        int                `json:"mode"`
	Steps       int                `json:"steps"`
	Rejected    int                `json:"rejected"`
	Tangent     *TangentSummary    `json:"tangent,omitempty"`
	SweepParam  string             `json:"sweep_param,omitempty"`
	SweepPoints int                `json:"sweep_points,omitempty"`
}

type TangentSummary struct {
	DX0          []float64          `json:"dx0,omitempty"`
	DParams      map[string]float64 `json:"dparams,omitempty"`
	DPeriod      float64            `json:"dperiod,omitempty"`
	DTs          float64            `json:"dts"`
	DState       map[string]float64 `json:"dstate,omitempty"`
	DOutput      []float64          `json:"doutput,omitempty"`
	DConstraints map[string]float64 `json:"dconstraints,omitempty"`
}

func named(names []string, v []float64) map[string]float64 {
	if v == nil {
		return nil
	}
	out := make(map[string]float64, len(v))
	for i, name := range names {
		if i < len(v) {
			out[name] = v[i]
		}
	}
	return out
}

// Summarize builds the summary of a finished run. names are the state names.
func Summarize(model, integrator string, names []string, params map[string]float64, stop string, period float64, res *dynamo.Result) RunSummary {
	return RunSummary{
		Kind:        KindRun,
		Model:       model,
		Integrator:  integrator,
		Stop:        stop,
		Period:      period,
		Params:      params,
		Ts:          res.Ts,
		State:       named(names, res.X),
		Output:      res.Y,
		Constraints: res.Constraints,
		Mode:        res.Mode,
		Steps:       res.Steps,
		Rejected:    res.Rejected,
	}
}

// WithTangent attaches the tangent outputs of tr and the direction that
// produced them.
func (r RunSummary) WithTangent(names []string, tr *dynamo.TangentResult, dx0 []float64, dparams map[string]float64, dperiod float64) RunSummary {
	r.Tangent = &TangentSummary{
		DX0:          dx0,
		DParams:      dparams,
		DPeriod:      dperiod,
		DTs:          tr.DTs,
		DState:       named(names, tr.DX),
		DOutput:      tr.DY,
		DConstraints: tr.DConstraints,
	}
	return r
}

func (s *Store) newRun(model string) (string, string, error) {
	runID := fmt.Sprintf("%s_%d", model, time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", "", err
	}
	return runID, runDir, nil
}

func writeMeta(runDir string, meta RunSummary) error {
	f, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteJSON(f, meta)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Save persists a run summary and returns its id.
func (s *Store) Save(summary RunSummary) (string, error) {
	runID, runDir, err := s.newRun(summary.Model)
	if err != nil {
		return "", err
	}
	summary.ID = runID
	if summary.Kind == "" {
		summary.Kind = KindRun
	}
	if summary.Timestamp.IsZero() {
		summary.Timestamp = time.Now()
	}
	if err := writeMeta(runDir, summary); err != nil {
		return "", err
	}
	return runID, nil
}

// SweepTable is a sweep as stored on disk: one row per swept value.
type SweepTable struct {
	Columns []string
	Rows    [][]float64
}

// Column returns the named column, or nil.
func (t *SweepTable) Column(name string) []float64 {
	j := dynamo.Index(t.Columns, name)
	if j < 0 {
		return nil
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[j]
	}
	return out
}

// SweepColumns lays out a sweep table: the swept value, the stop time, then
// every constraint followed by its derivative.
func SweepColumns(points []sim.SweepPoint) []string {
	cols := []string{"value", "ts", "dts"}
	if len(points) == 0 {
		return cols
	}
	names := make([]string, 0, len(points[0].Result.Constraints))
	for name := range points[0].Result.Constraints {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cols = append(cols, name, "d"+name)
	}
	return cols
}

func NewSweepTable(points []sim.SweepPoint) *SweepTable {
	t := &SweepTable{Columns: SweepColumns(points)}
	for _, p := range points {
		row := []float64{p.Value, p.Result.Ts, p.Result.DTs}
		for j := 3; j < len(t.Columns); j += 2 {
			name := t.Columns[j]
			row = append(row, p.Result.Constraints[name], p.Result.DConstraints[name])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// SaveSweep persists the sweep table next to a summary of its setup.
func (s *Store) SaveSweep(summary RunSummary, table *SweepTable) (string, error) {
	runID, runDir, err := s.newRun(summary.Model)
	if err != nil {
		return "", err
	}
	summary.ID = runID
	summary.Kind = KindSweep
	summary.SweepPoints = len(table.Rows)
	if summary.Timestamp.IsZero() {
		summary.Timestamp = time.Now()
	}
	if err := writeMeta(runDir, summary); err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(runDir, sweepFile))
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(table.Columns); err != nil {
		return "", err
	}
	for _, row := range table.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return runID, nil
}

// List returns every stored summary, newest first.
func (s *Store) List() ([]RunSummary, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunSummary{}, nil
		}
		return nil, err
	}

	runs := make([]RunSummary, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunSummary, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}
	var meta RunSummary
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadSweep(runID string) (*SweepTable, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, sweepFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("sweep %s: %w", runID, err)
	}
	if len(records) == 0 {
		return &SweepTable{}, nil
	}

	t := &SweepTable{Columns: records[0]}
	for i, record := range records[1:] {
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("sweep %s row %d: %w", runID, i+1, err)
			}
			row[j] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
