package viz

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Line is one named curve of a figure.
type Line struct {
	Name string
	X, Y []float64
}

// SavePNG draws lines on a single axis and writes the figure to filename.
// The format follows the file extension (png, svg, pdf).
func SavePNG(filename, title, xlabel, ylabel string, lines ...Line) error {
	if len(lines) == 0 {
		return fmt.Errorf("plot %q: no lines", title)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())

	for i, l := range lines {
		if len(l.X) != len(l.Y) || len(l.X) == 0 {
			return fmt.Errorf("plot %q: line %q has %d x and %d y values", title, l.Name, len(l.X), len(l.Y))
		}
		pts := make(plotter.XYs, len(l.X))
		for j := range l.X {
			pts[j].X = l.X[j]
			pts[j].Y = l.Y[j]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("plot %q: %w", title, err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(i)
		p.Add(line)
		if l.Name != "" {
			p.Legend.Add(l.Name, line)
		}
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	return p.Save(8*vg.Inch, 5*vg.Inch, filename)
}

// TraceLines returns the named trace series as curves against time.
func TraceLines(tr *Trace, names ...string) ([]Line, error) {
	lines := make([]Line, 0, len(names))
	for _, name := range names {
		s, err := tr.Series(name)
		if err != nil {
			return nil, err
		}
		lines = append(lines, Line{Name: name, X: tr.T, Y: s})
	}
	return lines, nil
}
