package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
)

const (
	chartHeight = 12
	chartWidth  = 70
)

// Chart plots one or more series of equal length as an ASCII line chart.
func Chart(caption string, series ...[]float64) (string, error) {
	if len(series) == 0 || len(series[0]) == 0 {
		return "", fmt.Errorf("chart %q: no data", caption)
	}
	n := len(series[0])
	for i, s := range series {
		if len(s) != n {
			return "", fmt.Errorf("chart %q: series %d has %d points, want %d", caption, i, len(s), n)
		}
	}
	width := min(chartWidth, max(n, 2))
	opts := []asciigraph.Option{
		asciigraph.Height(chartHeight),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
		asciigraph.Precision(3),
	}
	if len(series) == 1 {
		return asciigraph.Plot(series[0], opts...), nil
	}
	return asciigraph.PlotMany(series, opts...), nil
}

// TraceChart plots the named series of a trace against its samples.
func TraceChart(tr *Trace, names ...string) (string, error) {
	series := make([][]float64, 0, len(names))
	for _, name := range names {
		s, err := tr.Series(name)
		if err != nil {
			return "", err
		}
		series = append(series, s)
	}
	if tr.Len() == 0 {
		return "", fmt.Errorf("empty trace")
	}
	caption := fmt.Sprintf("%v over t in [%.4g, %.4g]", names, tr.T[0], tr.T[tr.Len()-1])
	return Chart(caption, series...)
}
