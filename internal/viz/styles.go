package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/dynsens/internal/storage"
)

var (
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(0, 2)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ffff"))

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))

	MetricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	MetricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899")).
			Width(18)

	TangentValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffaa00"))

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#444466"))

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444"))

	SparkHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	SparkMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	SparkLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

func num(v float64) string {
	return fmt.Sprintf("%.6g", v)
}

// row renders "label  value" and, when the tangent is known, "  d: tangent".
func row(label string, v float64, d *float64) string {
	s := MetricLabel.Render(label) + MetricValue.Render(num(v))
	if d != nil {
		s += Subtle.Render("   d ") + TangentValue.Render(num(*d))
	}
	return s
}

func sortedNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func lookup(m map[string]float64, k string) *float64 {
	if m == nil {
		return nil
	}
	v, ok := m[k]
	if !ok {
		return nil
	}
	return &v
}

// Report renders a run summary as a panel. Tangent columns appear when the
// run carried one.
func Report(s storage.RunSummary) string {
	var b strings.Builder
	head := fmt.Sprintf("%s / %s", s.Model, s.Integrator)
	if s.ID != "" {
		head += "  " + Subtle.Render(s.ID)
	}
	b.WriteString(HeaderStyle.Render(Title.Render(head)))
	b.WriteString("\n")
	b.WriteString(MetricLabel.Render("stop") + s.Stop + "\n")
	if s.Period > 0 {
		b.WriteString(row("period", s.Period, nil) + "\n")
	}
	b.WriteString(MetricLabel.Render("steps") + fmt.Sprintf("%d (%d rejected), mode %d", s.Steps, s.Rejected, s.Mode) + "\n")

	tan := s.Tangent
	var dts *float64
	var dstate, dcons map[string]float64
	var dout []float64
	if tan != nil {
		dts = &tan.DTs
		dstate, dcons, dout = tan.DState, tan.DConstraints, tan.DOutput
	}

	b.WriteString("\n")
	b.WriteString(row("ts", s.Ts, dts) + "\n")
	for _, name := range sortedNames(s.State) {
		b.WriteString(row("x."+name, s.State[name], lookup(dstate, name)) + "\n")
	}
	for i, v := range s.Output {
		var d *float64
		if i < len(dout) {
			d = &dout[i]
		}
		b.WriteString(row(fmt.Sprintf("y[%d]", i), v, d) + "\n")
	}
	if len(s.Constraints) > 0 {
		b.WriteString("\n")
		for _, name := range sortedNames(s.Constraints) {
			b.WriteString(row(name, s.Constraints[name], lookup(dcons, name)) + "\n")
		}
	}
	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}

// SweepReport renders a sweep table with one line per swept value.
func SweepReport(title string, t *storage.SweepTable) string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render(Title.Render(title)))
	b.WriteString("\n")
	cell := lipgloss.NewStyle().Width(14)
	var head strings.Builder
	for _, c := range t.Columns {
		head.WriteString(cell.Render(c))
	}
	b.WriteString(MetricLabel.UnsetWidth().Render(head.String()) + "\n")
	for _, r := range t.Rows {
		var line strings.Builder
		for _, v := range r {
			line.WriteString(cell.Render(num(v)))
		}
		b.WriteString(line.String() + "\n")
	}
	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}

// ProgressBar renders a bar filled to percent of width.
func ProgressBar(percent float64, width int) string {
	filled := int(percent * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	if percent > 0.8 {
		return SparkHigh.Render(bar)
	} else if percent > 0.4 {
		return SparkMid.Render(bar)
	}
	return SparkLow.Render(bar)
}

// Sparkline renders values as a one-line bar chart sampled to width.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	step := len(values) / width
	if step < 1 {
		step = 1
	}

	var result strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := (values[i*step] - lo) / rng
		idx := min(max(int(norm*float64(len(chars)-1)), 0), len(chars)-1)
		c := string(chars[idx])
		switch {
		case norm > 0.7:
			result.WriteString(SparkHigh.Render(c))
		case norm > 0.3:
			result.WriteString(SparkMid.Render(c))
		default:
			result.WriteString(SparkLow.Render(c))
		}
	}
	return result.String()
}
