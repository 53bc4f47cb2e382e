package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const barWidth = 40

type (
	progressMsg struct{ done, total int }
	finishedMsg struct{ err error }
	tickMsg     time.Time
)

type progressModel struct {
	title       string
	done, total int
	frame       int
	started     time.Time
	finished    bool
	interrupted bool
	err         error
}

func newProgressModel(title string, total int) progressModel {
	return progressModel{title: title, total: total, started: time.Now()}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m progressModel) Init() tea.Cmd { return tick() }

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.interrupted = true
			return m, tea.Quit
		}
	case progressMsg:
		m.done, m.total = msg.done, msg.total
	case finishedMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	case tickMsg:
		m.frame++
		return m, tick()
	}
	return m, nil
}

func spinner(frame int) string {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return frames[frame%len(frames)]
}

func (m progressModel) View() string {
	var b strings.Builder
	pct := 0.0
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}
	icon := Title.Render(spinner(m.frame))
	if m.finished {
		icon = SparkHigh.Render("✓")
	}
	fmt.Fprintf(&b, "%s %s\n", icon, Title.Render(m.title))
	fmt.Fprintf(&b, "%s %d/%d  %s\n", ProgressBar(pct, barWidth), m.done, m.total,
		Subtle.Render(time.Since(m.started).Round(100*time.Millisecond).String()))
	if m.err != nil {
		b.WriteString(ErrorStyle.Render(m.err.Error()) + "\n")
	}
	if !m.finished {
		b.WriteString(Subtle.Render("q to cancel") + "\n")
	}
	return b.String()
}

// RunProgress runs work under a progress view. work reports through the
// callback it is given and must return once ctx is cancelled, which happens
// when the user quits the view.
func RunProgress(ctx context.Context, title string, total int, work func(ctx context.Context, progress func(done, total int)) error, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(title, total), opts...)
	result := make(chan error, 1)
	go func() {
		err := work(ctx, func(done, total int) { p.Send(progressMsg{done: done, total: total}) })
		result <- err
		p.Send(finishedMsg{err: err})
	}()

	final, runErr := p.Run()
	cancel()
	workErr := <-result
	if runErr != nil {
		return runErr
	}
	if m, ok := final.(progressModel); ok && m.interrupted && workErr == nil {
		return context.Canceled
	}
	return workErr
}
