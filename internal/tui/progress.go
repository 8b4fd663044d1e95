// Package tui renders a live progress view for long evaluation runs.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/trigbench/internal/evaluation"
	"github.com/mwiater/trigbench/internal/logging"
	"github.com/mwiater/trigbench/internal/util"
)

const maxBarWidth = 80

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	statStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

// Options describe the run shown in the header.
type Options struct {
	Title   string
	Model   string
	Workers int
}

type (
	eventMsg    evaluation.Event
	finishedMsg struct{ err error }
)

type progressModel struct {
	opts    Options
	spinner spinner.Model
	bar     progress.Model
	cancel  context.CancelFunc

	done     int
	total    int
	parsed   int
	failed   int
	scored   int
	sumWLA   float64
	last     string
	finished bool
	aborted  bool
	err      error
	width    int
}

func newProgressModel(opts Options, cancel context.CancelFunc) *progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &progressModel{
		opts:    opts,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxBarWidth/2)),
		cancel:  cancel,
	}
}

// Init satisfies the tea.Model interface.
func (m *progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update routes incoming messages to the appropriate handlers.
func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.aborted = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(maxBarWidth, max(10, msg.Width-4))
		return m, nil

	case eventMsg:
		return m, m.handleEvent(evaluation.Event(msg))

	case finishedMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		model, cmd := m.bar.Update(msg)
		if bar, ok := model.(progress.Model); ok {
			m.bar = bar
		}
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) handleEvent(ev evaluation.Event) tea.Cmd {
	m.done = ev.Done
	m.total = ev.Total
	switch {
	case ev.Err != nil:
		m.failed++
		m.last = fmt.Sprintf("%s -> inference failed: %v", ev.Filename, ev.Err)
	case ev.Sample != nil && ev.Sample.ErrorKm != nil:
		m.parsed++
		m.scored++
		m.sumWLA += ev.Sample.Accuracy
		m.last = fmt.Sprintf("%s -> %.2f km | WLA %.1f", ev.Filename, *ev.Sample.ErrorKm, ev.Sample.Accuracy)
	case ev.Sample != nil && ev.Sample.Predicted != nil:
		m.parsed++
		m.last = ev.Filename + " -> no ground-truth distance"
	default:
		m.last = ev.Filename + " -> failed to parse"
	}
	if m.total == 0 {
		return nil
	}
	return m.bar.SetPercent(float64(m.done) / float64(m.total))
}

// View renders the progress view.
func (m *progressModel) View() string {
	var b strings.Builder
	header := titleStyle.Render(m.opts.Title) + renderModelBadge(m.opts.Model) + renderWorkersBadge(m.opts.Workers)
	if !m.finished && !m.aborted {
		header = m.spinner.View() + " " + header
	}
	b.WriteString(header + "\n\n")
	b.WriteString(m.bar.View() + "\n\n")

	stats := fmt.Sprintf("%d/%d images · parsed %d", m.done, m.total, m.parsed)
	if m.scored > 0 {
		stats += fmt.Sprintf(" · mean WLA %.3f", m.sumWLA/float64(m.scored))
	}
	b.WriteString(statStyle.Render(stats))
	if m.failed > 0 {
		b.WriteString(" " + failStyle.Render(fmt.Sprintf("· failed %d", m.failed)))
	}
	b.WriteString("\n")
	if m.last != "" {
		width := m.width
		if width <= 0 {
			width = maxBarWidth
		}
		b.WriteString(dimStyle.Render(util.TruncateToWidth(m.last, width)) + "\n")
	}
	switch {
	case m.aborted:
		b.WriteString(failStyle.Render("Cancelling...") + "\n")
	case m.finished && m.err != nil:
		b.WriteString(failStyle.Render("Stopped: "+m.err.Error()) + "\n")
	case !m.finished:
		b.WriteString(dimStyle.Render("q: cancel") + "\n")
	}
	return b.String()
}

// RunEvaluation runs ev while showing the progress view and returns its
// result. Console logging is paused while the view owns the terminal.
// Quitting the view cancels the run; completed records are kept.
func RunEvaluation(ctx context.Context, ev *evaluation.Evaluator, opts Options) (evaluation.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newProgressModel(opts, cancel)
	p := tea.NewProgram(m)

	logging.SetConsole(false)
	defer logging.SetConsole(true)

	ev.OnProgress(func(e evaluation.Event) {
		p.Send(eventMsg(e))
	})

	type outcome struct {
		result evaluation.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := ev.Run(ctx)
		p.Send(finishedMsg{err: err})
		done <- outcome{result: result, err: err}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		out := <-done
		if out.err != nil {
			return out.result, out.err
		}
		return out.result, fmt.Errorf("progress view: %w", err)
	}
	out := <-done
	return out.result, out.err
}
