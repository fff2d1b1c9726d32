// Package tui provides the Bubble Tea terminal UI for mdcrawl,
// displaying live crawl progress and a styled summary of the run.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukemcguire/mdcrawl/mirror"
	"github.com/lukemcguire/mdcrawl/result"
)

// RunFunc runs the crawl to completion. It is called once, off the UI
// goroutine.
type RunFunc func(ctx context.Context) (*result.Report, error)

// Model is the Bubble Tea model for the crawl TUI.
type Model struct {
	ctx     context.Context
	cancel  context.CancelFunc
	run     RunFunc
	spinner spinner.Model
	events  <-chan mirror.Event

	saved    int
	failed   int
	skipped  int
	current  string
	quitting bool
	done     bool
	report   *result.Report
	err      error
	width    int
}

// NewModel creates a TUI model that runs run and follows its events.
func NewModel(ctx context.Context, cancel context.CancelFunc, run RunFunc, events <-chan mirror.Event) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:     ctx,
		cancel:  cancel,
		run:     run,
		spinner: spin,
		events:  events,
	}
}

// Init starts the spinner, crawl, and progress listener concurrently.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startCrawl(), waitForProgress(m.events))
}

// startCrawl returns a tea.Cmd that runs the crawl and sends CrawlDoneMsg.
func (m Model) startCrawl() tea.Cmd {
	return func() tea.Msg {
		rep, err := m.run(m.ctx)
		return CrawlDoneMsg{Report: rep, Err: err}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case CrawlProgressMsg:
		m.saved = msg.Saved
		m.failed = msg.Failed
		m.skipped = msg.Skipped
		if msg.URL != "" {
			m.current = msg.URL
		}
		return m, waitForProgress(m.events)

	case CrawlDoneMsg:
		m.done = true
		m.report = msg.Report
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done {
		out := ""
		if m.report != nil {
			out = RenderSummary(m.report)
		}
		if m.err != nil {
			out += errorStyle.Render("Error: "+m.err.Error()) + "\n"
		}
		return out
	}
	return fmt.Sprintf("%s Crawling... saved %d, failed %d, skipped %d\n%s\n",
		m.spinner.View(), m.saved, m.failed, m.skipped,
		dimStyle.Render("  "+m.current))
}

// Cancelled reports whether the user quit before the crawl finished.
func (m Model) Cancelled() bool {
	return m.quitting && !m.done
}

// Err returns the error the crawl finished with, if any.
func (m Model) Err() error {
	return m.err
}

// GetReport returns the crawl report for output formatting.
func (m Model) GetReport() *result.Report {
	return m.report
}
