package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/mdcrawl/mirror"
	"github.com/lukemcguire/mdcrawl/result"
)

// CrawlProgressMsg reports progress for a single page.
type CrawlProgressMsg struct {
	Kind    mirror.EventKind
	URL     string
	Saved   int
	Failed  int
	Skipped int
}

// CrawlDoneMsg signals the crawl has completed.
type CrawlDoneMsg struct {
	Report *result.Report
	Err    error
}

// waitForProgress returns a tea.Cmd that reads one event from the progress
// channel. A closed channel yields no message; completion is reported by
// startCrawl.
func waitForProgress(ch <-chan mirror.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return CrawlProgressMsg{
			Kind:    evt.Kind,
			URL:     evt.URL,
			Saved:   evt.Saved,
			Failed:  evt.Failed,
			Skipped: evt.Skipped,
		}
	}
}
