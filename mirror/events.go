package mirror

import "github.com/lukemcguire/mdcrawl/result"

// EventKind identifies what happened to a page.
type EventKind int

const (
	// EventSaved means the page was accepted and written.
	EventSaved EventKind = iota
	// EventFailed means the engine reported the page as failed.
	EventFailed
	// EventSkipped means the page was skipped (resumed, duplicate or binary).
	EventSkipped
	// EventRewritten is sent once after link rewriting.
	EventRewritten
)

// Event reports progress for a single page, with running totals.
type Event struct {
	Kind          EventKind
	URL           string
	Path          string
	Depth         int
	Error         string
	ErrorCategory result.ErrorCategory
	Reason        string // why a page was skipped

	Saved     int
	Failed    int
	Skipped   int
	Rewritten int
}
