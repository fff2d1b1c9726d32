// Package mirror drives a crawl and turns its page stream into a local
// Markdown mirror of the site.
//
// Pages are consumed by a single loop: failures are logged, pages already
// saved by a previous run or earlier in this run are skipped, binary URLs
// are discarded, and every remaining page is written under the output
// directory and checkpointed immediately. Once the stream ends, links
// between saved pages are rewritten to relative file paths.
package mirror

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lukemcguire/mdcrawl/config"
	"github.com/lukemcguire/mdcrawl/result"
	"github.com/lukemcguire/mdcrawl/rewrite"
	"github.com/lukemcguire/mdcrawl/state"
	"github.com/lukemcguire/mdcrawl/urlutil"
)

// Engine produces page results. Run sends results to out until the crawl
// is done and must not close out.
type Engine interface {
	Run(ctx context.Context, out chan<- result.PageResult) error
}

// Mirror writes the pages produced by an Engine to disk.
type Mirror struct {
	cfg    *config.Config
	engine Engine
	logger *log.Logger
	events chan<- Event
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *log.Logger) Option {
	return func(m *Mirror) { m.logger = l }
}

// WithEvents sends a progress Event for every page to ch. The channel is
// not closed by the Mirror.
func WithEvents(ch chan<- Event) Option {
	return func(m *Mirror) { m.events = ch }
}

// New creates a Mirror for cfg.
func New(cfg *config.Config, engine Engine, opts ...Option) *Mirror {
	m := &Mirror{cfg: cfg, engine: engine, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run crawls, writes and checkpoints pages, then rewrites links. When
// resume is set the checkpoint is loaded first and its URLs are skipped; a
// corrupt checkpoint aborts the run. The returned report is non-nil
// whenever the crawl started, even if Run also returns an error.
func (m *Mirror) Run(ctx context.Context, resume bool) (*result.Report, error) {
	start := time.Now()

	var store *state.Store
	if m.cfg.Recovery.Enabled && m.cfg.Recovery.StateFile != "" {
		store = state.NewStore(m.cfg.Recovery.StateFile)
	}

	resumed := state.Set{}
	if resume {
		if store == nil {
			m.logger.Warn("resume requested but recovery is disabled; starting fresh")
		} else {
			loaded, err := store.Load()
			if err != nil {
				return nil, fmt.Errorf("load checkpoint: %w", err)
			}
			resumed = loaded
			m.logger.Info("resuming crawl", "already_crawled", len(resumed), "state_file", store.Path)
		}
	}

	if err := os.MkdirAll(m.cfg.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pages := make(chan result.PageResult, m.bufferSize())
	errGroup, groupCtx := errgroup.WithContext(ctx)
	errGroup.Go(func() error {
		defer close(pages)
		return m.engine.Run(groupCtx, pages)
	})

	r := newRun(m, store, resumed)
	consumeErr := r.consume(ctx, pages)
	if consumeErr != nil {
		// Unblock the engine before waiting for it.
		cancel()
		for range pages {
		}
	}
	engineErr := errGroup.Wait()

	r.report.Stats.Duration = time.Since(start)
	if consumeErr != nil {
		return r.report, consumeErr
	}
	if engineErr != nil {
		return r.report, fmt.Errorf("crawl: %w", engineErr)
	}

	if m.cfg.Output.RewriteLinks && len(r.urlToFile) > 0 {
		n, err := rewrite.Rewrite(r.urlToFile, m.cfg.Output.Dir)
		if err != nil {
			return r.report, fmt.Errorf("rewrite links: %w", err)
		}
		r.report.Stats.Rewritten = n
		m.logger.Info("rewrote links", "files", n)
		r.emit(ctx, Event{Kind: EventRewritten})
	}

	if m.cfg.Output.Manifest != "" {
		if err := result.WriteManifest(m.cfg.Output.Manifest, r.report.Pages); err != nil {
			return r.report, fmt.Errorf("write manifest: %w", err)
		}
		m.logger.Info("wrote manifest", "path", m.cfg.Output.Manifest, "pages", len(r.report.Pages))
	}

	r.report.Stats.Duration = time.Since(start)
	return r.report, nil
}

// bufferSize lets the engine fetch ahead of the consumer unless prefetch
// is off, in which case each page is handed over before the next is fetched.
func (m *Mirror) bufferSize() int {
	if !m.cfg.Performance.Prefetch {
		return 0
	}
	return max(1, m.cfg.Performance.Concurrency)
}

// run is the state of one Mirror.Run. It is only touched by the consumer loop.
type run struct {
	m         *Mirror
	store     *state.Store
	resumed   state.Set
	accepted  map[string]bool
	crawled   []string
	urlToFile map[string]string
	pathOwner map[string]string
	report    *result.Report
}

func newRun(m *Mirror, store *state.Store, resumed state.Set) *run {
	return &run{
		m:         m,
		store:     store,
		resumed:   resumed,
		accepted:  make(map[string]bool),
		crawled:   resumed.Sorted(),
		urlToFile: make(map[string]string),
		pathOwner: make(map[string]string),
		report:    &result.Report{},
	}
}

// consume processes the stream in order. With streaming off the whole
// stream is collected before the first page is handled.
func (r *run) consume(ctx context.Context, pages <-chan result.PageResult) error {
	if !r.m.cfg.Performance.Stream {
		var buffered []result.PageResult
		for page := range pages {
			buffered = append(buffered, page)
		}
		for _, page := range buffered {
			if err := r.handle(ctx, page); err != nil {
				return err
			}
		}
		return nil
	}
	for page := range pages {
		if err := r.handle(ctx, page); err != nil {
			return err
		}
	}
	return nil
}

// handle applies the per-page rules. Only filesystem failures are returned.
func (r *run) handle(ctx context.Context, page result.PageResult) error {
	logger := r.m.logger
	stats := &r.report.Stats

	if !page.Success {
		stats.Failed++
		r.report.Failures = append(r.report.Failures, result.FailedPage{
			URL:           page.URL,
			StatusCode:    page.StatusCode,
			Error:         page.Error,
			ErrorCategory: page.ErrorCategory,
		})
		logger.Warn("page failed", "url", page.URL, "err", page.Error)
		r.emit(ctx, Event{Kind: EventFailed, URL: page.URL, Depth: page.Depth, Error: page.Error, ErrorCategory: page.ErrorCategory})
		return nil
	}

	if r.resumed.Has(page.URL) {
		stats.SkippedResumed++
		logger.Debug("skipping already crawled page", "url", page.URL)
		r.emit(ctx, Event{Kind: EventSkipped, URL: page.URL, Depth: page.Depth, Reason: "resumed"})
		return nil
	}
	if r.accepted[page.URL] {
		stats.Duplicates++
		logger.Debug("skipping duplicate page", "url", page.URL)
		r.emit(ctx, Event{Kind: EventSkipped, URL: page.URL, Depth: page.Depth, Reason: "duplicate"})
		return nil
	}
	if urlutil.IsBinary(page.URL) {
		stats.SkippedBinary++
		logger.Debug("skipping binary URL", "url", page.URL)
		r.emit(ctx, Event{Kind: EventSkipped, URL: page.URL, Depth: page.Depth, Reason: "binary"})
		return nil
	}

	path, err := urlutil.FilePath(page.URL, r.m.cfg.Output.Dir)
	if err != nil {
		stats.Failed++
		r.report.Failures = append(r.report.Failures, result.FailedPage{URL: page.URL, Error: err.Error(), ErrorCategory: result.CategoryUnknown})
		logger.Warn("cannot map URL to a file", "url", page.URL, "err", err)
		r.emit(ctx, Event{Kind: EventFailed, URL: page.URL, Depth: page.Depth, Error: err.Error()})
		return nil
	}
	if owner, ok := r.pathOwner[path]; ok && owner != page.URL {
		stats.Collisions++
		logger.Warn("two URLs map to the same file; last write wins", "file", path, "previous", owner, "url", page.URL)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", page.URL, err)
	}
	written := page.Markdown != ""
	if written {
		if err := os.WriteFile(path, []byte(page.Markdown), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	r.pathOwner[path] = page.URL

	r.accepted[page.URL] = true
	r.crawled = append(r.crawled, page.URL)
	r.urlToFile[page.URL] = path
	stats.Accepted++
	r.report.Accepted = append(r.report.Accepted, page)
	r.report.Pages = append(r.report.Pages, result.SavedPage{
		URL:     page.URL,
		Path:    path,
		Depth:   page.Depth,
		Chars:   len(page.Markdown),
		Written: written,
	})

	if r.store != nil {
		if err := r.store.Save(r.crawled); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
	}

	logger.Info("saved page", "url", page.URL, "file", path, "chars", len(page.Markdown))
	r.emit(ctx, Event{Kind: EventSaved, URL: page.URL, Path: path, Depth: page.Depth})
	return nil
}

// emit fills in running totals and sends ev when events are enabled.
func (r *run) emit(ctx context.Context, ev Event) {
	if r.m.events == nil {
		return
	}
	stats := r.report.Stats
	ev.Saved = stats.Accepted
	ev.Failed = stats.Failed
	ev.Skipped = stats.SkippedResumed + stats.SkippedBinary + stats.Duplicates
	ev.Rewritten = stats.Rewritten
	select {
	case r.m.events <- ev:
	case <-ctx.Done():
	}
}
