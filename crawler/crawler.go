// Package crawler traverses a website and streams rendered pages.
//
// A coordinator goroutine owns the frontier (FIFO for breadth-first, LIFO
// for depth-first) and dispatches jobs to a pool of fetch workers. Each
// worker fetches a page through colly or a headless browser, renders it to
// Markdown and hands back the links it found. The coordinator applies the
// depth, page and filter bounds and forwards every page result to the
// caller's channel.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lukemcguire/mdcrawl/result"
	"github.com/lukemcguire/mdcrawl/urlutil"
)

// memoryCheckInterval is how often heap usage is sampled.
const memoryCheckInterval = 500 * time.Millisecond

// Crawler coordinates a traversal with a concurrent worker pool.
type Crawler struct {
	cfg      Config
	strategy Strategy
	render   Renderer
	fetcher  Fetcher
	closer   io.Closer
	limiter  *AdaptiveLimiter
	robots   *RobotsChecker
	filters  FilterChain
	memory   *MemoryWatcher
	level    atomic.Int32
	logger   *log.Logger
}

// New validates cfg and builds a Crawler. A nil logger discards output.
func New(cfg Config, render Renderer, logger *log.Logger) (*Crawler, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if render == nil {
		return nil, errors.New("crawler needs a renderer")
	}
	strategy, err := ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if cfg.StartURL == "" {
		return nil, errors.New("start URL is required")
	}
	if cfg.MaxPages <= 0 {
		return nil, fmt.Errorf("max pages must be > 0, got %d", cfg.MaxPages)
	}
	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("max depth must be >= 0, got %d", cfg.MaxDepth)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig("").UserAgent
	}
	if cfg.RetryPolicy.BaseDelay <= 0 {
		cfg.RetryPolicy.BaseDelay = DefaultRetryPolicy().BaseDelay
	}
	if cfg.RetryPolicy.MaxDelay <= 0 {
		cfg.RetryPolicy.MaxDelay = DefaultRetryPolicy().MaxDelay
	}
	if cfg.RetryPolicy.MaxRetries < 0 {
		cfg.RetryPolicy.MaxRetries = 0
	}

	c := &Crawler{
		cfg:      cfg,
		strategy: strategy,
		render:   render,
		limiter:  NewAdaptiveLimiter(float64(cfg.RateLimit), 0),
		logger:   logger,
	}

	switch {
	case cfg.Fetcher != nil:
		c.fetcher = cfg.Fetcher
	case cfg.Browser.Enabled:
		bf, err := NewBrowserFetcher(cfg.Browser.Headless, cfg.UserAgent, cfg.Browser.Wait, cfg.RequestTimeout)
		if err != nil {
			return nil, err
		}
		c.fetcher = bf
		c.closer = bf
	default:
		c.fetcher = NewCollyFetcher(cfg.UserAgent, cfg.RequestTimeout)
	}

	if cfg.RespectRobots {
		// Separate client for robots.txt with a shorter timeout.
		c.robots = NewRobotsChecker(&http.Client{Timeout: 5 * time.Second})
	}
	c.filters = buildFilters(cfg, c.robots, logger)

	if cfg.MemoryLimitMB > 0 {
		c.memory = NewMemoryWatcher(cfg.MemoryLimitMB)
		c.memory.SetThrottleCallback(func(level ThrottleLevel) {
			c.level.Store(int32(level))
			logger.Warn("memory pressure changed", "level", level, "in_flight", inFlightLimit(cfg.Concurrency, level))
		})
	}
	return c, nil
}

// Close releases the browser when one was started.
func (c *Crawler) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// Run crawls from the start URL and sends one PageResult per dispatched
// page to out. It does not close out. Run returns when the frontier is
// exhausted, the page budget is spent, or ctx is cancelled.
func (c *Crawler) Run(ctx context.Context, out chan<- result.PageResult) error {
	startURL, err := normalizeStart(c.cfg.StartURL)
	if err != nil {
		return err
	}
	startHost := hostFromURL(startURL)

	if ok, by := c.filters.Allow(ctx, startURL); !ok {
		return fmt.Errorf("start URL %s rejected by %s filter", startURL, by)
	}
	if c.robots != nil {
		if delay := c.robots.CrawlDelay(ctx, startURL, c.cfg.UserAgent); delay > 0 {
			rps := 1 / delay.Seconds()
			if rps < c.limiter.CurrentRate() {
				c.logger.Info("honoring robots.txt crawl delay", "delay", delay)
				c.limiter = NewAdaptiveLimiter(rps, 0)
			}
		}
	}

	visited, err := NewVisitedTracker(uint(c.cfg.MaxPages) * 20)
	if err != nil {
		return fmt.Errorf("create visited tracker: %w", err)
	}
	defer func() {
		if closeErr := visited.Close(); closeErr != nil {
			c.logger.Warn("visited tracker cleanup failed", "err", closeErr)
		}
	}()

	front, err := newFrontier(c.strategy)
	if err != nil {
		return err
	}
	visited.VisitIfNew(startURL)
	front.Push(CrawlJob{URL: startURL})

	workers := c.cfg.Concurrency
	if !c.cfg.Prefetch {
		workers = 1
	}

	jobs := make(chan CrawlJob)
	results := make(chan CrawlResult, workers)

	errGroup, groupCtx := errgroup.WithContext(ctx)
	for range workers {
		errGroup.Go(func() error {
			for job := range jobs {
				res := c.process(groupCtx, job)
				select {
				case results <- res:
				case <-groupCtx.Done():
					return nil
				}
			}
			return nil
		})
	}

	watchCtx, stopWatch := context.WithCancel(groupCtx)
	if c.memory != nil {
		errGroup.Go(func() error {
			c.memory.Watch(watchCtx, memoryCheckInterval)
			return nil
		})
	}

	s := &session{
		crawler:   c,
		front:     front,
		visited:   visited,
		startHost: startHost,
		workers:   workers,
	}
	coordErr := s.coordinate(ctx, jobs, results, out)

	close(jobs)
	stopWatch()
	if waitErr := errGroup.Wait(); waitErr != nil && coordErr == nil {
		coordErr = fmt.Errorf("wait for workers: %w", waitErr)
	}
	c.logger.Debug("crawl finished", "dispatched", s.dispatched, "visited", visited.Len())
	return coordErr
}

// session is the coordinator state of one Run.
type session struct {
	crawler    *Crawler
	front      frontier
	visited    *VisitedTracker
	startHost  string
	workers    int
	inFlight   int
	dispatched int
}

func (s *session) coordinate(ctx context.Context, jobs chan<- CrawlJob, results <-chan CrawlResult, out chan<- result.PageResult) error {
	c := s.crawler
	var pending *CrawlJob

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pending == nil && s.dispatched < c.cfg.MaxPages {
			if job, ok := s.front.Pop(); ok {
				pending = &job
			}
		}
		if pending == nil && s.inFlight == 0 {
			return nil
		}

		// A nil channel disables the send case while the pool is saturated.
		var send chan<- CrawlJob
		var next CrawlJob
		if pending != nil && s.inFlight < inFlightLimit(s.workers, ThrottleLevel(c.level.Load())) {
			send = jobs
			next = *pending
		}

		select {
		case send <- next:
			pending = nil
			s.inFlight++
			s.dispatched++
		case res := <-results:
			s.inFlight--
			select {
			case out <- res.Page:
			case <-ctx.Done():
				return ctx.Err()
			}
			s.enqueue(ctx, res)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// enqueue pushes the admissible links of res onto the frontier.
func (s *session) enqueue(ctx context.Context, res CrawlResult) {
	c := s.crawler
	if res.FinalURL != "" && res.FinalURL != res.Job.URL {
		s.visited.VisitIfNew(res.FinalURL)
	}
	depth := res.Job.Depth + 1
	if depth > c.cfg.MaxDepth || s.dispatched >= c.cfg.MaxPages || ctx.Err() != nil {
		return
	}
	for _, link := range res.Links {
		if !c.cfg.IncludeExternal && !urlutil.IsSameDomain(link, s.startHost) {
			continue
		}
		if ok, by := c.filters.Allow(ctx, link); !ok {
			c.logger.Debug("link filtered", "url", link, "filter", by)
			continue
		}
		if !s.visited.VisitIfNew(link) {
			continue
		}
		s.front.Push(CrawlJob{URL: link, Depth: depth, SourcePage: res.Job.URL})
	}
}

// normalizeStart puts the start URL in the same canonical form as every
// discovered link.
func normalizeStart(raw string) (string, error) {
	startURL, err := urlutil.Normalize(raw)
	if err != nil {
		return "", fmt.Errorf("normalize start URL: %w", err)
	}
	return startURL, nil
}

// hostFromURL extracts the hostname (without port) from a URL string.
func hostFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return parsed.Hostname()
}
