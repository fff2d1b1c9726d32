package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/lukemcguire/mdcrawl/config"
	"github.com/lukemcguire/mdcrawl/markdown"
	"github.com/lukemcguire/mdcrawl/result"
	"github.com/lukemcguire/mdcrawl/urlutil"
)

// Config holds crawler configuration.
type Config struct {
	StartURL        string
	Strategy        string // "bfs" or "dfs"
	MaxDepth        int    // link distance from StartURL; 0 crawls only StartURL
	MaxPages        int    // pages dispatched at most
	IncludeExternal bool   // follow links to other hosts
	AllowedDomains  []string
	BlockedPaths    []string
	RespectRobots   bool

	Concurrency    int  // fetch workers
	Prefetch       bool // false fetches one page at a time in step with the consumer
	RateLimit      int  // requests per second; 0 disables limiting
	RequestTimeout time.Duration
	RetryPolicy    RetryPolicy
	UserAgent      string
	MemoryLimitMB  int64 // 0 disables memory throttling

	Browser BrowserConfig

	// Fetcher overrides the fetcher chosen from Browser. Used in tests.
	Fetcher Fetcher
}

// BrowserConfig selects headless-browser fetching.
type BrowserConfig struct {
	Enabled  bool
	Headless bool
	Wait     time.Duration // extra settle time after the page is ready
}

// Renderer turns a fetched HTML body into Markdown.
type Renderer interface {
	Render(pageURL string, body []byte) (markdown.Output, error)
}

// CrawlJob is a URL waiting to be fetched.
type CrawlJob struct {
	URL        string
	Depth      int
	SourcePage string // page the link was found on; empty for the start URL
}

// CrawlResult is what a worker hands back to the coordinator.
type CrawlResult struct {
	Job      CrawlJob
	Page     result.PageResult
	FinalURL string   // URL after redirects, normalized
	Links    []string // links to consider for the next depth
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(startURL string) Config {
	return Config{
		StartURL:       startURL,
		Strategy:       string(BFS),
		MaxDepth:       3,
		MaxPages:       500,
		Concurrency:    4,
		Prefetch:       true,
		RateLimit:      10,
		RequestTimeout: 30 * time.Second,
		RetryPolicy:    DefaultRetryPolicy(),
		UserAgent:      "mdcrawl/1.0 (+https://github.com/lukemcguire/mdcrawl)",
		Browser:        BrowserConfig{Headless: true},
	}
}

// ConfigFrom maps the resolved configuration onto crawler settings.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig(cfg.Target.URL)
	c.Strategy = cfg.Crawl.Strategy
	c.MaxDepth = cfg.Crawl.MaxDepth
	c.MaxPages = cfg.Crawl.MaxPages
	c.IncludeExternal = cfg.Crawl.IncludeExternal
	c.AllowedDomains = cfg.Target.AllowedDomains
	c.BlockedPaths = cfg.Target.BlockedPaths
	c.RespectRobots = cfg.Target.RespectRobots
	c.Concurrency = cfg.Performance.Concurrency
	c.Prefetch = cfg.Performance.Prefetch
	c.RateLimit = cfg.Performance.RateLimit
	c.RequestTimeout = cfg.Performance.RequestTimeout
	c.RetryPolicy.MaxRetries = cfg.Performance.Retries
	c.UserAgent = cfg.Performance.UserAgent
	c.MemoryLimitMB = cfg.Performance.MemoryLimitMB
	c.Browser = BrowserConfig{
		Enabled:  cfg.Browser.Enabled,
		Headless: cfg.Browser.Headless,
		Wait:     cfg.Browser.Wait,
	}
	return c
}

// process fetches, renders and harvests links for one job. It never
// returns an error: failures are reported on the page result.
func (c *Crawler) process(ctx context.Context, job CrawlJob) CrawlResult {
	res := CrawlResult{
		Job:  job,
		Page: result.PageResult{URL: job.URL, Depth: job.Depth},
	}

	// Binary URLs are reported without fetching; the consumer discards them.
	if urlutil.IsBinary(job.URL) {
		res.Page.Success = true
		return res
	}

	doc, err := fetchWithRetry(ctx, c.cfg.RetryPolicy, func(ctx context.Context) (*Document, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		start := time.Now()
		doc, err := c.fetcher.Fetch(ctx, job.URL)
		c.limiter.ObserveRTT(time.Since(start))
		return doc, err
	})
	if err != nil {
		status := 0
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.StatusCode
		}
		res.Page.StatusCode = status
		res.Page.Error = err.Error()
		res.Page.ErrorCategory = result.ClassifyError(err, status)
		return res
	}

	res.Page.StatusCode = doc.StatusCode
	if final, normErr := urlutil.Normalize(doc.URL); normErr == nil {
		res.FinalURL = final
	}

	if !isHTMLContentType(doc.ContentType) || len(doc.Body) == 0 {
		res.Page.Success = true
		return res
	}

	out, err := c.render.Render(doc.URL, doc.Body)
	if err != nil {
		res.Page.Error = err.Error()
		res.Page.ErrorCategory = result.CategoryRender
		return res
	}
	res.Page.Success = true
	res.Page.Markdown = out.Markdown
	res.Page.Cited = out.Cited
	res.Page.References = out.References

	if job.Depth < c.cfg.MaxDepth {
		links, extractErr := extractLinksFromBytes(doc.Body, doc.URL)
		if extractErr != nil {
			c.logger.Debug("link extraction incomplete", "url", job.URL, "err", extractErr)
		}
		res.Links = links
	}
	return res
}
