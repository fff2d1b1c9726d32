package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsEntry is a host's parsed robots.txt. A nil data means allow-all.
type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// RobotsChecker fetches and caches robots.txt rules per host.
// Any failure to obtain or parse a robots.txt allows everything on that host.
type RobotsChecker struct {
	client   *http.Client
	cacheTTL time.Duration

	mu    sync.Mutex
	cache map[string]*robotsEntry
}

// NewRobotsChecker creates a RobotsChecker with the given HTTP client.
func NewRobotsChecker(client *http.Client) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &RobotsChecker{
		client:   client,
		cacheTTL: time.Hour,
		cache:    make(map[string]*robotsEntry),
	}
}

// Allowed reports whether userAgent may fetch rawURL. The error is
// informational; allowed is true whenever it is non-nil.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL, userAgent string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true, fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Host == "" {
		return true, nil
	}

	data, err := r.rules(ctx, parsed)
	if data == nil {
		return true, err
	}
	p := parsed.EscapedPath()
	if p == "" {
		p = "/"
	}
	if parsed.RawQuery != "" {
		p += "?" + parsed.RawQuery
	}
	return data.TestAgent(p, userAgent), nil
}

// CrawlDelay returns the Crawl-delay the host's robots.txt asks of
// userAgent, or zero.
func (r *RobotsChecker) CrawlDelay(ctx context.Context, rawURL, userAgent string) time.Duration {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return 0
	}
	data, _ := r.rules(ctx, parsed)
	if data == nil {
		return 0
	}
	return data.FindGroup(userAgent).CrawlDelay
}

func (r *RobotsChecker) rules(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	host := u.Host

	r.mu.Lock()
	entry, ok := r.cache[host]
	r.mu.Unlock()
	if ok && time.Since(entry.fetchedAt) < r.cacheTTL {
		return entry.data, nil
	}

	data, err := r.fetch(ctx, u.Scheme, host)
	r.mu.Lock()
	r.cache[host] = &robotsEntry{data: data, fetchedAt: time.Now()}
	r.mu.Unlock()
	return data, err
}

func (r *RobotsChecker) fetch(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create robots.txt request for host %s: %w", host, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt for host %s: %w", host, err)
	}
	body, readErr := io.ReadAll(resp.Body)
	closeErr := resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("read robots.txt body for host %s: %w", host, readErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close robots.txt response body for host %s: %w", host, closeErr)
	}

	// A missing robots.txt or a server error allows everything.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 500 {
		return nil, nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt for host %s: %w", host, err)
	}
	return data, nil
}

// ClearCache forgets all cached robots.txt files.
func (r *RobotsChecker) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*robotsEntry)
}
