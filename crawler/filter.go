package crawler

import (
	"context"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/lukemcguire/mdcrawl/urlutil"
)

// Filter decides whether a discovered URL may be crawled.
type Filter interface {
	Name() string
	Allow(ctx context.Context, rawURL string) bool
}

// FilterChain admits a URL only if every filter does.
type FilterChain []Filter

// Allow reports whether all filters admit rawURL and, if not, which one
// rejected it.
func (fc FilterChain) Allow(ctx context.Context, rawURL string) (bool, string) {
	for _, f := range fc {
		if !f.Allow(ctx, rawURL) {
			return false, f.Name()
		}
	}
	return true, ""
}

// DomainFilter admits URLs whose host is one of the allowed domains or a
// subdomain of one.
type DomainFilter struct {
	Domains []string
}

func (DomainFilter) Name() string { return "domain" }

func (f DomainFilter) Allow(_ context.Context, rawURL string) bool {
	if len(f.Domains) == 0 {
		return true
	}
	for _, d := range f.Domains {
		if urlutil.IsSameDomain(rawURL, strings.TrimSpace(d)) {
			return true
		}
	}
	return false
}

// BlockedPathFilter rejects URLs whose path starts with any blocked prefix.
type BlockedPathFilter struct {
	Prefixes []string
}

func (BlockedPathFilter) Name() string { return "blocked_path" }

func (f BlockedPathFilter) Allow(_ context.Context, rawURL string) bool {
	if len(f.Prefixes) == 0 {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := parsed.Path
	if p == "" {
		p = "/"
	}
	for _, prefix := range f.Prefixes {
		if prefix = strings.TrimSpace(prefix); prefix == "" {
			continue
		}
		if !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		if strings.HasPrefix(p, prefix) {
			return false
		}
	}
	return true
}

// RobotsFilter applies robots.txt rules. Fetch and parse errors admit the
// URL and are logged at debug level.
type RobotsFilter struct {
	Checker   *RobotsChecker
	UserAgent string
	Logger    *log.Logger
}

func (RobotsFilter) Name() string { return "robots" }

func (f RobotsFilter) Allow(ctx context.Context, rawURL string) bool {
	allowed, err := f.Checker.Allowed(ctx, rawURL, f.UserAgent)
	if err != nil && f.Logger != nil {
		f.Logger.Debug("robots.txt check failed, allowing", "url", rawURL, "err", err)
	}
	return allowed
}

// buildFilters assembles the chain for cfg. Robots rules are only consulted
// when RespectRobots is set.
func buildFilters(cfg Config, robots *RobotsChecker, logger *log.Logger) FilterChain {
	var chain FilterChain
	if len(cfg.AllowedDomains) > 0 {
		chain = append(chain, DomainFilter{Domains: cfg.AllowedDomains})
	}
	if len(cfg.BlockedPaths) > 0 {
		chain = append(chain, BlockedPathFilter{Prefixes: cfg.BlockedPaths})
	}
	if cfg.RespectRobots && robots != nil {
		chain = append(chain, RobotsFilter{Checker: robots, UserAgent: cfg.UserAgent, Logger: logger})
	}
	return chain
}
