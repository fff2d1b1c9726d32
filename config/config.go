// Package config resolves mdcrawl configuration: a YAML document merged
// recursively over a fixed set of defaults, then decoded into typed sections.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrNoTargetURL is returned by Validate when no target URL was configured.
var ErrNoTargetURL = errors.New("no target URL specified in config or --url")

// Config is the fully resolved configuration.
type Config struct {
	Target      TargetConfig      `mapstructure:"target"`
	Crawl       CrawlConfig       `mapstructure:"crawl"`
	Markdown    MarkdownConfig    `mapstructure:"markdown"`
	Content     ContentConfig     `mapstructure:"content"`
	Performance PerformanceConfig `mapstructure:"performance"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Recovery    RecoveryConfig    `mapstructure:"recovery"`
	Output      OutputConfig      `mapstructure:"output"`

	// Raw is the merged document, including keys the typed sections ignore.
	Raw map[string]any `mapstructure:"-"`
}

// TargetConfig describes the site being crawled.
type TargetConfig struct {
	URL            string   `mapstructure:"url"`
	AllowedDomains []string `mapstructure:"allowed_domains"`
	BlockedPaths   []string `mapstructure:"blocked_paths"`
	RespectRobots  bool     `mapstructure:"respect_robots"`
}

// CrawlConfig bounds the traversal.
type CrawlConfig struct {
	Strategy        string `mapstructure:"strategy"`
	MaxDepth        int    `mapstructure:"max_depth"`
	MaxPages        int    `mapstructure:"max_pages"`
	IncludeExternal bool   `mapstructure:"include_external"`
}

// MarkdownConfig controls Markdown rendering.
type MarkdownConfig struct {
	Citations         bool   `mapstructure:"citations"`
	BodyWidth         int    `mapstructure:"body_width"`
	SkipInternalLinks bool   `mapstructure:"skip_internal_links"`
	ContentFilter     string `mapstructure:"content_filter"`
}

// ContentConfig prunes the page DOM before rendering.
type ContentConfig struct {
	ExcludedTags       []string `mapstructure:"excluded_tags"`
	ExcludedSelector   string   `mapstructure:"excluded_selector"`
	WordCountThreshold int      `mapstructure:"word_count_threshold"`
}

// PerformanceConfig tunes fetching.
type PerformanceConfig struct {
	Prefetch       bool          `mapstructure:"prefetch"`
	Stream         bool          `mapstructure:"stream"`
	Concurrency    int           `mapstructure:"concurrency"`
	RateLimit      int           `mapstructure:"rate_limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Retries        int           `mapstructure:"retries"`
	UserAgent      string        `mapstructure:"user_agent"`
	MemoryLimitMB  int64         `mapstructure:"memory_limit_mb"`
}

// BrowserConfig enables headless-browser rendering.
type BrowserConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Headless bool          `mapstructure:"headless"`
	Wait     time.Duration `mapstructure:"wait"`
}

// RecoveryConfig controls checkpointing.
type RecoveryConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	StateFile string `mapstructure:"state_file"`
}

// OutputConfig controls what is written and where.
type OutputConfig struct {
	Dir          string `mapstructure:"dir"`
	Naming       string `mapstructure:"naming"`
	RewriteLinks bool   `mapstructure:"rewrite_links"`
	Manifest     string `mapstructure:"manifest"`
}

// Load reads the YAML file at path and resolves it over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse resolves a YAML document over the defaults. An empty document
// yields the defaults.
func Parse(data []byte) (*Config, error) {
	var user map[string]any
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return Decode(Resolve(user))
}

// Decode converts a resolved mapping into a Config. Unknown keys are ignored
// by the typed sections but kept in Raw.
func Decode(resolved map[string]any) (*Config, error) {
	cfg := &Config{Raw: resolved}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(resolved); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports configuration errors that must stop a run before any
// page is fetched. Strategy names are checked by the crawl engine.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Target.URL) == "" {
		return ErrNoTargetURL
	}
	parsed, err := url.Parse(c.Target.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("invalid target URL %q: must be an absolute http(s) URL", c.Target.URL)
	}
	if c.Crawl.MaxDepth < 0 {
		return fmt.Errorf("crawl.max_depth must be >= 0, got %d", c.Crawl.MaxDepth)
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0, got %d", c.Crawl.MaxPages)
	}
	if c.Output.Dir == "" {
		return errors.New("output.dir must not be empty")
	}
	return nil
}

// Overrides holds command-line values that replace configured ones.
// Nil fields leave the configuration untouched.
type Overrides struct {
	URL       *string
	MaxPages  *int
	MaxDepth  *int
	OutputDir *string
}

// Apply writes the non-nil overrides into c, keeping Raw in step.
func (c *Config) Apply(o Overrides) {
	if o.URL != nil {
		c.Target.URL = *o.URL
		setRaw(c.Raw, "target", "url", *o.URL)
	}
	if o.MaxPages != nil {
		c.Crawl.MaxPages = *o.MaxPages
		setRaw(c.Raw, "crawl", "max_pages", *o.MaxPages)
	}
	if o.MaxDepth != nil {
		c.Crawl.MaxDepth = *o.MaxDepth
		setRaw(c.Raw, "crawl", "max_depth", *o.MaxDepth)
	}
	if o.OutputDir != nil {
		c.Output.Dir = *o.OutputDir
		setRaw(c.Raw, "output", "dir", *o.OutputDir)
	}
}

func setRaw(raw map[string]any, section, key string, value any) {
	if raw == nil {
		return
	}
	sub, ok := raw[section].(map[string]any)
	if !ok {
		sub = map[string]any{}
		raw[section] = sub
	}
	sub[key] = value
}
