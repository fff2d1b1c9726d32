package crawler

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// Document is a fetched page.
type Document struct {
	URL         string // final URL after redirects
	StatusCode  int
	ContentType string
	Body        []byte // empty for binary content
}

// Fetcher retrieves a single page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Document, error)
}

// HTTPError reports a response with a 4xx or 5xx status.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// CollyFetcher fetches pages over HTTP with a colly collector. Each fetch
// runs on a clone of the base collector so callbacks never leak between
// concurrent requests.
type CollyFetcher struct {
	base *colly.Collector
}

// NewCollyFetcher creates a fetcher with the given user agent and per-request timeout.
func NewCollyFetcher(userAgent string, timeout time.Duration) *CollyFetcher {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
	)
	if timeout > 0 {
		c.SetRequestTimeout(timeout)
	}
	return &CollyFetcher{base: c}
}

// Fetch retrieves rawURL. Statuses of 400 and above are returned as *HTTPError.
// Binary bodies are not downloaded; the returned Document only carries
// their content type.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	c := f.base.Clone()
	c.Context = ctx

	var doc *Document
	var fetchErr error

	c.OnResponseHeaders(func(r *colly.Response) {
		if r.StatusCode < 400 && isBinaryContentType(r.Headers.Get("Content-Type")) {
			doc = &Document{
				URL:         r.Request.URL.String(),
				StatusCode:  r.StatusCode,
				ContentType: r.Headers.Get("Content-Type"),
			}
			r.Request.Abort()
		}
	})
	c.OnResponse(func(r *colly.Response) {
		if r.StatusCode >= 400 {
			fetchErr = &HTTPError{URL: rawURL, StatusCode: r.StatusCode}
			return
		}
		doc = &Document{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        r.Body,
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if errors.Is(err, colly.ErrAbortedAfterHeaders) {
			return
		}
		if r != nil && r.StatusCode >= 400 {
			fetchErr = &HTTPError{URL: rawURL, StatusCode: r.StatusCode}
			return
		}
		fetchErr = err
	})

	if err := c.Visit(rawURL); err != nil && !errors.Is(err, colly.ErrAbortedAfterHeaders) && fetchErr == nil {
		fetchErr = err
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, fetchErr)
	}
	if doc == nil {
		return nil, fmt.Errorf("fetch %s: no response", rawURL)
	}
	return doc, nil
}

// binaryTypes are media type prefixes whose bodies are never rendered.
var binaryTypes = []string{
	"image/",
	"video/",
	"audio/",
	"font/",
	"application/pdf",
	"application/zip",
	"application/x-zip-compressed",
	"application/gzip",
	"application/vnd.rar",
	"application/x-7z-compressed",
	"application/octet-stream",
}

// isBinaryContentType reports whether a Content-Type header names a binary
// media type.
func isBinaryContentType(contentType string) bool {
	mediaType := mediaTypeOf(contentType)
	if mediaType == "" {
		return false
	}
	for _, prefix := range binaryTypes {
		if strings.HasPrefix(mediaType, prefix) {
			return true
		}
	}
	return false
}

// isHTMLContentType reports whether a page should be rendered. A missing
// Content-Type is treated as HTML.
func isHTMLContentType(contentType string) bool {
	mediaType := mediaTypeOf(contentType)
	return mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

func mediaTypeOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
