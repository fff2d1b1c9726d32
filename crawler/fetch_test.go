package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollyFetcher(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<h1>page</h1><p>%s</p>`, r.UserAgent())
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/down", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte(strings.Repeat("\x89PNG", 1024)))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := NewCollyFetcher("mdcrawl-test", 5*time.Second)

	t.Run("html page", func(t *testing.T) {
		doc, err := f.Fetch(context.Background(), server.URL+"/page")
		if err != nil {
			t.Fatalf("Fetch() error: %v", err)
		}
		if doc.StatusCode != 200 || !strings.Contains(string(doc.Body), "<h1>page</h1>") {
			t.Errorf("doc = %+v", doc)
		}
		if !isHTMLContentType(doc.ContentType) {
			t.Errorf("ContentType = %q", doc.ContentType)
		}
		if !strings.Contains(string(doc.Body), "<p>mdcrawl-test</p>") {
			t.Errorf("User-Agent not sent: %s", doc.Body)
		}
	})

	t.Run("redirect reports final URL", func(t *testing.T) {
		doc, err := f.Fetch(context.Background(), server.URL+"/old")
		if err != nil {
			t.Fatalf("Fetch() error: %v", err)
		}
		if doc.URL != server.URL+"/page" {
			t.Errorf("URL = %q, want redirect target", doc.URL)
		}
	})

	for _, tc := range []struct {
		path   string
		status int
	}{
		{"/missing", 404},
		{"/down", 503},
	} {
		t.Run(tc.path, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), server.URL+tc.path)
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) || httpErr.StatusCode != tc.status {
				t.Errorf("Fetch() error = %v, want HTTP %d", err, tc.status)
			}
		})
	}

	t.Run("binary body skipped", func(t *testing.T) {
		doc, err := f.Fetch(context.Background(), server.URL+"/image")
		if err != nil {
			t.Fatalf("Fetch() error: %v", err)
		}
		if len(doc.Body) != 0 || doc.ContentType != "image/png" {
			t.Errorf("doc = %+v, want headers only", doc)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := f.Fetch(ctx, server.URL+"/page"); err == nil {
			t.Error("Fetch() with cancelled context returned nil error")
		}
	})
}

func TestHTTPErrorMessage(t *testing.T) {
	err := &HTTPError{URL: "https://example.com/x", StatusCode: 404}
	if got := err.Error(); got != "https://example.com/x: HTTP 404 Not Found" {
		t.Errorf("Error() = %q", got)
	}
}
