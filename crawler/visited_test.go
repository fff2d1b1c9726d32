package crawler_test

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lukemcguire/mdcrawl/crawler"
)

func newTracker(t *testing.T, expected uint) *crawler.VisitedTracker {
	t.Helper()
	vt, err := crawler.NewVisitedTracker(expected)
	if err != nil {
		t.Fatalf("NewVisitedTracker() error: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := vt.Close(); closeErr != nil {
			t.Errorf("Close() error: %v", closeErr)
		}
	})
	return vt
}

// TestVisitedTrackerVisitIfNew verifies that VisitIfNew returns true only
// for the first visit of a URL.
func TestVisitedTrackerVisitIfNew(t *testing.T) {
	vt := newTracker(t, 100)
	url := "https://example.com/page"

	if vt.IsVisited(url) {
		t.Error("IsVisited() returned true for new URL")
	}
	if !vt.VisitIfNew(url) {
		t.Error("VisitIfNew() returned false for first visit")
	}
	if vt.VisitIfNew(url) {
		t.Error("VisitIfNew() returned true for second visit")
	}
	if !vt.IsVisited(url) {
		t.Error("IsVisited() returned false after VisitIfNew()")
	}
	if vt.Len() != 1 {
		t.Errorf("Len() = %d, want 1", vt.Len())
	}
}

// TestVisitedTrackerConcurrent verifies exactly one goroutine wins each URL.
func TestVisitedTrackerConcurrent(t *testing.T) {
	vt := newTracker(t, 10000)

	const goroutines = 8
	const urls = 500
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := make(map[string]int)

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range urls {
				u := fmt.Sprintf("https://example.com/page/%d", i)
				if vt.VisitIfNew(u) {
					mu.Lock()
					wins[u]++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	for u, n := range wins {
		if n != 1 {
			t.Errorf("%s won %d times, want 1", u, n)
		}
	}
	// False positives may hide a handful of URLs, never more.
	if len(wins) < urls-5 {
		t.Errorf("only %d of %d URLs recorded as new", len(wins), urls)
	}
}

// TestVisitedTrackerLargeScale checks the false-positive rate stays near target
// across a periodic sync.
func TestVisitedTrackerLargeScale(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large-scale test in short mode")
	}
	vt := newTracker(t, 20000)

	falsePositives := 0
	for i := range 20000 {
		if !vt.VisitIfNew(fmt.Sprintf("https://example.com/p/%d", i)) {
			falsePositives++
		}
	}
	if falsePositives > 100 {
		t.Errorf("%d false positives in 20000 inserts, want <= 100", falsePositives)
	}
}

// TestVisitedTrackerCleanup verifies Close removes the backing file.
func TestVisitedTrackerCleanup(t *testing.T) {
	before, _ := filepath.Glob(filepath.Join(os.TempDir(), "mdcrawl-visited-*.bloom"))

	vt, err := crawler.NewVisitedTracker(100)
	if err != nil {
		t.Fatalf("NewVisitedTracker() error: %v", err)
	}
	vt.VisitIfNew("https://example.com/")

	during, _ := filepath.Glob(filepath.Join(os.TempDir(), "mdcrawl-visited-*.bloom"))
	if len(during) != len(before)+1 {
		t.Errorf("expected one new backing file, found %d -> %d", len(before), len(during))
	}

	if err := vt.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	after, _ := filepath.Glob(filepath.Join(os.TempDir(), "mdcrawl-visited-*.bloom"))
	if len(after) != len(before) {
		t.Errorf("backing file left behind: %d -> %d", len(before), len(after))
	}

	// A second Close is a no-op.
	if err := vt.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}
