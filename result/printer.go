package result

import (
	"fmt"
	"io"
)

// PrintReport writes failed pages and a summary of the crawl to w.
func PrintReport(w io.Writer, rep *Report) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	if len(rep.Failures) > 0 {
		writef("Failed Pages:\n")
		for i, page := range rep.Failures {
			writef("  URL: %s\n", page.URL)
			if page.Error != "" {
				writef("  Error: %s\n", page.Error)
			} else {
				writef("  Status: %d\n", page.StatusCode)
			}
			if i < len(rep.Failures)-1 {
				writef("\n")
			}
		}
	}

	writef("Saved %d pages (%d failed, %d already crawled, %d non-HTML skipped)\n",
		rep.Stats.Accepted, rep.Stats.Failed, rep.Stats.SkippedResumed, rep.Stats.SkippedBinary)
	if rep.Stats.Collisions > 0 {
		writef("%d pages overwrote a file saved earlier in the run\n", rep.Stats.Collisions)
	}
	writef("Rewrote links in %d files\n", rep.Stats.Rewritten)
}
