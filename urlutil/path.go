package urlutil

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// FilePath maps a crawled URL to the Markdown file it is saved as under
// outputDir, mirroring the site's directory structure:
//
//	https://x/            -> outputDir/index.md
//	https://x/index.html  -> outputDir/index.md
//	https://x/a/b.html    -> outputDir/a/b.md
//	https://x/a/b/        -> outputDir/a/b/index.md
//
// The mapping ignores host, query and fragment, so URLs that differ only in
// those (or in a trailing slash) map to the same file.
func FilePath(rawURL, outputDir string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse URL %q: %w", rawURL, err)
	}

	// Cleaning against "/" resolves ".." so nothing maps above outputDir.
	p := strings.Trim(path.Clean("/"+parsed.Path), "/")

	switch {
	case p == "" || p == "index.html":
		return filepath.Join(outputDir, "index.md"), nil
	case strings.HasSuffix(p, ".html"):
		// Every ".html" in the path is replaced, not only the suffix.
		return filepath.Join(outputDir, filepath.FromSlash(strings.ReplaceAll(p, ".html", ".md"))), nil
	default:
		return filepath.Join(outputDir, filepath.FromSlash(p), "index.md"), nil
	}
}
