// Package rewrite turns links between crawled pages into relative links
// between the saved Markdown files.
package rewrite

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// linkPattern matches [text](target) and ![alt](target). Group 1 is the
// bracketed prefix, group 2 the target.
var linkPattern = regexp.MustCompile(`(!?\[[^\]]*\])\(([^)]+)\)`)

// Resolver returns the replacement for a link target found in fromFile,
// and false when the link should be left alone.
type Resolver func(target, fromFile string) (string, bool)

// Rewrite scans every *.md file under outputDir and replaces link targets
// that are exact keys of urlToFile with the mapped file's path relative to
// the containing file. It returns the number of files modified.
func Rewrite(urlToFile map[string]string, outputDir string) (int, error) {
	resolve := IndexResolver(urlToFile)
	modified := 0

	err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}

		changed, err := RewriteFile(path, resolve)
		if err != nil {
			return err
		}
		if changed {
			modified++
		}
		return nil
	})
	if err != nil {
		return modified, fmt.Errorf("rewrite links in %s: %w", outputDir, err)
	}
	return modified, nil
}

// RewriteFile applies resolve to the links of one file and writes it back
// only if its content changed.
func RewriteFile(path string, resolve Resolver) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	original := string(data)
	updated := RewriteContent(original, path, resolve)
	if updated == original {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// RewriteContent returns content with every link target that resolve
// accepts replaced.
func RewriteContent(content, fromFile string, resolve Resolver) string {
	matches := linkPattern.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content
	}

	var b strings.Builder
	b.Grow(len(content))
	last := 0
	for _, m := range matches {
		// m: full[0:2], prefix[2:4], target[4:6]
		target := content[m[4]:m[5]]
		replacement, ok := resolve(target, fromFile)
		if !ok {
			continue
		}
		b.WriteString(content[last:m[0]])
		b.WriteString(content[m[2]:m[3]])
		b.WriteByte('(')
		b.WriteString(replacement)
		b.WriteByte(')')
		last = m[1]
	}
	b.WriteString(content[last:])
	return b.String()
}

// IndexResolver resolves targets that are exact keys of urlToFile. No
// normalization is applied: a trailing slash or query string that differs
// from the indexed URL is not a match.
func IndexResolver(urlToFile map[string]string) Resolver {
	return func(target, fromFile string) (string, bool) {
		file, ok := urlToFile[target]
		if !ok {
			return "", false
		}
		rel, err := RelativePath(file, fromFile)
		if err != nil {
			return "", false
		}
		return rel, true
	}
}

// RelativePath returns the slash-separated path of target relative to the
// directory containing fromFile. Both are made absolute first.
func RelativePath(target, fromFile string) (string, error) {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", target, err)
	}
	absFrom, err := filepath.Abs(fromFile)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", fromFile, err)
	}
	rel, err := filepath.Rel(filepath.Dir(absFrom), absTarget)
	if err != nil {
		return "", fmt.Errorf("relative path from %s to %s: %w", fromFile, target, err)
	}
	return filepath.ToSlash(rel), nil
}
