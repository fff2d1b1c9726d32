// Package reflow cleans up Markdown produced by OCR, where every line of a
// scanned page ends in a hard break.
package reflow

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/unicode/norm"
)

// Options controls Clean.
type Options struct {
	// NFKC folds full-width letters, digits and punctuation to their
	// canonical forms before reflowing.
	NFKC bool
	// Width wraps joined paragraphs at this many columns. Zero disables it.
	Width int
}

var (
	listItem = regexp.MustCompile(`^(?:[-*+]|\d+[.)])\s`)
	rule     = regexp.MustCompile(`^(?:-{3,}|\*{3,}|_{3,})$`)
)

// Clean removes form feeds and trailing whitespace and joins the lines of
// each paragraph. Blank lines are kept. Headings, table rows, rules and
// fenced code are left untouched; list items and block quotes absorb their
// continuation lines. No space is inserted when joining two CJK characters.
func Clean(text string, opts Options) string {
	if opts.NFKC {
		text = norm.NFKC.String(text)
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	trailingNewline := strings.HasSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\n")

	var (
		out     []string
		buffer  string
		inFence bool
		fence   string
	)
	flush := func() {
		if buffer == "" {
			return
		}
		if opts.Width > 0 {
			buffer = wordwrap.String(buffer, opts.Width)
		}
		out = append(out, buffer)
		buffer = ""
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRightFunc(strings.ReplaceAll(line, "\f", ""), unicode.IsSpace)
		stripped := strings.TrimSpace(line)

		if inFence {
			out = append(out, line)
			if strings.HasPrefix(stripped, fence) {
				inFence = false
			}
			continue
		}

		switch {
		case stripped == "":
			flush()
			out = append(out, "")
		case strings.HasPrefix(stripped, "```") || strings.HasPrefix(stripped, "~~~"):
			flush()
			inFence, fence = true, stripped[:3]
			out = append(out, line)
		case strings.HasPrefix(stripped, "#") || strings.HasPrefix(stripped, "|") || rule.MatchString(stripped):
			flush()
			out = append(out, line)
		case listItem.MatchString(stripped) || strings.HasPrefix(stripped, ">"):
			flush()
			buffer = line
		case buffer == "":
			buffer = stripped
		default:
			buffer = join(buffer, stripped)
		}
	}
	flush()

	cleaned := strings.Join(out, "\n")
	if trailingNewline {
		cleaned += "\n"
	}
	return cleaned
}

// join appends next to buffer, separated by a space unless both sides of
// the break are CJK.
func join(buffer, next string) string {
	last, _ := utf8.DecodeLastRuneInString(buffer)
	first, _ := utf8.DecodeRuneInString(next)
	if isCJK(last) && isCJK(first) {
		return buffer + next
	}
	return buffer + " " + next
}

func isCJK(r rune) bool {
	switch {
	case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul):
		return true
	case r >= 0x3000 && r <= 0x303F: // CJK symbols and punctuation
		return true
	case r >= 0xFF00 && r <= 0xFFEF: // half-width and full-width forms
		return true
	}
	return false
}

// CleanFile rewrites path in place with Clean applied.
func CleanFile(path string, opts Options) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(Clean(string(data), opts)), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
