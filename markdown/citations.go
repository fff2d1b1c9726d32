package markdown

import (
	"fmt"
	"regexp"
	"strings"
)

// inlineLink matches [text](target) and [text](target "title"), including
// images, which keep their inline form.
var inlineLink = regexp.MustCompile(`(!?)\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)

// Cite replaces inline links with numbered citations of the form text⟨n⟩
// and returns the rewritten Markdown together with a references block.
// Repeated targets share one number. Images and links to fragments of the
// same page are left inline.
func Cite(text string) (cited, references string) {
	numbers := make(map[string]int)
	var order []string
	labels := make(map[string]string)

	cited = inlineLink.ReplaceAllStringFunc(text, func(match string) string {
		parts := inlineLink.FindStringSubmatch(match)
		label, target := parts[2], parts[3]
		if parts[1] == "!" || strings.HasPrefix(target, "#") {
			return match
		}
		n, ok := numbers[target]
		if !ok {
			order = append(order, target)
			n = len(order)
			numbers[target] = n
			labels[target] = label
		}
		return fmt.Sprintf("%s⟨%d⟩", label, n)
	})

	if len(order) == 0 {
		return cited, ""
	}

	var b strings.Builder
	b.WriteString("## References\n\n")
	for i, target := range order {
		if label := strings.TrimSpace(labels[target]); label != "" {
			fmt.Fprintf(&b, "⟨%d⟩ %s: %s\n", i+1, target, label)
		} else {
			fmt.Fprintf(&b, "⟨%d⟩ %s\n", i+1, target)
		}
	}
	return cited, b.String()
}
