// Package markdown renders fetched HTML pages to Markdown.
//
// A page is parsed with goquery, pruned according to Options, optionally
// reduced to its main content with readability, converted with
// html-to-markdown and wrapped to a fixed width. A second variant with
// numbered citations is produced alongside the raw Markdown.
package markdown

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/muesli/reflow/wordwrap"

	"github.com/lukemcguire/mdcrawl/config"
	"github.com/lukemcguire/mdcrawl/urlutil"
)

// Content filters accepted by Options.ContentFilter.
const (
	FilterNone        = "none"
	FilterReadability = "readability"
)

// ErrUnknownFilter is returned by NewGenerator for an unsupported content filter.
var ErrUnknownFilter = errors.New("unknown content filter")

// alwaysRemoved never contributes readable text.
var alwaysRemoved = []string{"script", "style", "noscript", "template"}

// sectioningTags are block elements the converter has no rule for. Without
// one their text runs into the neighbouring inline content.
var sectioningTags = []string{
	"header", "footer", "nav", "main", "section", "article", "aside",
	"figure", "figcaption", "address", "details", "summary",
}

// Options controls rendering.
type Options struct {
	Citations          bool
	BodyWidth          int // 0 disables wrapping
	SkipInternalLinks  bool
	ContentFilter      string
	ExcludedTags       []string
	ExcludedSelector   string
	WordCountThreshold int // paragraphs with fewer words are dropped
}

// OptionsFromConfig builds Options from the markdown and content sections.
func OptionsFromConfig(m config.MarkdownConfig, c config.ContentConfig) Options {
	return Options{
		Citations:          m.Citations,
		BodyWidth:          m.BodyWidth,
		SkipInternalLinks:  m.SkipInternalLinks,
		ContentFilter:      m.ContentFilter,
		ExcludedTags:       c.ExcludedTags,
		ExcludedSelector:   c.ExcludedSelector,
		WordCountThreshold: c.WordCountThreshold,
	}
}

// Output is a rendered page.
type Output struct {
	Title      string
	Markdown   string // raw Markdown, written to disk
	Cited      string // Markdown with links replaced by numbered citations
	References string // references block for Cited
}

// Generator converts HTML to Markdown. It is safe for concurrent use.
type Generator struct {
	opts Options
	conv *md.Converter
}

// NewGenerator validates opts and builds a Generator.
func NewGenerator(opts Options) (*Generator, error) {
	switch opts.ContentFilter {
	case "", FilterNone, FilterReadability:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, opts.ContentFilter)
	}
	if opts.BodyWidth < 0 {
		return nil, fmt.Errorf("body width must be >= 0, got %d", opts.BodyWidth)
	}

	conv := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		CodeBlockStyle:   "fenced",
		BulletListMarker: "-",
	})
	conv.Use(plugin.GitHubFlavored())
	conv.AddRules(md.Rule{
		Filter: sectioningTags,
		Replacement: func(content string, _ *goquery.Selection, _ *md.Options) *string {
			if strings.TrimSpace(content) == "" {
				return md.String("")
			}
			return md.String("\n\n" + content + "\n\n")
		},
	})
	if opts.SkipInternalLinks {
		conv.AddRules(md.Rule{
			Filter: []string{"a"},
			Replacement: func(content string, selec *goquery.Selection, _ *md.Options) *string {
				href, _ := selec.Attr("href")
				if !strings.HasPrefix(href, "#") {
					return nil
				}
				return md.String(content)
			},
		})
	}
	return &Generator{opts: opts, conv: conv}, nil
}

// Render converts the HTML body of pageURL to Markdown.
func (g *Generator) Render(pageURL string, body []byte) (Output, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return Output{}, fmt.Errorf("parse page URL %q: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Output{}, fmt.Errorf("parse html for %s: %w", pageURL, err)
	}

	g.prune(doc)
	resolveLinks(doc, pageURL)

	out := Output{Title: strings.TrimSpace(doc.Find("title").First().Text())}

	var html string
	if g.opts.ContentFilter == FilterReadability {
		full, err := doc.Html()
		if err != nil {
			return Output{}, fmt.Errorf("serialize html for %s: %w", pageURL, err)
		}
		// Pages readability cannot handle are rendered whole.
		if article, rErr := readability.FromReader(strings.NewReader(full), base); rErr == nil && strings.TrimSpace(article.Content) != "" {
			html = article.Content
			if t := strings.TrimSpace(article.Title); t != "" {
				out.Title = t
			}
		}
	}
	if html == "" {
		// Only the body is rendered; the title is reported separately.
		doc.Find("head").Remove()
		if html, err = doc.Html(); err != nil {
			return Output{}, fmt.Errorf("serialize html for %s: %w", pageURL, err)
		}
	}

	text, err := g.conv.ConvertString(html)
	if err != nil {
		return Output{}, fmt.Errorf("convert %s: %w", pageURL, err)
	}
	text = strings.TrimSpace(text)
	if g.opts.BodyWidth > 0 {
		text = wrap(text, g.opts.BodyWidth)
	}

	out.Markdown = text
	if g.opts.Citations && text != "" {
		out.Cited, out.References = Cite(text)
	}
	return out, nil
}

// prune removes excluded tags, the excluded selector and short paragraphs.
func (g *Generator) prune(doc *goquery.Document) {
	for _, tag := range alwaysRemoved {
		doc.Find(tag).Remove()
	}
	for _, tag := range g.opts.ExcludedTags {
		if tag = strings.TrimSpace(tag); tag != "" {
			doc.Find(tag).Remove()
		}
	}
	if sel := strings.TrimSpace(g.opts.ExcludedSelector); sel != "" {
		doc.Find(sel).Remove()
	}
	if g.opts.WordCountThreshold > 0 {
		doc.Find("p").Each(func(_ int, s *goquery.Selection) {
			if len(strings.Fields(s.Text())) < g.opts.WordCountThreshold {
				s.Remove()
			}
		})
	}
}

// resolveLinks rewrites anchor and image URLs to absolute form so that
// links between crawled pages match the URLs the engine reports.
func resolveLinks(doc *goquery.Document, pageURL string) {
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		if abs, ok := absoluteURL(pageURL, href, true); ok {
			s.SetAttr("href", abs)
		}
	})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		if abs, ok := absoluteURL(pageURL, src, false); ok {
			s.SetAttr("src", abs)
		}
	})
}

func absoluteURL(base, ref string, normalize bool) (string, bool) {
	resolved, err := urlutil.ResolveReference(base, ref)
	if err != nil {
		return "", false
	}
	if !normalize || !urlutil.IsHTTPScheme(resolved) {
		return resolved, true
	}
	parsed, err := url.Parse(resolved)
	if err != nil {
		return resolved, true
	}
	fragment := parsed.EscapedFragment()
	normalized, err := urlutil.Normalize(resolved)
	if err != nil {
		return resolved, true
	}
	if fragment != "" {
		normalized += "#" + fragment
	}
	return normalized, true
}

// wrap word-wraps prose to width, leaving fenced code, tables and headings
// untouched.
func wrap(text string, width int) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	inFence := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~"):
			inFence = !inFence
			out = append(out, line)
		case inFence, strings.HasPrefix(trimmed, "|"), strings.HasPrefix(trimmed, "#"):
			out = append(out, line)
		default:
			out = append(out, wordwrap.String(line, width))
		}
	}
	return strings.Join(out, "\n")
}
