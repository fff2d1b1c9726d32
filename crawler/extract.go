package crawler

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/lukemcguire/mdcrawl/urlutil"
)

// ExtractLinks tokenizes an HTML page and returns the normalized absolute
// http(s) URLs of its <a> and <area> hrefs in document order, without
// duplicates. A <base href> changes the resolution base for links after it.
func ExtractLinks(body io.Reader, baseURL *url.URL) ([]string, error) {
	tokenizer := html.NewTokenizer(body)
	seen := make(map[string]bool)
	var links []string
	var errs []error
	base := baseURL

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if err := tokenizer.Err(); err != nil && err != io.EOF {
				errs = append(errs, err)
			}
			if len(errs) > 0 {
				return links, fmt.Errorf("encountered %d parse errors (first: %w)", len(errs), errs[0])
			}
			return links, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			href, ok := attr(token, "href")
			if !ok {
				continue
			}
			switch token.Data {
			case "base":
				if parsed, err := url.Parse(strings.TrimSpace(href)); err == nil {
					base = baseURL.ResolveReference(parsed)
				}
			case "a", "area":
				link, err := resolveLink(base, href)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if link != "" && !seen[link] {
					seen[link] = true
					links = append(links, link)
				}
			}
		}
	}
}

// extractLinksFromBytes is ExtractLinks over an in-memory body.
func extractLinksFromBytes(body []byte, pageURL string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page URL %q: %w", pageURL, err)
	}
	return ExtractLinks(bytes.NewReader(body), base)
}

// resolveLink returns the normalized absolute form of href, or "" for
// links that cannot be crawled.
func resolveLink(base *url.URL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		// Self-references never lead to a new page.
		return "", nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	resolved := base.ResolveReference(ref).String()
	if !urlutil.IsHTTPScheme(resolved) {
		return "", nil
	}
	normalized, err := urlutil.Normalize(resolved)
	if err != nil {
		return "", fmt.Errorf("normalize URL %q: %w", resolved, err)
	}
	return normalized, nil
}

func attr(token html.Token, key string) (string, bool) {
	for _, a := range token.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
