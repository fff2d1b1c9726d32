package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// IsSameDomain reports whether targetURL is on baseHost or one of its
// subdomains. A leading "www." is ignored on both sides, so www.example.com
// and example.com are the same site.
func IsSameDomain(targetURL, baseHost string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	host := bareHost(u.Hostname())
	base := bareHost(baseHost)
	if host == "" || base == "" {
		return false
	}
	return host == base || strings.HasSuffix(host, "."+base)
}

func bareHost(h string) string {
	h = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(h), "."))
	return strings.TrimPrefix(h, "www.")
}

// IsHTTPScheme reports whether rawURL is an http or https URL.
func IsHTTPScheme(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, "http") || strings.EqualFold(u.Scheme, "https")
}

// ResolveReference resolves ref against base the way a browser follows a
// link. Absolute refs come back unchanged; whitespace around ref is ignored.
func ResolveReference(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", base, err)
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse ref URL %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}
