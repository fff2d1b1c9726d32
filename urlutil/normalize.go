// Package urlutil holds the URL rules shared by the crawl engine, the
// Markdown renderer and the mirror: canonical form, domain scoping, the
// binary skip-list and the URL to file mapping.
package urlutil

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrNotAbsolute is returned by Normalize for URLs without a scheme or host.
var ErrNotAbsolute = errors.New("URL must have both scheme and host")

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// Normalize returns the canonical form used as the identity of a page:
// scheme and host lowercased, default port dropped, fragment removed, an
// empty path turned into "/" and any other trailing slash trimmed. The query
// is kept as is.
//
// Every URL that enters the frontier, the visited set, the checkpoint or
// the rewrite index goes through Normalize, so equal pages compare equal as
// strings.
func Normalize(rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", errors.New("cannot normalize empty URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("normalize URL %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("normalize URL %q: %w", rawURL, ErrNotAbsolute)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && port != defaultPorts[u.Scheme] {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]" // bare IPv6 literal
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""

	switch {
	case u.Path == "":
		u.Path = "/"
		u.RawPath = ""
	case u.Path != "/" && strings.HasSuffix(u.Path, "/"):
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = strings.TrimRight(u.RawPath, "/")
		if u.Path == "" {
			u.Path = "/"
		}
	}
	return u.String(), nil
}
