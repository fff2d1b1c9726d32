package result

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// ErrorCategory classifies why a page could not be saved.
type ErrorCategory string

const (
	CategoryTimeout           ErrorCategory = "timeout"
	CategoryDNSFailure        ErrorCategory = "dns_failure"
	CategoryConnectionRefused ErrorCategory = "connection_refused"
	Category4xx               ErrorCategory = "4xx"
	Category5xx               ErrorCategory = "5xx"
	CategoryRedirectLoop      ErrorCategory = "redirect_loop"
	CategoryRender            ErrorCategory = "render"
	CategoryUnknown           ErrorCategory = "unknown"
)

var categoryLabels = map[ErrorCategory]string{
	CategoryTimeout:           "Timeouts",
	CategoryDNSFailure:        "DNS Failures",
	CategoryConnectionRefused: "Connection Refused",
	Category4xx:               "Client Errors (4xx)",
	Category5xx:               "Server Errors (5xx)",
	CategoryRedirectLoop:      "Redirect Loops",
	CategoryRender:            "Render Failures",
}

// redirectMarkers are the messages net/http and chromedp use when a
// redirect chain never settles.
var redirectMarkers = []string{"stopped after 10 redirects", "err_too_many_redirects"}

// ClassifyError categorizes a failed fetch. An HTTP status of 400 or more
// decides on its own; otherwise the error chain is inspected.
func ClassifyError(err error, statusCode int) ErrorCategory {
	switch {
	case statusCode >= 500:
		return Category5xx
	case statusCode >= 400:
		return Category4xx
	case err == nil:
		return CategoryUnknown
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range redirectMarkers {
		if strings.Contains(msg, marker) {
			return CategoryRedirectLoop
		}
	}

	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.As(err, &dnsErr):
		return CategoryDNSFailure
	case errors.Is(err, syscall.ECONNREFUSED), strings.Contains(msg, "connection refused"):
		return CategoryConnectionRefused
	case errors.As(err, &netErr) && netErr.Timeout():
		return CategoryTimeout
	case strings.Contains(msg, "timeout"):
		return CategoryTimeout
	}
	return CategoryUnknown
}

// FormatCategory returns the heading used for a category in reports.
func FormatCategory(cat ErrorCategory) string {
	if label, ok := categoryLabels[cat]; ok {
		return label
	}
	return "Other Errors"
}
