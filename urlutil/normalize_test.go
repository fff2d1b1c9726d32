package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/page#section", "https://example.com/page"},
		{"https://example.com/about/", "https://example.com/about"},
		{"https://example.com/a//", "https://example.com/a"},
		{"https://example.com/", "https://example.com/"},
		{"https://example.com", "https://example.com/"},
		{"https://example.com#top", "https://example.com/"},
		{"https://example.com/search?q=foo", "https://example.com/search?q=foo"},
		{"https://example.com/docs/?v=2", "https://example.com/docs?v=2"},
		{"HTTPS://Example.Com/Page", "https://example.com/Page"},
		{"http://example.com:80/x", "http://example.com/x"},
		{"https://example.com:443/x", "https://example.com/x"},
		{"http://example.com:8080/x", "http://example.com:8080/x"},
		{"http://127.0.0.1:54321/a.html", "http://127.0.0.1:54321/a.html"},
		{"http://[::1]:80/", "http://[::1]/"},
		{"https://example.com/caf%C3%A9/", "https://example.com/caf%C3%A9"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, in := range []string{"HTTP://Example.com:80", "https://x.dev/a/b/?q=1#f", "https://x.dev/%7Euser/"} {
		once, err := Normalize(in)
		require.NoError(t, err)
		twice, err := Normalize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, in)
	}
}

func TestNormalizeErrors(t *testing.T) {
	for _, in := range []string{"", "   ", "/relative/path", "example.com/page", "://missing-scheme"} {
		_, err := Normalize(in)
		assert.Error(t, err, "Normalize(%q)", in)
	}
	_, err := Normalize("/relative")
	assert.ErrorIs(t, err, ErrNotAbsolute)
}
