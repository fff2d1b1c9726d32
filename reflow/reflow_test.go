package reflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		opts Options
		want string
	}{
		{
			name: "joins paragraph lines",
			in:   "first line\nsecond line\n\nnext paragraph",
			want: "first line second line\n\nnext paragraph",
		},
		{
			name: "strips form feeds and trailing space",
			in:   "\fpage one   \ncontinues\t\n",
			want: "page one continues\n",
		},
		{
			name: "joins CJK without a space",
			in:   "音威子府村の\n広報です。\n",
			want: "音威子府村の広報です。\n",
		},
		{
			name: "mixed scripts keep a space",
			in:   "Otoineppu\n村\n",
			want: "Otoineppu 村\n",
		},
		{
			name: "headings and tables are not joined",
			in:   "## Title\nbody\n| a | b |\n| - | - |\nafter",
			want: "## Title\nbody\n| a | b |\n| - | - |\nafter",
		},
		{
			name: "list items absorb continuations",
			in:   "- one\n  wrapped\n- two\n1. three",
			want: "- one wrapped\n- two\n1. three",
		},
		{
			name: "fenced code untouched",
			in:   "```\nline  a\nline b\n```\ntext\nmore",
			want: "```\nline  a\nline b\n```\ntext more",
		},
		{
			name: "multiple blank lines kept",
			in:   "a\n\n\nb",
			want: "a\n\n\nb",
		},
		{
			name: "nfkc folds full width",
			in:   "ＡＢＣ１２３\n",
			opts: Options{NFKC: true},
			want: "ABC123\n",
		},
		{
			name: "wraps long paragraphs",
			in:   "alpha beta\ngamma delta",
			opts: Options{Width: 11},
			want: "alpha beta\ngamma delta",
		},
		{
			name: "crlf input",
			in:   "a\r\nb\r\n",
			want: "a b\n",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in, tt.opts))
		})
	}
}

func TestCleanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kouhou.md")
	require.NoError(t, os.WriteFile(path, []byte("line one\nline two\n"), 0o600))

	require.NoError(t, CleanFile(path, Options{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line one line two\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCleanFileMissing(t *testing.T) {
	assert.Error(t, CleanFile(filepath.Join(t.TempDir(), "nope.md"), Options{}))
}
