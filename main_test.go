package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukemcguire/mdcrawl/result"
	"github.com/lukemcguire/mdcrawl/tui"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestOverridesOnlyChangedFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", "x.yaml", "--max-depth", "0"}))

	opts := &crawlOptions{maxDepth: 0}
	o := overridesFrom(cmd, opts)
	require.NotNil(t, o.MaxDepth, "explicit zero must override")
	assert.Equal(t, 0, *o.MaxDepth)
	assert.Nil(t, o.MaxPages)
	assert.Nil(t, o.URL)
	assert.Nil(t, o.OutputDir)
}

func TestLoadConfigAppliesOverrides(t *testing.T) {
	path := writeConfig(t, "target:\n  url: https://example.com/\ncrawl:\n  max_pages: 50\n")
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--max-pages", "7", "--output", "site"}))

	opts := &crawlOptions{configPath: path, maxPages: 7, output: "site"}
	cfg, err := loadConfig(cmd, opts)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Crawl.MaxPages)
	assert.Equal(t, "site", cfg.Output.Dir)
	assert.Equal(t, "https://example.com/", cfg.Target.URL)
}

func TestLoadConfigRequiresURL(t *testing.T) {
	path := writeConfig(t, "crawl:\n  max_depth: 1\n")
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path}))

	_, err := loadConfig(cmd, &crawlOptions{configPath: path})
	assert.Error(t, err)
}

func TestRootRequiresConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--url", "https://example.com"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestCrawlCommandEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Home</title></head><body>
<h1>Home</h1><p><a href="/a.html">Page A</a> <a href="/doc.pdf">Doc</a></p></body></html>`)
	})
	mux.HandleFunc("/a.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h1>A</h1><p><a href="/">Home</a></p></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	path := writeConfig(t, fmt.Sprintf(`target:
  url: %s/
crawl:
  max_depth: 2
performance:
  rate_limit: 0
recovery:
  state_file: %s
`, server.URL, filepath.Join(out, ".crawl_state.json")))

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--config", path, "--output", out})
	require.NoError(t, cmd.ExecuteContext(context.Background()), stderr.String())

	index, err := os.ReadFile(filepath.Join(out, "index.md"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "# Home")
	assert.Contains(t, string(index), "(a.md)")

	a, err := os.ReadFile(filepath.Join(out, "a.md"))
	require.NoError(t, err)
	assert.Contains(t, string(a), "(index.md)")

	assert.NoFileExists(t, filepath.Join(out, "doc.pdf", "index.md"))
	assert.FileExists(t, filepath.Join(out, ".crawl_state.json"))
	assert.Contains(t, stdout.String(), "Saved 2 pages")
}

func TestReflowCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.md")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\n"), 0o644))

	var stdout bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"reflow", path})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one two\n", string(data))
	assert.Contains(t, stdout.String(), "Cleaned")
}

func TestPDFCommandArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"pdf", "only-one.pdf"})
	assert.Error(t, cmd.Execute())
}

func TestPDFCommandWarnsOnExtension(t *testing.T) {
	input := filepath.Join(t.TempDir(), "scan.txt")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o644))

	var stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"pdf", "--docling", "mdcrawl-no-such-docling", input, filepath.Join(t.TempDir(), "out.md")})

	require.Error(t, cmd.Execute())
	assert.Contains(t, stderr.String(), "WARN")
	assert.Contains(t, stderr.String(), "input does not have a .pdf extension")
	assert.Contains(t, stderr.String(), input)
}

func TestTUIResult(t *testing.T) {
	quit := func(m tui.Model) tui.Model {
		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
		return updated.(tui.Model)
	}
	run := func(context.Context) (*result.Report, error) { return nil, nil }

	t.Run("quit mid-crawl", func(t *testing.T) {
		m := quit(tui.NewModel(context.Background(), func() {}, run, nil))
		err := tuiResult(m)
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, ErrInterrupted)
	})

	t.Run("finished", func(t *testing.T) {
		done, _ := tui.NewModel(context.Background(), func() {}, run, nil).Update(tui.CrawlDoneMsg{Report: &result.Report{}})
		assert.NoError(t, tuiResult(quit(done.(tui.Model))))
	})

	t.Run("crawl error", func(t *testing.T) {
		boom := errors.New("boom")
		done, _ := tui.NewModel(context.Background(), func() {}, run, nil).Update(tui.CrawlDoneMsg{Err: boom})
		assert.ErrorIs(t, tuiResult(done.(tui.Model)), boom)
	})
}
