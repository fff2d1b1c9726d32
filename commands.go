package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/lukemcguire/mdcrawl/config"
	"github.com/lukemcguire/mdcrawl/crawler"
	"github.com/lukemcguire/mdcrawl/markdown"
	"github.com/lukemcguire/mdcrawl/mirror"
	"github.com/lukemcguire/mdcrawl/pdfconv"
	"github.com/lukemcguire/mdcrawl/reflow"
	"github.com/lukemcguire/mdcrawl/result"
	"github.com/lukemcguire/mdcrawl/tui"
)

// crawlOptions holds the root command's flags.
type crawlOptions struct {
	configPath string
	url        string
	maxPages   int
	maxDepth   int
	output     string
	resume     bool
	verbose    bool
	useTUI     bool
}

func newRootCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "mdcrawl",
		Short: "Mirror a website as a tree of Markdown files",
		Long: `mdcrawl crawls a website from a start URL and saves every page as
Markdown under an output directory that mirrors the site's paths. Links
between saved pages are rewritten to relative file links, and an
interrupted crawl can be resumed from its checkpoint.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file")
	flags.StringVar(&opts.url, "url", "", "start URL (overrides target.url)")
	flags.IntVar(&opts.maxPages, "max-pages", 0, "maximum pages to crawl (overrides crawl.max_pages)")
	flags.IntVar(&opts.maxDepth, "max-depth", 0, "maximum link depth (overrides crawl.max_depth)")
	flags.StringVarP(&opts.output, "output", "o", "", "output directory (overrides output.dir)")
	flags.BoolVar(&opts.resume, "resume", false, "skip pages saved by a previous run")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&opts.useTUI, "tui", false, "show live progress in a terminal UI")
	_ = cmd.MarkFlagRequired("config")

	cmd.AddCommand(newReflowCmd(), newPDFCmd())
	return cmd
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
}

// overridesFrom returns only the flags the user actually set, so a zero
// value on the command line still overrides the config file.
func overridesFrom(cmd *cobra.Command, opts *crawlOptions) config.Overrides {
	var o config.Overrides
	flags := cmd.Flags()
	if flags.Changed("url") {
		o.URL = &opts.url
	}
	if flags.Changed("max-pages") {
		o.MaxPages = &opts.maxPages
	}
	if flags.Changed("max-depth") {
		o.MaxDepth = &opts.maxDepth
	}
	if flags.Changed("output") {
		o.OutputDir = &opts.output
	}
	return o
}

// loadConfig loads the config file, applies flag overrides and validates
// the result.
func loadConfig(cmd *cobra.Command, opts *crawlOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	cfg.Apply(overridesFrom(cmd, opts))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runCrawl(cmd *cobra.Command, opts *crawlOptions) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.verbose)
	if opts.useTUI {
		// Log lines would tear the TUI; the summary reports failures instead.
		logger = log.New(io.Discard)
	}

	gen, err := markdown.NewGenerator(markdown.OptionsFromConfig(cfg.Markdown, cfg.Content))
	if err != nil {
		return fmt.Errorf("markdown: %w", err)
	}
	engine, err := crawler.New(crawler.ConfigFrom(cfg), gen, logger)
	if err != nil {
		return fmt.Errorf("crawler: %w", err)
	}
	defer func() {
		if closeErr := engine.Close(); closeErr != nil {
			logger.Warn("closing crawler", "err", closeErr)
		}
	}()

	logger.Info("starting crawl",
		"url", cfg.Target.URL,
		"strategy", cfg.Crawl.Strategy,
		"max_depth", cfg.Crawl.MaxDepth,
		"max_pages", cfg.Crawl.MaxPages,
		"output", cfg.Output.Dir,
	)

	if opts.useTUI {
		return runWithTUI(ctx, cfg, engine, opts.resume, cmd.OutOrStdout())
	}

	rep, err := mirror.New(cfg, engine, mirror.WithLogger(logger)).Run(ctx, opts.resume)
	if rep != nil {
		result.PrintReport(cmd.OutOrStdout(), rep)
	}
	return err
}

// ErrInterrupted is returned when the user quits the TUI mid-crawl.
var ErrInterrupted = fmt.Errorf("crawl interrupted: %w", context.Canceled)

func runWithTUI(ctx context.Context, cfg *config.Config, engine mirror.Engine, resume bool, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan mirror.Event, 100)
	m := mirror.New(cfg, engine, mirror.WithEvents(events))

	// The crawl runs in a tea.Cmd goroutine. After the program exits it is
	// cancelled and awaited so that the last checkpoint is complete.
	var (
		mu      sync.Mutex
		stopped bool
		running sync.WaitGroup
	)
	run := func(ctx context.Context) (*result.Report, error) {
		mu.Lock()
		if stopped {
			mu.Unlock()
			return nil, context.Canceled
		}
		running.Add(1)
		mu.Unlock()
		defer running.Done()
		defer close(events)
		return m.Run(ctx, resume)
	}

	finalModel, err := tea.NewProgram(tui.NewModel(ctx, cancel, run, events), tea.WithOutput(out)).Run()
	cancel()
	mu.Lock()
	stopped = true
	mu.Unlock()
	running.Wait()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return tuiResult(finalModel.(tui.Model))
}

// tuiResult maps the final TUI state to the command's error.
func tuiResult(m tui.Model) error {
	if m.Cancelled() {
		return ErrInterrupted
	}
	return m.Err()
}

func newReflowCmd() *cobra.Command {
	var opts reflow.Options
	cmd := &cobra.Command{
		Use:   "reflow <file>...",
		Short: "Join hard-wrapped OCR lines in Markdown files, in place",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := reflow.CleanFile(path, opts); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleaned %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.NFKC, "nfkc", false, "fold full-width characters (NFKC)")
	cmd.Flags().IntVar(&opts.Width, "width", 0, "wrap paragraphs at this width (0 disables)")
	return cmd
}

func newPDFCmd() *cobra.Command {
	var (
		binary  string
		noOCR   bool
		noTable bool
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "pdf <input.pdf> <output.md>",
		Short: "Convert a PDF to Markdown with docling (OCR enabled)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd.ErrOrStderr(), verbose)
			if !strings.EqualFold(filepath.Ext(args[0]), ".pdf") {
				logger.Warn("input does not have a .pdf extension", "path", args[0])
			}
			conv := pdfconv.New(logger)
			conv.Binary = binary
			conv.OCR = !noOCR
			conv.Tables = !noTable
			return conv.Convert(cmd.Context(), args[0], args[1])
		},
	}
	cmd.Flags().StringVar(&binary, "docling", pdfconv.DefaultBinary, "docling executable")
	cmd.Flags().BoolVar(&noOCR, "no-ocr", false, "disable OCR")
	cmd.Flags().BoolVar(&noTable, "no-tables", false, "disable table structure recovery")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}
