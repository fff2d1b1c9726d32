// Package pdfconv converts PDFs to Markdown with the docling CLI, running
// OCR on scanned pages.
package pdfconv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultBinary is the docling executable looked up on PATH.
const DefaultBinary = "docling"

// ErrNotInstalled is returned when the converter binary cannot be found.
var ErrNotInstalled = errors.New("converter not installed")

// Converter runs docling on one PDF at a time.
type Converter struct {
	Binary string // executable name or path; DefaultBinary when empty
	OCR    bool   // run OCR on bitmap content
	Tables bool   // recover table structure
	Logger *log.Logger
}

// New returns a Converter with OCR and table recovery enabled.
func New(logger *log.Logger) *Converter {
	return &Converter{Binary: DefaultBinary, OCR: true, Tables: true, Logger: logger}
}

// Convert writes the Markdown rendering of pdfPath to outPath, creating
// parent directories as needed.
func (c *Converter) Convert(ctx context.Context, pdfPath, outPath string) error {
	binary := c.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("%w: %s", ErrNotInstalled, binary)
	}
	if _, err := os.Stat(pdfPath); err != nil {
		return fmt.Errorf("input %s: %w", pdfPath, err)
	}

	tmp, err := os.MkdirTemp("", "mdcrawl-docling-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	args := []string{pdfPath, "--to", "md", "--output", tmp}
	args = append(args, flag(c.OCR, "ocr"), flag(c.Tables, "tables"))

	logger := c.logger()
	logger.Info("converting PDF (this may take a while)", "input", pdfPath)
	start := time.Now()

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("convert %s: %w", pdfPath, ctxErr)
		}
		return fmt.Errorf("convert %s: %w: %s", pdfPath, err, strings.TrimSpace(output.String()))
	}

	stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	produced := filepath.Join(tmp, stem+".md")
	if err := moveFile(produced, outPath); err != nil {
		return fmt.Errorf("collect output of %s: %w", pdfPath, err)
	}

	logger.Info("saved", "output", outPath, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (c *Converter) logger() *log.Logger {
	if c.Logger == nil {
		return log.New(io.Discard)
	}
	return c.Logger
}

func flag(on bool, name string) string {
	if on {
		return "--" + name
	}
	return "--no-" + name
}

// moveFile copies src to dst. The temp dir may sit on another filesystem,
// so a rename is not attempted.
func moveFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
