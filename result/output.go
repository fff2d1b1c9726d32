package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// WriteJSON writes the saved pages as a formatted JSON array to the writer.
func WriteJSON(w io.Writer, pages []SavedPage) error {
	if pages == nil {
		pages = []SavedPage{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pages); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// WriteCSV writes the saved pages as CSV to the writer.
// Always includes a header row, even if no pages were saved.
// Column order: url, path, depth, chars, written
func WriteCSV(w io.Writer, pages []SavedPage) error {
	cw := csv.NewWriter(w)

	header := []string{"url", "path", "depth", "chars", "written"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, page := range pages {
		record := []string{
			page.URL,
			filepath.ToSlash(page.Path),
			strconv.Itoa(page.Depth),
			strconv.Itoa(page.Chars),
			strconv.FormatBool(page.Written),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record for %s: %w", page.URL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}

// WriteManifest writes pages to path, as CSV when the extension is .csv
// and as JSON otherwise.
func WriteManifest(path string, pages []SavedPage) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return fmt.Errorf("create manifest dir: %w", mkErr)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close manifest: %w", closeErr)
		}
	}()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return WriteCSV(f, pages)
	}
	return WriteJSON(f, pages)
}
