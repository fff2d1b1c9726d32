package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukemcguire/mdcrawl/result"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	successStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle         = lipgloss.NewStyle().Faint(true)
	urlStyle         = lipgloss.NewStyle()
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// categoryOrder is the display order for failure categories, most
// actionable first.
var categoryOrder = []result.ErrorCategory{
	result.Category4xx,
	result.Category5xx,
	result.CategoryTimeout,
	result.CategoryDNSFailure,
	result.CategoryConnectionRefused,
	result.CategoryRedirectLoop,
	result.CategoryRender,
	result.CategoryUnknown,
}

// RenderSummary produces a Lip Gloss styled summary of a crawl report.
func RenderSummary(rep *result.Report) string {
	if rep == nil {
		return errorStyle.Render("No results available.")
	}

	var builder strings.Builder
	stats := rep.Stats

	if len(rep.Failures) == 0 {
		builder.WriteString(successStyle.Render(fmt.Sprintf("Saved %d pages with no failures", stats.Accepted)))
		builder.WriteString("\n")
	} else {
		grouped := make(map[result.ErrorCategory][]result.FailedPage)
		for _, failure := range rep.Failures {
			cat := failure.ErrorCategory
			if cat == "" {
				cat = result.CategoryUnknown
			}
			grouped[cat] = append(grouped[cat], failure)
		}

		for _, cat := range categoryOrder {
			failures := grouped[cat]
			if len(failures) == 0 {
				continue
			}

			builder.WriteString(categoryStyle.Render(fmt.Sprintf("## %s (%d)", result.FormatCategory(cat), len(failures))))
			builder.WriteString("\n")

			rows := make([][]string, 0, len(failures))
			for _, failure := range failures {
				status := fmt.Sprintf("%d", failure.StatusCode)
				if failure.Error != "" {
					status = failure.Error
				}
				rows = append(rows, []string{failure.URL, status})
			}

			catTable := table.New().
				Border(lipgloss.RoundedBorder()).
				Headers("URL", "Status").
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == table.HeaderRow {
						return headerStyle
					}
					if col == 1 {
						return statusErrorStyle
					}
					return urlStyle
				}).
				Rows(rows...)

			builder.WriteString(catTable.Render())
			builder.WriteString("\n\n")
		}

		builder.WriteString(titleStyle.Render(fmt.Sprintf(
			"Saved %d pages, %d failed", stats.Accepted, stats.Failed)))
		builder.WriteString("\n")
	}

	skipped := stats.SkippedResumed + stats.SkippedBinary + stats.Duplicates
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"%d skipped, links rewritten in %d files, %s",
		skipped, stats.Rewritten, stats.Duration.Round(time.Millisecond),
	)))
	builder.WriteString("\n")
	if stats.Collisions > 0 {
		builder.WriteString(dimStyle.Render(fmt.Sprintf("%d pages overwrote an earlier file", stats.Collisions)))
		builder.WriteString("\n")
	}

	return builder.String()
}
