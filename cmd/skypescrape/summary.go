package main

import (
	"fmt"
	"strings"
	"time"

	"skypescrape/internal/export"
	"skypescrape/internal/extract"
	"skypescrape/internal/message"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3")).Width(14)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2a3850")).
			Padding(0, 1)
)

func summaryLine(label string, value any) string {
	return labelStyle.Render(label) + fmt.Sprint(value)
}

// renderSummary formats the end-of-run report.
func renderSummary(report *extract.Report, res *export.Result, exportErr error) string {
	lines := []string{
		titleStyle.Render("Extraction summary"),
		summaryLine("Run", report.RunID),
		summaryLine("Discovered", report.Discovered),
		summaryLine("Processed", report.Processed()),
		summaryLine("Failed", report.Failed()),
		summaryLine("Collected", len(report.Records)),
	}
	if d := report.Duration(); d > 0 {
		lines = append(lines, summaryLine("Duration", d.Round(100*time.Millisecond)))
	}

	if res != nil {
		lines = append(lines,
			"",
			summaryLine("Policy", res.Policy),
			summaryLine("Store", res.Path),
			summaryLine("Exported", res.Added),
			summaryLine("Skipped", res.Skipped),
			summaryLine("Total", res.Total),
		)
		if !res.Written && exportErr == nil {
			lines = append(lines, mutedStyle.Render("store already up to date"))
		}
	}
	if exportErr != nil {
		lines = append(lines, errorStyle.Render("export failed: "+exportErr.Error()))
	}
	for _, err := range report.Errors() {
		lines = append(lines, errorStyle.Render(err.Error()))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// renderRecords lists records as a markdown table rendered for the terminal.
func renderRecords(records []message.Record, style string) (string, error) {
	var md strings.Builder
	md.WriteString("| Heure | Nom | Message |\n|---|---|---|\n")
	for _, r := range records {
		fmt.Fprintf(&md, "| %s | %s | %s |\n", mdCell(r.Timestamp), mdCell(r.Sender), mdCell(r.Content))
	}

	styleOpt := glamour.WithAutoStyle()
	if style != "" && style != "auto" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(100))
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	return renderer.Render(md.String())
}

func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
