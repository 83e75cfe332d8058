package status

import (
	"fmt"
	"strings"

	"gardenloop/internal/verdict"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent      = lipgloss.Color("#8BC34A")
	muted       = lipgloss.Color("#7a8599")
	warning     = lipgloss.Color("#FFC107")
	destructive = lipgloss.Color("#e53935")
)

// Styles holds the lipgloss styles of the status report.
type Styles struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Muted   lipgloss.Style
	Pass    lipgloss.Style
	Warn    lipgloss.Style
	Reject  lipgloss.Style
	Success lipgloss.Style
}

// DefaultStyles returns the report styles.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1),
		Header:  lipgloss.NewStyle().Bold(true).Padding(0, 1),
		Cell:    lipgloss.NewStyle().Padding(0, 1),
		Muted:   lipgloss.NewStyle().Foreground(muted),
		Pass:    lipgloss.NewStyle().Foreground(accent),
		Warn:    lipgloss.NewStyle().Foreground(warning),
		Reject:  lipgloss.NewStyle().Foreground(destructive),
		Success: lipgloss.NewStyle().Bold(true).Foreground(accent),
	}
}

var zoneHeaders = []string{"Zone", "Inspo", "Generated", "Best Score", "Rejected"}

// Render draws the report: counts, the zone table, then readiness.
func Render(r Report, s Styles) string {
	var sb strings.Builder
	sb.WriteString(s.Title.Render("GARDEN STATUS"))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  Space photos:  %d\n", r.SpacePhotos)
	fmt.Fprintf(&sb, "  Annotated:     %d\n", r.Annotated)
	fmt.Fprintf(&sb, "  Layouts:       %d\n", r.Layouts)
	if u := r.Usage; u != nil {
		fmt.Fprintf(&sb, "  API calls:     %d (%d failed, %d images)\n", u.TotalProject.Calls, u.TotalProject.Failures, u.TotalProject.Images)
	}
	sb.WriteString("\n")

	rows := make([][]string, 0, len(r.Zones))
	for _, z := range r.Zones {
		rows = append(rows, []string{
			string(z.Zone),
			fmt.Sprint(z.Inspiration),
			fmt.Sprint(z.Generated),
			z.BestScore(),
			fmt.Sprint(z.Rejected),
		})
	}
	sb.WriteString(renderTable(zoneHeaders, rows, s, func(row, col int) lipgloss.Style {
		if col != 3 || r.Zones[row].Best == nil {
			return s.Cell
		}
		switch verdict.CategoryFor(r.Zones[row].Best.Score) {
		case verdict.CategoryPass:
			return s.Cell.Inherit(s.Pass)
		case verdict.CategoryMarginal:
			return s.Cell.Inherit(s.Warn)
		default:
			return s.Cell.Inherit(s.Reject)
		}
	}))

	if r.Ready() {
		sb.WriteString("\n  " + s.Success.Render("Ready to generate!") + "\n")
		return sb.String()
	}
	sb.WriteString("\n  Readiness issues:\n")
	for _, issue := range r.Issues {
		sb.WriteString("    " + s.Warn.Render("- "+issue) + "\n")
	}
	return sb.String()
}

// renderTable lays out rows under headers with columns sized to fit.
func renderTable(headers []string, rows [][]string, s Styles, cellStyle func(row, col int) lipgloss.Style) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}
	// Padding(0, 1) adds one column each side.
	for i := range widths {
		widths[i] += 2
	}

	var sb strings.Builder
	sep := s.Muted.Render("|")
	for i, h := range headers {
		sb.WriteString(s.Header.Width(widths[i]).Render(h))
		if i < len(headers)-1 {
			sb.WriteString(sep)
		}
	}
	sb.WriteString("\n")

	total := len(headers) - 1
	for _, w := range widths {
		total += w
	}
	sb.WriteString(s.Muted.Render(strings.Repeat("-", total)) + "\n")

	for r, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			sb.WriteString(cellStyle(r, i).Width(widths[i]).Render(cell))
			if i < len(row)-1 {
				sb.WriteString(sep)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
