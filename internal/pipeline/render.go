package pipeline

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// TABLE RENDERING
// =============================================================================

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	tableMutedStyle  = lipgloss.NewStyle().Faint(true)
)

// Table renders static rows with aligned columns for terminal summaries.
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow appends one row. Missing cells render empty.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render lays the table out with padded, width-aligned columns.
func (t *Table) Render() string {
	if len(t.rows) == 0 {
		return ""
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}
	for i := range widths {
		widths[i] += 2 // cell padding
	}

	var sb strings.Builder
	total := 0
	for i, h := range t.headers {
		sb.WriteString(tableHeaderStyle.Width(widths[i]).Render(h))
		total += widths[i]
		if i < len(t.headers)-1 {
			sb.WriteString(tableMutedStyle.Render("|"))
			total++
		}
	}
	sb.WriteString("\n")
	sb.WriteString(tableMutedStyle.Render(strings.Repeat("-", total)))
	sb.WriteString("\n")

	for _, row := range t.rows {
		for i := range t.headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			sb.WriteString(tableCellStyle.Width(widths[i]).Render(cell))
			if i < len(t.headers)-1 {
				sb.WriteString(tableMutedStyle.Render("|"))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
