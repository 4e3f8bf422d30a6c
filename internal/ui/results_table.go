package ui

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const (
	columnPadding  = 2
	leftMargin     = 2
	minColumnWidth = 6
	maxColumnWidth = 40
)

// NullCell is shown for NULL values.
const NullCell = "-"

// ResultsTable renders result rows under a header row, fitting the columns to
// the terminal width.
type ResultsTable struct {
	display *DisplayContext
	columns []string
	rows    [][]string
}

// NewResultsTable creates a table whose columns are the given output names.
func NewResultsTable(display *DisplayContext, columns []string) *ResultsTable {
	return &ResultsTable{
		display: display,
		columns: columns,
	}
}

// AddRow adds a result row. Cells are looked up by column name.
func (t *ResultsTable) AddRow(row map[string]interface{}) {
	cells := make([]string, len(t.columns))
	for i, col := range t.columns {
		cells[i] = FormatCell(row[col])
	}
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows added.
func (t *ResultsTable) Len() int { return len(t.rows) }

// calculateWidths sizes every column to its widest cell, capped at
// maxColumnWidth, then shrinks the widest columns until the table fits.
func (t *ResultsTable) calculateWidths() []int {
	widths := make([]int, len(t.columns))
	for i, col := range t.columns {
		widths[i] = lipgloss.Width(col)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	total := 0
	for i := range widths {
		if widths[i] > maxColumnWidth {
			widths[i] = maxColumnWidth
		}
		total += widths[i]
	}

	available := t.display.AvailableWidth(leftMargin) - (len(widths)-1)*columnPadding
	for total > available {
		widest := 0
		for i := range widths {
			if widths[i] > widths[widest] {
				widest = i
			}
		}
		if widths[widest] <= minColumnWidth {
			break
		}
		widths[widest]--
		total--
	}
	return widths
}

// Render generates the table output as a string.
func (t *ResultsTable) Render() string {
	if len(t.rows) == 0 {
		return ""
	}
	widths := t.calculateWidths()

	headers := make([]string, len(t.columns))
	for i, col := range t.columns {
		headers[i] = TruncateWithEllipsis(col, widths[i])
	}
	rows := make([][]string, len(t.rows))
	for i, row := range t.rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = TruncateWithEllipsis(cell, widths[j])
		}
		rows[i] = cells
	}

	tbl := table.New().
		Border(lipgloss.Border{Top: "─", Bottom: "─", Middle: "─"}).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(true).
		BorderRow(false).
		BorderColumn(false).
		BorderStyle(Muted).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle()
			if row == table.HeaderRow {
				style = HeaderCell
			} else if row >= 0 && row < len(rows) && col < len(rows[row]) && rows[row][col] == NullCell {
				style = Muted
			}
			if col < len(widths) {
				style = style.Width(widths[col])
			}
			if col < len(t.columns)-1 {
				style = style.PaddingRight(columnPadding)
			}
			return style
		}).
		Rows(rows...)

	return tbl.Render()
}

// FormatCell renders a result value for display.
func FormatCell(v interface{}) string {
	switch vv := v.(type) {
	case nil:
		return NullCell
	case string:
		return vv
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case []interface{}, map[string]interface{}:
		b, err := json.Marshal(vv)
		if err != nil {
			return fmt.Sprint(vv)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}

// TruncateWithEllipsis truncates s to maxLen runes, adding an ellipsis if
// needed. It prefers to break at a space in the second half of the text.
func TruncateWithEllipsis(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}

	truncated := string(runes[:maxLen-3])
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > len(truncated)/2 {
		truncated = truncated[:lastSpace]
	}
	return truncated + "..."
}
