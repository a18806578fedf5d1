package cli

import (
	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"

	"github.com/grovetools/bnb/util/sanitize"
)

// maxCellWidth bounds a table cell, in runes.
const maxCellWidth = 48

// NewStyledTable creates a bordered table with the default theme. Header
// cells are styled separately by lipgloss, so row 0 in the style function
// is the first data row.
func NewStyledTable(headers ...string) *ltable.Table {
	t := DefaultTheme
	return ltable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(t.Colors.Border)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return t.TableHeader
			}
			style := t.TableRow
			if t.UseAlternatingRows && row%2 == 1 {
				style = style.Background(t.Colors.VerySubtleBackground)
			}
			return style
		})
}

// SimpleTable renders headers and rows as a string. Cells are cleaned of
// control sequences and cut to maxCellWidth.
func SimpleTable(headers []string, rows [][]string) string {
	table := NewStyledTable(headers...)
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, cell := range r {
			cells[i] = sanitize.Truncate(sanitize.ForTerminal(cell), maxCellWidth)
		}
		table = table.Row(cells...)
	}
	return table.String()
}

// StatusTable renders label/value pairs without a border.
func StatusTable(items [][2]string) string {
	t := DefaultTheme
	table := ltable.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			return t.TableRow
		})
	for _, item := range items {
		table = table.Row(t.Muted.Render(item[0]+":"), sanitize.ForTerminal(item[1]))
	}
	return table.String()
}
