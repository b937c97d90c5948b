package envtools

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const ruleGlyph = "-"

var (
	labelStyle = lipgloss.NewStyle().PaddingRight(2)
	valueStyle = lipgloss.NewStyle()
)

// Row is a label and its value in a report table.
type Row struct {
	Label string
	Value string
}

// renderTable aligns the rows in two columns between dashed rules as wide as the widest row.
func renderTable(rows []Row) string {
	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells = append(cells, []string{row.Label, row.Value})
	}

	body := table.New().
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		BorderRow(false).
		StyleFunc(func(_, col int) lipgloss.Style {
			if col == 0 {
				return labelStyle
			}
			return valueStyle
		}).
		Rows(cells...).
		Render()

	rule := strings.Repeat(ruleGlyph, lipgloss.Width(body))
	return lipgloss.JoinVertical(lipgloss.Left, rule, body, rule)
}
