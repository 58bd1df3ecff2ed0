package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nyashahama/parenting-anxiety-backend/internal/scoring"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true) // green
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)  // red
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// renderReport lays a report out one category per row, in catalog order,
// followed by the global composite.
func renderReport(e *scoring.Engine, r scoring.Report) string {
	t := newTable("Category", "Score", "Label")
	for _, name := range e.Categories() {
		c, ok := r.CategoryResults[name]
		if !ok {
			continue
		}
		score := num(c.Mean)
		if c.Sum != nil {
			score = fmt.Sprintf("%s (sum)", num(*c.Sum))
		}
		t.Row(name, score, c.Label)
	}
	t.Row("Global", num(r.GlobalResult.Mean), r.GlobalResult.Label)
	return t.Render()
}

// renderCases summarises generated cases one per row.
func renderCases(cases []Case) string {
	t := newTable("Case", "Global", "Global label", "BAI sum", "BAI label")
	for _, c := range cases {
		bai := "-"
		if c.Report.BAIResult.Sum != nil {
			bai = num(*c.Report.BAIResult.Sum)
		}
		t.Row(c.Name, num(c.Report.GlobalResult.Mean), c.Report.GlobalResult.Label, bai, c.Report.BAIResult.Label)
	}
	return t.Render()
}
