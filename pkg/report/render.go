package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dd0wney/cluso-fair/pkg/fair"
	"github.com/dd0wney/cluso-fair/pkg/store"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	numberStyle = cellStyle.Align(lipgloss.Right)

	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF"))

	statusStyles = map[fair.Status]lipgloss.Style{
		fair.Required:    cellStyle.Foreground(lipgloss.Color("#FF0000")),
		fair.NotRequired: cellStyle.Foreground(lipgloss.Color("#888888")),
		fair.Supplied:    cellStyle.Foreground(lipgloss.Color("#FFFF00")),
		fair.Calculable:  cellStyle.Foreground(lipgloss.Color("#FFFFFF")),
		fair.Calculated:  cellStyle.Foreground(lipgloss.Color("#00FF00")),
	}
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...)
}

// RenderStatuses renders the status of every node, indented by depth.
func RenderStatuses(title string, statuses fair.Statuses) string {
	t := newTable("Node", "Status")
	for _, f := range fair.Factors() {
		t.Row(strings.Repeat("  ", depth(f))+f.String(), statuses.Of(f).String())
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if col == 1 && row >= 0 && row < fair.FactorCount {
			return statusStyles[statuses.Of(fair.Factor(row))]
		}
		return cellStyle
	})
	return render(title, t)
}

func depth(f fair.Factor) int {
	d := 0
	for p, ok := f.Parent(); ok; p, ok = p.Parent() {
		d++
	}
	return d
}

// RenderSummary renders one row per summary with its quantiles as extra
// columns. Quantile columns come from the first summary.
func RenderSummary(title string, summaries []Summary) string {
	headers := []string{"Column", "Mean", "Stdev", "Min", "Max"}
	var ps []float64
	if len(summaries) > 0 {
		for _, q := range summaries[0].Quantiles {
			ps = append(ps, q.P)
			headers = append(headers, "P"+strconv.FormatFloat(q.P*100, 'f', -1, 64))
		}
	}
	t := newTable(headers...)
	for _, s := range summaries {
		row := []string{s.Name, formatNumber(s.Mean), formatNumber(s.Stdev), formatNumber(s.Min), formatNumber(s.Max)}
		for i := range ps {
			if i < len(s.Quantiles) {
				row = append(row, formatNumber(s.Quantiles[i].Value))
			} else {
				row = append(row, "")
			}
		}
		t.Row(row...)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case col == 0:
			return cellStyle
		default:
			return numberStyle
		}
	})
	return render(title, t)
}

// RenderEntries renders stored models, one per row.
func RenderEntries(entries []store.Entry) string {
	t := newTable("UUID", "Name", "Type", "Created", "Mean Risk", "Max Risk")
	for _, e := range entries {
		t.Row(e.UUID, e.Name, e.Type, fair.FormatCreationDate(e.CreatedAt),
			formatNumber(e.Results.Mean), formatNumber(e.Results.Max))
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case col >= 4:
			return numberStyle
		default:
			return cellStyle
		}
	})
	return render(fmt.Sprintf("%d stored models", len(entries)), t)
}

func render(title string, t *table.Table) string {
	if title == "" {
		return t.String()
	}
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), t.String())
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
