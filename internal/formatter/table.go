package formatter

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/alevsk/quay-ops/internal/types"
)

// buildTables builds the step table and, when requested, the summary table
func buildTables(report *types.Report, opts *Options) (table.Writer, table.Writer) {
	parsed := parseReport(report, opts)

	stepTable := table.NewWriter()
	stepTable.SetOutputMirror(nil)
	stepTable.SetStyle(table.StyleLight)
	stepTable.Style().Options.SeparateColumns = true
	stepTable.SetTitle(strings.ToUpper(parsed.Operation))
	stepTable.AppendHeader(table.Row{"#", "KIND", "ENTITY", "ACTION", "DETAIL", "ELAPSED"})
	for i, s := range parsed.Steps {
		stepTable.AppendRow(table.Row{i + 1, s.Kind, s.Entity, s.Action, s.Detail, s.Elapsed})
	}
	stepTable.AppendFooter(table.Row{"", "", "", "", "TOTAL", fmt.Sprintf("%s (%d min)", parsed.Elapsed, parsed.Minutes)})

	if parsed.Summary == nil {
		return stepTable, nil
	}

	summaryTable := table.NewWriter()
	summaryTable.SetOutputMirror(nil)
	summaryTable.SetStyle(table.StyleLight)
	summaryTable.Style().Options.SeparateColumns = true
	summaryTable.SetTitle("SUMMARY")
	summaryTable.AppendHeader(table.Row{"ACTION", "COUNT"})
	for _, e := range parsed.Summary {
		summaryTable.AppendRow(table.Row{e.Action, e.Count})
	}
	return stepTable, summaryTable
}

// Format formats the report as tables using go-pretty/v6/table
func (t *Table) Format(report *types.Report) (string, error) {
	steps, summary := buildTables(report, t.opts)
	out := steps.Render() + "\n"
	if summary != nil {
		out += "\n" + summary.Render() + "\n"
	}
	return out, nil
}

// Format formats the report as markdown tables
func (m *Markdown) Format(report *types.Report) (string, error) {
	steps, summary := buildTables(report, m.opts)
	out := steps.RenderMarkdown() + "\n"
	if summary != nil {
		out += "\n" + summary.RenderMarkdown() + "\n"
	}
	return out, nil
}
