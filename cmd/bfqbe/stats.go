package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/chazu/bfqbe/compiler"
)

// renderStats formats compile statistics as a table: one row per
// operation, then the loop and output totals.
func renderStats(s compiler.Stats, cached bool) string {
	t := table.NewWriter()
	title := "Compile statistics"
	if cached {
		title += " (cached)"
	}
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Operation", "Symbol", "Operators", "Runs"})

	for _, op := range compiler.Operations() {
		t.AppendRow(table.Row{op.String(), string(op.Symbol()), s.Merged[op], s.Runs[op]})
	}

	t.AppendFooter(table.Row{"Total", "", s.Operators, s.TotalRuns()})
	t.AppendFooter(table.Row{"Loops", "", fmt.Sprintf("depth %d", s.MaxDepth), s.Loops})
	t.AppendFooter(table.Row{"IR bytes", "", "", s.BytesWritten})
	return t.Render()
}
