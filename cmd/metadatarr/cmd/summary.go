package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/javi11/metadatarr/internal/reconcile"
)

// printSummary writes a per-outcome table for interactive runs. Logs already
// carry the totals, so nothing is printed when stdout is not a terminal.
func printSummary(w io.Writer, stats reconcile.Stats) {
	if f, ok := w.(*os.File); !ok || !isTerminal(f.Fd()) {
		return
	}
	fmt.Fprintln(w, renderSummary(stats))
}

func renderSummary(stats reconcile.Stats) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Outcome", "Items"})

	for o := reconcile.OutcomeNoChange; o <= reconcile.OutcomePlanned; o++ {
		if n := stats.Count(o); n > 0 {
			tw.AppendRow(table.Row{o.String(), strconv.Itoa(n)})
		}
	}
	tw.AppendFooter(table.Row{"total", strconv.Itoa(stats.Processed)})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})

	return tw.Render()
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
