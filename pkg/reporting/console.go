package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/dna-evolution/pkg/robustness"
)

// DefaultConsoleReporter implements console output functionality
type DefaultConsoleReporter struct{}

// NewDefaultConsoleReporter creates a new console reporter
func NewDefaultConsoleReporter() *DefaultConsoleReporter {
	return &DefaultConsoleReporter{}
}

// PrintComparison prints the status table followed by the gene table with one
// column per partition
func (r *DefaultConsoleReporter) PrintComparison(w io.Writer, rows []ComparisonRow, geneNames []string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "📭 No strategy documents to compare")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("STRATEGY COMPARISON")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Partition", "Status", "Method", "Gens", "Train Fit", "Val Fit", "Val ROI", "Val Bets"})
	for _, row := range rows {
		status := "✅ active"
		if !row.Active {
			status = "🛑 inactive"
		}
		t.AppendRow(table.Row{
			row.Partition,
			status,
			row.Method,
			row.Generations,
			fmt.Sprintf("%.4f", row.TrainFitness),
			fmt.Sprintf("%.4f", row.ValidationFitness),
			fmt.Sprintf("%.2f%%", row.ValidationROI*100),
			row.ValidationBets,
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d/%d active", ActiveCount(rows), len(rows))})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()
	fmt.Fprintln(w)

	g := table.NewWriter()
	g.SetOutputMirror(w)
	g.SetTitle("FINAL GENE VALUES")
	g.SetStyle(table.StyleRounded)
	header := table.Row{"Gene"}
	for _, row := range rows {
		header = append(header, row.Partition)
	}
	g.AppendHeader(header)
	for i, name := range geneNames {
		line := table.Row{name}
		for _, row := range rows {
			if i < len(row.Genes) {
				line = append(line, fmt.Sprintf("%.4f", row.Genes[i]))
			} else {
				line = append(line, "-")
			}
		}
		g.AppendRow(line)
	}
	g.Render()

	for _, row := range rows {
		if !row.Active && row.FailureReason != "" {
			fmt.Fprintf(w, "⚠️  %s: %s\n", row.Partition, row.FailureReason)
		}
	}
}

// PrintGateReport prints the stress test verdict of every tested candidate
func (r *DefaultConsoleReporter) PrintGateReport(w io.Writer, partition string, reports []robustness.CandidateReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("ROBUSTNESS GATE " + strings.ToUpper(partition))
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Rank", "Val Fit", "P(ROI>0)", "ROI CI 95%", "Ruin", "DD p95", "Rescue", "Verdict"})
	for _, rep := range reports {
		rescue := "-"
		if rep.Rescue != nil {
			rescue = fmt.Sprintf("%d× (%.3f)", rep.Rescue.Attempts, rep.Rescue.Scale)
		}
		verdict := "✅ pass"
		if !rep.Passed {
			verdict = "❌ " + rep.Reason
		}
		t.AppendRow(table.Row{
			rep.Rank,
			fmt.Sprintf("%.4f", rep.ValidationFitness),
			fmt.Sprintf("%.3f", rep.Bootstrap.PPositive),
			fmt.Sprintf("[%.3f, %.3f]", rep.Bootstrap.CILower, rep.Bootstrap.CIUpper),
			fmt.Sprintf("%.4f", rep.MonteCarlo.RuinProbability),
			fmt.Sprintf("%.1f%%", rep.MonteCarlo.DrawdownP95*100),
			rescue,
			verdict,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 8, WidthMax: 40, Align: text.AlignLeft},
	})
	t.Render()
	fmt.Fprintln(w)
}

// Package-level convenience function
func PrintComparison(w io.Writer, rows []ComparisonRow, geneNames []string) {
	NewDefaultConsoleReporter().PrintComparison(w, rows, geneNames)
}
