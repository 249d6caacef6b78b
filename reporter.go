package harness

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/project-chip/certification-tool-backend-sub001/types"
)

// printResultsTable renders the finished run hierarchy to the console.
func (h *Harness) printResultsTable(run *types.TestRun, duration time.Duration) {
	h.config.Log.Info("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("%s (%s)", run.Title, formatDuration(duration)))

	t.AppendHeader(table.Row{
		"Type", "ID", "Cases", "Passed", "Failed", "Skipped", "State", "Detail",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Cases", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Detail", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, suite := range run.Suites {
		stats := suiteStats(suite)
		t.AppendRow(table.Row{
			"Suite",
			suite.PublicID,
			"-",
			stats.Passed,
			stats.Failed,
			stats.Skipped,
			stateString(suite.State()),
			"",
		})

		for i, tcase := range suite.Cases {
			prefix := "├──"
			if i == len(suite.Cases)-1 {
				prefix = "└──"
			}
			t.AppendRow(table.Row{
				"Case",
				fmt.Sprintf("%s %s", prefix, tcase.PublicID),
				"1",
				boolToInt(tcase.State() == types.StatePassed),
				boolToInt(caseFailed(tcase.State())),
				boolToInt(caseSkipped(tcase.State())),
				stateString(tcase.State()),
				firstDetail(tcase.Errors, tcase.Failures),
			})

			// Steps are only listed for cases that did not pass cleanly.
			if tcase.State() == types.StatePassed {
				continue
			}
			for j, step := range tcase.Steps {
				stepPrefix := "│   ├──"
				if j == len(tcase.Steps)-1 {
					stepPrefix = "│   └──"
				}
				t.AppendRow(table.Row{
					"",
					fmt.Sprintf("%s %s", stepPrefix, step.Title),
					"",
					"",
					"",
					"",
					stateString(step.State()),
					firstDetail(step.Errors, step.Failures),
				})
			}
		}
		t.AppendSeparator()
	}

	switch run.State() {
	case types.StatePassed:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case types.StateNotApplicable, types.StateCancelled:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	total := collectStats(run)
	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		total.Total,
		total.Passed,
		total.Failed,
		total.Skipped,
		stateString(run.State()),
		"",
	})

	t.Render()
}

// summarizeRun produces the one-line failure summary used in exit errors.
func summarizeRun(run *types.TestRun) string {
	stats := collectStats(run)
	return fmt.Sprintf("run %d finished %s: %d/%d cases passed, %d failed, %d skipped",
		run.ID, run.State(), stats.Passed, stats.Total, stats.Failed, stats.Skipped)
}
