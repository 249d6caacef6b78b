package harness

import (
	"fmt"
	"strings"
	"time"

	"github.com/project-chip/certification-tool-backend-sub001/types"
)

// runStats aggregates case outcomes across a run or suite.
type runStats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

func (s *runStats) count(state types.TestState) {
	s.Total++
	switch {
	case state == types.StatePassed:
		s.Passed++
	case caseFailed(state):
		s.Failed++
	case caseSkipped(state):
		s.Skipped++
	}
}

func collectStats(run *types.TestRun) runStats {
	var stats runStats
	for _, suite := range run.Suites {
		for _, tcase := range suite.Cases {
			stats.count(tcase.State())
		}
	}
	return stats
}

func suiteStats(suite *types.SuiteExecution) runStats {
	var stats runStats
	for _, tcase := range suite.Cases {
		stats.count(tcase.State())
	}
	return stats
}

func caseFailed(state types.TestState) bool {
	return state == types.StateFailed || state == types.StateError
}

func caseSkipped(state types.TestState) bool {
	return state == types.StateNotApplicable || state == types.StateCancelled
}

// runFailed reports whether a finished run should map to a non-zero exit.
func runFailed(state types.TestState) bool {
	return state == types.StateFailed || state == types.StateError || state == types.StateCancelled
}

// Helper function to convert bool to int
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// stateString returns a short console marker for a hierarchy state
func stateString(state types.TestState) string {
	switch state {
	case types.StatePassed:
		return "✓ passed"
	case types.StateFailed:
		return "✗ failed"
	case types.StateError:
		return "✗ error"
	case types.StateNotApplicable:
		return "- n/a"
	case types.StateCancelled:
		return "- cancelled"
	default:
		return string(state)
	}
}

// firstDetail picks the most relevant error or failure line for display.
func firstDetail(errs, failures []string) string {
	detail := ""
	if len(errs) > 0 {
		detail = errs[0]
	} else if len(failures) > 0 {
		detail = failures[0]
	}
	if idx := strings.Index(detail, "\n"); idx != -1 {
		detail = detail[:idx]
	}
	if len(detail) > 80 {
		detail = detail[:70] + "..."
	}
	return detail
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
