package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-chip/certification-tool-backend-sub001/types"
)

func sampleRun(t *testing.T) *types.TestRun {
	t.Helper()
	decl := &types.SuiteDeclaration{
		Metadata:     types.Metadata{PublicID: "FirstChipToolSuite"},
		CollectionID: "SDKYAMLTests",
		Cases: []*types.CaseDeclaration{
			{
				Metadata: types.Metadata{PublicID: "TC-ACE-1.1"},
				Steps:    []types.StepDeclaration{{Label: "Read the ACL attribute"}},
			},
			{
				Metadata: types.Metadata{PublicID: "TC-ACE-1.2"},
				Steps:    []types.StepDeclaration{{Label: "Write the ACL attribute"}},
			},
		},
	}
	run := types.NewTestRun(1, "Certification Test Run", "operator", []*types.SuiteDeclaration{decl})

	run.MarkExecuting()
	suite := run.Suites[0]
	suite.MarkExecuting()

	passing := suite.Cases[0]
	passing.MarkExecuting()
	passing.Steps[0].MarkExecuting()
	passing.Steps[0].MarkCompleted()
	passing.MarkCompleted()

	failing := suite.Cases[1]
	failing.MarkExecuting()
	failing.Steps[0].MarkExecuting()
	failing.Steps[0].AppendFailure("unexpected attribute value")
	failing.Steps[0].MarkCompleted()
	failing.MarkCompleted()

	suite.MarkCompleted()
	run.MarkCompleted()
	return run
}

func TestCollectStats(t *testing.T) {
	run := sampleRun(t)

	stats := collectStats(run)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Passed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Skipped)

	require.Equal(t, types.StateFailed, run.State())
	assert.True(t, runFailed(run.State()))
}

func TestSummarizeRun(t *testing.T) {
	run := sampleRun(t)
	summary := summarizeRun(run)
	assert.Contains(t, summary, "run 1 finished failed")
	assert.Contains(t, summary, "1/2 cases passed")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "✓ passed", stateString(types.StatePassed))
	assert.Equal(t, "✗ failed", stateString(types.StateFailed))
	assert.Equal(t, "✗ error", stateString(types.StateError))
	assert.Equal(t, "- n/a", stateString(types.StateNotApplicable))
	assert.Equal(t, "- cancelled", stateString(types.StateCancelled))
	assert.Equal(t, "pending", stateString(types.StatePending))
}

func TestFirstDetail(t *testing.T) {
	assert.Equal(t, "", firstDetail(nil, nil))
	assert.Equal(t, "boom", firstDetail([]string{"boom"}, []string{"later"}))
	assert.Equal(t, "first line", firstDetail(nil, []string{"first line\nsecond line"}))

	long := make([]byte, 120)
	for i := range long {
		long[i] = 'x'
	}
	detail := firstDetail([]string{string(long)}, nil)
	assert.Len(t, detail, 73)
	assert.Contains(t, detail, "...")
}
