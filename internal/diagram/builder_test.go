package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/procperf/internal/linearize"
	"github.com/rendis/procperf/internal/testutil"
	"github.com/rendis/procperf/pkg/schema"
)

// reportFor linearizes p and wraps the result in a process report.
func reportFor(t *testing.T, p *schema.Process, problems ...schema.Problem) *schema.ProcessReport {
	t.Helper()
	seq, err := linearize.New(schema.DefaultSettings()).Process(p)
	require.NoError(t, err)
	return &schema.ProcessReport{
		ProcessID:            p.ID,
		ValidationPassed:     len(problems) == 0,
		ExtractionSuccessful: true,
		OrderedProcess:       seq,
		Problems:             problems,
	}
}

func loopProcess() *schema.Process {
	b := testutil.NewBuilder("Loop").
		Add("Start", schema.KindStartEvent).
		Add("LJ", schema.KindExclusiveGateway).
		Add("T", schema.KindTask).
		Add("LS", schema.KindExclusiveGateway).
		Add("End", schema.KindEndEvent)
	b.Chain("Start", "LJ", "T", "LS", "End")
	b.Connect("LS_LJ", "LS", "LJ")
	b.Gateway(&schema.GatewayInfo{ID: "LJ", Pattern: schema.PatternJoin, IsLoop: true, MatchID: "LS"})
	b.Gateway(&schema.GatewayInfo{ID: "LS", Pattern: schema.PatternSplit, IsLoop: true, MatchID: "LJ", PotentialMatches: []string{"LJ"}})
	return b.Build()
}

func nestedProcess() *schema.Process {
	return testutil.NewBuilder("Main").
		Add("Start", schema.KindStartEvent).
		Nested("Call", schema.KindCallActivity, testutil.Linear("Child", "C1")).
		Add("End", schema.KindEndEvent).
		Chain("Start", "Call", "End").
		Build()
}

func TestBuildLinear(t *testing.T) {
	model, err := Build(reportFor(t, testutil.Linear("Order", "Pick", "Pack")))
	require.NoError(t, err)

	assert.Equal(t, "Order", model.Title)
	require.Len(t, model.Nodes, 4, "sequence flows become edges")
	assert.Equal(t, NodeKindStart, model.Nodes[0].Kind)
	assert.Equal(t, NodeKindTask, model.Nodes[1].Kind)
	assert.Equal(t, NodeKindEnd, model.Nodes[3].Kind)

	require.Len(t, model.Edges, 3)
	assert.Equal(t, Edge{From: "Pick", To: "Pack"}, model.Edges[1])
	assert.Equal(t, [][]string{{"Start"}, {"Pick"}, {"Pack"}, {"End"}}, model.Levels)
}

func TestBuildExclusiveBranches(t *testing.T) {
	model, err := Build(reportFor(t, testutil.Diamond("P", schema.KindExclusiveGateway).Build()))
	require.NoError(t, err)

	require.Len(t, model.Nodes, 3)
	split := model.Nodes[1]
	assert.Equal(t, NodeKindExclusive, split.Kind)
	assert.Equal(t, "Split", split.ID)
	assert.Contains(t, split.Label, "joins at Join")

	require.Len(t, split.Children, 2)
	assert.Equal(t, "branch_0 (50%)", split.Children[0].Label)
	assert.Equal(t, "branch_1 (50%)", split.Children[1].Label)
	require.Len(t, split.Children[0].Nodes, 1)
	assert.Equal(t, "Split.branch_0.A", split.Children[0].Nodes[0].ID)
	assert.Equal(t, "A", split.Children[0].Nodes[0].ElementID)
}

func TestBuildParallelBranchesHaveNoProbabilityLabel(t *testing.T) {
	model, err := Build(reportFor(t, testutil.Diamond("P", schema.KindParallelGateway).Build()))
	require.NoError(t, err)

	split := model.Nodes[1]
	assert.Equal(t, NodeKindParallel, split.Kind)
	assert.Equal(t, "branch_0", split.Children[0].Label)
}

func TestBuildLoop(t *testing.T) {
	model, err := Build(reportFor(t, loopProcess()))
	require.NoError(t, err)

	require.Len(t, model.Nodes, 3)
	loop := model.Nodes[1]
	assert.Equal(t, NodeKindLoop, loop.Kind)
	require.Len(t, loop.Children, 1)

	body := loop.Children[0]
	require.Len(t, body.Nodes, 1)
	assert.Equal(t, "LJ.body.T", body.Nodes[0].ID)
	require.Len(t, body.Edges, 1)
	assert.Equal(t, Edge{From: "LJ.body.T", To: "LJ.body.T", Label: "LS_LJ"}, body.Edges[0])
}

func TestBuildNestedQualifiesIDs(t *testing.T) {
	model, err := Build(reportFor(t, nestedProcess(),
		schema.Problem{ID: "C1", Code: schema.ProblemMissingTime, Severity: schema.SeverityError},
	))
	require.NoError(t, err)

	call := model.Nodes[1]
	assert.Equal(t, NodeKindNested, call.Kind)
	assert.Equal(t, "Call\n(Child)", call.Label)
	require.Len(t, call.Children, 1)

	var ids []string
	for _, n := range call.Children[0].Nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"Call.body.Start", "Call.body.C1", "Call.body.End"}, ids)
	assert.Equal(t, "ok", call.Children[0].Nodes[1].Status.Status,
		"problems of another process are not overlaid")
}

func TestBuildOverlaysProblems(t *testing.T) {
	model, err := Build(reportFor(t, testutil.Linear("P", "A"),
		schema.Problem{ID: "A", Code: schema.ProblemMissingTime, Severity: schema.SeverityError},
		schema.Problem{ID: "Start", Code: schema.ProblemRuleViolation, Severity: schema.SeverityWarning},
	))
	require.NoError(t, err)

	assert.Equal(t, "warning", model.Nodes[0].Status.Status)
	assert.Equal(t, "problem", model.Nodes[1].Status.Status)
	assert.Equal(t, []string{schema.ProblemMissingTime}, model.Nodes[1].Status.Problems)
	assert.Equal(t, "ok", model.Nodes[2].Status.Status)
}

func TestBuildRejectsUnlinearized(t *testing.T) {
	_, err := Build(nil)
	assert.Error(t, err)

	_, err = Build(&schema.ProcessReport{ProcessID: "P"})
	assert.Error(t, err)
}
