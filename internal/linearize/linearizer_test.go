package linearize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/procperf/internal/testutil"
	"github.com/rendis/procperf/pkg/schema"
)

// ids returns the IDs of the top-level items of seq, using the split ID for
// branch and loop blocks.
func ids(seq schema.Sequence) []string {
	out := make([]string, 0, len(seq))
	for _, item := range seq {
		switch it := item.(type) {
		case *schema.ElementInfo:
			out = append(out, it.ID)
		case *schema.GatewayInfo:
			out = append(out, it.ID)
		case *schema.ParallelBlock:
			out = append(out, it.Split.ID)
		case *schema.ExclusiveBlock:
			out = append(out, it.Split.ID)
		case *schema.LoopBlock:
			out = append(out, it.Join.ID)
		case *schema.NestedProcessNode:
			out = append(out, it.ID)
		}
	}
	return out
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var se *schema.Error
	require.True(t, errors.As(err, &se), "expected *schema.Error, got %T", err)
	assert.Equal(t, code, se.Code)
}

func TestProcess_LinearPathInOrder(t *testing.T) {
	p := testutil.Linear("P", "A", "B", "C")

	seq, err := New(schema.DefaultSettings()).Process(p)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Start", "Start_A", "A", "A_B", "B", "B_C", "C", "C_End", "End",
	}, ids(seq))
	for _, item := range seq {
		_, ok := item.(*schema.ElementInfo)
		assert.True(t, ok, "unexpected %T", item)
	}
}

func TestProcess_ParallelAndExclusiveShareShape(t *testing.T) {
	par, err := New(schema.DefaultSettings()).Process(testutil.Diamond("P", schema.KindParallelGateway).Build())
	require.NoError(t, err)
	exc, err := New(schema.DefaultSettings()).Process(testutil.Diamond("P", schema.KindExclusiveGateway).Build())
	require.NoError(t, err)

	require.Len(t, par, 5)
	require.Len(t, exc, 5)

	pb, ok := par[2].(*schema.ParallelBlock)
	require.True(t, ok, "got %T", par[2])
	eb, ok := exc[2].(*schema.ExclusiveBlock)
	require.True(t, ok, "got %T", exc[2])

	for _, b := range []schema.BranchBlock{pb.BranchBlock, eb.BranchBlock} {
		assert.Equal(t, "Split", b.Split.ID)
		assert.Equal(t, "Join", b.Join.ID)
		require.Len(t, b.Branches, 2)
		assert.Equal(t, []string{"Split_A", "A", "A_Join"}, ids(b.Branches[0]))
		assert.Equal(t, []string{"Split_B", "B", "B_Join"}, ids(b.Branches[1]))
	}
	assert.Equal(t, []string{"Start", "Start_Split", "Split", "Join_End", "End"}, ids(par))
}

func TestProcess_IsParallelFlagSelectsParallelBlock(t *testing.T) {
	b := testutil.NewBuilder("P").
		Add("Start", schema.KindStartEvent).
		Add("Split", schema.KindEventBasedGateway).
		Add("A", schema.KindTask).
		Add("Join", schema.KindExclusiveGateway).
		Add("End", schema.KindEndEvent)
	b.Chain("Start", "Split", "A", "Join", "End")
	b.Gateway(&schema.GatewayInfo{
		ID: "Split", Pattern: schema.PatternSplit, IsParallel: true,
		PotentialMatches: []string{"Join"},
	}).Join("Join", "Split")

	seq, err := New(schema.DefaultSettings()).Process(b.Build())
	require.NoError(t, err)
	_, ok := seq[2].(*schema.ParallelBlock)
	assert.True(t, ok, "got %T", seq[2])
}

func TestProcess_JoinMismatch(t *testing.T) {
	// Split's branches end at two different joins that each remain in the
	// split's potential matches.
	b := testutil.NewBuilder("P").
		Add("Start", schema.KindStartEvent).
		Add("Split", schema.KindParallelGateway).
		Add("A", schema.KindTask).
		Add("B", schema.KindTask).
		Add("J1", schema.KindParallelGateway).
		Add("J2", schema.KindParallelGateway).
		Add("End", schema.KindEndEvent)
	b.Chain("Start", "Split")
	b.Chain("Split", "A", "J1")
	b.Chain("Split", "B", "J2")
	b.Chain("J1", "J2", "End")
	b.Gateway(&schema.GatewayInfo{
		ID: "Split", Pattern: schema.PatternSplit,
		PotentialMatches: []string{"J1", "J2"},
	}).Join("J1", "Split").Join("J2", "Split")

	_, err := New(schema.DefaultSettings()).Process(b.Build())
	requireCode(t, err, schema.ErrCodeJoinMismatch)

	var se *schema.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Split", se.ElementID)
	assert.Equal(t, []string{"J1", "J2"}, se.Details["join_ids"])
}

func TestProcess_LoopLinearizedOnce(t *testing.T) {
	b := testutil.NewBuilder("P").
		Add("Start", schema.KindStartEvent).
		Add("LJ", schema.KindExclusiveGateway).
		Add("T", schema.KindTask).
		Add("LS", schema.KindExclusiveGateway).
		Add("End", schema.KindEndEvent)
	b.Chain("Start", "LJ", "T", "LS", "End")
	b.Connect("LS_LJ", "LS", "LJ")
	b.Gateway(&schema.GatewayInfo{ID: "LJ", Pattern: schema.PatternJoin, IsLoop: true, MatchID: "LS"})
	b.Gateway(&schema.GatewayInfo{ID: "LS", Pattern: schema.PatternSplit, IsLoop: true, MatchID: "LJ", PotentialMatches: []string{"LJ"}})

	seq, err := New(schema.DefaultSettings()).Process(b.Build())
	require.NoError(t, err)

	assert.Equal(t, []string{"Start", "Start_LJ", "LJ", "LS_End", "End"}, ids(seq))

	loops := 0
	seq.Walk(func(it schema.Item) {
		if _, ok := it.(*schema.LoopBlock); ok {
			loops++
		}
	})
	assert.Equal(t, 1, loops)

	loop := seq[2].(*schema.LoopBlock)
	assert.Equal(t, "LS", loop.Split.ID)
	assert.Equal(t, "LJ", loop.Join.ID)
	assert.Equal(t, []string{"LJ_T", "T", "T_LS"}, ids(loop.Body))
	require.NotNil(t, loop.BackEdge)
	assert.Equal(t, "LS_LJ", loop.BackEdge.ID)
}

func TestProcess_EndOutsideExpectedSet(t *testing.T) {
	// Branch B runs straight into the end event instead of the join.
	b := testutil.NewBuilder("P").
		Add("Start", schema.KindStartEvent).
		Add("Split", schema.KindExclusiveGateway).
		Add("A", schema.KindTask).
		Add("Join", schema.KindExclusiveGateway).
		Add("End", schema.KindEndEvent)
	b.Chain("Start", "Split", "A", "Join", "End")
	b.Connect("Split_End", "Split", "End")
	b.Split("Split", "Join").Join("Join", "Split")

	_, err := New(schema.DefaultSettings()).Process(b.Build())
	requireCode(t, err, schema.ErrCodeUnexpectedEnd)
}

func TestProcess_UnexpectedGateways(t *testing.T) {
	t.Run("join outside block", func(t *testing.T) {
		b := testutil.NewBuilder("P").
			Add("Start", schema.KindStartEvent).
			Add("Join", schema.KindExclusiveGateway).
			Add("End", schema.KindEndEvent).
			Chain("Start", "Join", "End").
			Join("Join", "Split")
		_, err := New(schema.DefaultSettings()).Process(b.Build())
		requireCode(t, err, schema.ErrCodeUnexpectedGateway)
	})

	t.Run("loop split outside loop", func(t *testing.T) {
		b := testutil.NewBuilder("P").
			Add("Start", schema.KindStartEvent).
			Add("LS", schema.KindExclusiveGateway).
			Add("End", schema.KindEndEvent).
			Chain("Start", "LS", "End")
		b.Gateway(&schema.GatewayInfo{ID: "LS", Pattern: schema.PatternSplit, IsLoop: true})
		_, err := New(schema.DefaultSettings()).Process(b.Build())
		requireCode(t, err, schema.ErrCodeUnexpectedGateway)
	})

	t.Run("unclassified", func(t *testing.T) {
		b := testutil.NewBuilder("P").
			Add("Start", schema.KindStartEvent).
			Add("G", schema.KindExclusiveGateway).
			Add("End", schema.KindEndEvent).
			Chain("Start", "G", "End")
		_, err := New(schema.DefaultSettings()).Process(b.Build())
		requireCode(t, err, schema.ErrCodeUnclassifiedGateway)
	})
}

func TestProcess_MalformedGraphs(t *testing.T) {
	t.Run("dead end", func(t *testing.T) {
		b := testutil.NewBuilder("P").
			Add("Start", schema.KindStartEvent).
			Add("A", schema.KindTask).
			Add("End", schema.KindEndEvent).
			Chain("Start", "A")
		_, err := New(schema.DefaultSettings()).Process(b.Build())
		requireCode(t, err, schema.ErrCodeDeadEnd)
	})

	t.Run("dangling flow", func(t *testing.T) {
		b := testutil.NewBuilder("P").
			Add("Start", schema.KindStartEvent).
			Add("End", schema.KindEndEvent).
			Connect("F", "Start", "Ghost")
		_, err := New(schema.DefaultSettings()).Process(b.Build())
		requireCode(t, err, schema.ErrCodeMissingElement)
	})

	t.Run("two start events", func(t *testing.T) {
		b := testutil.NewBuilder("P").
			Add("S1", schema.KindStartEvent).
			Add("S2", schema.KindStartEvent).
			Add("End", schema.KindEndEvent)
		_, err := New(schema.DefaultSettings()).Process(b.Build())
		requireCode(t, err, schema.ErrCodeValidation)
	})
}

func nestedProcess(kind schema.ElementKind) (*schema.Process, *schema.Process) {
	body := testutil.Linear("Body", "Inner")
	p := testutil.NewBuilder("P").
		Add("Start", schema.KindStartEvent).
		Nested("Sub", kind, body).
		Add("End", schema.KindEndEvent).
		Chain("Start", "Sub", "End").
		Build()
	return p, body
}

func TestProcess_NestedBody(t *testing.T) {
	for _, kind := range []schema.ElementKind{schema.KindSubProcess, schema.KindCallActivity} {
		t.Run(kind.Short(), func(t *testing.T) {
			p, body := nestedProcess(kind)

			seq, err := New(schema.DefaultSettings()).Process(p)
			require.NoError(t, err)

			n, ok := seq[2].(*schema.NestedProcessNode)
			require.True(t, ok, "got %T", seq[2])
			assert.Equal(t, "Sub", n.ID)
			assert.Equal(t, kind, n.Kind)
			assert.Same(t, body, n.Parent.Nested)
			assert.Equal(t, []string{"Start", "Start_Inner", "Inner", "Inner_End", "End"}, ids(n.Body))
			assert.Equal(t, "Body", n.Body[2].(*schema.ElementInfo).ParentProcessID)
		})
	}
}

func TestProcess_OverwriteWithParentPerformance(t *testing.T) {
	p, _ := nestedProcess(schema.KindSubProcess)
	settings := schema.DefaultSettings()
	settings.OverwriteWithParentPerformance = true

	seq, err := New(settings).Process(p)
	require.NoError(t, err)

	n := seq[2].(*schema.NestedProcessNode)
	assert.Empty(t, n.Body)
	assert.NotNil(t, n.Parent)
}

func TestProcess_NestedFailurePropagates(t *testing.T) {
	body := testutil.NewBuilder("Body").
		Add("Start", schema.KindStartEvent).
		Add("Inner", schema.KindTask).
		Add("End", schema.KindEndEvent).
		Chain("Start", "Inner").
		Build()
	p := testutil.NewBuilder("P").
		Add("Start", schema.KindStartEvent).
		Nested("Sub", schema.KindSubProcess, body).
		Add("End", schema.KindEndEvent).
		Chain("Start", "Sub", "End").
		Build()

	seq, err := New(schema.DefaultSettings()).Process(p)
	requireCode(t, err, schema.ErrCodeDeadEnd)
	assert.Nil(t, seq)
}

func TestProcess_DepthGuard(t *testing.T) {
	inner := testutil.Linear("L3", "T")
	mid := testutil.NewBuilder("L2").
		Add("Start", schema.KindStartEvent).
		Nested("S", schema.KindSubProcess, inner).
		Add("End", schema.KindEndEvent).
		Chain("Start", "S", "End").
		Build()
	top := testutil.NewBuilder("L1").
		Add("Start", schema.KindStartEvent).
		Nested("S", schema.KindSubProcess, mid).
		Add("End", schema.KindEndEvent).
		Chain("Start", "S", "End").
		Build()

	_, err := New(schema.DefaultSettings(), WithMaxDepth(1)).Process(top)
	requireCode(t, err, schema.ErrCodeDepthExceeded)

	_, err = New(schema.DefaultSettings(), WithMaxDepth(2)).Process(top)
	assert.NoError(t, err)
}

func TestProcess_ExclusiveScenario(t *testing.T) {
	b := testutil.NewBuilder("P").
		Add("Start", schema.KindStartEvent).
		Add("Task", schema.KindTask).
		Add("Split", schema.KindExclusiveGateway).
		Add("A", schema.KindTask).
		Add("B", schema.KindTask).
		Add("Join", schema.KindExclusiveGateway).
		Add("End", schema.KindEndEvent)
	b.Chain("Start", "Task", "Split")
	b.Chain("Split", "A", "Join")
	b.Chain("Split", "B", "Join")
	b.Chain("Join", "End")
	b.Split("Split", "Join").Join("Join", "Split")
	b.Meta("Task", schema.MetaData{Duration: "PT1H"})

	settings := schema.DefaultSettings()
	settings.OverwriteWithParentPerformance = true

	seq, err := New(settings).Process(b.Build())
	require.NoError(t, err)

	// Sequence flows between the structural nodes are dropped for the check.
	var shape []schema.Item
	for _, it := range seq {
		if el, ok := it.(*schema.ElementInfo); ok && el.Kind == schema.KindSequenceFlow {
			continue
		}
		shape = append(shape, it)
	}
	require.Len(t, shape, 4)

	assert.Equal(t, "Start", shape[0].(*schema.ElementInfo).ID)
	task := shape[1].(*schema.ElementInfo)
	assert.Equal(t, "Task", task.ID)
	assert.Equal(t, int64(3_600_000), task.Duration)

	block, ok := shape[2].(*schema.ExclusiveBlock)
	require.True(t, ok, "got %T", shape[2])
	require.Len(t, block.Branches, 2)
	for _, br := range block.Branches {
		assert.Equal(t, 50.0, br[0].(*schema.ElementInfo).Probability)
	}

	assert.Equal(t, "End", shape[3].(*schema.ElementInfo).ID)
}
