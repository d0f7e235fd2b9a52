package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/procperf/internal/testutil"
	"github.com/rendis/procperf/pkg/schema"
)

func TestRenderMermaidLinear(t *testing.T) {
	model, err := Build(reportFor(t, testutil.Linear("Order", "Pick")))
	require.NoError(t, err)

	output := RenderMermaid(model)

	assert.Contains(t, output, "graph TD")
	assert.Contains(t, output, "%% Order")
	assert.Contains(t, output, `Pick["Pick"]`)
	assert.Contains(t, output, `Start(("Start"))`)
	assert.Contains(t, output, `End(("End"))`)
	assert.Contains(t, output, "Start --> Pick")
	assert.Contains(t, output, "classDef ok")
	assert.Contains(t, output, "classDef problem")
	assert.Contains(t, output, "class Pick ok")
}

func TestRenderMermaidExclusive(t *testing.T) {
	model, err := Build(reportFor(t, testutil.Diamond("P", schema.KindExclusiveGateway).Build()))
	require.NoError(t, err)

	output := RenderMermaid(model)
	assert.Contains(t, output, `Split{"Split"}`)
	assert.Contains(t, output, `subgraph Split_branch_0["Split: branch_0 (50%)"]`)
	assert.Contains(t, output, `Split_branch_0_A["A"]`)
	assert.Contains(t, output, "end\n")
}

func TestRenderMermaidParallelAndNested(t *testing.T) {
	par, err := Build(reportFor(t, testutil.Diamond("P", schema.KindParallelGateway).Build()))
	require.NoError(t, err)
	assert.Contains(t, RenderMermaid(par), `Split{{"Split"}}`)

	nested, err := Build(reportFor(t, nestedProcess()))
	require.NoError(t, err)
	output := RenderMermaid(nested)
	assert.Contains(t, output, `Call[["Call"]]`)
	assert.Contains(t, output, "Call_body_Start --> Call_body_C1")
}

func TestRenderMermaidLoopBackEdge(t *testing.T) {
	model, err := Build(reportFor(t, loopProcess()))
	require.NoError(t, err)

	output := RenderMermaid(model)
	assert.Contains(t, output, `LJ[["LJ"]]`)
	assert.Contains(t, output, "LJ_body_T -->|LS_LJ| LJ_body_T")
}

func TestRenderMermaidStatusClasses(t *testing.T) {
	model, err := Build(reportFor(t, testutil.Linear("P", "A", "B"),
		schema.Problem{ID: "A", Code: schema.ProblemMissingTime, Severity: schema.SeverityError},
		schema.Problem{ID: "B", Code: schema.ProblemRuleViolation, Severity: schema.SeverityWarning},
	))
	require.NoError(t, err)

	output := RenderMermaid(model)
	assert.Contains(t, output, "class A problem")
	assert.Contains(t, output, "class B warning")
}

func TestMermaidSafeID(t *testing.T) {
	assert.Equal(t, "a_b_c", mermaidSafeID("a.b.c"))
	assert.Equal(t, "my_step", mermaidSafeID("my-step"))
	assert.Equal(t, "simple", mermaidSafeID("simple"))
	assert.Equal(t, "say 'hi'", mermaidEscapeLabel(`say "hi"`))
}
