package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/procperf/internal/engine"
	"github.com/rendis/procperf/internal/store"
	"github.com/rendis/procperf/internal/testutil"
	"github.com/rendis/procperf/pkg/schema"
)

// --- Mock Store ---

type mockStore struct {
	store.Store // embed for unimplemented methods

	saved   []*schema.Report
	stored  map[string]*store.StoredReport
	listed  store.ReportFilter
	saveErr error
}

func newMockStore() *mockStore {
	return &mockStore{stored: make(map[string]*store.StoredReport)}
}

func (m *mockStore) SaveReport(_ context.Context, r *schema.Report) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, r)
	body, _ := json.Marshal(r)
	m.stored[r.ID] = &store.StoredReport{
		ReportSummary: store.ReportSummary{ID: r.ID, ProcessID: r.ProcessID, CreatedAt: r.CreatedAt},
		Body:          body,
	}
	return nil
}

func (m *mockStore) GetReport(_ context.Context, id string) (*store.StoredReport, error) {
	if r, ok := m.stored[id]; ok {
		return r, nil
	}
	return nil, schema.NewErrorf(schema.ErrCodeNotFound, "report %s not found", id)
}

func (m *mockStore) ListReports(_ context.Context, filter store.ReportFilter) ([]*store.ReportSummary, error) {
	m.listed = filter
	result := make([]*store.ReportSummary, 0)
	for _, r := range m.stored {
		if filter.ProcessID != "" && r.ProcessID != filter.ProcessID {
			continue
		}
		sum := r.ReportSummary
		result = append(result, &sum)
	}
	return result, nil
}

// --- Helpers ---

func newTestAnalyzer(t *testing.T) *engine.Analyzer {
	t.Helper()
	a, err := engine.NewAnalyzer(engine.Config{PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

// orderDocument returns a start, task, end process as a tool argument.
func orderDocument(t *testing.T) map[string]any {
	t.Helper()
	p := testutil.NewBuilder("Order").
		Add("Start", schema.KindStartEvent).
		Add("Pack", schema.KindTask).
		Add("End", schema.KindEndEvent).
		Chain("Start", "Pack", "End").
		Meta("Pack", schema.MetaData{Duration: "PT2H", Cost: testutil.Float(15)}).
		Build()
	data, err := json.Marshal(testutil.Definition(p))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func timeAndCost() map[string]any {
	return map[string]any{"calculations": []any{"time", "cost"}}
}

// --- Analyze ---

func TestAnalyzeTool_InlineDocument(t *testing.T) {
	ms := newMockStore()
	s := NewServer(ServerDeps{Analyzer: newTestAnalyzer(t), Store: ms})

	req := buildRequest("procperf.analyze", map[string]any{
		"document": orderDocument(t),
		"settings": timeAndCost(),
	})
	result, err := s.handleAnalyze(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))

	var got map[string]any
	unmarshalResult(t, result, &got)
	assert.Equal(t, "Order", got["processId"])
	assert.Equal(t, true, got["resolved"])

	require.Len(t, ms.saved, 1)
	assert.True(t, ms.saved[0].Succeeded())
	assert.Equal(t, ms.saved[0].ID, got["id"])
}

func TestAnalyzeTool_Path(t *testing.T) {
	data, err := json.Marshal(orderDocument(t))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "order.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	ms := newMockStore()
	s := NewServer(ServerDeps{Analyzer: newTestAnalyzer(t), Store: ms})

	req := buildRequest("procperf.analyze", map[string]any{
		"path":     path,
		"settings": timeAndCost(),
		"save":     false,
	})
	result, err := s.handleAnalyze(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, extractText(t, result), path)
	assert.Empty(t, ms.saved, "save=false skips the store")
}

func TestAnalyzeTool_Errors(t *testing.T) {
	s := NewServer(ServerDeps{Analyzer: newTestAnalyzer(t)})
	ctx := context.Background()

	// Neither path nor document.
	result, err := s.handleAnalyze(ctx, buildRequest("procperf.analyze", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	// Missing file.
	result, err = s.handleAnalyze(ctx, buildRequest("procperf.analyze", map[string]any{
		"path": filepath.Join(t.TempDir(), "missing.yaml"),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	// Invalid settings shape.
	result, err = s.handleAnalyze(ctx, buildRequest("procperf.analyze", map[string]any{
		"document": orderDocument(t),
		"settings": map[string]any{"calculations": "time"},
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestAnalyzeTool_StoreFailure(t *testing.T) {
	ms := newMockStore()
	ms.saveErr = assert.AnError
	s := NewServer(ServerDeps{Analyzer: newTestAnalyzer(t), Store: ms})

	result, err := s.handleAnalyze(context.Background(), buildRequest("procperf.analyze", map[string]any{
		"document": orderDocument(t),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- Report ---

func TestReportTool_Get(t *testing.T) {
	ms := newMockStore()
	report := &schema.Report{ID: "r-1", ProcessID: "Order", CreatedAt: time.Now().UTC(), Resolved: true}
	require.NoError(t, ms.SaveReport(context.Background(), report))
	s := NewServer(ServerDeps{Store: ms})

	result, err := s.handleReport(context.Background(), buildRequest("procperf.report", map[string]any{
		"report_id": "r-1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var got schema.Report
	unmarshalResult(t, result, &got)
	assert.Equal(t, "r-1", got.ID)
	assert.Equal(t, "Order", got.ProcessID)

	result, err = s.handleReport(context.Background(), buildRequest("procperf.report", map[string]any{
		"report_id": "nope",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestReportTool_List(t *testing.T) {
	ms := newMockStore()
	ctx := context.Background()
	require.NoError(t, ms.SaveReport(ctx, &schema.Report{ID: "a", ProcessID: "Order"}))
	require.NoError(t, ms.SaveReport(ctx, &schema.Report{ID: "b", ProcessID: "Billing"}))
	s := NewServer(ServerDeps{Store: ms})

	result, err := s.handleReport(ctx, buildRequest("procperf.report", map[string]any{
		"filter": map[string]any{
			"process_id": "Order",
			"succeeded":  true,
			"since":      "2026-01-01T00:00:00Z",
			"limit":      float64(5),
		},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var got struct {
		Reports []store.ReportSummary `json:"reports"`
	}
	unmarshalResult(t, result, &got)
	require.Len(t, got.Reports, 1)
	assert.Equal(t, "a", got.Reports[0].ID)

	assert.Equal(t, 5, ms.listed.Limit)
	require.NotNil(t, ms.listed.Succeeded)
	assert.True(t, *ms.listed.Succeeded)
	require.NotNil(t, ms.listed.Since)
	assert.Equal(t, 2026, ms.listed.Since.Year())
}

func TestReportTool_BadSince(t *testing.T) {
	s := NewServer(ServerDeps{Store: newMockStore()})
	result, err := s.handleReport(context.Background(), buildRequest("procperf.report", map[string]any{
		"filter": map[string]any{"since": "yesterday"},
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestReportTool_NoStore(t *testing.T) {
	s := NewServer(ServerDeps{})
	result, err := s.handleReport(context.Background(), buildRequest("procperf.report", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- Diagram ---

func TestDiagramTool(t *testing.T) {
	s := NewServer(ServerDeps{Analyzer: newTestAnalyzer(t)})
	ctx := context.Background()

	result, err := s.handleDiagram(ctx, buildRequest("procperf.diagram", map[string]any{
		"document": orderDocument(t),
		"format":   "mermaid",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))
	text := extractText(t, result)
	assert.Contains(t, text, "graph TD")
	assert.Contains(t, text, "Pack")

	result, err = s.handleDiagram(ctx, buildRequest("procperf.diagram", map[string]any{
		"document": orderDocument(t),
		"format":   "ascii",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, extractText(t, result), "Pack")
}

func TestDiagramTool_Errors(t *testing.T) {
	s := NewServer(ServerDeps{Analyzer: newTestAnalyzer(t)})
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing format", map[string]any{"document": orderDocument(t)}},
		{"bad format", map[string]any{"document": orderDocument(t), "format": "image"}},
		{"unknown process", map[string]any{"document": orderDocument(t), "format": "ascii", "process_id": "Other"}},
		{"no document", map[string]any{"format": "ascii"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := s.handleDiagram(ctx, buildRequest("procperf.diagram", tc.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
		})
	}
}

// --- Format ---

func TestFormatTool(t *testing.T) {
	s := NewServer(ServerDeps{})

	result, err := s.handleFormat(context.Background(), buildRequest("procperf.format", map[string]any{
		"aggregates": []any{
			map[string]any{
				"processId": "Order",
				"duration":  map[string]any{"min": 3600000, "expected": 5400000, "max": 90061000},
				"cost":      map[string]any{"min": 10, "expected": 12.5, "max": 20},
			},
		},
		"settings": map[string]any{"calculations": []any{"time"}, "currency": "USD"},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var got struct {
		Aggregates []schema.FormattedAggregate `json:"aggregates"`
	}
	unmarshalResult(t, result, &got)
	require.Len(t, got.Aggregates, 1)
	agg := got.Aggregates[0]
	require.NotNil(t, agg.Duration)
	assert.Equal(t, "0d 1h 0m 0s", agg.Duration.Min)
	assert.Equal(t, "1d 1h 1m 1s", agg.Duration.Max)
	assert.Nil(t, agg.Cost, "cost was not requested")
}

func TestFormatTool_MissingAggregates(t *testing.T) {
	s := NewServer(ServerDeps{})
	result, err := s.handleFormat(context.Background(), buildRequest("procperf.format", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- Helpers ---

func TestExtractInt(t *testing.T) {
	filter := map[string]any{"a": float64(3), "b": "7", "c": "x", "d": 4}
	assert.Equal(t, 3, extractInt(filter, "a", 0))
	assert.Equal(t, 7, extractInt(filter, "b", 0))
	assert.Equal(t, 9, extractInt(filter, "c", 9))
	assert.Equal(t, 4, extractInt(filter, "d", 0))
	assert.Equal(t, 1, extractInt(nil, "a", 1))
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	text := extractText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target))
}
