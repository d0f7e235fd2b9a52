package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/procperf/internal/diagram"
	"github.com/rendis/procperf/internal/format"
	"github.com/rendis/procperf/internal/normalize"
	"github.com/rendis/procperf/internal/store"
	"github.com/rendis/procperf/pkg/schema"
)

// handleAnalyze analyzes a document from disk or inline and optionally
// stores the report.
func (s *Server) handleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	settings, err := s.parseSettings(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report, err := s.analyze(ctx, req, settings)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	if s.store != nil && req.GetBool("save", true) {
		if saveErr := s.store.SaveReport(ctx, report); saveErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to store report: %v", saveErr)), nil
		}
	}
	return marshalResult(report)
}

// handleReport fetches one stored report or lists report summaries.
func (s *Server) handleReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("no report store configured"), nil
	}

	if id := req.GetString("report_id", ""); id != "" {
		stored, err := s.store.GetReport(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("report lookup failed: %v", err)), nil
		}
		return mcp.NewToolResultJSON(stored.Body)
	}

	filter := mcp.ParseStringMap(req, "filter", nil)
	rf := store.ReportFilter{
		Limit:  extractInt(filter, "limit", 50),
		Offset: extractInt(filter, "offset", 0),
	}
	if pid, ok := filter["process_id"].(string); ok {
		rf.ProcessID = pid
	}
	if src, ok := filter["source"].(string); ok {
		rf.Source = src
	}
	if ok, isBool := filter["succeeded"].(bool); isBool {
		rf.Succeeded = &ok
	}
	if since, ok := filter["since"].(string); ok && since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid since: %v", err)), nil
		}
		rf.Since = &t
	}

	reports, err := s.store.ListReports(ctx, rf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"reports": reports})
}

// handleDiagram analyzes a document and draws one of its processes.
func (s *Server) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	if out != "ascii" && out != "mermaid" {
		return mcp.NewToolResultError("format must be ascii or mermaid"), nil
	}

	report, err := s.analyze(ctx, req, s.settings)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}
	if !report.Resolved {
		return marshalResult(map[string]any{"problems": report.Problems})
	}

	pr := report.Main()
	if pid := req.GetString("process_id", ""); pid != "" {
		pr = nil
		for _, p := range report.Processes {
			if p.ProcessID == pid {
				pr = p
				break
			}
		}
		if pr == nil {
			return mcp.NewToolResultError(fmt.Sprintf("process %q not in report", pid)), nil
		}
	}

	model, err := diagram.Build(pr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("diagram build failed: %v", err)), nil
	}
	if out == "mermaid" {
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	}
	return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
}

// handleFormat renders aggregates with the requested settings.
func (s *Server) handleFormat(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, ok := req.GetArguments()["aggregates"]
	if !ok {
		return mcp.NewToolResultError("aggregates is required"), nil
	}
	var aggs []schema.Aggregate
	if err := remarshal(raw, &aggs); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid aggregates: %v", err)), nil
	}
	settings, err := s.parseSettings(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(map[string]any{"aggregates": format.New(settings).FormatAll(aggs)})
}

// --- Internal helpers ---

// analyze runs the analyzer on the path or inline document of req.
func (s *Server) analyze(ctx context.Context, req mcp.CallToolRequest, settings schema.Settings) (*schema.Report, error) {
	if path := req.GetString("path", ""); path != "" {
		return s.analyzer.AnalyzeFile(ctx, path, settings)
	}
	doc := mcp.ParseStringMap(req, "document", nil)
	if doc == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "one of path or document is required")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "invalid document").WithCause(err)
	}
	def, err := normalize.Decode(data)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Analyze(ctx, def, settings)
}

// parseSettings reads the optional settings argument, falling back to the
// server defaults.
func (s *Server) parseSettings(req mcp.CallToolRequest) (schema.Settings, error) {
	raw := mcp.ParseStringMap(req, "settings", nil)
	if raw == nil {
		return s.settings, nil
	}
	var settings schema.Settings
	if err := remarshal(raw, &settings); err != nil {
		return schema.Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}

func remarshal(in any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
