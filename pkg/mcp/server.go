package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/procperf/internal/store"
	"github.com/rendis/procperf/pkg/schema"
)

// Analyzer runs the analysis pipeline. Satisfied by *engine.Analyzer.
type Analyzer interface {
	Analyze(ctx context.Context, def *schema.ProcessDefinition, settings schema.Settings) (*schema.Report, error)
	AnalyzeFile(ctx context.Context, path string, settings schema.Settings) (*schema.Report, error)
}

// ServerDeps holds the dependencies for creating a Server. Store is
// optional; without it reports are not persisted and procperf.report is
// unavailable.
type ServerDeps struct {
	Analyzer Analyzer
	Store    store.Store
	Settings schema.Settings // defaults for calls that pass no settings
	Logger   *slog.Logger
}

// Server wraps an MCP server with the procperf tool handlers.
type Server struct {
	analyzer  Analyzer
	store     store.Store
	settings  schema.Settings
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a Server with all tools registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	settings := deps.Settings
	if len(settings.Calculations) == 0 {
		settings = schema.DefaultSettings()
	}

	s := &Server{
		analyzer: deps.Analyzer,
		store:    deps.Store,
		settings: settings,
		logger:   logger,
	}

	mcpSrv := server.NewMCPServer(
		"procperf",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("procperf analyzes BPMN process models for time, cost and dates. Use procperf.analyze to validate and linearize a model, procperf.report to fetch or list stored reports, procperf.diagram to draw a linearized process and procperf.format to render aggregated figures."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: analyzeTool(), Handler: s.handleAnalyze},
		{Tool: reportTool(), Handler: s.handleReport},
		{Tool: diagramTool(), Handler: s.handleDiagram},
		{Tool: formatTool(), Handler: s.handleFormat},
	}
}

// --- Tool definitions ---

func analyzeTool() mcp.Tool {
	return mcp.NewTool("procperf.analyze",
		mcp.WithDescription("Validate and linearize a BPMN process model"),
		mcp.WithString("path", mcp.Description("Path of a JSON or YAML process document")),
		mcp.WithObject("document", mcp.Description("Inline process document (used when path is empty)")),
		mcp.WithObject("settings", mcp.Description("Analysis settings (calculations, performance flags, rules)")),
		mcp.WithBoolean("save", mcp.Description("Store the report (default: true when a store is configured)")),
	)
}

func reportTool() mcp.Tool {
	return mcp.NewTool("procperf.report",
		mcp.WithDescription("Fetch a stored report or list stored reports"),
		mcp.WithString("report_id", mcp.Description("Report to fetch; omit to list")),
		mcp.WithObject("filter", mcp.Description("List filter (process_id, source, succeeded, since, limit, offset)")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("procperf.diagram",
		mcp.WithDescription("Draw the linearized flow of a process as ASCII art or a Mermaid flowchart"),
		mcp.WithString("path", mcp.Description("Path of a JSON or YAML process document")),
		mcp.WithObject("document", mcp.Description("Inline process document (used when path is empty)")),
		mcp.WithString("process_id", mcp.Description("Process to draw (default: main process)")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid"),
			mcp.Description("Output format"),
		),
	)
}

func formatTool() mcp.Tool {
	return mcp.NewTool("procperf.format",
		mcp.WithDescription("Render aggregated process figures as display strings"),
		mcp.WithArray("aggregates", mcp.Required(), mcp.Description("Aggregates with processId, duration, cost, start and end")),
		mcp.WithObject("settings", mcp.Description("Settings selecting which figures to keep and the currency")),
	)
}
