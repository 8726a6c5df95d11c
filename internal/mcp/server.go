package mcpserver

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"tablereader/internal/errors"
	"tablereader/internal/logger"
	"tablereader/internal/read"
	"tablereader/internal/service"
)

// Server is the MCP server of tablereader.
// It exposes tools, resources, and prompts so AI agents can discover table
// specs, configure reader nodes and run them.
type Server struct {
	mcp      *server.MCPServer
	emitter  EventEmitter
	approval *ApprovalQueue
	log      *zap.SugaredLogger

	readers  *service.ReaderService
	conns    *service.ConnectionService
	defaults read.Config

	requireApproval bool
}

// Deps holds all dependencies passed from the app layer to the MCP server.
type Deps struct {
	Name        string
	Version     string
	Emitter     EventEmitter
	Readers     *service.ReaderService
	Connections *service.ConnectionService
	Defaults    read.Config
	// RequireApproval gates run_node on nodes with an output file and
	// delete_node behind a human approval.
	RequireApproval bool
	ApprovalDB      *sql.DB // When set, approvals go through SQLite (standalone mode)
}

// New creates and configures a new MCP server with all tools and resources.
func New(ctx context.Context, deps Deps) *Server {
	emitter := deps.Emitter
	if emitter == nil {
		emitter = service.NewLogEmitter()
	}
	approval := NewApprovalQueue(ctx, emitter)
	if deps.ApprovalDB != nil {
		approval.SetDB(deps.ApprovalDB)
	}
	name, version := deps.Name, deps.Version
	if name == "" {
		name = "tablereader"
	}
	if version == "" {
		version = "dev"
	}

	s := &Server{
		emitter:         emitter,
		approval:        approval,
		log:             logger.ComponentLogger("mcp"),
		readers:         deps.Readers,
		conns:           deps.Connections,
		defaults:        deps.Defaults,
		requireApproval: deps.RequireApproval,
	}

	s.mcp = server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerSourceTools()
	s.registerNodeTools()
	if s.conns != nil {
		s.registerConnectionTools()
	}
	s.registerResources()
	s.registerPrompts()

	return s
}

// MCP returns the underlying server, e.g. to serve it over another transport.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Infow("Starting stdio server")
	return server.ServeStdio(s.mcp)
}

// Approve forwards a user approval to the approval queue.
func (s *Server) Approve(actionID string) {
	s.approval.Approve(actionID)
}

// Reject forwards a user rejection to the approval queue.
func (s *Server) Reject(actionID string) {
	s.approval.Reject(actionID)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal result")
	}
	return textResult(string(data)), nil
}

// errorResult reports configuration problems to the agent as a tool error
// with hints, so it can fix the call. Other errors fail the request.
func errorResult(err error) (*mcp.CallToolResult, error) {
	if !errors.IsConfiguration(err) && !errors.IsNotFound(err) {
		return nil, err
	}
	msg := err.Error()
	if hint := errors.FlattenHints(err); hint != "" {
		msg += "\nhint: " + hint
	}
	return mcp.NewToolResultError(msg), nil
}
