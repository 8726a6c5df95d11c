package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"tablereader/internal/errors"
)

func (s *Server) registerConnectionTools() {
	s.mcp.AddTool(mcp.NewTool("list_db_connections",
		mcp.WithDescription("List the stored database connections database sources can read from"),
	), s.handleListDBConnections)

	s.mcp.AddTool(mcp.NewTool("introspect_database",
		mcp.WithDescription("Get schema information (tables and columns) of a database connection"),
		mcp.WithString("connection", mcp.Description("Connection ID or name"), mcp.Required()),
	), s.handleIntrospectDatabase)
}

func (s *Server) handleListDBConnections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conns, err := s.conns.ListConnections()
	if err != nil {
		return nil, errors.Wrap(err, "list connections")
	}
	return jsonResult(conns)
}

func (s *Server) handleIntrospectDatabase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conn := req.GetString("connection", "")
	if conn == "" {
		return errorResult(errors.Configurationf("connection is required"))
	}
	schema, err := s.conns.Introspect(ctx, conn)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(schema)
}
