package app

import (
	"context"

	mcpserver "tablereader/internal/mcp"
)

// Version is reported to MCP clients.
var Version = "dev"

// NewMCPServer builds the MCP server over the app's services. Approvals go
// through SQLite so a second process can resolve them.
func (a *App) NewMCPServer(ctx context.Context) *mcpserver.Server {
	return mcpserver.New(ctx, mcpserver.Deps{
		Name:            a.Config.MCP.Name,
		Version:         Version,
		Emitter:         a.Emitter,
		Readers:         a.Readers,
		Connections:     a.Connections,
		Defaults:        a.Defaults,
		RequireApproval: a.Config.MCP.RequireApproval,
		ApprovalDB:      a.DB.Conn(),
	})
}

// ServeMCP runs the MCP server on stdin/stdout. Triggered nodes keep
// running in the background while the server is up.
func (a *App) ServeMCP(ctx context.Context) error {
	srv := a.NewMCPServer(ctx)
	a.Readers.RestartWatchers(ctx)
	defer a.Readers.Stop()

	a.log.Infow("Starting standalone stdio server")
	return srv.ServeStdio()
}
