package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("unify_files",
		mcp.WithPromptDescription("Guide through merging several files with differing columns into one table"),
		mcp.WithArgument("sourceType",
			mcp.ArgumentDescription("Source type of the files (e.g. csv, json)"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("items",
			mcp.ArgumentDescription("The files to merge, one per line"),
			mcp.RequiredArgument(),
		),
	), s.handleUnifyFilesPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("scheduled_import",
		mcp.WithPromptDescription("Set up a reader node that re-reads its sources on a schedule"),
		mcp.WithArgument("description",
			mcp.ArgumentDescription("What the import reads and where the rows go"),
			mcp.RequiredArgument(),
		),
	), s.handleScheduledImportPrompt)
}

func (s *Server) handleUnifyFilesPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	sourceType := req.Params.Arguments["sourceType"]
	items := req.Params.Arguments["items"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Merge %s files into one table", sourceType),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Merge these %s files into one table:
%s

Follow these steps:

1. Use discover_spec to see the union and intersection of their columns
2. If only the shared columns matter, pass {"spec_merge_mode":"intersection"} as readerConfigJSON
3. Use preview_table to check a few rows
4. Create a node (create_node) so the setup is saved, then configure_node
5. Use edit_column to rename, retype or drop columns, and preview_node to confirm

Columns missing from a file are empty in the rows read from it.`, sourceType, items),
				},
			},
		},
	}, nil
}

func (s *Server) handleScheduledImportPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	description := req.Params.Arguments["description"]
	return &mcp.GetPromptResult{
		Description: "Set up a scheduled import",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Set up a scheduled import: %s. Follow these steps:

1. Use list_sources (and list_db_connections for database reads) to pick the source type
2. Create a node (create_node) with triggerType "schedule", a five field cron expression as triggerConfig and an outputPath
3. Run configure_node and check the output columns
4. Run the node once with run_node and check list_run_logs

Later runs reuse the saved column setup; new columns are added at the unknown column slot.`, description),
				},
			},
		},
	}, nil
}
