package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"tablereader/internal/domain"
	"tablereader/internal/errors"
	"tablereader/internal/flowvar"
	"tablereader/internal/service"
	"tablereader/internal/transform"
)

func (s *Server) registerNodeTools() {
	s.mcp.AddTool(mcp.NewTool("list_nodes",
		mcp.WithDescription("List the stored reader nodes"),
	), s.handleListNodes)

	s.mcp.AddTool(mcp.NewTool("get_node",
		mcp.WithDescription("Show a reader node and, once configured, its columns and output"),
		mcp.WithString("node", mcp.Description("Node ID or name"), mcp.Required()),
	), s.handleGetNode)

	s.mcp.AddTool(mcp.NewTool("create_node",
		mcp.WithDescription("Create a reader node: a named set of items read as one table, optionally run on a schedule or when its files change"),
		mcp.WithString("name", mcp.Description("Unique node name"), mcp.Required()),
		mcp.WithString("sourceType", mcp.Description("Source type (see list_sources)"), mcp.Required()),
		mcp.WithString("items", mcp.Description("Items to read: a JSON array of strings or one item per line"), mcp.Required()),
		mcp.WithString("readerConfigJSON", mcp.Description(readerConfigHelp)),
		mcp.WithString("triggerType", mcp.Description("manual (default), schedule or file_watch")),
		mcp.WithString("triggerConfig", mcp.Description("Cron expression for schedule; comma separated paths for file_watch (defaults to the items)")),
		mcp.WithString("outputPath", mcp.Description("File runs write to (.csv or .jsonl); empty to only count rows")),
	), s.handleCreateNode)

	s.mcp.AddTool(mcp.NewTool("configure_node",
		mcp.WithDescription("Read the specs of a node's items and reconcile them with its saved column transformation"),
		mcp.WithString("node", mcp.Description("Node ID or name"), mcp.Required()),
	), s.handleConfigureNode)

	s.mcp.AddTool(mcp.NewTool("edit_column",
		mcp.WithDescription("Change how a raw column of a configured node appears in the output"),
		mcp.WithString("node", mcp.Description("Node ID or name"), mcp.Required()),
		mcp.WithString("column", mcp.Description("Original column name"), mcp.Required()),
		mcp.WithString("rename", mcp.Description("New output name")),
		mcp.WithString("type", mcp.Description("Output type: BooleanCell, IntCell, LongCell, DoubleCell, LocalDateTimeCell or StringCell")),
		mcp.WithBoolean("keep", mcp.Description("Whether the column is part of the output")),
		mcp.WithNumber("position", mcp.Description("New position in the output")),
	), s.handleEditColumn)

	s.mcp.AddTool(mcp.NewTool("undo_node_change",
		mcp.WithDescription("Restore the column configuration a node had before its last change"),
		mcp.WithString("node", mcp.Description("Node ID or name"), mcp.Required()),
		mcp.WithBoolean("redo", mcp.Description("Reapply the newest undone change instead")),
	), s.handleUndoNodeChange)

	s.mcp.AddTool(mcp.NewTool("preview_node",
		mcp.WithDescription("Read the first rows of a node without saving anything"),
		mcp.WithString("node", mcp.Description("Node ID or name"), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Number of rows (default 20)")),
	), s.handlePreviewNode)

	s.mcp.AddTool(mcp.NewTool("run_node",
		mcp.WithDescription("Run a reader node. 🛑 Overwrites the node's output file; may require user approval."),
		mcp.WithString("node", mcp.Description("Node ID or name"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRunNode)

	s.mcp.AddTool(mcp.NewTool("list_run_logs",
		mcp.WithDescription("Show the latest runs of a node"),
		mcp.WithString("node", mcp.Description("Node ID or name"), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Number of runs (default 20)")),
	), s.handleListRunLogs)

	s.mcp.AddTool(mcp.NewTool("set_variable",
		mcp.WithDescription("Set a flow variable of a node. Variables named skip_empty_columns, fail_on_differing_specs, spec_limit or fail_on_content_errors override the read settings"),
		mcp.WithString("node", mcp.Description("Node ID or name"), mcp.Required()),
		mcp.WithString("name", mcp.Description("Variable name"), mcp.Required()),
		mcp.WithString("type", mcp.Description("string, int, double or boolean"), mcp.Required()),
		mcp.WithString("value", mcp.Description("Value"), mcp.Required()),
	), s.handleSetVariable)

	s.mcp.AddTool(mcp.NewTool("delete_node",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a reader node and its run history. May require user approval."),
		mcp.WithString("node", mcp.Description("Node ID or name"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteNode)
}

func nodeArg(req mcp.CallToolRequest) (string, error) {
	node := req.GetString("node", "")
	if node == "" {
		return "", errors.Configurationf("node is required")
	}
	return node, nil
}

func (s *Server) handleListNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodes, err := s.readers.ListNodes()
	if err != nil {
		return nil, err
	}
	type nodeSummary struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		SourceType string `json:"sourceType"`
		Items      int    `json:"items"`
		Trigger    string `json:"trigger"`
		Configured bool   `json:"configured"`
		LastStatus string `json:"lastStatus,omitempty"`
	}
	out := make([]nodeSummary, len(nodes))
	for i, n := range nodes {
		out[i] = nodeSummary{
			ID:         n.ID,
			Name:       n.Name,
			SourceType: n.SourceType,
			Items:      len(n.Items),
			Trigger:    string(n.TriggerType),
			Configured: len(n.SpecConfig) > 0,
			LastStatus: n.LastStatus,
		}
	}
	return jsonResult(out)
}

func (s *Server) handleGetNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := nodeArg(req)
	if err != nil {
		return errorResult(err)
	}
	n, err := s.readers.GetNode(id)
	if err != nil {
		return errorResult(err)
	}
	n.SpecConfig = nil
	out := map[string]any{"node": n}
	if spec, err := s.readers.Spec(n.ID); err == nil {
		out["spec"] = spec
	}
	if vars, err := s.readers.Variables(n.ID); err == nil && len(vars) > 0 {
		out["variables"] = vars
	}
	return jsonResult(out)
}

func (s *Server) handleCreateNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	items, err := parseItems(args["items"])
	if err != nil {
		return errorResult(err)
	}
	input := service.CreateNodeInput{
		Name:          req.GetString("name", ""),
		SourceType:    req.GetString("sourceType", ""),
		Items:         items,
		TriggerType:   req.GetString("triggerType", ""),
		TriggerConfig: req.GetString("triggerConfig", ""),
		OutputPath:    req.GetString("outputPath", ""),
		Enabled:       true,
	}
	if raw := req.GetString("readerConfigJSON", ""); raw != "" {
		input.ReaderConfig = json.RawMessage(raw)
	}
	n, err := s.readers.CreateNode(ctx, input)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(n)
}

func (s *Server) handleConfigureNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := nodeArg(req)
	if err != nil {
		return errorResult(err)
	}
	spec, err := s.readers.Configure(ctx, id, nil)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(spec)
}

func (s *Server) handleEditColumn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := nodeArg(req)
	if err != nil {
		return errorResult(err)
	}
	args := req.GetArguments()
	column := req.GetString("column", "")
	if column == "" {
		return errorResult(errors.Configurationf("column is required"))
	}

	spec, err := s.readers.EditTransformation(ctx, id, "edit "+column, func(tt *transform.TableTransformation) (*transform.TableTransformation, error) {
		var err error
		if name := req.GetString("rename", ""); name != "" {
			if tt, err = tt.Rename(column, name); err != nil {
				return nil, err
			}
		}
		if dest := req.GetString("type", ""); dest != "" {
			if tt, err = tt.Retype(s.readers.Paths(), column, transform.DataType(dest)); err != nil {
				return nil, err
			}
		}
		if keep, ok := args["keep"].(bool); ok {
			if tt, err = tt.SetKeep(column, keep); err != nil {
				return nil, err
			}
		}
		if pos, ok := args["position"].(float64); ok {
			if tt, err = tt.Move(column, int(pos)); err != nil {
				return nil, err
			}
		}
		return tt, nil
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(spec)
}

func (s *Server) handleUndoNodeChange(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := nodeArg(req)
	if err != nil {
		return errorResult(err)
	}
	move := s.readers.Undo
	if redo, _ := req.GetArguments()["redo"].(bool); redo {
		move = s.readers.Redo
	}
	spec, err := move(ctx, id)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(spec)
}

func (s *Server) handlePreviewNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := nodeArg(req)
	if err != nil {
		return errorResult(err)
	}
	res, err := s.readers.Preview(ctx, id, int(getFloat(req.GetArguments(), "limit", 0)))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}

func (s *Server) handleRunNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := nodeArg(req)
	if err != nil {
		return errorResult(err)
	}
	n, err := s.readers.GetNode(id)
	if err != nil {
		return errorResult(err)
	}

	if s.requireApproval && n.OutputPath != "" {
		approved, err := s.approval.Request("run_node",
			fmt.Sprintf("Run node %s (overwrites %s)", n.Name, truncate(n.OutputPath, 100)),
			fmt.Sprintf(`{"nodeId":%q}`, n.ID))
		if err != nil || !approved {
			return textResult("Action rejected by user"), nil
		}
	}

	res, err := s.readers.Execute(ctx, n.ID, domain.TriggerManual, nil)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}

func (s *Server) handleListRunLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := nodeArg(req)
	if err != nil {
		return errorResult(err)
	}
	logs, err := s.readers.ListRunLogs(id, int(getFloat(req.GetArguments(), "limit", 20)))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(logs)
}

func (s *Server) handleSetVariable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := nodeArg(req)
	if err != nil {
		return errorResult(err)
	}
	typ, err := flowvar.ParseType(req.GetString("type", ""))
	if err != nil {
		return errorResult(err)
	}
	v := flowvar.Variable{Name: req.GetString("name", ""), Type: typ, Value: req.GetString("value", "")}
	if err := s.readers.SetVariable(id, v); err != nil {
		return errorResult(err)
	}
	vars, err := s.readers.Variables(id)
	if err != nil {
		return nil, err
	}
	return jsonResult(vars)
}

func (s *Server) handleDeleteNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := nodeArg(req)
	if err != nil {
		return errorResult(err)
	}
	n, err := s.readers.GetNode(id)
	if err != nil {
		return errorResult(err)
	}
	if s.requireApproval {
		approved, err := s.approval.Request("delete_node", fmt.Sprintf("Delete node %s", n.Name),
			fmt.Sprintf(`{"nodeId":%q}`, n.ID))
		if err != nil || !approved {
			return textResult("Action rejected by user"), nil
		}
	}
	if err := s.readers.DeleteNode(ctx, n.ID); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Deleted node %s", n.Name)), nil
}
