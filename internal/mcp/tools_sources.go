package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"tablereader/internal/errors"
)

const readerConfigHelp = `Optional read settings as JSON, e.g.
{"spec_merge_mode":"intersection","spec_limit":500,"options":{"delimiter":";"}}.
spec_merge_mode is union (default), intersection or fail_on_differing_specs.
options are source specific, see list_sources.`

func (s *Server) registerSourceTools() {
	s.mcp.AddTool(mcp.NewTool("list_sources",
		mcp.WithDescription("List the source types tables can be read from, with their options"),
	), s.handleListSources)

	s.mcp.AddTool(mcp.NewTool("discover_spec",
		mcp.WithDescription("Read the column specs of one or more items (files or queries) and show how they merge into one table: union, intersection and the default column transformation"),
		mcp.WithString("sourceType", mcp.Description("Source type (see list_sources)"), mcp.Required()),
		mcp.WithString("items", mcp.Description("Items to read: a JSON array of strings or one item per line"), mcp.Required()),
		mcp.WithString("readerConfigJSON", mcp.Description(readerConfigHelp)),
	), s.handleDiscoverSpec)

	s.mcp.AddTool(mcp.NewTool("preview_table",
		mcp.WithDescription("Read the first rows of the merged table of one or more items without saving anything"),
		mcp.WithString("sourceType", mcp.Description("Source type (see list_sources)"), mcp.Required()),
		mcp.WithString("items", mcp.Description("Items to read: a JSON array of strings or one item per line"), mcp.Required()),
		mcp.WithString("readerConfigJSON", mcp.Description(readerConfigHelp)),
		mcp.WithNumber("limit", mcp.Description("Number of rows (default 20)")),
	), s.handlePreviewTable)
}

func (s *Server) handleListSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.readers.ListSources())
}

func (s *Server) itemsRequest(req mcp.CallToolRequest) (string, []string, error) {
	args := req.GetArguments()
	sourceType := req.GetString("sourceType", "")
	if sourceType == "" {
		return "", nil, errors.Configurationf("sourceType is required")
	}
	items, err := parseItems(args["items"])
	if err != nil {
		return "", nil, err
	}
	if len(items) == 0 {
		return "", nil, errors.Configurationf("items is required")
	}
	return sourceType, items, nil
}

func (s *Server) handleDiscoverSpec(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceType, items, err := s.itemsRequest(req)
	if err != nil {
		return errorResult(err)
	}
	cfg, err := readConfig(s.defaults, req.GetArguments())
	if err != nil {
		return errorResult(err)
	}
	spec, err := s.readers.DiscoverSpec(ctx, sourceType, items, cfg)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(spec)
}

func (s *Server) handlePreviewTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceType, items, err := s.itemsRequest(req)
	if err != nil {
		return errorResult(err)
	}
	args := req.GetArguments()
	cfg, err := readConfig(s.defaults, args)
	if err != nil {
		return errorResult(err)
	}
	res, err := s.readers.PreviewItems(ctx, sourceType, items, cfg, int(getFloat(args, "limit", 0)))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}
