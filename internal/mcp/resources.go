package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"tablereader/internal/errors"
)

const (
	nodesURI      = "tablereader://nodes"
	nodeURIPrefix = "tablereader://node/"
	nodeURISuffix = "/spec"
)

func (s *Server) registerResources() {
	// ── tablereader://nodes ────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		nodesURI,
		"All Reader Nodes",
		mcp.WithMIMEType("application/json"),
	), s.handleNodesResource)

	// ── tablereader://node/{node}/spec ─────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			nodeURIPrefix+"{node}"+nodeURISuffix,
			"Configured spec of a reader node",
		),
		s.handleNodeSpecResource,
	)
}

func (s *Server) handleNodesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	nodes, err := s.readers.ListNodes()
	if err != nil {
		return nil, err
	}

	type nodeSummary struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	summaries := make([]nodeSummary, 0, len(nodes))
	for _, n := range nodes {
		summaries = append(summaries, nodeSummary{ID: n.ID, Name: n.Name})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      nodesURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleNodeSpecResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	node := nodeFromURI(uri)
	if node == "" {
		return nil, errors.Newf("could not extract node from URI: %s", uri)
	}
	spec, err := s.readers.Spec(node)
	if err != nil {
		return nil, err
	}
	data, _ := json.MarshalIndent(spec, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// nodeFromURI extracts the node from "tablereader://node/{node}/spec".
func nodeFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, nodeURIPrefix)
	if !ok {
		return ""
	}
	node, ok := strings.CutSuffix(rest, nodeURISuffix)
	if !ok || strings.Contains(node, "/") {
		return ""
	}
	return node
}
