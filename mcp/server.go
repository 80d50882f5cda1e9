// Package mcp provides the MCP (Model Context Protocol) server for fanout.
//
// The server answers questions about the last stored analysis: overview,
// structural findings, recommendations, node neighborhoods and full-text
// search over the stored content.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/fanout-go/internal/graph"
	"github.com/Benny93/fanout-go/internal/report"
	"github.com/Benny93/fanout-go/internal/storage"
)

// Defaults for tool arguments.
const (
	defaultSearchLimit = 10
	defaultListLimit   = 20
	snippetLimit       = 200
)

// Resource URIs.
const (
	OverviewURI = "fanout://overview"
	ReportURI   = "fanout://report"
	SchemaURI   = "fanout://schema"
)

// Server represents the MCP server.
type Server struct {
	store  Store
	server *mcp.Server
}

// Store is the read side of a snapshot store.
type Store interface {
	Info(ctx context.Context) (*storage.SnapshotInfo, error)
	LoadReport(ctx context.Context) (*report.Report, error)
	GetNode(ctx context.Context, nodeID string) (*graph.ContentNode, error)
	GetLinks(ctx context.Context, nodeID string) (*storage.LinkSet, error)
	Search(ctx context.Context, query string, limit int) ([]storage.SearchResult, error)
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server over store.
func NewServer(store Store, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{store: store}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "fanout",
		Version: version,
	}, nil)

	s.registerTools()
	s.registerResources()

	return s
}

func limitSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: description}
}

func noArgs() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: map[string]*jsonschema.Schema{}}
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "fanout_overview",
			Description: "Summary of the stored analysis: site, node and edge counts, and report totals.",
			InputSchema: noArgs(),
		},
		{
			Name:        "fanout_query",
			Description: "Full-text search over stored posts and pages. Returns ranked content matching the query.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Search query text"},
					"limit": limitSchema("Maximum number of results"),
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "fanout_context",
			Description: "Neighborhood of one content node: outgoing links, backlinks and taxonomy. Accepts a node ID or a search phrase.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node": {Type: "string", Description: "Node ID, or text matching its title"},
				},
				Required: []string{"node"},
			},
		},
		{
			Name:        "fanout_hubs",
			Description: "Content with hub potential: many outgoing links and deep structure.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{"limit": limitSchema("Maximum number of entries")},
			},
		},
		{
			Name:        "fanout_orphans",
			Description: "Orphan content: no backlinks and at most one outgoing link.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{"limit": limitSchema("Maximum number of entries")},
			},
		},
		{
			Name:        "fanout_clusters",
			Description: "Semantic clusters of topically similar content with their theme terms.",
			InputSchema: noArgs(),
		},
		{
			Name:        "fanout_recommendations",
			Description: "Recommendations and action plan of the stored report.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"priority": {Type: "string", Description: "Only show this priority", Enum: []any{report.PriorityHigh, report.PriorityMedium, report.PriorityLow}},
				},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         OverviewURI,
			Name:        "Analysis Overview",
			Description: "High-level statistics about the stored analysis",
			MimeType:    "text/plain",
		},
		{
			URI:         ReportURI,
			Name:        "Analysis Report",
			Description: "The full report document as JSON",
			MimeType:    "application/json",
		},
		{
			URI:         SchemaURI,
			Name:        "Graph Schema",
			Description: "Description of the content graph schema",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "fanout_overview":
		return s.overview(ctx)
	case "fanout_query":
		query, _ := args["query"].(string)
		return s.handleQuery(ctx, query, intArg(args, "limit", defaultSearchLimit))
	case "fanout_context":
		node, _ := args["node"].(string)
		return s.handleContext(ctx, node)
	case "fanout_hubs":
		return s.handleScores(ctx, "Hub candidates", intArg(args, "limit", defaultListLimit), hubs)
	case "fanout_orphans":
		return s.handleScores(ctx, "Orphan content", intArg(args, "limit", defaultListLimit), orphans)
	case "fanout_clusters":
		return s.handleClusters(ctx)
	case "fanout_recommendations":
		priority, _ := args["priority"].(string)
		return s.handleRecommendations(ctx, priority)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case OverviewURI:
		return s.overview(ctx)
	case ReportURI:
		rep, err := s.store.LoadReport(ctx)
		if err != nil {
			return "", err
		}
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding report: %w", err)
		}
		return string(data), nil
	case SchemaURI:
		return getSchema(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves MCP over stdin and stdout until the client disconnects or
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer exposes the underlying protocol server, for example to serve
// it over another transport.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// registerTools registers tools with the MCP server.
func (s *Server) registerTools() {
	for _, tool := range s.ListTools() {
		name := tool.Name
		s.server.AddTool(&mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := map[string]any{}
			if req.Params != nil && len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
				}
			}
			text, err := s.CallTool(ctx, name, args)
			if err != nil {
				return toolError(err), nil
			}
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, nil
		})
	}
}

// registerResources registers resources with the MCP server.
func (s *Server) registerResources() {
	for _, res := range s.ListResources() {
		res := res
		s.server.AddResource(&mcp.Resource{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MIMEType:    res.MimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, res.URI)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
				{URI: res.URI, MIMEType: res.MimeType, Text: text},
			}}, nil
		})
	}
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

// intArg reads a numeric argument. JSON numbers decode as float64.
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		if v >= 1 {
			return int(v)
		}
	case int:
		if v >= 1 {
			return v
		}
	}
	return fallback
}

// noSnapshot turns a missing snapshot into a hint instead of an error.
func noSnapshot(err error) (string, bool) {
	if errors.Is(err, storage.ErrNoSnapshot) {
		return "No analysis stored yet. Run `fanout analyze` first.", true
	}
	return "", false
}
