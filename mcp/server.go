// Package mcp provides the MCP (Model Context Protocol) server for conceptmap.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/conceptmap-go/internal/engine"
	"github.com/Benny93/conceptmap-go/internal/graph"
	"github.com/Benny93/conceptmap-go/internal/logger"
	"github.com/Benny93/conceptmap-go/internal/search"
	"github.com/Benny93/conceptmap-go/internal/session"
	"github.com/Benny93/conceptmap-go/internal/storage"
	"github.com/Benny93/conceptmap-go/internal/view"
)

const protocolVersion = "2024-11-05"

// Server represents the MCP server. It speaks line-delimited JSON-RPC
// itself and encodes every result with the go-sdk protocol types.
type Server struct {
	session *session.Session
	impl    *mcp.Implementation
	log     *logger.Logger

	schemas map[string]*jsonschema.Resolved
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Result is the JSON body of a successful tool call.
type Result struct {
	Success   bool              `json:"success"`
	Topic     string            `json:"topic"`
	Placement *engine.Placement `json:"placement,omitempty"`
	Added     []string          `json:"added,omitempty"`
	Removed   []string          `json:"removed,omitempty"`
	Scored    *int              `json:"scored,omitempty"`
	Matches   []search.Result   `json:"matches,omitempty"`
	Graph     *view.View        `json:"graph,omitempty"`
}

// NewServer creates a new MCP server over sess.
func NewServer(sess *session.Session, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		session: sess,
		impl:    &mcp.Implementation{Name: "conceptmap", Version: "0.1.0"},
		log:     log.With("component", "mcp"),
		schemas: make(map[string]*jsonschema.Resolved),
	}

	for _, tool := range s.ListTools() {
		resolved, err := tool.InputSchema.Resolve(nil)
		if err != nil {
			s.log.Error("invalid tool schema", "tool", tool.Name, "error", err)
			continue
		}
		s.schemas[tool.Name] = resolved
	}
	return s
}

func object(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

func computeSimilarityProp() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: "Score the new parent->child edges with embeddings"}
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "concept_graph",
			Description: "Load or generate the concept hierarchy for a topic and return it as nodes and links.",
			InputSchema: object(map[string]*jsonschema.Schema{
				"topic":            {Type: "string", Description: "Topic; defaults to the active topic"},
				"force":            {Type: "boolean", Description: "Regenerate even if a snapshot exists"},
				"use_similarities": {Type: "boolean", Description: "Score missing edges and style links by similarity"},
			}),
		},
		{
			Name:        "concept_add",
			Description: "Add a concept. Without a parent the placement is chosen by the language model.",
			InputSchema: object(map[string]*jsonschema.Schema{
				"id":                 {Type: "string", Description: "New concept name"},
				"parent":             {Type: "string", Description: "Existing parent concept"},
				"level":              {Type: "integer", Description: "Depth level of the new concept"},
				"compute_similarity": computeSimilarityProp(),
			}, "id"),
		},
		{
			Name:        "concept_auto_add",
			Description: "Add a term under the parent the language model considers best, with its reason.",
			InputSchema: object(map[string]*jsonschema.Schema{
				"term":               {Type: "string", Description: "Term to add"},
				"compute_similarity": computeSimilarityProp(),
			}, "term"),
		},
		{
			Name:        "concept_delete",
			Description: "Delete a concept and its whole subtree.",
			InputSchema: object(map[string]*jsonschema.Schema{
				"id": {Type: "string", Description: "Concept to delete"},
			}, "id"),
		},
		{
			Name:        "concept_rename",
			Description: "Rename a concept, keeping its children and edge similarities.",
			InputSchema: object(map[string]*jsonschema.Schema{
				"old_id": {Type: "string", Description: "Current concept name"},
				"new_id": {Type: "string", Description: "New concept name"},
			}, "old_id", "new_id"),
		},
		{
			Name:        "concept_insert",
			Description: "Insert a new concept between a parent and one of its children.",
			InputSchema: object(map[string]*jsonschema.Schema{
				"parent":             {Type: "string", Description: "Parent concept"},
				"child":              {Type: "string", Description: "Child concept"},
				"id":                 {Type: "string", Description: "New concept name"},
				"compute_similarity": computeSimilarityProp(),
			}, "parent", "child", "id"),
		},
		{
			Name:        "concept_expand",
			Description: "Generate new concepts below a node: a subtree for leaves, more children otherwise.",
			InputSchema: object(map[string]*jsonschema.Schema{
				"id":                 {Type: "string", Description: "Concept to expand"},
				"compute_similarity": computeSimilarityProp(),
			}, "id"),
		},
		{
			Name:        "concept_similarities",
			Description: "Score every parent->child edge that has no similarity yet.",
			InputSchema: object(map[string]*jsonschema.Schema{}),
		},
		{
			Name:        "concept_search",
			Description: "Search concepts by name and meaning. Returns ranked concept IDs.",
			InputSchema: object(map[string]*jsonschema.Schema{
				"query": {Type: "string", Description: "Search query text"},
				"limit": {Type: "integer", Description: "Maximum number of results"},
			}, "query"),
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []*mcp.Resource {
	return []*mcp.Resource{
		{
			URI:         "conceptmap://overview",
			Name:        "Concept Map Overview",
			Description: "Topic, size and depth of the active concept hierarchy",
			MIMEType:    "text/plain",
		},
		{
			URI:         "conceptmap://schema",
			Name:        "Concept Map Schema",
			Description: "Description of the snapshot and graph view formats",
			MIMEType:    "text/plain",
		},
		{
			URI:         "conceptmap://snapshot",
			Name:        "Snapshot",
			Description: "The active document in snapshot format",
			MIMEType:    "application/json",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	resolved, ok := s.schemas[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	if err := resolved.Validate(args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	var (
		res *Result
		err error
	)
	switch name {
	case "concept_graph":
		res, err = s.handleGraph(ctx, args)
	case "concept_add":
		res, err = s.handleAdd(ctx, args)
	case "concept_auto_add":
		res, err = s.handleAutoAdd(ctx, args)
	case "concept_delete":
		res, err = s.handleDelete(ctx, args)
	case "concept_rename":
		res, err = s.handleRename(ctx, args)
	case "concept_insert":
		res, err = s.handleInsert(ctx, args)
	case "concept_expand":
		res, err = s.handleExpand(ctx, args)
	case "concept_similarities":
		res, err = s.handleSimilarities(ctx)
	case "concept_search":
		res, err = s.handleSearch(ctx, args)
	}
	if err != nil {
		s.log.Info("tool call failed", "tool", name, "error", err)
		return "", err
	}

	data, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(data), nil
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "conceptmap://overview":
		doc, err := s.session.Current(ctx)
		if err != nil {
			return "", err
		}
		return getOverview(doc), nil
	case "conceptmap://schema":
		return getSchema(), nil
	case "conceptmap://snapshot":
		doc, err := s.session.Current(ctx)
		if err != nil {
			return "", err
		}
		data, err := storage.Encode(doc)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// MCP stdio framing is one compact JSON message per line

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			var req map[string]any
			if jsonErr := json.Unmarshal(line, &req); jsonErr != nil {
				if encErr := encoder.Encode(errorResponse(nil, -32700, "Parse error")); encErr != nil {
					return encErr
				}
			} else if _, isRequest := req["id"]; isRequest {
				if encErr := encoder.Encode(s.handleRequest(ctx, req)); encErr != nil {
					return encErr
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "ping":
		return resultResponse(id, struct{}{})
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return resultResponse(id, &mcp.InitializeResult{
		ProtocolVersion: protocolVersion,
		ServerInfo:      s.impl,
		Capabilities: &mcp.ServerCapabilities{
			Tools:     &mcp.ToolCapabilities{},
			Resources: &mcp.ResourceCapabilities{},
		},
	})
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	list := make([]*mcp.Tool, len(tools))
	for i, tool := range tools {
		list[i] = &mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}
	}
	return resultResponse(id, &mcp.ListToolsResult{Tools: list})
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return resultResponse(id, &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: result}},
	})
}

func (s *Server) handleResourcesList(id any) map[string]any {
	return resultResponse(id, &mcp.ListResourcesResult{Resources: s.ListResources()})
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)
	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	mimeType := "text/plain"
	for _, res := range s.ListResources() {
		if res.URI == uri {
			mimeType = res.MIMEType
		}
	}
	return resultResponse(id, &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: mimeType, Text: content}},
	})
}

// Resource Handlers

func getOverview(doc *graph.Document) string {
	var sb strings.Builder
	sb.WriteString("# Concept Map Overview\n\n")
	fmt.Fprintf(&sb, "**Topic:** %s\n", doc.Core)
	fmt.Fprintf(&sb, "**Concepts:** %d\n", len(doc.Concepts))
	fmt.Fprintf(&sb, "**Scored edges:** %d\n", len(doc.Relationships))
	fmt.Fprintf(&sb, "**Unscored edges:** %d\n", len(doc.MissingEdges()))

	groups := doc.ByLevel()
	sb.WriteString("\n## Levels\n\n")
	for _, level := range doc.Levels() {
		fmt.Fprintf(&sb, "- Level %d: %d concepts\n", level, len(groups[level]))
	}
	return sb.String()
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Concept Map Schema\n\n")
	sb.WriteString("## Snapshot\n\n")
	sb.WriteString("| Field | Type | Description |\n")
	sb.WriteString("|-------|------|-------------|\n")
	sb.WriteString("| `core` | string | Topic; the initial root concept ID |\n")
	sb.WriteString("| `concepts[].id` | string | Unique concept name |\n")
	sb.WriteString("| `concepts[].level` | int | Depth, 0 for the root |\n")
	sb.WriteString("| `concepts[].parent` | string or null | Parent concept ID, null for the root |\n")
	sb.WriteString("| `relationships` | object | `\"parent->child\"` to similarity 0..100 |\n")
	sb.WriteString("\n## Graph view\n\n")
	sb.WriteString("| Field | Description |\n")
	sb.WriteString("|-------|-------------|\n")
	sb.WriteString("| `nodes[]` | `id`, `level`, `group` (= level) |\n")
	sb.WriteString("| `links[].similarity` | 0..1 or null when unscored |\n")
	sb.WriteString("| `links[].dissonance` | (100 - similarity) / 100, 0.3 when unscored |\n")
	sb.WriteString("| `links[].line_type` | `dotted` when dissonance > 0.3, else `solid` |\n")
	sb.WriteString("| `links[].key` | `\"parent->child\"` |\n")
	return sb.String()
}

// Helper functions

func resultResponse(id any, result any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
}

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}
