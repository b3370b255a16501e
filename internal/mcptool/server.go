// Package mcptool exposes the dashboard generators as MCP tools and provides
// the client the workflow uses to call them.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"ddgraph/internal/generate"
	"ddgraph/internal/logging"
)

// Response is the JSON text body of every tool result.
type Response struct {
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

type toolArgs struct {
	CompanyID string `json:"company_id"`
	TopK      int    `json:"top_k"`
}

type Server struct {
	mcpServer *server.MCPServer
	backend   generate.Tool
	logger    *logging.Logger
}

func NewServer(backend generate.Tool, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"ddgraph dashboard tools",
			version,
			server.WithToolCapabilities(false),
		),
		backend: backend,
		logger:  logging.GetLogger("mcp"),
	}
	s.registerTools()
	return s
}

func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// Handler serves the tools over streamable HTTP at endpointPath.
func (s *Server) Handler(endpointPath string) http.Handler {
	return server.NewStreamableHTTPServer(
		s.mcpServer,
		server.WithEndpointPath(endpointPath),
		server.WithStateLess(true),
	)
}

func (s *Server) registerTools() {
	s.registerTool(
		generate.ToolStructured,
		"Generate an investor dashboard for a company from its structured payload",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"company_id": map[string]any{"type": "string", "description": "Company identifier"},
			},
			"required": []string{"company_id"},
		},
		func(ctx context.Context, a toolArgs) (string, error) {
			return s.backend.GenerateStructured(ctx, a.CompanyID)
		},
	)
	s.registerTool(
		generate.ToolRAG,
		"Generate an investor dashboard for a company from retrieved document context",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"company_id": map[string]any{"type": "string", "description": "Company identifier"},
				"top_k":      map[string]any{"type": "integer", "description": "Optional: number of context chunks (default 10)"},
			},
			"required": []string{"company_id"},
		},
		func(ctx context.Context, a toolArgs) (string, error) {
			if a.TopK <= 0 {
				a.TopK = generate.RemoteTopK
			}
			return s.backend.GenerateRAG(ctx, a.CompanyID, a.TopK)
		},
	)
}

func (s *Server) registerTool(name, description string, schema map[string]any, run func(context.Context, toolArgs) (string, error)) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("marshal schema for tool %s: %v", name, err))
	}
	s.mcpServer.AddTool(mcp.NewToolWithRawSchema(name, description, schemaJSON), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var a toolArgs
		raw, err := json.Marshal(request.Params.Arguments)
		if err == nil {
			err = json.Unmarshal(raw, &a)
		}
		if err != nil {
			return failure(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		a.CompanyID = strings.TrimSpace(a.CompanyID)
		if a.CompanyID == "" {
			return failure("company_id is required"), nil
		}
		md, err := run(ctx, a)
		if err != nil {
			s.logger.Warn("Tool %s failed for %s: %v", name, a.CompanyID, err)
			return failure(err.Error()), nil
		}
		s.logger.Debug("Tool %s served %s (%d bytes)", name, a.CompanyID, len(md))
		return result(Response{Success: true, Result: md}, false), nil
	})
}

func failure(msg string) *mcp.CallToolResult {
	return result(Response{Success: false, Error: msg}, true)
}

func result(r Response, isError bool) *mcp.CallToolResult {
	body, _ := json.Marshal(r)
	if isError {
		return mcp.NewToolResultError(string(body))
	}
	return mcp.NewToolResultText(string(body))
}
