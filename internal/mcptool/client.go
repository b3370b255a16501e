package mcptool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"ddgraph/internal/generate"
)

var ErrToolFailed = errors.New("mcp tool failed")

// Client calls the dashboard tools on an MCP server. It implements
// generate.Tool.
type Client struct {
	c *client.Client
}

// Dial connects to a streamable HTTP MCP endpoint.
func Dial(ctx context.Context, url, version string) (*Client, error) {
	c, err := client.NewStreamableHttpClient(strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("mcp client: %w", err)
	}
	return start(ctx, c, version)
}

// NewInProcess connects directly to a Server without a network hop.
func NewInProcess(ctx context.Context, s *Server, version string) (*Client, error) {
	c, err := client.NewInProcessClient(s.MCPServer())
	if err != nil {
		return nil, fmt.Errorf("mcp client: %w", err)
	}
	return start(ctx, c, version)
}

func start(ctx context.Context, c *client.Client, version string) (*Client, error) {
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp client start: %w", err)
	}
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "ddgraph", Version: version}
	if _, err := c.Initialize(ctx, req); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp initialize: %w", err)
	}
	return &Client{c: c}, nil
}

func (c *Client) Close() error { return c.c.Close() }

func (c *Client) GenerateStructured(ctx context.Context, companyID string) (string, error) {
	return c.call(ctx, generate.ToolStructured, map[string]any{"company_id": companyID})
}

func (c *Client) GenerateRAG(ctx context.Context, companyID string, topK int) (string, error) {
	return c.call(ctx, generate.ToolRAG, map[string]any{"company_id": companyID, "top_k": topK})
}

func (c *Client) call(ctx context.Context, name string, args map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.c.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", name, err)
	}
	text := resultText(res)
	var resp Response
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		if res.IsError {
			return "", fmt.Errorf("%w: %s: %s", ErrToolFailed, name, text)
		}
		return "", fmt.Errorf("%w: %s: malformed response: %v", ErrToolFailed, name, err)
	}
	if !resp.Success || res.IsError {
		return "", fmt.Errorf("%w: %s: %s", ErrToolFailed, name, resp.Error)
	}
	if strings.TrimSpace(resp.Result) == "" {
		return "", fmt.Errorf("%w: %s: empty result", ErrToolFailed, name)
	}
	return resp.Result, nil
}

func resultText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	var b strings.Builder
	for _, content := range res.Content {
		switch tc := content.(type) {
		case mcp.TextContent:
			b.WriteString(tc.Text)
		case *mcp.TextContent:
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}
