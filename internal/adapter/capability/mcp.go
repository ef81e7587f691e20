package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
	"github.com/TSGCFO/OmniAgent-v2/internal/infra/config"
)

// mcpCallTimeout is the default per-call timeout for provider invocations.
const mcpCallTimeout = 30 * time.Second

// mcpClient abstracts the MCP client for testability.
type mcpClient interface {
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	ListResources(ctx context.Context, request mcp.ListResourcesRequest) (*mcp.ListResourcesResult, error)
	ReadResource(ctx context.Context, request mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error)
	ListPrompts(ctx context.Context, request mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error)
	GetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error)
	Close() error
}

// MCPProvider exposes one MCP server as a capability provider.
type MCPProvider struct {
	name   string
	client mcpClient
	logger *slog.Logger
}

// NewMCPProvider connects to the configured MCP server over stdio or
// streamable HTTP and performs the protocol handshake.
func NewMCPProvider(ctx context.Context, srv config.MCPServer, logger *slog.Logger) (*MCPProvider, error) {
	var c mcpClient
	var err error

	switch srv.Transport {
	case "stdio":
		c, err = mcpclient.NewStdioMCPClient(srv.Command, envSlice(srv.Env), srv.Args...)
		if err != nil {
			return nil, fmt.Errorf("create stdio client: %w", err)
		}
	case "http":
		t, tErr := transport.NewStreamableHTTP(srv.URL)
		if tErr != nil {
			return nil, fmt.Errorf("create http transport: %w", tErr)
		}
		httpClient := mcpclient.NewClient(t)
		if err = httpClient.Start(ctx); err != nil {
			return nil, fmt.Errorf("start http client: %w", err)
		}
		c = httpClient
	default:
		return nil, fmt.Errorf("unsupported transport %q", srv.Transport)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "omniagent",
		Version: "2.0.0",
	}

	if ic, ok := c.(interface {
		Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	}); ok {
		if _, err = ic.Initialize(ctx, initReq); err != nil {
			c.Close()
			return nil, domain.WrapOp("initialize", err)
		}
	}

	logger.Info("capability provider connected", "name", srv.Name, "transport", srv.Transport)

	return &MCPProvider{name: srv.Name, client: c, logger: logger}, nil
}

// newMCPProviderWithClient builds a provider around a pre-built client
// (for testing).
func newMCPProviderWithClient(name string, client mcpClient, logger *slog.Logger) *MCPProvider {
	return &MCPProvider{name: name, client: client, logger: logger}
}

func (p *MCPProvider) Name() string { return p.name }

// Close shuts down the server connection.
func (p *MCPProvider) Close() error { return p.client.Close() }

// ListTools discovers the server's tools.
func (p *MCPProvider) ListTools(ctx context.Context) ([]domain.CapabilityEntry, error) {
	result, err := p.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, domain.WrapOp("list tools", err)
	}
	entries := make([]domain.CapabilityEntry, 0, len(result.Tools))
	for _, t := range result.Tools {
		var schema json.RawMessage
		if data, mErr := json.Marshal(t.InputSchema); mErr == nil {
			schema = data
		}
		entries = append(entries, domain.CapabilityEntry{
			Provider:        p.name,
			Kind:            domain.CapabilityTool,
			Name:            t.Name,
			Description:     t.Description,
			ArgumentsSchema: schema,
		})
	}
	return entries, nil
}

// CallTool invokes one server tool and flattens the reply to text.
func (p *MCPProvider) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, mcpCallTimeout)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := p.client.CallTool(ctx, req)
	if err != nil {
		return "", domain.WrapOp("call tool", err)
	}

	content := flattenContent(result.Content)
	if result.IsError {
		return "", domain.NewDomainError("CallTool", domain.ErrToolExecution, content)
	}
	return content, nil
}

// ListResources discovers the server's resources.
func (p *MCPProvider) ListResources(ctx context.Context) ([]domain.CapabilityEntry, error) {
	result, err := p.client.ListResources(ctx, mcp.ListResourcesRequest{})
	if err != nil {
		return nil, domain.WrapOp("list resources", err)
	}
	entries := make([]domain.CapabilityEntry, 0, len(result.Resources))
	for _, r := range result.Resources {
		entries = append(entries, domain.CapabilityEntry{
			Provider:    p.name,
			Kind:        domain.CapabilityResource,
			Name:        r.Name,
			URI:         r.URI,
			MIMEType:    r.MIMEType,
			Description: r.Description,
		})
	}
	return entries, nil
}

// ReadResource fetches one resource. Binary contents are replaced with an
// opaque placeholder; they are never decoded.
func (p *MCPProvider) ReadResource(ctx context.Context, uri string) (*domain.ResourceContent, error) {
	ctx, cancel := context.WithTimeout(ctx, mcpCallTimeout)
	defer cancel()

	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri

	result, err := p.client.ReadResource(ctx, req)
	if err != nil {
		return nil, domain.WrapOp("read resource", err)
	}
	if len(result.Contents) == 0 {
		return nil, domain.NewDomainError("ReadResource", domain.ErrResourceUnavailable, uri)
	}

	var parts []string
	mimeType := ""
	for _, c := range result.Contents {
		switch v := c.(type) {
		case mcp.TextResourceContents:
			parts = append(parts, v.Text)
			if mimeType == "" {
				mimeType = v.MIMEType
			}
		case *mcp.TextResourceContents:
			parts = append(parts, v.Text)
			if mimeType == "" {
				mimeType = v.MIMEType
			}
		case mcp.BlobResourceContents:
			parts = append(parts, binaryPlaceholder(v.MIMEType))
			if mimeType == "" {
				mimeType = v.MIMEType
			}
		case *mcp.BlobResourceContents:
			parts = append(parts, binaryPlaceholder(v.MIMEType))
			if mimeType == "" {
				mimeType = v.MIMEType
			}
		}
	}

	return &domain.ResourceContent{
		Content:  strings.Join(parts, "\n"),
		MIMEType: mimeType,
	}, nil
}

// ListPrompts discovers the server's prompts.
func (p *MCPProvider) ListPrompts(ctx context.Context) ([]domain.CapabilityEntry, error) {
	result, err := p.client.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err != nil {
		return nil, domain.WrapOp("list prompts", err)
	}
	entries := make([]domain.CapabilityEntry, 0, len(result.Prompts))
	for _, pr := range result.Prompts {
		entries = append(entries, domain.CapabilityEntry{
			Provider:    p.name,
			Kind:        domain.CapabilityPrompt,
			Name:        pr.Name,
			Description: pr.Description,
		})
	}
	return entries, nil
}

// GetPrompt expands one prompt with arguments.
func (p *MCPProvider) GetPrompt(ctx context.Context, name string, args map[string]string) (*domain.PromptResult, error) {
	ctx, cancel := context.WithTimeout(ctx, mcpCallTimeout)
	defer cancel()

	req := mcp.GetPromptRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := p.client.GetPrompt(ctx, req)
	if err != nil {
		return nil, domain.WrapOp("get prompt", err)
	}

	messages := make([]domain.PromptMessage, 0, len(result.Messages))
	for _, m := range result.Messages {
		messages = append(messages, domain.PromptMessage{
			Role:    string(m.Role),
			Content: flattenContent([]mcp.Content{m.Content}),
		})
	}

	return &domain.PromptResult{
		Description: result.Description,
		Messages:    messages,
	}, nil
}

// flattenContent converts MCP content blocks to a string.
func flattenContent(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		case mcp.ImageContent:
			parts = append(parts, binaryPlaceholder(v.MIMEType))
		case *mcp.ImageContent:
			parts = append(parts, binaryPlaceholder(v.MIMEType))
		case mcp.AudioContent:
			parts = append(parts, binaryPlaceholder(v.MIMEType))
		case *mcp.AudioContent:
			parts = append(parts, binaryPlaceholder(v.MIMEType))
		default:
			if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}

func binaryPlaceholder(mimeType string) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return fmt.Sprintf("[binary content: %s]", mimeType)
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	return result
}

var _ domain.CapabilityProvider = (*MCPProvider)(nil)
