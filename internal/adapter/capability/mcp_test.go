package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
	"github.com/TSGCFO/OmniAgent-v2/internal/infra/logger"
)

// mockMCPClient implements mcpClient for testing.
type mockMCPClient struct {
	tools     []mcp.Tool
	resources []mcp.Resource
	prompts   []mcp.Prompt

	callFunc   func(req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	readFunc   func(req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error)
	promptFunc func(req mcp.GetPromptRequest) (*mcp.GetPromptResult, error)

	listErr error
	closed  bool
}

func (m *mockMCPClient) ListTools(_ context.Context, _ mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return &mcp.ListToolsResult{Tools: m.tools}, nil
}

func (m *mockMCPClient) CallTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if m.callFunc != nil {
		return m.callFunc(req)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent("called " + req.Params.Name)},
	}, nil
}

func (m *mockMCPClient) ListResources(_ context.Context, _ mcp.ListResourcesRequest) (*mcp.ListResourcesResult, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return &mcp.ListResourcesResult{Resources: m.resources}, nil
}

func (m *mockMCPClient) ReadResource(_ context.Context, req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if m.readFunc != nil {
		return m.readFunc(req)
	}
	return &mcp.ReadResourceResult{}, nil
}

func (m *mockMCPClient) ListPrompts(_ context.Context, _ mcp.ListPromptsRequest) (*mcp.ListPromptsResult, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return &mcp.ListPromptsResult{Prompts: m.prompts}, nil
}

func (m *mockMCPClient) GetPrompt(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	if m.promptFunc != nil {
		return m.promptFunc(req)
	}
	return &mcp.GetPromptResult{}, nil
}

func (m *mockMCPClient) Close() error {
	m.closed = true
	return nil
}

func newTestProvider(client *mockMCPClient) *MCPProvider {
	return newMCPProviderWithClient("slack", client, logger.Discard())
}

func TestMCPProviderListTools(t *testing.T) {
	p := newTestProvider(&mockMCPClient{
		tools: []mcp.Tool{
			{Name: "post_message", Description: "Post a message to a channel",
				InputSchema: mcp.ToolInputSchema{
					Type:       "object",
					Properties: map[string]any{"channel": map[string]any{"type": "string"}},
					Required:   []string{"channel"},
				}},
		},
	})

	entries, err := p.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "slack", entries[0].Provider)
	assert.Equal(t, domain.CapabilityTool, entries[0].Kind)
	assert.Equal(t, "post_message", entries[0].Name)
	assert.Contains(t, string(entries[0].ArgumentsSchema), `"channel"`)
}

func TestMCPProviderListResourcesAndPrompts(t *testing.T) {
	p := newTestProvider(&mockMCPClient{
		resources: []mcp.Resource{
			{URI: "slack://channels.md", Name: "channels", MIMEType: "text/markdown", Description: "channel guide"},
		},
		prompts: []mcp.Prompt{
			{Name: "digest", Description: "summarize activity"},
		},
	})

	resources, err := p.ListResources(context.Background())
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, domain.CapabilityResource, resources[0].Kind)
	assert.Equal(t, "slack://channels.md", resources[0].URI)
	assert.Equal(t, "text/markdown", resources[0].MIMEType)

	prompts, err := p.ListPrompts(context.Background())
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, domain.CapabilityPrompt, prompts[0].Kind)
	assert.Equal(t, "digest", prompts[0].Name)
}

func TestMCPProviderListFailure(t *testing.T) {
	p := newTestProvider(&mockMCPClient{listErr: errors.New("connection reset")})

	_, err := p.ListTools(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list tools")
}

func TestMCPProviderCallTool(t *testing.T) {
	var gotName string
	p := newTestProvider(&mockMCPClient{
		callFunc: func(req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			gotName = req.Params.Name
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("line 1"),
					mcp.NewTextContent("line 2"),
				},
			}, nil
		},
	})

	out, err := p.CallTool(context.Background(), "post_message", map[string]any{"channel": "general"})
	require.NoError(t, err)
	assert.Equal(t, "post_message", gotName)
	assert.Equal(t, "line 1\nline 2", out)
}

func TestMCPProviderCallToolServerError(t *testing.T) {
	p := newTestProvider(&mockMCPClient{
		callFunc: func(_ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{mcp.NewTextContent("channel not found")},
			}, nil
		},
	})

	_, err := p.CallTool(context.Background(), "post_message", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrToolExecution)
	assert.Contains(t, err.Error(), "channel not found")
}

func TestMCPProviderReadResourceText(t *testing.T) {
	p := newTestProvider(&mockMCPClient{
		readFunc: func(req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return &mcp.ReadResourceResult{
				Contents: []mcp.ResourceContents{
					mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "text/markdown", Text: "# Channels"},
				},
			}, nil
		},
	})

	content, err := p.ReadResource(context.Background(), "slack://channels.md")
	require.NoError(t, err)
	assert.Equal(t, "# Channels", content.Content)
	assert.Equal(t, "text/markdown", content.MIMEType)
}

func TestMCPProviderReadResourceBlobPlaceholder(t *testing.T) {
	p := newTestProvider(&mockMCPClient{
		readFunc: func(req mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return &mcp.ReadResourceResult{
				Contents: []mcp.ResourceContents{
					mcp.BlobResourceContents{URI: req.Params.URI, MIMEType: "image/png", Blob: "aGk="},
				},
			}, nil
		},
	})

	content, err := p.ReadResource(context.Background(), "slack://logo.png")
	require.NoError(t, err)
	assert.Equal(t, "[binary content: image/png]", content.Content)
	assert.Equal(t, "image/png", content.MIMEType)
}

func TestMCPProviderReadResourceEmpty(t *testing.T) {
	p := newTestProvider(&mockMCPClient{})

	_, err := p.ReadResource(context.Background(), "slack://void")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrResourceUnavailable)
}

func TestMCPProviderGetPrompt(t *testing.T) {
	p := newTestProvider(&mockMCPClient{
		promptFunc: func(req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			return &mcp.GetPromptResult{
				Description: "Summarize " + req.Params.Name,
				Messages: []mcp.PromptMessage{
					{Role: mcp.RoleUser, Content: mcp.NewTextContent("summarize the week")},
				},
			}, nil
		},
	})

	result, err := p.GetPrompt(context.Background(), "digest", map[string]string{"period": "week"})
	require.NoError(t, err)
	assert.Equal(t, "Summarize digest", result.Description)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "user", result.Messages[0].Role)
	assert.Equal(t, "summarize the week", result.Messages[0].Content)
}

func TestMCPProviderClose(t *testing.T) {
	client := &mockMCPClient{}
	p := newTestProvider(client)

	require.NoError(t, p.Close())
	assert.True(t, client.closed)
}
