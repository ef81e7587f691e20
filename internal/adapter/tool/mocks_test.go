package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
	"github.com/TSGCFO/OmniAgent-v2/internal/infra/logger"
	"github.com/TSGCFO/OmniAgent-v2/internal/usecase"
)

// stubTool is a named no-op tool.
type stubTool struct {
	name string
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return t.name }
func (t *stubTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{Name: t.name, Description: t.name}
}

func (t *stubTool) Execute(context.Context, json.RawMessage) (*domain.ToolResult, error) {
	return &domain.ToolResult{Content: "ok"}, nil
}

// stubProvider is a canned domain.CapabilityProvider.
type stubProvider struct {
	name      string
	tools     []domain.CapabilityEntry
	resources []domain.CapabilityEntry
	prompts   []domain.CapabilityEntry

	callResult   string
	callErr      error
	readErr      error
	promptErr    error
	lastToolArgs map[string]any
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) ListTools(context.Context) ([]domain.CapabilityEntry, error) {
	return p.tools, nil
}

func (p *stubProvider) CallTool(_ context.Context, name string, args map[string]any) (string, error) {
	p.lastToolArgs = args
	return p.callResult, p.callErr
}

func (p *stubProvider) ListResources(context.Context) ([]domain.CapabilityEntry, error) {
	return p.resources, nil
}

func (p *stubProvider) ReadResource(_ context.Context, uri string) (*domain.ResourceContent, error) {
	if p.readErr != nil {
		return nil, p.readErr
	}
	return &domain.ResourceContent{Content: "content of " + uri, MIMEType: "text/plain"}, nil
}

func (p *stubProvider) ListPrompts(context.Context) ([]domain.CapabilityEntry, error) {
	return p.prompts, nil
}

func (p *stubProvider) GetPrompt(_ context.Context, name string, _ map[string]string) (*domain.PromptResult, error) {
	if p.promptErr != nil {
		return nil, p.promptErr
	}
	return &domain.PromptResult{
		Description: "A " + name + " prompt",
		Messages: []domain.PromptMessage{
			{Role: "system", Content: "you are " + name},
			{Role: "user", Content: "run " + name},
		},
	}, nil
}

// newStubRegistry builds a refreshed registry over the given providers.
func newStubRegistry(t *testing.T, providers ...domain.CapabilityProvider) *usecase.CapabilityRegistry {
	t.Helper()
	reg := usecase.NewCapabilityRegistry(providers, usecase.RegistryOptions{
		CallsPerSecond: 1000,
		CallBurst:      1000,
	}, logger.Discard())
	reg.RefreshAll(context.Background())
	return reg
}
