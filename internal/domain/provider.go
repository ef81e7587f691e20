package domain

import (
	"context"
	"encoding/json"
)

// Generator is the opaque generation capability. The multi-step
// tool-augmented loop lives above it; a Generator performs exactly one
// model invocation per call.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
	// Name returns the backend identifier (e.g. "openai", "ollama").
	Name() string
}

// CapabilityProvider is one external server exposing tools, resources,
// and prompts through a uniform discovery/invocation protocol.
type CapabilityProvider interface {
	Name() string

	ListTools(ctx context.Context) ([]CapabilityEntry, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)

	ListResources(ctx context.Context) ([]CapabilityEntry, error)
	ReadResource(ctx context.Context, uri string) (*ResourceContent, error)

	ListPrompts(ctx context.Context) ([]CapabilityEntry, error)
	GetPrompt(ctx context.Context, name string, args map[string]string) (*PromptResult, error)
}

// Tool is the interface every locally-exposed tool implements.
type Tool interface {
	Name() string
	Description() string
	Schema() ToolSchema
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolExecutor abstracts tool lookup and schema listing for the agent loop.
type ToolExecutor interface {
	Get(name string) (Tool, error)
	Schemas() []ToolSchema
}
