package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
	"github.com/TSGCFO/OmniAgent-v2/internal/usecase"
)

// maxRankedEntries bounds how many scored entries a find tool returns to
// the model.
const maxRankedEntries = 10

// scoredView is the JSON shape returned to the model for a ranked entry.
type scoredView struct {
	Provider    string   `json:"provider"`
	Name        string   `json:"name"`
	URI         string   `json:"uri,omitempty"`
	Description string   `json:"description,omitempty"`
	Score       float64  `json:"score"`
	Reasons     []string `json:"reasons,omitempty"`
}

func toViews(scored []usecase.ScoredEntry) []scoredView {
	if len(scored) > maxRankedEntries {
		scored = scored[:maxRankedEntries]
	}
	views := make([]scoredView, len(scored))
	for i, s := range scored {
		views[i] = scoredView{
			Provider:    s.Entry.Provider,
			Name:        s.Entry.Name,
			URI:         s.Entry.URI,
			Description: s.Entry.Description,
			Score:       s.Score,
			Reasons:     s.Reasons,
		}
	}
	return views
}

// FindResourcesTool ranks registry resources against a free-text query.
type FindResourcesTool struct {
	registry *usecase.CapabilityRegistry
	scorer   usecase.Scorer
	logger   *slog.Logger
}

func NewFindResourcesTool(registry *usecase.CapabilityRegistry, scorer usecase.Scorer, logger *slog.Logger) *FindResourcesTool {
	return &FindResourcesTool{registry: registry, scorer: scorer, logger: logger}
}

func (t *FindResourcesTool) Name() string { return "find_resources" }
func (t *FindResourcesTool) Description() string {
	return "Find resources (documents, configs, data) relevant to a query"
}

func (t *FindResourcesTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name: t.Name(),
		Description: "Search all connected providers for resources relevant to a query. " +
			"Returns ranked matches with provider, name, uri and the reasons they matched.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"description": "What you are looking for, in natural language"
				},
				"provider": {
					"type": "string",
					"description": "Optional provider name to restrict the search to"
				}
			},
			"required": ["query"]
		}`),
	}
}

type findParams struct {
	Query    string `json:"query"`
	Provider string `json:"provider"`
}

func (t *FindResourcesTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.find_resources", t.logger, params,
		func(ctx context.Context, span trace.Span, p findParams) (any, error) {
			if err := RequireFields("query", p.Query); err != nil {
				return ErrResult("%s", err.Error())
			}
			entries := t.registry.ListResources(domain.CapabilityFilter{Provider: p.Provider})
			qt := usecase.DetectQueryType(p.Query)
			ranked := t.scorer.RankResources(p.Query, qt, entries)
			if len(ranked) == 0 {
				return TextResult("No relevant resources found."), nil
			}
			return toViews(ranked), nil
		},
	)
}

// ReadResourceTool fetches one resource's content through the registry.
type ReadResourceTool struct {
	registry *usecase.CapabilityRegistry
	logger   *slog.Logger
}

func NewReadResourceTool(registry *usecase.CapabilityRegistry, logger *slog.Logger) *ReadResourceTool {
	return &ReadResourceTool{registry: registry, logger: logger}
}

func (t *ReadResourceTool) Name() string        { return "read_resource" }
func (t *ReadResourceTool) Description() string { return "Read the content of a resource by URI" }

func (t *ReadResourceTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: "Read the content of a resource previously found with find_resources.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"provider": {
					"type": "string",
					"description": "The provider that owns the resource"
				},
				"uri": {
					"type": "string",
					"description": "The resource URI"
				}
			},
			"required": ["provider", "uri"]
		}`),
	}
}

type readResourceParams struct {
	Provider string `json:"provider"`
	URI      string `json:"uri"`
}

func (t *ReadResourceTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.read_resource", t.logger, params,
		func(ctx context.Context, span trace.Span, p readResourceParams) (any, error) {
			if err := RequireFields("provider", p.Provider, "uri", p.URI); err != nil {
				return ErrResult("%s", err.Error())
			}
			content, err := t.registry.ReadResource(ctx, p.Provider, p.URI)
			if err != nil {
				return nil, err
			}
			return TextResult(content.Content), nil
		},
	)
}

// FindPromptsTool ranks registry prompts against a free-text query.
type FindPromptsTool struct {
	registry *usecase.CapabilityRegistry
	scorer   usecase.Scorer
	logger   *slog.Logger
}

func NewFindPromptsTool(registry *usecase.CapabilityRegistry, scorer usecase.Scorer, logger *slog.Logger) *FindPromptsTool {
	return &FindPromptsTool{registry: registry, scorer: scorer, logger: logger}
}

func (t *FindPromptsTool) Name() string { return "find_prompts" }
func (t *FindPromptsTool) Description() string {
	return "Find prompt templates relevant to a query"
}

func (t *FindPromptsTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name: t.Name(),
		Description: "Search all connected providers for prompt templates relevant to a query. " +
			"Returns ranked matches; use get_prompt to expand one.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"description": "What the prompt should help with, in natural language"
				},
				"provider": {
					"type": "string",
					"description": "Optional provider name to restrict the search to"
				}
			},
			"required": ["query"]
		}`),
	}
}

func (t *FindPromptsTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.find_prompts", t.logger, params,
		func(ctx context.Context, span trace.Span, p findParams) (any, error) {
			if err := RequireFields("query", p.Query); err != nil {
				return ErrResult("%s", err.Error())
			}
			entries := t.registry.ListPrompts(domain.CapabilityFilter{Provider: p.Provider})
			qt := usecase.DetectQueryType(p.Query)
			ranked := t.scorer.RankPrompts(p.Query, qt, entries)
			if len(ranked) == 0 {
				return TextResult("No relevant prompts found."), nil
			}
			return toViews(ranked), nil
		},
	)
}

// GetPromptTool expands a provider prompt into its messages.
type GetPromptTool struct {
	registry *usecase.CapabilityRegistry
	logger   *slog.Logger
}

func NewGetPromptTool(registry *usecase.CapabilityRegistry, logger *slog.Logger) *GetPromptTool {
	return &GetPromptTool{registry: registry, logger: logger}
}

func (t *GetPromptTool) Name() string        { return "get_prompt" }
func (t *GetPromptTool) Description() string { return "Expand a prompt template with arguments" }

func (t *GetPromptTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: "Expand a prompt template previously found with find_prompts, filling in its arguments.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"provider": {
					"type": "string",
					"description": "The provider that owns the prompt"
				},
				"name": {
					"type": "string",
					"description": "The prompt name"
				},
				"version": {
					"type": "string",
					"description": "Optional prompt version; omit for the provider default"
				},
				"args": {
					"type": "object",
					"description": "Prompt arguments as string key/value pairs",
					"additionalProperties": {"type": "string"}
				}
			},
			"required": ["provider", "name"]
		}`),
	}
}

type getPromptParams struct {
	Provider string            `json:"provider"`
	Name     string            `json:"name"`
	Version  string            `json:"version"`
	Args     map[string]string `json:"args"`
}

func (t *GetPromptTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.get_prompt", t.logger, params,
		func(ctx context.Context, span trace.Span, p getPromptParams) (any, error) {
			if err := RequireFields("provider", p.Provider, "name", p.Name); err != nil {
				return ErrResult("%s", err.Error())
			}
			prompt, err := t.registry.GetPrompt(ctx, p.Provider, p.Name, p.Version, p.Args)
			if err != nil {
				return nil, err
			}
			var b strings.Builder
			if prompt.Description != "" {
				fmt.Fprintf(&b, "%s\n\n", prompt.Description)
			}
			for _, msg := range prompt.Messages {
				fmt.Fprintf(&b, "[%s] %s\n", msg.Role, msg.Content)
			}
			return TextResult(strings.TrimRight(b.String(), "\n")), nil
		},
	)
}

// ListCapabilitiesTool summarizes everything the registry currently knows.
type ListCapabilitiesTool struct {
	registry *usecase.CapabilityRegistry
	logger   *slog.Logger
}

func NewListCapabilitiesTool(registry *usecase.CapabilityRegistry, logger *slog.Logger) *ListCapabilitiesTool {
	return &ListCapabilitiesTool{registry: registry, logger: logger}
}

func (t *ListCapabilitiesTool) Name() string { return "list_capabilities" }
func (t *ListCapabilitiesTool) Description() string {
	return "List every tool, resource and prompt the connected providers expose"
}

func (t *ListCapabilitiesTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: "List every tool, resource and prompt the connected providers expose, grouped by kind.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"provider": {
					"type": "string",
					"description": "Optional provider name to restrict the listing to"
				}
			}
		}`),
	}
}

type listCapabilitiesParams struct {
	Provider string `json:"provider"`
}

func (t *ListCapabilitiesTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.list_capabilities", t.logger, params,
		func(ctx context.Context, span trace.Span, p listCapabilitiesParams) (any, error) {
			filter := domain.CapabilityFilter{Provider: p.Provider}
			summary := map[string][]string{
				"tools":     entryKeys(t.registry.ListTools(filter)),
				"resources": entryKeys(t.registry.ListResources(filter)),
				"prompts":   entryKeys(t.registry.ListPrompts(filter)),
			}
			return summary, nil
		},
	)
}

func entryKeys(entries []domain.CapabilityEntry) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key()
	}
	return keys
}
