package tool

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel/trace"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
	"github.com/TSGCFO/OmniAgent-v2/internal/usecase"
)

// ProviderTool exposes one provider-hosted tool from the registry as a
// locally callable tool. Arguments pass through untouched; the registry
// validates them against the provider's schema before any network call.
type ProviderTool struct {
	registry *usecase.CapabilityRegistry
	entry    domain.CapabilityEntry
	logger   *slog.Logger
}

func NewProviderTool(registry *usecase.CapabilityRegistry, entry domain.CapabilityEntry, logger *slog.Logger) *ProviderTool {
	return &ProviderTool{registry: registry, entry: entry, logger: logger}
}

func (t *ProviderTool) Name() string        { return t.entry.Name }
func (t *ProviderTool) Description() string { return t.entry.Description }

func (t *ProviderTool) Schema() domain.ToolSchema {
	params := t.entry.ArgumentsSchema
	if len(params) == 0 {
		params = json.RawMessage(`{"type": "object"}`)
	}
	return domain.ToolSchema{
		Name:        t.entry.Name,
		Description: t.entry.Description,
		Parameters:  params,
	}
}

func (t *ProviderTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool."+t.entry.Name, t.logger, params,
		func(ctx context.Context, span trace.Span, args map[string]any) (any, error) {
			out, err := t.registry.CallTool(ctx, t.entry.Provider, t.entry.Name, args)
			if err != nil {
				return nil, err
			}
			return TextResult(out), nil
		},
	)
}

// ProviderTools wraps every tool a provider currently exposes. With an
// empty providerID it wraps the whole snapshot.
func ProviderTools(registry *usecase.CapabilityRegistry, providerID string, logger *slog.Logger) []domain.Tool {
	entries := registry.ListTools(domain.CapabilityFilter{Provider: providerID})
	tools := make([]domain.Tool, len(entries))
	for i, e := range entries {
		tools[i] = NewProviderTool(registry, e, logger)
	}
	return tools
}

// RegistryExecutor layers fixed local tools over the registry's live tool
// snapshot. Provider tools resolve per call, so tools discovered by a
// scheduled refresh become callable without rewiring. Local tools win on
// name collision.
type RegistryExecutor struct {
	registry *usecase.CapabilityRegistry
	local    *StaticExecutor
	logger   *slog.Logger
}

func NewRegistryExecutor(registry *usecase.CapabilityRegistry, logger *slog.Logger, local ...domain.Tool) *RegistryExecutor {
	return &RegistryExecutor{
		registry: registry,
		local:    NewStaticExecutor(local...),
		logger:   logger,
	}
}

// Get returns the named local tool, or wraps the matching provider tool
// from the current snapshot.
func (e *RegistryExecutor) Get(name string) (domain.Tool, error) {
	if t, err := e.local.Get(name); err == nil {
		return t, nil
	}
	for _, entry := range e.registry.ListTools(domain.CapabilityFilter{}) {
		if entry.Name == name {
			return NewProviderTool(e.registry, entry, e.logger), nil
		}
	}
	return nil, domain.NewDomainError("RegistryExecutor.Get", domain.ErrNotFound, "tool "+name)
}

// Schemas lists local and provider tool schemas, sorted by name.
func (e *RegistryExecutor) Schemas() []domain.ToolSchema {
	schemas := e.local.Schemas()
	seen := make(map[string]bool, len(schemas))
	for _, s := range schemas {
		seen[s.Name] = true
	}
	for _, pt := range ProviderTools(e.registry, "", e.logger) {
		if seen[pt.Name()] {
			continue
		}
		seen[pt.Name()] = true
		schemas = append(schemas, pt.Schema())
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

var _ domain.ToolExecutor = (*RegistryExecutor)(nil)
