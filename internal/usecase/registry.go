package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kaptinlin/jsonschema"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
	"github.com/TSGCFO/OmniAgent-v2/internal/infra/tracer"
)

// Default per-provider rate limiting of network calls.
const (
	defaultProviderRate  = 5.0
	defaultProviderBurst = 10
)

// providerSnapshot is the immutable listing state for one provider.
// Refresh publishes a new snapshot instead of mutating entries in place,
// so concurrent readers never observe a half-updated provider.
type providerSnapshot struct {
	tools       []domain.CapabilityEntry
	resources   []domain.CapabilityEntry
	prompts     []domain.CapabilityEntry
	refreshedAt time.Time
}

// RegistryOptions tunes the CapabilityRegistry.
type RegistryOptions struct {
	CallsPerSecond float64
	CallBurst      int
}

// CapabilityRegistry presents a uniform, queryable snapshot of everything a
// set of capability providers currently expose. Listings are pure in-memory
// reads; network I/O happens only in Refresh, ReadResource, GetPrompt, and
// CallTool.
type CapabilityRegistry struct {
	mu        sync.RWMutex
	providers map[string]domain.CapabilityProvider
	snapshots map[string]*providerSnapshot
	limiters  map[string]*rate.Limiter
	logger    *slog.Logger
}

// NewCapabilityRegistry creates a registry over the given providers.
// Snapshots start empty until the first Refresh.
func NewCapabilityRegistry(providers []domain.CapabilityProvider, opts RegistryOptions, logger *slog.Logger) *CapabilityRegistry {
	perSec := opts.CallsPerSecond
	if perSec <= 0 {
		perSec = defaultProviderRate
	}
	burst := opts.CallBurst
	if burst <= 0 {
		burst = defaultProviderBurst
	}

	r := &CapabilityRegistry{
		providers: make(map[string]domain.CapabilityProvider, len(providers)),
		snapshots: make(map[string]*providerSnapshot, len(providers)),
		limiters:  make(map[string]*rate.Limiter, len(providers)),
		logger:    logger,
	}
	for _, p := range providers {
		r.providers[p.Name()] = p
		r.limiters[p.Name()] = rate.NewLimiter(rate.Limit(perSec), burst)
	}
	return r
}

// Providers returns the registered provider names, sorted.
func (r *CapabilityRegistry) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RefreshAll pulls listings from every provider. A provider that fails is
// logged and skipped, keeping its previous snapshot; RefreshAll itself
// never fails.
func (r *CapabilityRegistry) RefreshAll(ctx context.Context) {
	for _, name := range r.Providers() {
		if err := r.Refresh(ctx, name); err != nil {
			r.logger.Warn("provider refresh failed, keeping previous snapshot",
				"provider", name, "error", err)
		}
	}
}

// Refresh pulls tools, resources, and prompts from one provider and
// atomically replaces its snapshot. On error the previous snapshot stays
// visible.
func (r *CapabilityRegistry) Refresh(ctx context.Context, providerID string) error {
	ctx, span := tracer.StartSpan(ctx, "registry.refresh",
		trace.WithAttributes(tracer.StringAttr("provider", providerID)))
	defer span.End()

	p, ok := r.providers[providerID]
	if !ok {
		err := domain.NewDomainError("Registry.Refresh", domain.ErrProviderUnavailable, providerID)
		tracer.RecordError(span, err)
		return err
	}

	if err := r.wait(ctx, providerID); err != nil {
		return err
	}

	tools, err := p.ListTools(ctx)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp("list tools", err)
	}
	resources, err := p.ListResources(ctx)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp("list resources", err)
	}
	prompts, err := p.ListPrompts(ctx)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp("list prompts", err)
	}

	snap := &providerSnapshot{
		tools:       sortEntries(tools),
		resources:   sortEntries(resources),
		prompts:     sortEntries(prompts),
		refreshedAt: time.Now(),
	}

	r.mu.Lock()
	r.snapshots[providerID] = snap
	r.mu.Unlock()

	r.logger.Info("provider snapshot refreshed",
		"provider", providerID,
		"tools", len(snap.tools),
		"resources", len(snap.resources),
		"prompts", len(snap.prompts),
	)
	tracer.SetOK(span)
	return nil
}

// ListTools returns tool entries from the current snapshots. Providers never
// refreshed contribute nothing; that is not an error.
func (r *CapabilityRegistry) ListTools(filter domain.CapabilityFilter) []domain.CapabilityEntry {
	return r.list(filter, func(s *providerSnapshot) []domain.CapabilityEntry { return s.tools })
}

// ListResources returns resource entries from the current snapshots.
func (r *CapabilityRegistry) ListResources(filter domain.CapabilityFilter) []domain.CapabilityEntry {
	return r.list(filter, func(s *providerSnapshot) []domain.CapabilityEntry { return s.resources })
}

// ListPrompts returns prompt entries from the current snapshots.
func (r *CapabilityRegistry) ListPrompts(filter domain.CapabilityFilter) []domain.CapabilityEntry {
	return r.list(filter, func(s *providerSnapshot) []domain.CapabilityEntry { return s.prompts })
}

// Snapshots returns per-provider listing counts for observability.
func (r *CapabilityRegistry) Snapshots() []domain.SnapshotInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]domain.SnapshotInfo, 0, len(r.snapshots))
	for name, s := range r.snapshots {
		infos = append(infos, domain.SnapshotInfo{
			Provider:    name,
			Tools:       len(s.tools),
			Resources:   len(s.resources),
			Prompts:     len(s.prompts),
			RefreshedAt: s.refreshedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Provider < infos[j].Provider })
	return infos
}

// ReadResource proxies a read to the owning provider.
func (r *CapabilityRegistry) ReadResource(ctx context.Context, providerID, uri string) (*domain.ResourceContent, error) {
	const op = "Registry.ReadResource"
	if providerID == "" || uri == "" {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "provider and uri are required")
	}

	p, ok := r.providers[providerID]
	if !ok {
		return nil, domain.NewDomainError(op, domain.ErrResourceUnavailable, "unknown provider "+providerID)
	}
	if err := r.wait(ctx, providerID); err != nil {
		return nil, err
	}

	content, err := p.ReadResource(ctx, uri)
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrResourceUnavailable, err.Error())
	}
	return content, nil
}

// GetPrompt expands a named prompt template through the owning provider.
// A non-empty version must match a versioned snapshot entry; providers
// that do not report prompt versions accept any requested version.
func (r *CapabilityRegistry) GetPrompt(ctx context.Context, providerID, name, version string, args map[string]string) (*domain.PromptResult, error) {
	const op = "Registry.GetPrompt"
	if providerID == "" || name == "" {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "provider and name are required")
	}

	p, ok := r.providers[providerID]
	if !ok {
		return nil, domain.NewDomainError(op, domain.ErrPromptUnavailable, "unknown provider "+providerID)
	}
	if version != "" && !r.promptVersionAvailable(providerID, name, version) {
		return nil, domain.NewDomainError(op, domain.ErrPromptUnavailable,
			fmt.Sprintf("prompt %s has no version %s", name, version))
	}
	if err := r.wait(ctx, providerID); err != nil {
		return nil, err
	}

	result, err := p.GetPrompt(ctx, name, args)
	if err != nil {
		return nil, domain.NewDomainError(op, domain.ErrPromptUnavailable, err.Error())
	}
	return result, nil
}

// CallTool validates args against the tool's declared schema (when one is
// present in the snapshot) and invokes it through the owning provider.
// Validation failures are synchronous and happen before any network call.
func (r *CapabilityRegistry) CallTool(ctx context.Context, providerID, name string, args map[string]any) (string, error) {
	const op = "Registry.CallTool"
	if providerID == "" || name == "" {
		return "", domain.NewDomainError(op, domain.ErrInvalidInput, "provider and name are required")
	}

	p, ok := r.providers[providerID]
	if !ok {
		return "", domain.NewDomainError(op, domain.ErrToolExecution, "unknown provider "+providerID)
	}

	if entry, found := r.findTool(providerID, name); found && len(entry.ArgumentsSchema) > 0 {
		if err := validateArgs(entry.ArgumentsSchema, args); err != nil {
			return "", domain.NewDomainError(op, domain.ErrSchemaValidation, err.Error())
		}
	}

	if err := r.wait(ctx, providerID); err != nil {
		return "", err
	}

	result, err := p.CallTool(ctx, name, args)
	if err != nil {
		return "", domain.NewDomainError(op, domain.ErrToolExecution, err.Error())
	}
	return result, nil
}

// promptVersionAvailable reports whether the requested prompt version can
// be served. An unrefreshed provider, an unknown prompt name, and a prompt
// listed without versions all pass; the provider is the authority there.
func (r *CapabilityRegistry) promptVersionAvailable(providerID, name, version string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.snapshots[providerID]
	if !ok {
		return true
	}
	versioned := false
	for _, e := range snap.prompts {
		if e.Name != name {
			continue
		}
		if e.Version == "" || e.Version == version {
			return true
		}
		versioned = true
	}
	return !versioned
}

func (r *CapabilityRegistry) findTool(providerID, name string) (domain.CapabilityEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.snapshots[providerID]
	if !ok {
		return domain.CapabilityEntry{}, false
	}
	for _, e := range snap.tools {
		if e.Name == name {
			return e, true
		}
	}
	return domain.CapabilityEntry{}, false
}

func (r *CapabilityRegistry) list(filter domain.CapabilityFilter, pick func(*providerSnapshot) []domain.CapabilityEntry) []domain.CapabilityEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.CapabilityEntry
	for name, snap := range r.snapshots {
		if filter.Provider != "" && filter.Provider != name {
			continue
		}
		for _, e := range pick(snap) {
			if filter.Matches(e) {
				out = append(out, e)
			}
		}
	}
	return sortEntries(out)
}

// wait applies the per-provider rate limiter before a network call.
func (r *CapabilityRegistry) wait(ctx context.Context, providerID string) error {
	lim, ok := r.limiters[providerID]
	if !ok {
		return nil
	}
	if err := lim.Wait(ctx); err != nil {
		return domain.WrapOp("rate limit", err)
	}
	return nil
}

// validateArgs checks args against a JSON Schema document.
func validateArgs(schemaBytes []byte, args map[string]any) error {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(schemaBytes)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	result := schema.Validate(args)
	if !result.IsValid() {
		return fmt.Errorf("%s", result.Error())
	}
	return nil
}

// sortEntries orders entries by Key for stable, byte-identical listings
// across refreshes with unchanged provider state.
func sortEntries(entries []domain.CapabilityEntry) []domain.CapabilityEntry {
	sorted := make([]domain.CapabilityEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })
	return sorted
}
