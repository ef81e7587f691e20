package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
)

// scriptedGenerator replays a fixed sequence of generation results.
type scriptedGenerator struct {
	mu      sync.Mutex
	script  []scriptedTurn
	calls   int
	reqs    []domain.GenerateRequest
	onceErr error // returned on every call when set
}

type scriptedTurn struct {
	result *domain.GenerateResult
	err    error
}

func textTurn(content string) scriptedTurn {
	return scriptedTurn{result: &domain.GenerateResult{
		Message: domain.Message{Role: domain.RoleAssistant, Content: content, Timestamp: time.Now()},
		Usage:   domain.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
}

func toolTurn(calls ...domain.ToolCall) scriptedTurn {
	return scriptedTurn{result: &domain.GenerateResult{
		Message: domain.Message{Role: domain.RoleAssistant, ToolCalls: calls, Timestamp: time.Now()},
		Usage:   domain.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
}

func (g *scriptedGenerator) Generate(_ context.Context, req domain.GenerateRequest) (*domain.GenerateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reqs = append(g.reqs, req)
	if g.onceErr != nil {
		return nil, g.onceErr
	}
	if g.calls >= len(g.script) {
		return nil, fmt.Errorf("unexpected generation call %d", g.calls)
	}
	turn := g.script[g.calls]
	g.calls++
	return turn.result, turn.err
}

func (g *scriptedGenerator) Name() string { return "scripted" }

// memThreadStore is an in-memory domain.ThreadStore.
type memThreadStore struct {
	mu       sync.Mutex
	threads  map[string]*domain.Thread
	messages map[string][]domain.Message
	seq      int
}

func newMemThreadStore() *memThreadStore {
	return &memThreadStore{
		threads:  make(map[string]*domain.Thread),
		messages: make(map[string][]domain.Message),
	}
}

func (s *memThreadStore) CreateThread(_ context.Context, resourceID, threadID string, metadata map[string]string) (*domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if threadID != "" {
		if t, ok := s.threads[threadID]; ok {
			if t.ResourceID != resourceID {
				return nil, domain.NewDomainError("memThreadStore.CreateThread", domain.ErrThreadNotFound, threadID)
			}
			return t, nil
		}
	} else {
		s.seq++
		threadID = fmt.Sprintf("thread-%d", s.seq)
	}
	t := &domain.Thread{
		ID:         threadID,
		ResourceID: resourceID,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		Metadata:   metadata,
	}
	s.threads[threadID] = t
	return t, nil
}

func (s *memThreadStore) GetThread(_ context.Context, threadID string) (*domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return nil, domain.NewDomainError("memThreadStore.GetThread", domain.ErrThreadNotFound, threadID)
	}
	return t, nil
}

func (s *memThreadStore) ThreadsByResource(_ context.Context, resourceID string) ([]domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Thread
	for _, t := range s.threads {
		if t.ResourceID == resourceID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memThreadStore) Append(ctx context.Context, threadID string, msgs []domain.Message) error {
	// Mirrors the SQL-backed store, which fails on an expired context.
	if err := ctx.Err(); err != nil {
		return domain.WrapOp("memThreadStore.Append", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return domain.NewDomainError("memThreadStore.Append", domain.ErrThreadNotFound, threadID)
	}
	s.messages[threadID] = append(s.messages[threadID], msgs...)
	t.UpdatedAt = time.Now()
	return nil
}

func (s *memThreadStore) History(_ context.Context, threadID string, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[threadID]; !ok {
		return nil, domain.NewDomainError("memThreadStore.History", domain.ErrThreadNotFound, threadID)
	}
	msgs := s.messages[threadID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *memThreadStore) Clear(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[threadID]; !ok {
		return domain.NewDomainError("memThreadStore.Clear", domain.ErrThreadNotFound, threadID)
	}
	delete(s.messages, threadID)
	return nil
}

func (s *memThreadStore) DeleteThread(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[threadID]; !ok {
		return domain.NewDomainError("memThreadStore.DeleteThread", domain.ErrThreadNotFound, threadID)
	}
	delete(s.threads, threadID)
	delete(s.messages, threadID)
	return nil
}

// fakeProvider is a configurable domain.CapabilityProvider.
type fakeProvider struct {
	name      string
	tools     []domain.CapabilityEntry
	resources []domain.CapabilityEntry
	prompts   []domain.CapabilityEntry

	listErr error // returned by all listings when set

	callResult   string
	callErr      error
	readErr      error
	promptErr    error
	callCount    int
	lastToolName string
	lastToolArgs map[string]any
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) ListTools(context.Context) ([]domain.CapabilityEntry, error) {
	return p.tools, p.listErr
}

func (p *fakeProvider) CallTool(_ context.Context, name string, args map[string]any) (string, error) {
	p.callCount++
	p.lastToolName = name
	p.lastToolArgs = args
	return p.callResult, p.callErr
}

func (p *fakeProvider) ListResources(context.Context) ([]domain.CapabilityEntry, error) {
	return p.resources, p.listErr
}

func (p *fakeProvider) ReadResource(_ context.Context, uri string) (*domain.ResourceContent, error) {
	if p.readErr != nil {
		return nil, p.readErr
	}
	return &domain.ResourceContent{Content: "content of " + uri, MIMEType: "text/plain"}, nil
}

func (p *fakeProvider) ListPrompts(context.Context) ([]domain.CapabilityEntry, error) {
	return p.prompts, p.listErr
}

func (p *fakeProvider) GetPrompt(_ context.Context, name string, _ map[string]string) (*domain.PromptResult, error) {
	if p.promptErr != nil {
		return nil, p.promptErr
	}
	return &domain.PromptResult{
		Description: "prompt " + name,
		Messages:    []domain.PromptMessage{{Role: "user", Content: "expanded " + name}},
	}, nil
}

// echoTool records executions and returns a fixed reply.
type echoTool struct {
	name  string
	reply string
	mu    sync.Mutex
	calls []string
}

func (t *echoTool) Name() string        { return t.name }
func (t *echoTool) Description() string { return "test tool" }
func (t *echoTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{Name: t.name, Description: "test tool"}
}

func (t *echoTool) Execute(_ context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	t.mu.Lock()
	t.calls = append(t.calls, string(params))
	t.mu.Unlock()
	return &domain.ToolResult{Content: t.reply}, nil
}

// staticTools is a minimal ToolExecutor over a fixed list.
type staticTools struct {
	tools map[string]domain.Tool
}

func newStaticTools(tools ...domain.Tool) *staticTools {
	m := make(map[string]domain.Tool, len(tools))
	for _, t := range tools {
		m[t.Name()] = t
	}
	return &staticTools{tools: m}
}

func (e *staticTools) Get(name string) (domain.Tool, error) {
	t, ok := e.tools[name]
	if !ok {
		return nil, domain.NewDomainError("staticTools.Get", domain.ErrNotFound, name)
	}
	return t, nil
}

func (e *staticTools) Schemas() []domain.ToolSchema {
	var out []domain.ToolSchema
	for _, t := range e.tools {
		out = append(out, t.Schema())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
