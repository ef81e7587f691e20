package tool

import (
	"sort"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
)

// StaticExecutor is a fixed set of tools built once at wiring time.
type StaticExecutor struct {
	tools map[string]domain.Tool
}

// NewStaticExecutor registers the given tools. Later tools win on name
// collision.
func NewStaticExecutor(tools ...domain.Tool) *StaticExecutor {
	m := make(map[string]domain.Tool, len(tools))
	for _, t := range tools {
		m[t.Name()] = t
	}
	return &StaticExecutor{tools: m}
}

// Get returns the named tool.
func (e *StaticExecutor) Get(name string) (domain.Tool, error) {
	t, ok := e.tools[name]
	if !ok {
		return nil, domain.NewDomainError("StaticExecutor.Get", domain.ErrNotFound, "tool "+name)
	}
	return t, nil
}

// Schemas lists all tool schemas, sorted by name for stable prompts.
func (e *StaticExecutor) Schemas() []domain.ToolSchema {
	schemas := make([]domain.ToolSchema, 0, len(e.tools))
	for _, t := range e.tools {
		schemas = append(schemas, t.Schema())
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

var _ domain.ToolExecutor = (*StaticExecutor)(nil)
