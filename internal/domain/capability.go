package domain

import (
	"encoding/json"
	"time"
)

// CapabilityKind distinguishes the three things a provider can expose.
type CapabilityKind string

const (
	CapabilityTool     CapabilityKind = "tool"
	CapabilityResource CapabilityKind = "resource"
	CapabilityPrompt   CapabilityKind = "prompt"
)

// CapabilityEntry is one discovered tool, resource, or prompt.
// (Provider, Name, Version) is unique within a registry snapshot.
type CapabilityEntry struct {
	Provider        string          `json:"provider"`
	Kind            CapabilityKind  `json:"kind"`
	Name            string          `json:"name"`
	URI             string          `json:"uri,omitempty"`
	MIMEType        string          `json:"mime_type,omitempty"`
	Description     string          `json:"description,omitempty"`
	Version         string          `json:"version,omitempty"`
	ArgumentsSchema json.RawMessage `json:"arguments_schema,omitempty"`
}

// Key returns the snapshot-unique identifier "provider/name[@version]".
func (e CapabilityEntry) Key() string {
	k := e.Provider + "/" + e.Name
	if e.Version != "" {
		k += "@" + e.Version
	}
	return k
}

// CapabilityFilter narrows a registry listing. Zero values match everything.
type CapabilityFilter struct {
	Provider string
	MIMEType string
}

// Matches reports whether the entry passes the filter.
func (f CapabilityFilter) Matches(e CapabilityEntry) bool {
	if f.Provider != "" && f.Provider != e.Provider {
		return false
	}
	if f.MIMEType != "" && f.MIMEType != e.MIMEType {
		return false
	}
	return true
}

// ResourceContent is the payload of a read resource. Binary payloads are
// represented by an opaque placeholder string, never decoded.
type ResourceContent struct {
	Content  string `json:"content"`
	MIMEType string `json:"mime_type,omitempty"`
}

// PromptMessage is one message of an expanded prompt template.
type PromptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PromptResult is an expanded prompt template.
type PromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// RelevanceScore is the ephemeral outcome of scoring one capability entry
// against a query. Reasons are human-readable and ordered by signal.
type RelevanceScore struct {
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// Snapshot carries listing metadata for observability.
type SnapshotInfo struct {
	Provider    string    `json:"provider"`
	Tools       int       `json:"tools"`
	Resources   int       `json:"resources"`
	Prompts     int       `json:"prompts"`
	RefreshedAt time.Time `json:"refreshed_at"`
}
