package domain

import (
	"context"
	"time"
)

// Thread is an opaque conversation context handle owned by the memory
// collaborator. It is created once per logical conversation and reused
// across delegations so every sub-agent sees the same history.
type Thread struct {
	ID         string            `json:"id"`
	ResourceID string            `json:"resource_id"` // owning user
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ThreadStore is the narrow interface onto the external memory service.
// Message history is append-only; threads are destroyed only by explicit
// user-initiated clearing.
type ThreadStore interface {
	// CreateThread creates a thread. An empty threadID asks the store to
	// generate one. Creating an existing ID returns the existing thread.
	CreateThread(ctx context.Context, resourceID, threadID string, metadata map[string]string) (*Thread, error)
	GetThread(ctx context.Context, threadID string) (*Thread, error)
	ThreadsByResource(ctx context.Context, resourceID string) ([]Thread, error)

	// Append adds messages to a thread's history in order.
	Append(ctx context.Context, threadID string, msgs []Message) error
	// History returns the most recent messages in chronological order.
	// limit <= 0 means no limit.
	History(ctx context.Context, threadID string, limit int) ([]Message, error)

	// Clear deletes a thread's messages, keeping the thread handle.
	Clear(ctx context.Context, threadID string) error
	// DeleteThread removes the thread and its messages.
	DeleteThread(ctx context.Context, threadID string) error
}
