package domain

import "context"

type contextKey string

const (
	threadIDKey contextKey = "thread_id"
	userIDKey   contextKey = "user_id"
)

// ContextWithThreadID returns a context carrying the conversation thread ID.
// Tools invoked during a generation read it to stay on the caller's thread.
func ContextWithThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, threadIDKey, threadID)
}

// ThreadIDFromContext returns the thread ID, or "" when absent.
func ThreadIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(threadIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithUserID returns a context carrying the requesting user's ID.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the user ID, or "" when absent.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}
