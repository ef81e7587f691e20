package domain

import (
	"context"
	"testing"
)

func TestThreadIDContextRoundTrip(t *testing.T) {
	ctx := ContextWithThreadID(context.Background(), "thread-42")
	if got := ThreadIDFromContext(ctx); got != "thread-42" {
		t.Errorf("ThreadIDFromContext = %q", got)
	}
	if got := ThreadIDFromContext(context.Background()); got != "" {
		t.Errorf("empty context should yield %q, got %q", "", got)
	}
}

func TestUserIDContextRoundTrip(t *testing.T) {
	ctx := ContextWithUserID(context.Background(), "user-1")
	if got := UserIDFromContext(ctx); got != "user-1" {
		t.Errorf("UserIDFromContext = %q", got)
	}
	if got := UserIDFromContext(context.Background()); got != "" {
		t.Errorf("empty context should yield %q, got %q", "", got)
	}
}
