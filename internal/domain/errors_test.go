package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Registry.CallTool", ErrToolExecution, "tool 'post_message'")
	want := "Registry.CallTool: tool 'post_message': tool execution failed"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("SubAgent.Run", ErrMaxSteps, "")
	want := "SubAgent.Run: agent reached step budget"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("DelegationRouter.Delegate", ErrUnknownAgent, "quantumComputing")
	if !errors.Is(err, ErrUnknownAgent) {
		t.Error("errors.Is should match ErrUnknownAgent")
	}
}

func TestDomainErrorAs(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewDomainError("Registry.Refresh", ErrProviderUnavailable, "slack"))
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatal("errors.As should match *DomainError")
	}
	if de.Op != "Registry.Refresh" {
		t.Errorf("Op = %q", de.Op)
	}
}

func TestWrapOp(t *testing.T) {
	if WrapOp("op", nil) != nil {
		t.Error("WrapOp(nil) should return nil")
	}
	err := WrapOp("initialize", ErrProviderUnavailable)
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Error("WrapOp should preserve the sentinel")
	}
}

func TestErrorCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{nil, CodeUnknown},
		{ErrUnknownAgent, CodeUnknownAgent},
		{NewDomainError("op", ErrSchemaValidation, "bad"), CodeSchemaValidation},
		{fmt.Errorf("wrapped: %w", ErrThreadNotFound), CodeThreadNotFound},
		{errors.New("mystery"), CodeUnknown},
	}
	for _, tt := range tests {
		if got := ErrorCodeOf(tt.err); got != tt.want {
			t.Errorf("ErrorCodeOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
