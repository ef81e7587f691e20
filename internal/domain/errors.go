package domain

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrDuplicate    = fmt.Errorf("duplicate")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrInvalidInput = fmt.Errorf("invalid input")
)

// Sentinel errors for the orchestration core.
var (
	ErrUnknownAgent        = fmt.Errorf("unknown agent type")
	ErrProviderUnavailable = fmt.Errorf("capability provider unavailable")
	ErrResourceUnavailable = fmt.Errorf("resource unavailable")
	ErrPromptUnavailable   = fmt.Errorf("prompt unavailable")
	ErrToolExecution       = fmt.Errorf("tool execution failed")
	ErrSchemaValidation    = fmt.Errorf("arguments failed schema validation")
	ErrGenerationFailure   = fmt.Errorf("generation failed")
	ErrMaxSteps            = fmt.Errorf("agent reached step budget")
	ErrThreadNotFound      = fmt.Errorf("thread not found")
	ErrMemoryStore         = fmt.Errorf("memory store failed")
)

// DomainError wraps a sentinel error with operation context.
type DomainError struct {
	Op     string // operation name (e.g. "Registry.CallTool")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for monitoring.
type ErrorCode string

const (
	CodeUnknown             ErrorCode = "UNKNOWN"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeDuplicate           ErrorCode = "DUPLICATE"
	CodeTimeout             ErrorCode = "TIMEOUT"
	CodeInvalidInput        ErrorCode = "INVALID_INPUT"
	CodeUnknownAgent        ErrorCode = "UNKNOWN_AGENT"
	CodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	CodeResourceUnavailable ErrorCode = "RESOURCE_UNAVAILABLE"
	CodePromptUnavailable   ErrorCode = "PROMPT_UNAVAILABLE"
	CodeToolExecution       ErrorCode = "TOOL_EXECUTION"
	CodeSchemaValidation    ErrorCode = "SCHEMA_VALIDATION"
	CodeGenerationFailure   ErrorCode = "GENERATION_FAILURE"
	CodeMaxSteps            ErrorCode = "MAX_STEPS"
	CodeThreadNotFound      ErrorCode = "THREAD_NOT_FOUND"
	CodeMemoryStore         ErrorCode = "MEMORY_STORE"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:            CodeNotFound,
	ErrDuplicate:           CodeDuplicate,
	ErrTimeout:             CodeTimeout,
	ErrInvalidInput:        CodeInvalidInput,
	ErrUnknownAgent:        CodeUnknownAgent,
	ErrProviderUnavailable: CodeProviderUnavailable,
	ErrResourceUnavailable: CodeResourceUnavailable,
	ErrPromptUnavailable:   CodePromptUnavailable,
	ErrToolExecution:       CodeToolExecution,
	ErrSchemaValidation:    CodeSchemaValidation,
	ErrGenerationFailure:   CodeGenerationFailure,
	ErrMaxSteps:            CodeMaxSteps,
	ErrThreadNotFound:      CodeThreadNotFound,
	ErrMemoryStore:         CodeMemoryStore,
}

// ErrorCodeOf returns the machine-parseable code for err, unwrapping
// DomainError and walking the chain with errors.Is.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	if code, ok := errorCodeMap[err]; ok {
		return code
	}
	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}
