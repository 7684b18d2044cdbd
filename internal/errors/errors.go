package errors

import (
	"errors"
	"fmt"
)

// HubError is the structured error type for the knowledge hub.
// It carries the error code, the pipeline stage that failed, and the
// underlying cause for error-chain support.
type HubError struct {
	// Code is the unique error code (e.g., "ERR_301_EMBEDDING_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Stage names the pipeline stage that produced the error.
	Stage string

	// Category is the error category (Config, IO, Model, etc.).
	Category Category

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *HubError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Stage != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Stage, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause for error chain support.
func (e *HubError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with HubError.
func (e *HubError) Is(target error) bool {
	if t, ok := target.(*HubError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *HubError) WithDetail(key, value string) *HubError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new HubError with the given code, message, and stage.
// Category and retryable flag are derived from the code.
func New(code, message, stage string) *HubError {
	return &HubError{
		Code:      code,
		Message:   message,
		Stage:     stage,
		Category:  categoryFromCode(code),
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a HubError around an existing error, keeping it in the
// chain so errors.Is and errors.As still reach it.
func Wrap(err error, code, message, stage string) *HubError {
	if err == nil {
		return nil
	}
	he := New(code, message, stage)
	he.Cause = err
	return he
}

// EmbeddingError wraps a failed embedding-backend call. The stage is
// left empty because the same client serves indexing and retrieval;
// callers that know the stage wrap again with it.
func EmbeddingError(err error) *HubError {
	return Wrap(err, ErrCodeEmbeddingFailed, "embedding request failed", "")
}

// CompletionError wraps a failed completion-backend call.
func CompletionError(err error) *HubError {
	return Wrap(err, ErrCodeCompletionFailed, "completion request failed", "")
}

// CorruptIndexError reports an index directory that could not be loaded.
func CorruptIndexError(path string, cause error) *HubError {
	he := New(ErrCodeCorruptIndex, "index unreadable", StageCacheResolve)
	he.Cause = cause
	return he.WithDetail("path", path)
}

// ConfigError reports invalid configuration.
func ConfigError(message string) *HubError {
	return New(ErrCodeConfigInvalid, message, "")
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var he *HubError
	if errors.As(err, &he) {
		return he.Retryable
	}
	return false
}

// GetCode extracts the error code from a HubError anywhere in the chain.
// Returns empty string if none is found.
func GetCode(err error) string {
	var he *HubError
	if errors.As(err, &he) {
		return he.Code
	}
	return ""
}

// GetStage extracts the stage from a HubError anywhere in the chain.
// Returns empty string if none is found.
func GetStage(err error) string {
	var he *HubError
	if errors.As(err, &he) {
		return he.Stage
	}
	return ""
}
