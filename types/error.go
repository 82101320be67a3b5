package types

import "fmt"

// ErrorCode represents a unified error code across the pipeline core.
type ErrorCode string

// Failure taxonomy. Every failure below the engine boundary is converted
// into one of these kinds and folded into PipelineState; nothing raises
// out to the caller.
const (
	// ErrStageTransient is a retryable stage failure, resolved by a later
	// attempt or by fallback substitution.
	ErrStageTransient ErrorCode = "STAGE_TRANSIENT"
	// ErrDataInsufficient is a routing condition, not an exception: the
	// gathered material cannot support downstream stages.
	ErrDataInsufficient ErrorCode = "DATA_INSUFFICIENT"
	// ErrCacheIO is a cache storage failure; degrades to miss / no-op.
	ErrCacheIO ErrorCode = "CACHE_IO"
	// ErrEscalated is a stage-reported condition that changes routing.
	ErrEscalated ErrorCode = "ESCALATED"
	// ErrExhausted is global exhaustion: the error ceiling or the
	// wall-clock limit was hit and the run was cut short.
	ErrExhausted ErrorCode = "GLOBAL_EXHAUSTED"
	// ErrRouteLoop is returned when a stage would be re-entered a second
	// time for the same reason.
	ErrRouteLoop ErrorCode = "ROUTE_LOOP"
	// ErrInvalidQuery rejects input that cannot seed an initial state.
	ErrInvalidQuery ErrorCode = "INVALID_QUERY"
	// ErrUnknownStage is a graph-validation failure.
	ErrUnknownStage ErrorCode = "UNKNOWN_STAGE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Stage     StageID   `json:"stage,omitempty"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithStage attributes the error to a stage.
func (e *Error) WithStage(stage StageID) *Error {
	e.Stage = stage
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
