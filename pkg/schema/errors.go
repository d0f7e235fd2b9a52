package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeResolution = "RESOLUTION_FAILED"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeStore      = "STORE_ERROR"
	ErrCodeExpression = "EXPRESSION_ERROR"

	// Linearization failures. Each code is one variant of the failed result.
	ErrCodeJoinMismatch        = "JOIN_MISMATCH"
	ErrCodeUnexpectedEnd       = "UNEXPECTED_END"
	ErrCodeUnexpectedGateway   = "UNEXPECTED_GATEWAY"
	ErrCodeUnclassifiedGateway = "UNCLASSIFIED_GATEWAY"
	ErrCodeMissingElement      = "MISSING_ELEMENT"
	ErrCodeDeadEnd             = "DEAD_END"
	ErrCodeDepthExceeded       = "DEPTH_EXCEEDED"
)

// Error is the structured error type for all procperf operations.
type Error struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	ElementID string         `json:"element_id,omitempty"`
	Cause     error          `json:"-"`
}

func (e *Error) Error() string {
	if e.ElementID != "" {
		return fmt.Sprintf("[%s] element %s: %s", e.Code, e.ElementID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithElement attaches a flow element ID to the error.
func (e *Error) WithElement(elementID string) *Error {
	e.ElementID = elementID
	return e
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// IsLinearizationFailure reports whether code is one of the structural
// contradictions the linearizer can return.
func IsLinearizationFailure(code string) bool {
	switch code {
	case ErrCodeJoinMismatch, ErrCodeUnexpectedEnd, ErrCodeUnexpectedGateway,
		ErrCodeUnclassifiedGateway, ErrCodeMissingElement, ErrCodeDeadEnd,
		ErrCodeDepthExceeded:
		return true
	}
	return false
}
