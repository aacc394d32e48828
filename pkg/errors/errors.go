// Package errors carries the app-level error taxonomy used outside the
// model client (config loading, session persistence): a code plus a
// wrapped cause, so callers can branch on Code without string matching.
// The six error Kind values spec §7 requires for model errors live on
// llmclient.Error instead — that taxonomy is transport-specific and
// pre-dates this package's adoption by the rest of the module. Pared
// down to the two codes this module's config and session collaborators
// actually raise.
package errors

import "fmt"

// ErrorCode classifies an AppError.
type ErrorCode string

const (
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeNotFound     ErrorCode = "NOT_FOUND"
)

// AppError is a coded application error with an optional wrapped cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewInvalidInputError reports a malformed or out-of-range configuration
// value (config.Load's TOML/env validation).
func NewInvalidInputError(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
	}
}

// NewNotFoundError reports a missing session file (session.Store.Load).
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
	}
}
