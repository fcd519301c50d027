package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ExtractionError means no usable text could be obtained from a document.
type ExtractionError struct {
	FileName string
	Reason   string
	Cause    error
}

func (e *ExtractionError) Error() string {
	msg := "extraction failed"
	if e.FileName != "" {
		msg += " for " + e.FileName
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// CompletionError means the external model call failed or returned an unusable envelope.
// StatusCode is zero when no HTTP response was received.
type CompletionError struct {
	StatusCode int
	Reason     string
	Cause      error
}

func (e *CompletionError) Error() string {
	msg := "completion failed"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CompletionError) Unwrap() error { return e.Cause }

// ParseError means a model reply held no decodable JSON object.
type ParseError struct {
	Excerpt string
	Cause   error
}

func (e *ParseError) Error() string {
	msg := "could not parse model response"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Excerpt != "" {
		msg += fmt.Sprintf(" (reply: %q)", e.Excerpt)
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Cause }

// HTTPStatus maps an error onto the status code returned at the HTTP edge.
func HTTPStatus(err error) int {
	var (
		extractErr    *ExtractionError
		completionErr *CompletionError
		parseErr      *ParseError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.As(err, &extractErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &completionErr), errors.As(err, &parseErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
