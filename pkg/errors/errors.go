package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"-"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches AppErrors by code so copies produced by WithInternal still compare equal.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code && e.StatusCode == other.StatusCode
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithDetail returns a copy of the AppError carrying a client-facing detail message.
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Detail = detail
	return &cpy
}

// Sentinels rendered by the HTTP layer. Compare with errors.Is; copies made by
// WithInternal and WithDetail still match.
var (
	ErrNotFound        = New("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrFileNotFound    = New("FILE_NOT_FOUND", "File not found", http.StatusNotFound)
	ErrProjectNotFound = New("PROJECT_NOT_FOUND", "Project not found", http.StatusNotFound)
	ErrBadRequest      = New("VALIDATION_ERROR", "Invalid request", http.StatusBadRequest)
	ErrInternalServer  = New("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrUploadFailed    = New("UPLOAD_FAILED", "File upload failed", http.StatusInternalServerError)
	ErrRateLimit       = New("RATE_LIMIT_EXCEEDED", "Rate limit exceeded", http.StatusTooManyRequests)

	ErrDependencyUnavailable = New("DEPENDENCY_UNAVAILABLE", "Service not ready", http.StatusServiceUnavailable)
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return New(ErrBadRequest.Code, message, ErrBadRequest.StatusCode)
}
