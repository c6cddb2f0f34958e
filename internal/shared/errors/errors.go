package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types for different domains
type ErrorType string

const (
	ErrorTypeValidation       ErrorType = "VALIDATION_ERROR"
	ErrorTypeInfrastructure   ErrorType = "INFRASTRUCTURE_ERROR"
	ErrorTypeAuthentication   ErrorType = "AUTHENTICATION_ERROR"
	ErrorTypePermissionDenied ErrorType = "PERMISSION_DENIED_ERROR"
	ErrorTypeNotFound         ErrorType = "NOT_FOUND_ERROR"
	ErrorTypeConflict         ErrorType = "CONFLICT_ERROR"
	ErrorTypeInternal         ErrorType = "INTERNAL_ERROR"
)

// Firestore status codes as reported by the emulator REST surface.
const (
	StatusPermissionDenied = "PERMISSION_DENIED"
	StatusNotFound         = "NOT_FOUND"
	StatusAlreadyExists    = "ALREADY_EXISTS"
	StatusInvalidArgument  = "INVALID_ARGUMENT"
	StatusUnauthenticated  = "UNAUTHENTICATED"
	StatusUnavailable      = "UNAVAILABLE"
	StatusInternal         = "INTERNAL"
)

// Common errors
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidPath      = errors.New("invalid firestore path")
	ErrInvalidProjectID = errors.New("invalid project ID")
	ErrInvalidDatabase  = errors.New("invalid database ID")
	ErrInvalidToken     = errors.New("invalid token")
	ErrRulesNotLoaded   = errors.New("security rules not loaded")
	ErrAppDeleted       = errors.New("app has been deleted")
)

// AppError represents a custom application error with context
type AppError struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	HTTPCode  int                    `json:"-"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Component string                 `json:"component,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, message string, httpCode int) *AppError {
	return &AppError{
		Type:     errorType,
		Message:  message,
		HTTPCode: httpCode,
		Details:  make(map[string]interface{}),
	}
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithCause adds the underlying cause
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithComponent adds the component name
func (e *AppError) WithComponent(component string) *AppError {
	e.Component = component
	return e
}

// WithDetail adds a detail field
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Status returns the Firestore status code for the error.
func (e *AppError) Status() string {
	if e.Code != "" {
		return e.Code
	}
	switch e.Type {
	case ErrorTypeValidation:
		return StatusInvalidArgument
	case ErrorTypePermissionDenied:
		return StatusPermissionDenied
	case ErrorTypeAuthentication:
		return StatusUnauthenticated
	case ErrorTypeNotFound:
		return StatusNotFound
	case ErrorTypeConflict:
		return StatusAlreadyExists
	case ErrorTypeInfrastructure:
		return StatusUnavailable
	default:
		return StatusInternal
	}
}

// Common error constructors

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return NewAppError(ErrorTypeValidation, message, http.StatusBadRequest).WithCode(StatusInvalidArgument)
}

// NewInfrastructureError creates an infrastructure error
func NewInfrastructureError(message string) *AppError {
	return NewAppError(ErrorTypeInfrastructure, message, http.StatusServiceUnavailable).WithCode(StatusUnavailable)
}

// NewAuthenticationError creates an authentication error
func NewAuthenticationError(message string) *AppError {
	return NewAppError(ErrorTypeAuthentication, message, http.StatusUnauthorized).WithCode(StatusUnauthenticated)
}

// NewPermissionDeniedError creates the error returned when security rules reject an operation
func NewPermissionDeniedError(message string) *AppError {
	return NewAppError(ErrorTypePermissionDenied, message, http.StatusForbidden).
		WithCode(StatusPermissionDenied).
		WithCause(ErrPermissionDenied)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound).
		WithCode(StatusNotFound)
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return NewAppError(ErrorTypeConflict, message, http.StatusConflict).WithCode(StatusAlreadyExists)
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, message, http.StatusInternalServerError).WithCode(StatusInternal)
}

// FromStatus rebuilds an AppError from an emulator error payload.
func FromStatus(httpCode int, status, message string) *AppError {
	var appErr *AppError
	switch status {
	case StatusPermissionDenied:
		appErr = NewPermissionDeniedError(message)
	case StatusNotFound:
		appErr = NewAppError(ErrorTypeNotFound, message, http.StatusNotFound).WithCode(StatusNotFound)
	case StatusAlreadyExists:
		appErr = NewConflictError(message)
	case StatusInvalidArgument:
		appErr = NewValidationError(message)
	case StatusUnauthenticated:
		appErr = NewAuthenticationError(message)
	case StatusUnavailable:
		appErr = NewInfrastructureError(message)
	default:
		switch httpCode {
		case http.StatusForbidden:
			appErr = NewPermissionDeniedError(message)
		case http.StatusNotFound:
			appErr = NewAppError(ErrorTypeNotFound, message, http.StatusNotFound).WithCode(StatusNotFound)
		case http.StatusBadRequest:
			appErr = NewValidationError(message)
		default:
			appErr = NewInternalError(message)
		}
	}
	appErr.HTTPCode = httpCode
	return appErr
}

// WrapError wraps an error with context
func WrapError(err error, message string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(message).WithCause(err)
}

// IsPermissionDenied reports whether err is a security rules rejection.
func IsPermissionDenied(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypePermissionDenied
	}
	return errors.Is(err, ErrPermissionDenied)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeNotFound
	}
	return errors.Is(err, ErrDocumentNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeValidation
	}
	return errors.Is(err, ErrInvalidPath)
}

// IsInfrastructure checks if an error comes from an unreachable or misconfigured dependency
func IsInfrastructure(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeInfrastructure
	}
	return false
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeConflict
	}
	return false
}
