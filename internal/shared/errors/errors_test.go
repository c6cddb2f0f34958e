package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Behavior(t *testing.T) {
	err := NewValidationError("invalid input").WithDetail("field", "name").WithComponent("test-component")
	assert.Equal(t, ErrorTypeValidation, err.Type)
	assert.Equal(t, "invalid input", err.Message)
	assert.Equal(t, StatusInvalidArgument, err.Code)
	assert.Equal(t, "test-component", err.Component)
	assert.Equal(t, "name", err.Details["field"])
	assert.Equal(t, "invalid input", err.Error())
}

func TestAppError_WithCause_Unwrap(t *testing.T) {
	cause := ErrDocumentNotFound
	err := NewNotFoundError("document").WithCause(cause)
	assert.Equal(t, cause, err.Unwrap())
	assert.Equal(t, "document not found: document not found", err.Error())
}

func TestPermissionDenied(t *testing.T) {
	err := NewPermissionDeniedError("denied by rules")
	assert.True(t, IsPermissionDenied(err))
	assert.True(t, IsPermissionDenied(fmt.Errorf("wrapped: %w", err)))
	assert.True(t, IsPermissionDenied(ErrPermissionDenied))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, http.StatusForbidden, err.HTTPCode)
	assert.Equal(t, StatusPermissionDenied, err.Status())
}

func TestPredicates_DoNotConfuseClasses(t *testing.T) {
	nf := NewNotFoundError("doc")
	assert.True(t, IsNotFound(nf))
	assert.False(t, IsPermissionDenied(nf))
	assert.False(t, IsValidation(nf))

	val := NewValidationError("bad")
	assert.True(t, IsValidation(val))
	assert.False(t, IsPermissionDenied(val))

	infra := NewInfrastructureError("emulator unreachable")
	assert.True(t, IsInfrastructure(infra))
	assert.False(t, IsPermissionDenied(infra))

	assert.False(t, IsPermissionDenied(nil))
	assert.False(t, IsPermissionDenied(fmt.Errorf("connection refused")))
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		name     string
		httpCode int
		status   string
		check    func(error) bool
	}{
		{"permission status", http.StatusForbidden, StatusPermissionDenied, IsPermissionDenied},
		{"forbidden without status", http.StatusForbidden, "", IsPermissionDenied},
		{"not found", http.StatusNotFound, StatusNotFound, IsNotFound},
		{"invalid argument", http.StatusBadRequest, StatusInvalidArgument, IsValidation},
		{"unavailable", http.StatusServiceUnavailable, StatusUnavailable, IsInfrastructure},
		{"already exists", http.StatusConflict, StatusAlreadyExists, IsConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromStatus(tt.httpCode, tt.status, "message")
			assert.True(t, tt.check(err))
			assert.Equal(t, tt.httpCode, err.HTTPCode)
		})
	}

	internal := FromStatus(http.StatusInternalServerError, "", "boom")
	assert.Equal(t, ErrorTypeInternal, internal.Type)
	assert.False(t, IsPermissionDenied(internal))
}

func TestWrapError(t *testing.T) {
	original := NewNotFoundError("doc")
	assert.Same(t, original, WrapError(fmt.Errorf("ctx: %w", original), "ignored"))

	wrapped := WrapError(fmt.Errorf("boom"), "operation failed")
	assert.Equal(t, ErrorTypeInternal, wrapped.Type)
	assert.Equal(t, "operation failed: boom", wrapped.Error())
}
