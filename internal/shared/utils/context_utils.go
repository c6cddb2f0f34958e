package utils

import (
	"context"
	"errors"

	"rockmap-rules/internal/shared/contextkeys"
)

// Common context errors
var (
	ErrProjectIDNotFound  = errors.New("projectID not found in context")
	ErrDatabaseIDNotFound = errors.New("databaseID not found in context")
	ErrActorUIDNotFound   = errors.New("actorUID not found in context")
	ErrAppNameNotFound    = errors.New("appName not found in context")
	ErrRequestIDNotFound  = errors.New("requestID not found in context")
	ErrValueNotString     = errors.New("context value is not a string")
)

func stringValue(ctx context.Context, key interface{}, missing error) (string, error) {
	val := ctx.Value(key)
	if val == nil {
		return "", missing
	}
	s, ok := val.(string)
	if !ok {
		return "", ErrValueNotString
	}
	return s, nil
}

// GetProjectIDFromContext retrieves the emulated project ID from the context.
func GetProjectIDFromContext(ctx context.Context) (string, error) {
	return stringValue(ctx, contextkeys.ProjectIDKey, ErrProjectIDNotFound)
}

// GetDatabaseIDFromContext retrieves the database ID from the context.
func GetDatabaseIDFromContext(ctx context.Context) (string, error) {
	return stringValue(ctx, contextkeys.DatabaseIDKey, ErrDatabaseIDNotFound)
}

// GetActorUIDFromContext retrieves the uid of the acting user.
func GetActorUIDFromContext(ctx context.Context) (string, error) {
	return stringValue(ctx, contextkeys.ActorUIDKey, ErrActorUIDNotFound)
}

// GetAppNameFromContext retrieves the client handle name.
func GetAppNameFromContext(ctx context.Context) (string, error) {
	return stringValue(ctx, contextkeys.AppNameKey, ErrAppNameNotFound)
}

// GetRequestIDFromContext retrieves the request ID from the context.
func GetRequestIDFromContext(ctx context.Context) (string, error) {
	return stringValue(ctx, contextkeys.RequestIDKey, ErrRequestIDNotFound)
}

// Context builder functions

// WithProjectID adds project ID to context
func WithProjectID(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, contextkeys.ProjectIDKey, projectID)
}

// WithDatabaseID adds database ID to context
func WithDatabaseID(ctx context.Context, databaseID string) context.Context {
	return context.WithValue(ctx, contextkeys.DatabaseIDKey, databaseID)
}

// WithActorUID adds the acting uid to context
func WithActorUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, contextkeys.ActorUIDKey, uid)
}

// WithAppName adds the client handle name to context
func WithAppName(ctx context.Context, appName string) context.Context {
	return context.WithValue(ctx, contextkeys.AppNameKey, appName)
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextkeys.RequestIDKey, requestID)
}

// WithComponent adds component name to context
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, contextkeys.ComponentKey, component)
}

// WithOperation adds operation name to context
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, contextkeys.OperationKey, operation)
}

// GetProjectIDOrDefault retrieves the project ID from context or returns a default value
func GetProjectIDOrDefault(ctx context.Context, def string) string {
	if v, err := GetProjectIDFromContext(ctx); err == nil {
		return v
	}
	return def
}

// GetDatabaseIDOrDefault retrieves the database ID from context or returns a default value
func GetDatabaseIDOrDefault(ctx context.Context, def string) string {
	if v, err := GetDatabaseIDFromContext(ctx); err == nil {
		return v
	}
	return def
}

func HasActorUID(ctx context.Context) bool {
	_, err := GetActorUIDFromContext(ctx)
	return err == nil
}
