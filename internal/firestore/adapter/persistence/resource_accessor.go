package persistence

import (
	"context"
	"strings"

	"rockmap-rules/internal/firestore/domain/model"
	"rockmap-rules/internal/firestore/domain/repository"
	"rockmap-rules/internal/shared/errors"
	"rockmap-rules/internal/shared/logger"
)

// ResourceAccessor serves get() and exists() from a DocumentStore
type ResourceAccessor struct {
	store repository.DocumentStore
	log   logger.Logger
}

// NewResourceAccessor creates a new ResourceAccessor
func NewResourceAccessor(store repository.DocumentStore, log logger.Logger) *ResourceAccessor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ResourceAccessor{
		store: store,
		log:   log.WithComponent("resource_accessor"),
	}
}

var _ repository.ResourceAccessor = (*ResourceAccessor)(nil)

// GetDocument returns the fields of the document at a rules path, nil if absent
func (r *ResourceAccessor) GetDocument(ctx context.Context, projectID, path string) (map[string]interface{}, error) {
	key, err := ParseRulesPath(projectID, path)
	if err != nil {
		return nil, err
	}
	doc, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		r.log.WithFields(map[string]interface{}{"path": path}).Debug("document not found for get()")
		return nil, nil
	}
	return doc.Fields, nil
}

// ExistsDocument checks if a document exists at a rules path
func (r *ResourceAccessor) ExistsDocument(ctx context.Context, projectID, path string) (bool, error) {
	key, err := ParseRulesPath(projectID, path)
	if err != nil {
		return false, err
	}
	doc, err := r.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}

// ParseRulesPath converts /databases/{database}/documents/{path} into a document key
func ParseRulesPath(projectID, path string) (model.DocumentKey, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 5 || segments[0] != "databases" || segments[2] != "documents" {
		return model.DocumentKey{}, errors.NewValidationError("invalid rules document path").
			WithDetail("path", path).
			WithCause(errors.ErrInvalidPath)
	}
	documentPath := strings.Join(segments[3:], "/")
	if len(segments[3:])%2 != 0 {
		return model.DocumentKey{}, errors.NewValidationError("rules path does not address a document").
			WithDetail("path", path).
			WithCause(errors.ErrInvalidPath)
	}
	return model.DocumentKey{
		ProjectID:  projectID,
		DatabaseID: segments[1],
		Path:       documentPath,
	}, nil
}
