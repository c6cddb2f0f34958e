package repository

import (
	"context"

	"rockmap-rules/internal/firestore/domain/model"
)

// DocumentStore persists emulator documents. Implementations return
// (nil, nil) from Get when the document does not exist.
type DocumentStore interface {
	Get(ctx context.Context, key model.DocumentKey) (*model.Document, error)
	Put(ctx context.Context, doc *model.Document) error
	Delete(ctx context.Context, key model.DocumentKey) error
	// DeleteProject removes every document of every database of the project
	DeleteProject(ctx context.Context, projectID string) error
	Close(ctx context.Context) error
}
