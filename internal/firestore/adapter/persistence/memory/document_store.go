package memory

import (
	"context"
	"sync"

	"rockmap-rules/internal/firestore/domain/model"
	"rockmap-rules/internal/firestore/domain/repository"
)

// DocumentStore keeps documents in a process-local map.
// Stored and returned documents are copies.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[model.DocumentKey]*model.Document
}

// NewDocumentStore creates an empty store
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[model.DocumentKey]*model.Document)}
}

var _ repository.DocumentStore = (*DocumentStore)(nil)

func (s *DocumentStore) Get(ctx context.Context, key model.DocumentKey) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[key].Clone(), nil
}

func (s *DocumentStore) Put(ctx context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.Key] = doc.Clone()
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, key model.DocumentKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, key)
	return nil
}

func (s *DocumentStore) DeleteProject(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.docs {
		if key.ProjectID == projectID {
			delete(s.docs, key)
		}
	}
	return nil
}

// Len returns the number of stored documents across all projects
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *DocumentStore) Close(ctx context.Context) error {
	return nil
}
