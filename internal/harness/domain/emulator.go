package domain

import (
	"context"
	"time"
)

// AppOptions selects the project, database and identity of an app handle
type AppOptions struct {
	ProjectID    string
	DatabaseName string
	// Admin apps bypass security rules; Auth is ignored for them
	Admin bool
	// Auth is the actor identity; nil means unauthenticated
	Auth *AuthContext
}

// Snapshot is the result of a document read
type Snapshot struct {
	Path       string
	Exists     bool
	Data       map[string]interface{}
	CreateTime time.Time
	UpdateTime time.Time
}

// Emulator is the control surface of a Firestore emulator
type Emulator interface {
	// InitializeApp opens an app handle scoped to one project and database
	InitializeApp(ctx context.Context, opts AppOptions) (App, error)
	// LoadRules replaces the security rules of the project
	LoadRules(ctx context.Context, projectID, rules string) error
	// ClearData removes every document of the project
	ClearData(ctx context.Context, projectID string) error
	// Apps lists the handles that have not been deleted
	Apps() []App
}

// App is one client handle. Document paths are relative to the database root.
type App interface {
	Name() string
	Options() AppOptions

	// GetDocument reads a document; a permitted read of a missing document
	// returns a snapshot with Exists false
	GetDocument(ctx context.Context, path string) (*Snapshot, error)
	// SetDocument creates or overwrites a document
	SetDocument(ctx context.Context, path string, data map[string]interface{}) error
	// UpdateDocument merges top-level fields into an existing document
	UpdateDocument(ctx context.Context, path string, data map[string]interface{}) error
	DeleteDocument(ctx context.Context, path string) error

	// Delete releases the handle; later document calls fail
	Delete(ctx context.Context) error
}
