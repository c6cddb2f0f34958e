// Package local runs the harness against the in-process emulator.
package local

import (
	"context"
	"sort"
	"sync"

	fsrepo "rockmap-rules/internal/firestore/domain/repository"
	"rockmap-rules/internal/firestore/usecase"
	"rockmap-rules/internal/harness/domain"
	"rockmap-rules/internal/shared/errors"
	sharedfs "rockmap-rules/internal/shared/firestore"
	"rockmap-rules/internal/shared/logger"

	"github.com/google/uuid"
)

// Emulator implements domain.Emulator on an EmulatorUsecase
type Emulator struct {
	emulator usecase.EmulatorUsecase
	log      logger.Logger

	mu   sync.Mutex
	apps map[string]*app
}

var _ domain.Emulator = (*Emulator)(nil)

// NewEmulator wraps an in-process emulator
func NewEmulator(emulator usecase.EmulatorUsecase, log logger.Logger) *Emulator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Emulator{
		emulator: emulator,
		log:      log.WithComponent("local_emulator"),
		apps:     make(map[string]*app),
	}
}

func (e *Emulator) InitializeApp(ctx context.Context, opts domain.AppOptions) (domain.App, error) {
	if err := sharedfs.ValidateProjectID(opts.ProjectID); err != nil {
		return nil, err
	}
	if err := sharedfs.ValidateDatabaseID(opts.DatabaseName); err != nil {
		return nil, err
	}

	caller := usecase.AdminCaller()
	if !opts.Admin {
		caller = usecase.AuthCaller(nil)
		if opts.Auth != nil {
			if err := opts.Auth.Validate(); err != nil {
				return nil, err
			}
			caller = usecase.AuthCaller(&fsrepo.AuthInfo{
				UID:   opts.Auth.UID,
				Token: opts.Auth.TokenClaims(),
			})
		}
	}

	a := &app{
		name:     "app-" + uuid.NewString(),
		opts:     opts,
		caller:   caller,
		emulator: e,
	}

	e.mu.Lock()
	e.apps[a.name] = a
	e.mu.Unlock()

	e.log.WithFields(map[string]interface{}{
		"app":   a.name,
		"admin": opts.Admin,
	}).Debug("app initialized")
	return a, nil
}

func (e *Emulator) LoadRules(ctx context.Context, projectID, rules string) error {
	_, err := e.emulator.LoadRules(ctx, projectID, rules)
	return err
}

func (e *Emulator) ClearData(ctx context.Context, projectID string) error {
	return e.emulator.ClearData(ctx, projectID)
}

// Apps returns the live apps ordered by name
func (e *Emulator) Apps() []domain.App {
	e.mu.Lock()
	defer e.mu.Unlock()

	apps := make([]domain.App, 0, len(e.apps))
	for _, a := range e.apps {
		apps = append(apps, a)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Name() < apps[j].Name() })
	return apps
}

func (e *Emulator) release(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.apps[name]; !ok {
		return false
	}
	delete(e.apps, name)
	return true
}

type app struct {
	name     string
	opts     domain.AppOptions
	caller   usecase.Caller
	emulator *Emulator

	mu      sync.RWMutex
	deleted bool
}

func (a *app) Name() string               { return a.name }
func (a *app) Options() domain.AppOptions { return a.opts }

func (a *app) request(path string, data map[string]interface{}) (usecase.DocumentRequest, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.deleted {
		return usecase.DocumentRequest{}, errors.NewValidationError("app " + a.name + " has been deleted").
			WithCause(errors.ErrAppDeleted)
	}
	return usecase.DocumentRequest{
		ProjectID:  a.opts.ProjectID,
		DatabaseID: a.opts.DatabaseName,
		Path:       path,
		Data:       data,
	}, nil
}

func (a *app) GetDocument(ctx context.Context, path string) (*domain.Snapshot, error) {
	req, err := a.request(path, nil)
	if err != nil {
		return nil, err
	}
	doc, err := a.emulator.emulator.GetDocument(ctx, a.caller, req)
	if errors.IsNotFound(err) {
		return &domain.Snapshot{Path: path, Exists: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.Snapshot{
		Path:       doc.Key.Path,
		Exists:     true,
		Data:       doc.Fields,
		CreateTime: doc.CreateTime,
		UpdateTime: doc.UpdateTime,
	}, nil
}

func (a *app) SetDocument(ctx context.Context, path string, data map[string]interface{}) error {
	req, err := a.request(path, data)
	if err != nil {
		return err
	}
	_, err = a.emulator.emulator.SetDocument(ctx, a.caller, req)
	return err
}

func (a *app) UpdateDocument(ctx context.Context, path string, data map[string]interface{}) error {
	req, err := a.request(path, data)
	if err != nil {
		return err
	}
	_, err = a.emulator.emulator.UpdateDocument(ctx, a.caller, req)
	return err
}

func (a *app) DeleteDocument(ctx context.Context, path string) error {
	req, err := a.request(path, nil)
	if err != nil {
		return err
	}
	return a.emulator.emulator.DeleteDocument(ctx, a.caller, req)
}

// Delete releases the app; deleting twice is an error
func (a *app) Delete(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deleted || !a.emulator.release(a.name) {
		return errors.NewValidationError("app " + a.name + " has been deleted").WithCause(errors.ErrAppDeleted)
	}
	a.deleted = true
	return nil
}
