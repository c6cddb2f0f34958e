package usecase

import (
	"context"
	"fmt"
	"time"

	"rockmap-rules/internal/firestore/domain/model"
	"rockmap-rules/internal/firestore/domain/repository"
	rtdomain "rockmap-rules/internal/rules_translator/domain"
	"rockmap-rules/internal/shared/errors"
	sharedfs "rockmap-rules/internal/shared/firestore"
	"rockmap-rules/internal/shared/logger"
	"rockmap-rules/internal/shared/utils"
)

// Caller is the identity a document operation runs under.
// Admin callers bypass security rules; otherwise Auth is evaluated, nil meaning unauthenticated.
type Caller struct {
	Admin bool
	Auth  *repository.AuthInfo
}

// AdminCaller returns the caller used by admin handles
func AdminCaller() Caller {
	return Caller{Admin: true}
}

// AuthCaller returns a rules-enforced caller; auth may be nil
func AuthCaller(auth *repository.AuthInfo) Caller {
	return Caller{Auth: auth}
}

// DocumentRequest addresses one document of an emulated project
type DocumentRequest struct {
	ProjectID  string
	DatabaseID string
	// Path relative to the database root, e.g. "users/U1"
	Path string
	// Data is the full document for Set and the changed top-level fields for Update
	Data map[string]interface{}
}

// VerdictRecorder observes every rules decision
type VerdictRecorder interface {
	RecordVerdict(operation repository.OperationType, allowed bool)
}

// EmulatorUsecase is the in-process emulator control surface and document API
type EmulatorUsecase interface {
	LoadRules(ctx context.Context, projectID, source string) (*rtdomain.DeployResult, error)
	RulesVersion(ctx context.Context, projectID string) (string, error)
	ClearData(ctx context.Context, projectID string) error

	GetDocument(ctx context.Context, caller Caller, req DocumentRequest) (*model.Document, error)
	SetDocument(ctx context.Context, caller Caller, req DocumentRequest) (*model.Document, error)
	UpdateDocument(ctx context.Context, caller Caller, req DocumentRequest) (*model.Document, error)
	DeleteDocument(ctx context.Context, caller Caller, req DocumentRequest) error
}

type emulatorUsecaseImpl struct {
	store    repository.DocumentStore
	engine   repository.SecurityRulesEngine
	deployer rtdomain.RulesDeployer
	recorder VerdictRecorder
	log      logger.Logger
	now      func() time.Time
}

// NewEmulatorUsecase creates the emulator over a store, a rules engine and a deployer
// that installs into the same engine. recorder may be nil.
func NewEmulatorUsecase(
	store repository.DocumentStore,
	engine repository.SecurityRulesEngine,
	deployer rtdomain.RulesDeployer,
	recorder VerdictRecorder,
	log logger.Logger,
) EmulatorUsecase {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &emulatorUsecaseImpl{
		store:    store,
		engine:   engine,
		deployer: deployer,
		recorder: recorder,
		log:      log.WithComponent("emulator"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// LoadRules replaces the project's rules. Invalid rules are an INVALID_ARGUMENT
// error and leave the previous rules in place.
func (uc *emulatorUsecaseImpl) LoadRules(ctx context.Context, projectID, source string) (*rtdomain.DeployResult, error) {
	if err := sharedfs.ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	return uc.deployer.Deploy(utils.WithProjectID(ctx, projectID), projectID, source)
}

func (uc *emulatorUsecaseImpl) RulesVersion(ctx context.Context, projectID string) (string, error) {
	return uc.deployer.GetCurrentVersion(ctx, projectID)
}

// ClearData removes every document of every database of the project
func (uc *emulatorUsecaseImpl) ClearData(ctx context.Context, projectID string) error {
	if err := sharedfs.ValidateProjectID(projectID); err != nil {
		return err
	}
	if err := uc.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	uc.log.WithContext(utils.WithProjectID(ctx, projectID)).Debug("project data cleared")
	return nil
}

func (uc *emulatorUsecaseImpl) GetDocument(ctx context.Context, caller Caller, req DocumentRequest) (*model.Document, error) {
	ctx, key, err := uc.prepare(ctx, req, "get")
	if err != nil {
		return nil, err
	}
	existing, err := uc.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := uc.authorize(ctx, caller, repository.OperationRead, key, existing, nil); err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errors.NewNotFoundError("document").
			WithDetail("path", key.Path).
			WithCause(errors.ErrDocumentNotFound)
	}
	return existing, nil
}

// SetDocument writes the whole document. It is evaluated as a create when the
// document does not exist and as an update otherwise.
func (uc *emulatorUsecaseImpl) SetDocument(ctx context.Context, caller Caller, req DocumentRequest) (*model.Document, error) {
	ctx, key, err := uc.prepare(ctx, req, "set")
	if err != nil {
		return nil, err
	}
	if req.Data == nil {
		return nil, errors.NewValidationError("document data is required")
	}
	existing, err := uc.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	operation := repository.OperationCreate
	if existing != nil {
		operation = repository.OperationUpdate
	}
	if err := uc.authorize(ctx, caller, operation, key, existing, req.Data); err != nil {
		return nil, err
	}

	now := uc.now()
	doc := &model.Document{
		Key:        key,
		Fields:     model.CloneFields(req.Data),
		CreateTime: now,
		UpdateTime: now,
	}
	if existing != nil {
		doc.CreateTime = existing.CreateTime
	}
	if err := uc.store.Put(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateDocument merges top-level fields into an existing document. Rules are
// evaluated first, so a permitted update of a missing document is NOT_FOUND.
func (uc *emulatorUsecaseImpl) UpdateDocument(ctx context.Context, caller Caller, req DocumentRequest) (*model.Document, error) {
	ctx, key, err := uc.prepare(ctx, req, "update")
	if err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, errors.NewValidationError("update requires at least one field")
	}
	existing, err := uc.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var merged map[string]interface{}
	if existing != nil {
		merged = model.MergeFields(existing.Fields, req.Data)
	} else {
		merged = model.CloneFields(req.Data)
	}
	if err := uc.authorize(ctx, caller, repository.OperationUpdate, key, existing, merged); err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errors.NewNotFoundError("document").
			WithDetail("path", key.Path).
			WithCause(errors.ErrDocumentNotFound)
	}

	doc := &model.Document{
		Key:        key,
		Fields:     merged,
		CreateTime: existing.CreateTime,
		UpdateTime: uc.now(),
	}
	if err := uc.store.Put(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteDocument removes a document; deleting a missing document succeeds
func (uc *emulatorUsecaseImpl) DeleteDocument(ctx context.Context, caller Caller, req DocumentRequest) error {
	ctx, key, err := uc.prepare(ctx, req, "delete")
	if err != nil {
		return err
	}
	existing, err := uc.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := uc.authorize(ctx, caller, repository.OperationDelete, key, existing, nil); err != nil {
		return err
	}
	return uc.store.Delete(ctx, key)
}

func (uc *emulatorUsecaseImpl) prepare(ctx context.Context, req DocumentRequest, operation string) (context.Context, model.DocumentKey, error) {
	databaseID := req.DatabaseID
	if databaseID == "" {
		databaseID = sharedfs.DefaultDatabaseID
	}
	if err := sharedfs.ValidateProjectID(req.ProjectID); err != nil {
		return ctx, model.DocumentKey{}, err
	}
	if err := sharedfs.ValidateDatabaseID(databaseID); err != nil {
		return ctx, model.DocumentKey{}, err
	}
	if err := sharedfs.ValidateDocumentPath(req.Path); err != nil {
		return ctx, model.DocumentKey{}, err
	}

	key := model.DocumentKey{
		ProjectID:  req.ProjectID,
		DatabaseID: databaseID,
		Path:       sharedfs.BuildDocumentPath(sharedfs.ParseDocumentPath(req.Path)...),
	}
	ctx = utils.WithProjectID(ctx, key.ProjectID)
	ctx = utils.WithDatabaseID(ctx, key.DatabaseID)
	ctx = utils.WithOperation(ctx, operation)
	return ctx, key, nil
}

// authorize evaluates the rules for a non-admin caller and returns a
// PERMISSION_DENIED error when access is not granted
func (uc *emulatorUsecaseImpl) authorize(
	ctx context.Context,
	caller Caller,
	operation repository.OperationType,
	key model.DocumentKey,
	existing *model.Document,
	requestData map[string]interface{},
) error {
	if caller.Admin {
		return nil
	}
	if caller.Auth != nil {
		ctx = utils.WithActorUID(ctx, caller.Auth.UID)
	}

	sc := &repository.SecurityContext{
		Auth:            caller.Auth,
		ProjectID:       key.ProjectID,
		DatabaseID:      key.DatabaseID,
		Path:            sharedfs.RulesPath(key.DatabaseID, key.Path),
		RequestResource: requestData,
		Time:            uc.now(),
	}
	if existing != nil {
		sc.Resource = existing.Fields
	}

	result, err := uc.engine.EvaluateAccess(ctx, operation, sc)
	if err != nil {
		return err
	}
	if uc.recorder != nil {
		uc.recorder.RecordVerdict(operation, result.Allowed)
	}

	log := uc.log.WithContext(ctx).WithFields(map[string]interface{}{
		"path":   key.Path,
		"reason": result.Reason,
	})
	if !result.Allowed {
		log.Debug("access denied")
		return errors.NewPermissionDeniedError(fmt.Sprintf("%s on %s: %s", operation, sc.Path, result.Reason)).
			WithDetail("operation", string(operation)).
			WithDetail("path", key.Path)
	}
	log.Debug("access allowed")
	return nil
}
