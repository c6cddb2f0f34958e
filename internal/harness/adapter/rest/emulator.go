// Package rest drives a running Firestore emulator over its REST surface.
package rest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	authrepo "rockmap-rules/internal/auth/domain/repository"
	fshttp "rockmap-rules/internal/firestore/adapter/http"
	"rockmap-rules/internal/harness/domain"
	"rockmap-rules/internal/shared/errors"
	sharedfs "rockmap-rules/internal/shared/firestore"
	"rockmap-rules/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const defaultTimeout = 10 * time.Second

// Config addresses the emulator
type Config struct {
	// Host is host:port or a full base URL
	Host       string
	Timeout    time.Duration
	OwnerToken string
	// DatabaseName is always cleared by ClearData; empty means "(default)"
	DatabaseName string
}

// Emulator implements domain.Emulator against a remote emulator
type Emulator struct {
	baseURL    string
	timeout    time.Duration
	ownerToken string
	database   string
	tokens     authrepo.TokenService
	log        logger.Logger

	mu   sync.Mutex
	apps map[string]*app
}

var _ domain.Emulator = (*Emulator)(nil)

// NewEmulator creates a REST client; tokens mints the ID tokens of actor apps
func NewEmulator(cfg Config, tokens authrepo.TokenService, log logger.Logger) (*Emulator, error) {
	if cfg.Host == "" {
		return nil, errors.NewValidationError("emulator host is required")
	}
	if tokens == nil {
		return nil, errors.NewValidationError("token service is required")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	baseURL := strings.TrimRight(cfg.Host, "/")
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.OwnerToken == "" {
		cfg.OwnerToken = "owner"
	}
	if cfg.DatabaseName == "" {
		cfg.DatabaseName = sharedfs.DefaultDatabaseID
	}
	if err := sharedfs.ValidateDatabaseID(cfg.DatabaseName); err != nil {
		return nil, err
	}

	return &Emulator{
		baseURL:    baseURL,
		timeout:    cfg.Timeout,
		ownerToken: cfg.OwnerToken,
		database:   cfg.DatabaseName,
		tokens:     tokens,
		log:        log.WithComponent("rest_emulator"),
		apps:       make(map[string]*app),
	}, nil
}

// BaseURL returns the emulator root every request is sent to
func (e *Emulator) BaseURL() string {
	return e.baseURL
}

func (e *Emulator) InitializeApp(ctx context.Context, opts domain.AppOptions) (domain.App, error) {
	if err := sharedfs.ValidateProjectID(opts.ProjectID); err != nil {
		return nil, err
	}
	if err := sharedfs.ValidateDatabaseID(opts.DatabaseName); err != nil {
		return nil, err
	}

	var bearer string
	switch {
	case opts.Admin:
		bearer = e.ownerToken
	case opts.Auth != nil:
		if err := opts.Auth.Validate(); err != nil {
			return nil, err
		}
		token, err := e.tokens.MintToken(ctx, opts.ProjectID, opts.Auth.UID, opts.Auth.CustomClaims())
		if err != nil {
			return nil, errors.NewInternalError("failed to mint ID token").WithCause(err)
		}
		bearer = token
	}

	a := &app{
		name:     "app-" + uuid.NewString(),
		opts:     opts,
		bearer:   bearer,
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

// LoadRules installs rules through PUT /emulator/v1/projects/{project}:securityRules
func (e *Emulator) LoadRules(ctx context.Context, projectID, rules string) error {
	if err := sharedfs.ValidateProjectID(projectID); err != nil {
		return err
	}
	var body fshttp.LoadRulesRequest
	body.Rules.Files = []fshttp.RulesFile{{Name: "firestore.rules", Content: rules}}

	agent := fiber.Put(fmt.Sprintf("%s/emulator/v1/projects/%s:securityRules", e.baseURL, projectID))
	_, err := e.do(ctx, agent.JSON(body))
	return err
}

// ClearData removes every document of the configured database and of each
// database a live app of the project writes to. The emulator clears one
// database per request.
func (e *Emulator) ClearData(ctx context.Context, projectID string) error {
	if err := sharedfs.ValidateProjectID(projectID); err != nil {
		return err
	}
	for _, database := range e.databases(projectID) {
		agent := fiber.Delete(fmt.Sprintf("%s/emulator/v1/projects/%s/databases/%s/documents",
			e.baseURL, projectID, database))
		if _, err := e.do(ctx, agent); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emulator) databases(projectID string) []string {
	seen := map[string]struct{}{e.database: {}}
	e.mu.Lock()
	for _, a := range e.apps {
		if a.opts.ProjectID == projectID {
			seen[a.opts.DatabaseName] = struct{}{}
		}
	}
	e.mu.Unlock()

	databases := make([]string, 0, len(seen))
	for database := range seen {
		databases = append(databases, database)
	}
	sort.Strings(databases)
	return databases
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

// do sends the request and turns an error envelope into an AppError
func (e *Emulator) do(ctx context.Context, agent *fiber.Agent) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		fiber.ReleaseAgent(agent)
		return nil, errors.NewInfrastructureError("request cancelled").WithCause(err)
	}
	timeout := e.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	code, body, errs := agent.Timeout(timeout).Bytes()
	if len(errs) > 0 {
		return nil, errors.NewInfrastructureError("emulator unreachable at " + e.baseURL).
			WithCause(stderrors.Join(errs...))
	}
	if code >= fiber.StatusOK && code < fiber.StatusMultipleChoices {
		return body, nil
	}

	var envelope fshttp.ErrorBody
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Message == "" {
		return nil, errors.FromStatus(code, "", strings.TrimSpace(string(body)))
	}
	return nil, errors.FromStatus(code, envelope.Error.Status, envelope.Error.Message)
}

type app struct {
	name     string
	opts     domain.AppOptions
	bearer   string
	emulator *Emulator

	mu      sync.RWMutex
	deleted bool
}

func (a *app) Name() string               { return a.name }
func (a *app) Options() domain.AppOptions { return a.opts }

// documentURL validates path and returns the normalized path and its URL
func (a *app) documentURL(path string) (string, string, error) {
	a.mu.RLock()
	deleted := a.deleted
	a.mu.RUnlock()
	if deleted {
		return "", "", errors.NewValidationError("app " + a.name + " has been deleted").
			WithCause(errors.ErrAppDeleted)
	}
	if err := sharedfs.ValidateDocumentPath(path); err != nil {
		return "", "", err
	}

	segments := sharedfs.ParseDocumentPath(path)
	escaped := make([]string, len(segments))
	for i, segment := range segments {
		escaped[i] = url.PathEscape(segment)
	}
	return sharedfs.BuildDocumentPath(segments...), fmt.Sprintf("%s/v1/projects/%s/databases/%s/documents/%s",
		a.emulator.baseURL, a.opts.ProjectID, a.opts.DatabaseName, strings.Join(escaped, "/")), nil
}

func (a *app) authorize(agent *fiber.Agent) *fiber.Agent {
	if a.bearer != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+a.bearer)
	}
	return agent
}

type documentBody struct {
	Name       string                 `json:"name"`
	Fields     map[string]interface{} `json:"fields"`
	CreateTime string                 `json:"createTime"`
	UpdateTime string                 `json:"updateTime"`
}

func (a *app) GetDocument(ctx context.Context, path string) (*domain.Snapshot, error) {
	docPath, target, err := a.documentURL(path)
	if err != nil {
		return nil, err
	}
	body, err := a.emulator.do(ctx, a.authorize(fiber.Get(target)))
	if errors.IsNotFound(err) {
		return &domain.Snapshot{Path: docPath, Exists: false}, nil
	}
	if err != nil {
		return nil, err
	}

	var doc documentBody
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errors.NewInternalError("invalid document response").WithCause(err)
	}
	data, err := sharedfs.DecodeFields(doc.Fields)
	if err != nil {
		return nil, err
	}
	snapshot := &domain.Snapshot{Path: docPath, Exists: true, Data: data}
	snapshot.CreateTime, _ = time.Parse(time.RFC3339Nano, doc.CreateTime)
	snapshot.UpdateTime, _ = time.Parse(time.RFC3339Nano, doc.UpdateTime)
	return snapshot, nil
}

func (a *app) SetDocument(ctx context.Context, path string, data map[string]interface{}) error {
	if data == nil {
		return errors.NewValidationError("document data is required")
	}
	return a.patch(ctx, path, data, nil)
}

// UpdateDocument sends the changed fields under an update mask
func (a *app) UpdateDocument(ctx context.Context, path string, data map[string]interface{}) error {
	if len(data) == 0 {
		return errors.NewValidationError("update requires at least one field")
	}
	mask := make([]string, 0, len(data))
	for field := range data {
		mask = append(mask, field)
	}
	sort.Strings(mask)
	return a.patch(ctx, path, data, mask)
}

func (a *app) patch(ctx context.Context, path string, data map[string]interface{}, mask []string) error {
	_, target, err := a.documentURL(path)
	if err != nil {
		return err
	}
	fields, err := sharedfs.EncodeFields(data)
	if err != nil {
		return err
	}

	if len(mask) > 0 {
		query := url.Values{}
		for _, field := range mask {
			query.Add("updateMask.fieldPaths", field)
		}
		query.Set("currentDocument.exists", "true")
		target += "?" + query.Encode()
	}

	agent := a.authorize(fiber.Patch(target)).JSON(fiber.Map{"fields": fields})
	_, err = a.emulator.do(ctx, agent)
	return err
}

func (a *app) DeleteDocument(ctx context.Context, path string) error {
	_, target, err := a.documentURL(path)
	if err != nil {
		return err
	}
	_, err = a.emulator.do(ctx, a.authorize(fiber.Delete(target)))
	return err
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
