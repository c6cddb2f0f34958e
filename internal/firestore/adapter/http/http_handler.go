package http

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	authhttp "rockmap-rules/internal/auth/adapter/http"
	"rockmap-rules/internal/firestore/domain/model"
	"rockmap-rules/internal/firestore/domain/repository"
	"rockmap-rules/internal/firestore/usecase"
	"rockmap-rules/internal/shared/errors"
	sharedfs "rockmap-rules/internal/shared/firestore"
	"rockmap-rules/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

const securityRulesVerb = "securityRules"

// RulesLoadRecorder observes rules loads made through the control endpoint
type RulesLoadRecorder interface {
	RecordRulesLoad(success bool)
}

// HTTPHandler serves the emulator control endpoints and the document REST API
// in the shape of the Firebase emulator
type HTTPHandler struct {
	Emulator usecase.EmulatorUsecase
	Recorder RulesLoadRecorder
	// Ping reports backing store health for /health; nil means always healthy
	Ping func(ctx context.Context) error
	Log  logger.Logger
}

// NewFirestoreHTTPHandler creates a new HTTPHandler. recorder may be nil.
func NewFirestoreHTTPHandler(emulator usecase.EmulatorUsecase, recorder RulesLoadRecorder, log logger.Logger) *HTTPHandler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &HTTPHandler{
		Emulator: emulator,
		Recorder: recorder,
		Log:      log.WithComponent("http"),
	}
}

// RegisterRoutes registers the emulator routes
func (h *HTTPHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/health", h.Health)

	control := router.Group("/emulator/v1/projects")
	control.Put("/:resource", h.LoadRules)
	control.Get("/:resource", h.GetRulesVersion)
	control.Delete("/:projectID/databases/:databaseID/documents", h.ClearData)

	documents := router.Group("/v1/projects/:projectID/databases/:databaseID/documents")
	documents.Get("/*", h.GetDocument)
	documents.Patch("/*", h.WriteDocument)
	documents.Delete("/*", h.DeleteDocument)
}

func (h *HTTPHandler) Health(c *fiber.Ctx) error {
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy", "error": err.Error()})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// LoadRulesRequest is the body of PUT /emulator/v1/projects/{project}:securityRules
type LoadRulesRequest struct {
	Rules struct {
		Files []RulesFile `json:"files"`
	} `json:"rules"`
}

// RulesFile is one source file of a ruleset
type RulesFile struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

func (h *HTTPHandler) LoadRules(c *fiber.Ctx) error {
	projectID, ok := controlResource(utils.CopyString(c.Params("resource")))
	if !ok {
		return writeError(c, errors.NewNotFoundError("route"))
	}

	var body LoadRulesRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return writeError(c, errors.NewValidationError("invalid request body").WithCause(err))
	}
	if len(body.Rules.Files) == 0 {
		return writeError(c, errors.NewValidationError("rules.files must contain the rules source"))
	}

	sources := make([]string, 0, len(body.Rules.Files))
	for _, file := range body.Rules.Files {
		sources = append(sources, file.Content)
	}

	result, err := h.Emulator.LoadRules(c.UserContext(), projectID, strings.Join(sources, "\n"))
	if h.Recorder != nil {
		h.Recorder.RecordRulesLoad(err == nil)
	}
	if err != nil {
		h.Log.WithContext(c.UserContext()).WithFields(map[string]interface{}{
			"project_id": projectID,
			"error":      err.Error(),
		}).Warn("rules load failed")
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"version":  result.Version,
		"rules":    result.RulesDeployed,
		"warnings": result.Warnings,
	})
}

func (h *HTTPHandler) GetRulesVersion(c *fiber.Ctx) error {
	projectID, ok := controlResource(utils.CopyString(c.Params("resource")))
	if !ok {
		return writeError(c, errors.NewNotFoundError("route"))
	}
	version, err := h.Emulator.RulesVersion(c.UserContext(), projectID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"version": version})
}

func (h *HTTPHandler) ClearData(c *fiber.Ctx) error {
	if err := h.Emulator.ClearData(c.UserContext(), utils.CopyString(c.Params("projectID"))); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{})
}

func (h *HTTPHandler) GetDocument(c *fiber.Ctx) error {
	doc, err := h.Emulator.GetDocument(c.UserContext(), callerFrom(c), documentRequest(c, nil))
	if err != nil {
		return writeError(c, err)
	}
	return writeDocument(c, doc)
}

// WriteDocument handles PATCH. Without an update mask the body replaces the
// document; with one only the masked fields are merged into an existing document.
func (h *HTTPHandler) WriteDocument(c *fiber.Ctx) error {
	var body struct {
		Fields map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return writeError(c, errors.NewValidationError("invalid request body").WithCause(err))
	}
	fields, err := sharedfs.DecodeFields(body.Fields)
	if err != nil {
		return writeError(c, err)
	}

	ctx := c.UserContext()
	mask := parseUpdateMaskQuery(c)
	var doc *model.Document
	if len(mask) == 0 {
		doc, err = h.Emulator.SetDocument(ctx, callerFrom(c), documentRequest(c, fields))
	} else {
		doc, err = h.Emulator.UpdateDocument(ctx, callerFrom(c), documentRequest(c, maskFields(fields, mask)))
	}
	if err != nil {
		return writeError(c, err)
	}
	return writeDocument(c, doc)
}

func (h *HTTPHandler) DeleteDocument(c *fiber.Ctx) error {
	if err := h.Emulator.DeleteDocument(c.UserContext(), callerFrom(c), documentRequest(c, nil)); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{})
}

// controlResource splits "{project}:securityRules"
func controlResource(resource string) (string, bool) {
	projectID, verb, found := strings.Cut(resource, ":")
	if !found || verb != securityRulesVerb {
		return "", false
	}
	return projectID, true
}

// documentRequest copies the route params; fiber's are only valid for the
// request and end up as store keys
func documentRequest(c *fiber.Ctx, data map[string]interface{}) usecase.DocumentRequest {
	return usecase.DocumentRequest{
		ProjectID:  utils.CopyString(c.Params("projectID")),
		DatabaseID: utils.CopyString(c.Params("databaseID")),
		Path:       utils.CopyString(c.Params("*")),
		Data:       data,
	}
}

// callerFrom maps the identity resolved by the auth middleware to a caller
func callerFrom(c *fiber.Ctx) usecase.Caller {
	claims := authhttp.GetClaims(c)
	if claims == nil {
		return usecase.AuthCaller(nil)
	}
	if claims.Admin {
		return usecase.AdminCaller()
	}
	return usecase.AuthCaller(&repository.AuthInfo{UID: claims.UID, Token: claims.Token})
}

// parseUpdateMaskQuery reads repeated updateMask.fieldPaths parameters
func parseUpdateMaskQuery(c *fiber.Ctx) []string {
	var fields []string
	for _, raw := range c.Context().QueryArgs().PeekMulti("updateMask.fieldPaths") {
		for _, field := range strings.Split(string(raw), ",") {
			if field = strings.TrimSpace(field); field != "" {
				fields = append(fields, field)
			}
		}
	}
	return fields
}

func maskFields(fields map[string]interface{}, mask []string) map[string]interface{} {
	out := make(map[string]interface{}, len(mask))
	for _, name := range mask {
		if value, ok := fields[name]; ok {
			out[name] = value
		}
	}
	return out
}

func writeDocument(c *fiber.Ctx, doc *model.Document) error {
	fields, err := sharedfs.EncodeFields(doc.Fields)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"name":       sharedfs.BuildFirestorePath(doc.Key.ProjectID, doc.Key.DatabaseID, doc.Key.Path),
		"fields":     fields,
		"createTime": doc.CreateTime.UTC().Format(time.RFC3339Nano),
		"updateTime": doc.UpdateTime.UTC().Format(time.RFC3339Nano),
	})
}
