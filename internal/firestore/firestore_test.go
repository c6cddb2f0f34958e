package firestore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rockmap-rules/internal/auth"
	"rockmap-rules/internal/firestore/config"
	"rockmap-rules/internal/firestore/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const moduleRules = `rules_version = '2';
service cloud.firestore {
  match /databases/{database}/documents {
    match /users/{userId} {
      allow read: if true;
      allow write: if request.auth != null && request.auth.uid == userId;
    }
  }
}`

func TestNewFirestoreModule_Memory(t *testing.T) {
	ctx := context.Background()
	module, err := NewFirestoreModule(ctx, config.DefaultFirestoreConfig(), nil)
	require.NoError(t, err)
	defer module.Stop(ctx)

	require.NoError(t, module.HealthCheck(ctx))

	_, err = module.Emulator.LoadRules(ctx, "rockmap-70133", moduleRules)
	require.NoError(t, err)
	assert.True(t, module.SecurityRules.HasRules("rockmap-70133"))

	_, err = module.Emulator.SetDocument(ctx, usecase.AdminCaller(), usecase.DocumentRequest{
		ProjectID: "rockmap-70133",
		Path:      "users/taro",
		Data:      map[string]interface{}{"name": "taro"},
	})
	require.NoError(t, err)

	doc, err := module.Emulator.GetDocument(ctx, usecase.AuthCaller(nil), usecase.DocumentRequest{
		ProjectID: "rockmap-70133",
		Path:      "users/taro",
	})
	require.NoError(t, err)
	assert.Equal(t, "taro", doc.Fields["name"])
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := config.DefaultFirestoreConfig()
	cfg.StoreBackend = "sqlite"

	_, err := OpenStore(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestRegisterRoutes_ServesEmulatorAndMetrics(t *testing.T) {
	ctx := context.Background()
	module, err := NewFirestoreModule(ctx, nil, nil)
	require.NoError(t, err)
	defer module.Stop(ctx)

	authModule, err := auth.NewAuthModule(nil)
	require.NoError(t, err)

	app := fiber.New()
	module.RegisterRoutes(app, authModule.GetMiddleware())

	rules, _ := json.Marshal(map[string]interface{}{
		"rules": map[string]interface{}{"files": []map[string]string{{"content": moduleRules}}},
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodPut, "/emulator/v1/projects/rockmap-70133:securityRules", strings.NewReader(string(rules))))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPatch, "/v1/projects/rockmap-70133/databases/(default)/documents/users/taro",
		strings.NewReader(`{"fields":{"name":{"stringValue":"taro"}}}`))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rockmap_rules_verdicts_total{operation="create",verdict="denied"} 1`)
	assert.Contains(t, string(body), `rockmap_rules_loads_total{result="success"} 1`)
}
