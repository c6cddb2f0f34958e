package http_test

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	authhttp "rockmap-rules/internal/auth/adapter/http"
	authsecurity "rockmap-rules/internal/auth/adapter/security"
	fshttp "rockmap-rules/internal/firestore/adapter/http"
	"rockmap-rules/internal/firestore/adapter/persistence"
	"rockmap-rules/internal/firestore/adapter/persistence/memory"
	"rockmap-rules/internal/firestore/adapter/security"
	"rockmap-rules/internal/firestore/domain/model"
	"rockmap-rules/internal/firestore/usecase"
	rtadapter "rockmap-rules/internal/rules_translator/adapter"
	"rockmap-rules/internal/rules_translator/adapter/parser"
	rtusecase "rockmap-rules/internal/rules_translator/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	testProject  = "rockmap-70133"
	testDatabase = "RockMap-debug"
	docsPrefix   = "/v1/projects/" + testProject + "/databases/" + testDatabase + "/documents/"
)

const handlerRules = `rules_version = '2';
service cloud.firestore {
  match /databases/{database}/documents {
    match /users/{userId} {
      allow read: if true;
      allow create, update: if request.auth != null && request.auth.uid == userId;
      allow delete: if false;
    }
  }
}`

type loadSpy struct {
	loads []bool
}

func (l *loadSpy) RecordRulesLoad(success bool) { l.loads = append(l.loads, success) }

type HTTPHandlerTestSuite struct {
	suite.Suite
	app    *fiber.App
	store  *memory.DocumentStore
	tokens *authsecurity.EmulatorTokenService
	loads  *loadSpy
}

func (s *HTTPHandlerTestSuite) SetupTest() {
	store := memory.NewDocumentStore()
	s.store = store
	engine, err := security.NewSecurityRulesEngine(nil)
	s.Require().NoError(err)
	engine.SetResourceAccessor(persistence.NewResourceAccessor(store, nil))
	deployer := rtadapter.NewRulesDeployer(parser.NewModernParser(), rtusecase.NewFastTranslator(nil), engine, nil, nil)
	emulator := usecase.NewEmulatorUsecase(store, engine, deployer, nil, nil)

	s.tokens, err = authsecurity.NewEmulatorTokenService(nil)
	s.Require().NoError(err)
	middleware := authhttp.NewAuthMiddleware(s.tokens)

	s.loads = &loadSpy{}
	s.app = fiber.New()
	s.app.Use(middleware.RequestID(), middleware.Identify())
	fshttp.NewFirestoreHTTPHandler(emulator, s.loads, nil).RegisterRoutes(s.app)

	status, _ := s.do(http.MethodPut, "/emulator/v1/projects/"+testProject+":securityRules", "", rulesBody(handlerRules))
	s.Require().Equal(http.StatusOK, status)
}

func rulesBody(source string) string {
	payload, _ := json.Marshal(map[string]interface{}{
		"rules": map[string]interface{}{
			"files": []map[string]string{{"name": "firestore.rules", "content": source}},
		},
	})
	return string(payload)
}

func (s *HTTPHandlerTestSuite) bearer(uid string) string {
	token, err := s.tokens.MintToken(context.Background(), testProject, uid, nil)
	s.Require().NoError(err)
	return "Bearer " + token
}

func (s *HTTPHandlerTestSuite) do(method, path, authorization, body string) (int, map[string]interface{}) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := s.app.Test(req)
	s.Require().NoError(err)

	var decoded map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	if len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func errorStatus(body map[string]interface{}) string {
	envelope, _ := body["error"].(map[string]interface{})
	status, _ := envelope["status"].(string)
	return status
}

const userBody = `{"fields":{"name":{"stringValue":"taro"},"deleted":{"booleanValue":false}}}`

func (s *HTTPHandlerTestSuite) TestHealth() {
	status, body := s.do(http.MethodGet, "/health", "", "")
	s.Equal(http.StatusOK, status)
	s.Equal("ok", body["status"])
}

func (s *HTTPHandlerTestSuite) TestLoadRules() {
	s.Equal([]bool{true}, s.loads.loads)

	status, body := s.do(http.MethodGet, "/emulator/v1/projects/"+testProject+":securityRules", "", "")
	s.Equal(http.StatusOK, status)
	s.NotEmpty(body["version"])

	status, body = s.do(http.MethodPut, "/emulator/v1/projects/"+testProject+":securityRules", "", rulesBody("service cloud.firestore {"))
	s.Equal(http.StatusBadRequest, status)
	s.Equal("INVALID_ARGUMENT", errorStatus(body))
	s.Equal([]bool{true, false}, s.loads.loads)

	status, _ = s.do(http.MethodPut, "/emulator/v1/projects/"+testProject+":other", "", rulesBody(handlerRules))
	s.Equal(http.StatusNotFound, status)

	status, body = s.do(http.MethodPut, "/emulator/v1/projects/"+testProject+":securityRules", "", `{"rules":{"files":[]}}`)
	s.Equal(http.StatusBadRequest, status)
	s.Equal("INVALID_ARGUMENT", errorStatus(body))
}

func (s *HTTPHandlerTestSuite) TestWriteAndReadDocument() {
	status, body := s.do(http.MethodPatch, docsPrefix+"users/taro", "", userBody)
	s.Equal(http.StatusForbidden, status)
	s.Equal("PERMISSION_DENIED", errorStatus(body))

	status, body = s.do(http.MethodPatch, docsPrefix+"users/taro", s.bearer("mogu"), userBody)
	s.Equal(http.StatusForbidden, status)

	status, body = s.do(http.MethodPatch, docsPrefix+"users/taro", s.bearer("taro"), userBody)
	s.Require().Equal(http.StatusOK, status)
	s.Equal("projects/"+testProject+"/databases/"+testDatabase+"/documents/users/taro", body["name"])
	s.NotEmpty(body["createTime"])

	status, body = s.do(http.MethodGet, docsPrefix+"users/taro", "", "")
	s.Require().Equal(http.StatusOK, status)
	fields := body["fields"].(map[string]interface{})
	s.Equal(map[string]interface{}{"stringValue": "taro"}, fields["name"])
	s.Equal(map[string]interface{}{"booleanValue": false}, fields["deleted"])
}

func (s *HTTPHandlerTestSuite) TestUpdateWithMask() {
	status, _ := s.do(http.MethodPatch, docsPrefix+"users/taro", "Bearer owner", userBody)
	s.Require().Equal(http.StatusOK, status)

	update := `{"fields":{"name":{"stringValue":"TARO"},"deleted":{"booleanValue":true}}}`
	path := docsPrefix + "users/taro?updateMask.fieldPaths=name&currentDocument.exists=true"

	status, body := s.do(http.MethodPatch, path, s.bearer("jiro"), update)
	s.Equal(http.StatusForbidden, status)
	s.Equal("PERMISSION_DENIED", errorStatus(body))

	status, body = s.do(http.MethodPatch, path, s.bearer("taro"), update)
	s.Require().Equal(http.StatusOK, status)
	fields := body["fields"].(map[string]interface{})
	s.Equal(map[string]interface{}{"stringValue": "TARO"}, fields["name"])
	s.Equal(map[string]interface{}{"booleanValue": false}, fields["deleted"])

	status, body = s.do(http.MethodPatch, docsPrefix+"users/ghost?updateMask.fieldPaths=name", s.bearer("ghost"), update)
	s.Equal(http.StatusNotFound, status)
	s.Equal("NOT_FOUND", errorStatus(body))
}

func (s *HTTPHandlerTestSuite) TestDeleteAndClear() {
	status, _ := s.do(http.MethodPatch, docsPrefix+"users/taro", "Bearer owner", userBody)
	s.Require().Equal(http.StatusOK, status)

	status, body := s.do(http.MethodDelete, docsPrefix+"users/taro", s.bearer("taro"), "")
	s.Equal(http.StatusForbidden, status)
	s.Equal("PERMISSION_DENIED", errorStatus(body))

	status, _ = s.do(http.MethodDelete, "/emulator/v1/projects/"+testProject+"/databases/"+testDatabase+"/documents", "", "")
	s.Equal(http.StatusOK, status)

	status, body = s.do(http.MethodGet, docsPrefix+"users/taro", "", "")
	s.Equal(http.StatusNotFound, status)
	s.Equal("NOT_FOUND", errorStatus(body))
}

func (s *HTTPHandlerTestSuite) TestStoredKeysOutliveRequest() {
	status, _ := s.do(http.MethodPatch, docsPrefix+"users/taro", "Bearer owner", userBody)
	s.Require().Equal(http.StatusOK, status)

	// later requests reuse the server's request buffers
	for _, path := range []string{"/health", "/emulator/v1/projects/" + testProject + ":securityRules", docsPrefix + "users/jiro/rocks/rock-0001"} {
		s.do(http.MethodGet, path, "", "")
	}

	key := model.DocumentKey{ProjectID: testProject, DatabaseID: testDatabase, Path: "users/taro"}
	doc, err := s.store.Get(context.Background(), key)
	s.Require().NoError(err)
	s.Require().NotNil(doc)
	s.Equal(key, doc.Key)

	status, _ = s.do(http.MethodDelete, "/emulator/v1/projects/"+testProject+"/databases/"+testDatabase+"/documents", "", "")
	s.Require().Equal(http.StatusOK, status)
	s.Zero(s.store.Len())

	status, _ = s.do(http.MethodGet, docsPrefix+"users/taro", "Bearer owner", "")
	s.Equal(http.StatusNotFound, status)
}

func (s *HTTPHandlerTestSuite) TestBadRequests() {
	status, body := s.do(http.MethodGet, docsPrefix+"users", "", "")
	s.Equal(http.StatusBadRequest, status)
	s.Equal("INVALID_ARGUMENT", errorStatus(body))

	status, body = s.do(http.MethodPatch, docsPrefix+"users/taro", "Bearer owner", `{"fields":{"name":{"fooValue":1}}}`)
	s.Equal(http.StatusBadRequest, status)
	s.Equal("INVALID_ARGUMENT", errorStatus(body))

	status, body = s.do(http.MethodPatch, docsPrefix+"users/taro", "Bearer owner", `not json`)
	s.Equal(http.StatusBadRequest, status)

	status, body = s.do(http.MethodGet, docsPrefix+"users/taro", "Bearer not-a-jwt", "")
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("UNAUTHENTICATED", errorStatus(body))
}

func TestHTTPHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HTTPHandlerTestSuite))
}

func TestHTTPHandler_NoRulesDenies(t *testing.T) {
	store := memory.NewDocumentStore()
	engine, err := security.NewSecurityRulesEngine(nil)
	require.NoError(t, err)
	deployer := rtadapter.NewRulesDeployer(parser.NewModernParser(), rtusecase.NewFastTranslator(nil), engine, nil, nil)

	app := fiber.New()
	fshttp.NewFirestoreHTTPHandler(usecase.NewEmulatorUsecase(store, engine, deployer, nil, nil), nil, nil).RegisterRoutes(app)

	req := httptest.NewRequest(http.MethodPatch, docsPrefix+"users/taro", strings.NewReader(userBody))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHTTPHandler_HealthReportsStoreFailure(t *testing.T) {
	handler := fshttp.NewFirestoreHTTPHandler(nil, nil, nil)
	handler.Ping = func(ctx context.Context) error { return stderrors.New("connection refused") }

	app := fiber.New()
	handler.RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
