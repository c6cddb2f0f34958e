package local

import (
	"context"
	"testing"

	"rockmap-rules/internal/firestore"
	"rockmap-rules/internal/firestore/adapter/persistence/memory"
	"rockmap-rules/internal/harness/domain"
	"rockmap-rules/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	project  = "rockmap-70133"
	database = "RockMap-debug"
)

const localRules = `rules_version = '2';
service cloud.firestore {
  match /databases/{database}/documents {
    match /users/{userId} {
      allow read: if true;
      allow create, update: if request.auth != null && request.auth.uid == userId;
      allow delete: if request.auth.token.admin == true;
    }
  }
}`

type LocalEmulatorTestSuite struct {
	suite.Suite
	ctx      context.Context
	emulator *Emulator
}

func (s *LocalEmulatorTestSuite) SetupTest() {
	s.ctx = context.Background()
	module, err := firestore.NewFirestoreModuleWithStore(nil, memory.NewDocumentStore(), nil)
	s.Require().NoError(err)
	s.emulator = NewEmulator(module.Emulator, nil)
	s.Require().NoError(s.emulator.LoadRules(s.ctx, project, localRules))
}

func (s *LocalEmulatorTestSuite) app(opts domain.AppOptions) domain.App {
	opts.ProjectID = project
	opts.DatabaseName = database
	app, err := s.emulator.InitializeApp(s.ctx, opts)
	s.Require().NoError(err)
	return app
}

func (s *LocalEmulatorTestSuite) TestAdminSeedsActorReads() {
	admin := s.app(domain.AppOptions{Admin: true})
	s.Require().NoError(admin.SetDocument(s.ctx, "users/taro", map[string]interface{}{"name": "taro"}))

	anonymous := s.app(domain.AppOptions{})
	snap, err := anonymous.GetDocument(s.ctx, "users/taro")
	s.Require().NoError(err)
	s.True(snap.Exists)
	s.Equal("taro", snap.Data["name"])

	snap, err = anonymous.GetDocument(s.ctx, "users/jiro")
	s.Require().NoError(err)
	s.False(snap.Exists)
}

func (s *LocalEmulatorTestSuite) TestActorWritesAreRuleChecked() {
	taro := s.app(domain.AppOptions{Auth: domain.NewAuth("taro")})

	err := taro.SetDocument(s.ctx, "users/jiro", map[string]interface{}{"name": "jiro"})
	s.True(errors.IsPermissionDenied(err))

	s.Require().NoError(taro.SetDocument(s.ctx, "users/taro", map[string]interface{}{"name": "taro"}))
	s.Require().NoError(taro.UpdateDocument(s.ctx, "users/taro", map[string]interface{}{"name": "TARO"}))
	s.True(errors.IsPermissionDenied(taro.DeleteDocument(s.ctx, "users/taro")))
}

func (s *LocalEmulatorTestSuite) TestCustomClaimsReachRules() {
	admin := s.app(domain.AppOptions{Admin: true})
	s.Require().NoError(admin.SetDocument(s.ctx, "users/taro", map[string]interface{}{"name": "taro"}))

	moderator := s.app(domain.AppOptions{Auth: domain.NewAuth("mod").WithClaim(domain.ClaimAdmin, true)})
	s.NoError(moderator.DeleteDocument(s.ctx, "users/taro"))
}

func (s *LocalEmulatorTestSuite) TestClearData() {
	admin := s.app(domain.AppOptions{Admin: true})
	s.Require().NoError(admin.SetDocument(s.ctx, "users/taro", map[string]interface{}{"name": "taro"}))

	s.Require().NoError(s.emulator.ClearData(s.ctx, project))

	snap, err := admin.GetDocument(s.ctx, "users/taro")
	s.Require().NoError(err)
	s.False(snap.Exists)
}

func (s *LocalEmulatorTestSuite) TestAppsAndDelete() {
	first := s.app(domain.AppOptions{Admin: true})
	second := s.app(domain.AppOptions{})
	s.Len(s.emulator.Apps(), 2)

	s.Require().NoError(first.Delete(s.ctx))
	s.Equal([]domain.App{second}, s.emulator.Apps())

	err := first.Delete(s.ctx)
	s.ErrorIs(err, errors.ErrAppDeleted)

	_, err = first.GetDocument(s.ctx, "users/taro")
	s.ErrorIs(err, errors.ErrAppDeleted)
}

func (s *LocalEmulatorTestSuite) TestInitializeApp_Invalid() {
	_, err := s.emulator.InitializeApp(s.ctx, domain.AppOptions{ProjectID: "Bad Project", DatabaseName: database})
	s.True(errors.IsValidation(err))

	_, err = s.emulator.InitializeApp(s.ctx, domain.AppOptions{ProjectID: project, DatabaseName: "bad/db"})
	s.True(errors.IsValidation(err))

	_, err = s.emulator.InitializeApp(s.ctx, domain.AppOptions{ProjectID: project, DatabaseName: database, Auth: &domain.AuthContext{}})
	s.True(errors.IsValidation(err))
	s.Empty(s.emulator.Apps())
}

func (s *LocalEmulatorTestSuite) TestLoadRules_Invalid() {
	err := s.emulator.LoadRules(s.ctx, project, "not rules")
	require.Error(s.T(), err)
	assert.True(s.T(), errors.IsValidation(err))
}

func TestLocalEmulatorTestSuite(t *testing.T) {
	suite.Run(t, new(LocalEmulatorTestSuite))
}
