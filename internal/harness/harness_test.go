package harness

import (
	"context"
	"testing"
	"time"

	"rockmap-rules/internal/harness/adapter/local"
	"rockmap-rules/internal/harness/adapter/rest"
	"rockmap-rules/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestNewEmulator_Backends(t *testing.T) {
	emulator, err := NewEmulator(nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &local.Emulator{}, emulator)

	cfg := DefaultConfig()
	cfg.Backend = "rest"
	cfg.EmulatorHost = "127.0.0.1:9099"
	emulator, err = NewEmulator(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &rest.Emulator{}, emulator)
	assert.Equal(t, "http://127.0.0.1:9099", emulator.(*rest.Emulator).BaseURL())

	cfg.Backend = "java"
	_, err = NewEmulator(cfg, nil)
	assert.True(t, errors.IsValidation(err))
}

// HarnessSuite runs the lifecycle against the in-process emulator and the
// repository's rules file. Test methods run in name order.
type HarnessSuite struct {
	Suite
}

func (s *HarnessSuite) TestA_SeedIsVisibleWithinTheCase() {
	users := s.Admin().Collection("users")
	s.Require().NoError(users.Doc("isolation").Set(s.Ctx(), map[string]interface{}{"name": "seed"}))

	snap, err := s.Actor(nil).Collection("users").Doc("isolation").Get(s.Ctx())
	s.Require().NoError(err)
	s.True(snap.Exists)
}

func (s *HarnessSuite) TestB_PreviousCaseDataIsCleared() {
	snap, err := s.Actor(nil).Collection("users").Doc("isolation").Get(s.Ctx())
	s.Require().NoError(err)
	s.False(snap.Exists)
}

func (s *HarnessSuite) TestClearingTwiceIsHarmless() {
	s.Require().NoError(s.Admin().Doc("users/twice").Set(s.Ctx(), map[string]interface{}{"name": "x"}))
	s.NoError(s.Lifecycle.AfterEach(s.Ctx()))
	s.NoError(s.Lifecycle.AfterEach(s.Ctx()))

	snap, err := s.Admin().Doc("users/twice").Get(s.Ctx())
	s.Require().NoError(err)
	s.False(snap.Exists)
}

func (s *HarnessSuite) TestAdminIsSharedActorsAreNot() {
	s.Same(s.Admin(), s.Admin())
	s.NotEqual(s.Actor(NewAuth("taro")).Name(), s.Actor(NewAuth("taro")).Name())
}

func (s *HarnessSuite) TestVerdicts() {
	taro := s.Actor(NewAuth("taro"))
	s.ExpectAllowed(func(ctx context.Context) error {
		return taro.Collection("users").Doc("taro").Set(ctx, map[string]interface{}{"name": "taro"})
	})
	s.ExpectDenied(func(ctx context.Context) error {
		return s.Actor(nil).Collection("users").Doc("taro").Set(ctx, map[string]interface{}{"name": "mallory"})
	})
}

func (s *HarnessSuite) TestTechnicalFailureIsNotADenial() {
	err := CheckDenied(s.Ctx(), func(ctx context.Context) error {
		return s.Actor(nil).Doc("users").Set(ctx, map[string]interface{}{})
	})
	s.ErrorIs(err, ErrUnexpectedFailure)
}

func TestHarnessSuite(t *testing.T) {
	s := &HarnessSuite{}
	s.Config = DefaultConfig()
	suite.Run(t, s)

	assert.Empty(t, s.Emulator.Apps())
	assert.Empty(t, s.Factory.Clients())
}

func TestSuite_ActorAfterTeardownIsRejected(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	emulator, err := NewEmulator(DefaultConfig(), nil)
	require.NoError(t, err)
	factory := NewFactory(emulator, nil, nil)
	admin, err := factory.AdminClient(ctx)
	require.NoError(t, err)

	require.NoError(t, NewLifecycle(nil, emulator, factory, nil).AfterAll(ctx))
	err = admin.Doc("users/taro").Set(ctx, map[string]interface{}{"name": "taro"})
	assert.ErrorIs(t, err, errors.ErrAppDeleted)
}
