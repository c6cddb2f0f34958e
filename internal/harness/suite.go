package harness

import (
	"context"

	"rockmap-rules/internal/shared/logger"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Suite is a testify suite wired to the rules lifecycle: rules are loaded in
// SetupSuite, data is cleared after every test and all apps are released in
// TearDownSuite. Embed it and set Config or Emulator before the suite runs to
// override the defaults.
type Suite struct {
	suite.Suite

	Config    *Config
	Emulator  Emulator
	Factory   *Factory
	Lifecycle *Lifecycle
	Log       logger.Logger
}

func (s *Suite) SetupSuite() {
	if s.Config == nil {
		cfg, err := LoadConfig()
		s.Require().NoError(err, "harness configuration")
		s.Config = cfg
	}
	if s.Log == nil {
		s.Log = logger.NewZapLogger(zaptest.NewLogger(s.T(), zaptest.Level(zapcore.InfoLevel)))
	}
	if s.Emulator == nil {
		emulator, err := NewEmulator(s.Config, s.Log)
		s.Require().NoError(err, "emulator backend")
		s.Emulator = emulator
	}
	s.Factory = NewFactory(s.Emulator, s.Config, s.Log)
	s.Lifecycle = NewLifecycle(s.Config, s.Emulator, s.Factory, s.Log)
	s.Require().NoError(s.Lifecycle.BeforeAll(s.Ctx()), "loading security rules")
}

func (s *Suite) TearDownTest() {
	s.NoError(s.Lifecycle.AfterEach(s.Ctx()), "clearing emulator data")
}

func (s *Suite) TearDownSuite() {
	if s.Lifecycle != nil {
		s.NoError(s.Lifecycle.AfterAll(s.Ctx()), "releasing apps")
	}
}

// Ctx is the context suite operations run under
func (s *Suite) Ctx() context.Context {
	return context.Background()
}

// Admin returns the admin client, failing the test if it cannot be created
func (s *Suite) Admin() *Client {
	client, err := s.Factory.AdminClient(s.Ctx())
	s.Require().NoError(err, "admin client")
	return client
}

// Actor returns a new rules-enforced client; nil auth is unauthenticated
func (s *Suite) Actor(auth *AuthContext) *Client {
	client, err := s.Factory.ActorClient(s.Ctx(), auth)
	s.Require().NoError(err, "actor client")
	return client
}

func (s *Suite) ExpectAllowed(op Operation, msgAndArgs ...interface{}) bool {
	return ExpectAllowed(s.T(), s.Ctx(), op, msgAndArgs...)
}

func (s *Suite) ExpectDenied(op Operation, msgAndArgs ...interface{}) bool {
	return ExpectDenied(s.T(), s.Ctx(), op, msgAndArgs...)
}
