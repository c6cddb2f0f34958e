// Package harness runs security-rule verification suites against a Firestore
// emulator: it loads rules, hands out admin and actor clients, clears data
// between cases and asserts allowed or denied outcomes.
package harness

import (
	"fmt"

	"rockmap-rules/internal/auth"
	"rockmap-rules/internal/firestore"
	"rockmap-rules/internal/firestore/adapter/persistence/memory"
	"rockmap-rules/internal/harness/adapter/local"
	"rockmap-rules/internal/harness/adapter/rest"
	"rockmap-rules/internal/harness/config"
	"rockmap-rules/internal/harness/domain"
	"rockmap-rules/internal/shared/errors"
	"rockmap-rules/internal/shared/logger"
)

type (
	Config      = config.Config
	AuthContext = domain.AuthContext
	Claim       = domain.Claim
	Snapshot    = domain.Snapshot
	Emulator    = domain.Emulator
	App         = domain.App
	AppOptions  = domain.AppOptions
)

const (
	ClaimEmail         = domain.ClaimEmail
	ClaimEmailVerified = domain.ClaimEmailVerified
	ClaimName          = domain.ClaimName
	ClaimPicture       = domain.ClaimPicture
	ClaimAdmin         = domain.ClaimAdmin
)

// NewAuth returns the identity of a signed-in user without custom claims
func NewAuth(uid string) *AuthContext {
	return domain.NewAuth(uid)
}

// LoadConfig reads the harness configuration from .env and the environment
func LoadConfig() (*Config, error) {
	return config.LoadConfig()
}

// DefaultConfig returns the RockMap project settings on the local backend
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// NewEmulator builds the backend selected by cfg.Backend
func NewEmulator(cfg *Config, log logger.Logger) (Emulator, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	switch cfg.Backend {
	case config.BackendLocal:
		module, err := firestore.NewFirestoreModuleWithStore(nil, memory.NewDocumentStore(), log)
		if err != nil {
			return nil, errors.NewInfrastructureError("failed to start local emulator").WithCause(err)
		}
		return local.NewEmulator(module.Emulator, log), nil
	case config.BackendREST:
		authModule, err := auth.NewAuthModule(nil)
		if err != nil {
			return nil, errors.NewInfrastructureError("failed to create token service").WithCause(err)
		}
		emulator, err := rest.NewEmulator(rest.Config{
			Host:         cfg.EmulatorHost,
			Timeout:      cfg.RequestTimeout,
			OwnerToken:   authModule.OwnerToken(),
			DatabaseName: cfg.DatabaseName,
		}, authModule.TokenService(), log)
		if err != nil {
			return nil, err
		}
		return emulator, nil
	}
	return nil, errors.NewValidationError(fmt.Sprintf("unknown backend %q", cfg.Backend))
}
