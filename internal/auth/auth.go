package auth

import (
	"fmt"

	authhttp "rockmap-rules/internal/auth/adapter/http"
	"rockmap-rules/internal/auth/adapter/security"
	"rockmap-rules/internal/auth/config"
	"rockmap-rules/internal/auth/domain/repository"
)

// AuthModule bundles emulator ID token handling
type AuthModule struct {
	tokenSvc   *security.EmulatorTokenService
	middleware *authhttp.AuthMiddleware
	config     *config.Config
}

// NewAuthModule creates a new authentication module instance. A nil cfg uses the defaults.
func NewAuthModule(cfg *config.Config) (*AuthModule, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	tokenSvc, err := security.NewEmulatorTokenService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}
	return &AuthModule{
		tokenSvc:   tokenSvc,
		middleware: authhttp.NewAuthMiddleware(tokenSvc),
		config:     cfg,
	}, nil
}

// TokenService returns the token service for minting and parsing ID tokens
func (am *AuthModule) TokenService() repository.TokenService {
	return am.tokenSvc
}

// OwnerToken returns the admin bearer value
func (am *AuthModule) OwnerToken() string {
	return am.tokenSvc.OwnerToken()
}

// GetMiddleware returns the auth middleware
func (am *AuthModule) GetMiddleware() *authhttp.AuthMiddleware {
	return am.middleware
}
