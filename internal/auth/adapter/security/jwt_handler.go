package security

import (
	"context"
	"errors"
	"strings"
	"time"

	"rockmap-rules/internal/auth/config"
	"rockmap-rules/internal/auth/domain/repository"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token is expired")
	ErrMissingUID   = errors.New("token has no sub or user_id claim")
)

// reservedClaims are set by MintToken and cannot be overridden by custom claims
var reservedClaims = map[string]bool{
	"sub": true, "user_id": true, "iat": true, "exp": true, "aud": true, "iss": true,
}

// EmulatorTokenService implements the Firebase emulator ID token convention:
// tokens are unsigned ("alg": "none") and signatures are never verified.
type EmulatorTokenService struct {
	cfg *config.Config
	now func() time.Time
}

// NewEmulatorTokenService creates a token service
func NewEmulatorTokenService(cfg *config.Config) (*EmulatorTokenService, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if cfg.OwnerToken == "" {
		return nil, errors.New("owner token cannot be empty")
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("token TTL must be positive")
	}
	return &EmulatorTokenService{cfg: cfg, now: time.Now}, nil
}

var _ repository.TokenService = (*EmulatorTokenService)(nil)

// OwnerToken returns the bearer value that grants admin access
func (s *EmulatorTokenService) OwnerToken() string {
	return s.cfg.OwnerToken
}

// MintToken generates an unsigned ID token for uid
func (s *EmulatorTokenService) MintToken(ctx context.Context, projectID, uid string, claims map[string]interface{}) (string, error) {
	if uid == "" {
		return "", ErrMissingUID
	}

	now := s.now()
	mapClaims := jwt.MapClaims{}
	for name, value := range claims {
		if !reservedClaims[name] {
			mapClaims[name] = value
		}
	}
	mapClaims["sub"] = uid
	mapClaims["user_id"] = uid
	mapClaims["iat"] = jwt.NewNumericDate(now)
	mapClaims["exp"] = jwt.NewNumericDate(now.Add(s.cfg.TokenTTL))
	mapClaims["aud"] = projectID
	mapClaims["iss"] = s.cfg.IssuerPrefix + projectID

	token := jwt.NewWithClaims(jwt.SigningMethodNone, mapClaims)
	return token.SignedString(jwt.UnsafeAllowNoneSignatureType)
}

// ParseToken decodes a bearer token without verifying its signature
func (s *EmulatorTokenService) ParseToken(ctx context.Context, tokenString string) (*repository.Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}
	if tokenString == s.cfg.OwnerToken {
		return &repository.Claims{Admin: true}, nil
	}

	mapClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, mapClaims); err != nil {
		return nil, ErrTokenInvalid
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if exp != nil && s.now().After(exp.Time) {
		return nil, ErrTokenExpired
	}

	uid, _ := mapClaims["sub"].(string)
	if uid == "" {
		uid, _ = mapClaims["user_id"].(string)
	}
	if uid == "" {
		return nil, ErrMissingUID
	}

	return &repository.Claims{
		UID:   uid,
		Token: map[string]interface{}(mapClaims),
	}, nil
}
