package domain

import (
	"rockmap-rules/internal/shared/errors"
)

// Claim names a custom token claim. Claims are typed so a misspelt name
// fails to compile instead of silently never matching a rule.
type Claim string

// Claims the emulator token carries besides the uid
const (
	ClaimEmail         Claim = "email"
	ClaimEmailVerified Claim = "email_verified"
	ClaimName          Claim = "name"
	ClaimPicture       Claim = "picture"
	ClaimAdmin         Claim = "admin"
)

// AuthContext is the identity an actor handle acts under
type AuthContext struct {
	UID    string
	Claims map[Claim]interface{}
}

// NewAuth returns an AuthContext for uid without custom claims
func NewAuth(uid string) *AuthContext {
	return &AuthContext{UID: uid, Claims: map[Claim]interface{}{}}
}

// WithClaim returns a copy of a with the claim set
func (a *AuthContext) WithClaim(claim Claim, value interface{}) *AuthContext {
	claims := make(map[Claim]interface{}, len(a.Claims)+1)
	for k, v := range a.Claims {
		claims[k] = v
	}
	claims[claim] = value
	return &AuthContext{UID: a.UID, Claims: claims}
}

// Validate rejects an identity without a uid
func (a *AuthContext) Validate() error {
	if a.UID == "" {
		return errors.NewValidationError("auth context requires a uid")
	}
	return nil
}

// CustomClaims returns the custom claims keyed by name
func (a *AuthContext) CustomClaims() map[string]interface{} {
	out := make(map[string]interface{}, len(a.Claims))
	for k, v := range a.Claims {
		out[string(k)] = v
	}
	return out
}

// TokenClaims returns the claims rules see as request.auth.token
func (a *AuthContext) TokenClaims() map[string]interface{} {
	out := a.CustomClaims()
	out["sub"] = a.UID
	out["user_id"] = a.UID
	return out
}
