package domain

import (
	"testing"

	"rockmap-rules/internal/shared/errors"

	"github.com/stretchr/testify/assert"
)

func TestAuthContext_WithClaimCopies(t *testing.T) {
	base := NewAuth("taro")
	withEmail := base.WithClaim(ClaimEmail, "taro@example.com")

	assert.Empty(t, base.Claims)
	assert.Equal(t, "taro@example.com", withEmail.Claims[ClaimEmail])
	assert.Equal(t, "taro", withEmail.UID)
}

func TestAuthContext_TokenClaims(t *testing.T) {
	auth := NewAuth("taro").WithClaim(ClaimAdmin, true)

	assert.Equal(t, map[string]interface{}{"admin": true}, auth.CustomClaims())
	assert.Equal(t, map[string]interface{}{
		"admin":   true,
		"sub":     "taro",
		"user_id": "taro",
	}, auth.TokenClaims())
}

func TestAuthContext_Validate(t *testing.T) {
	assert.NoError(t, NewAuth("taro").Validate())

	err := (&AuthContext{}).Validate()
	assert.True(t, errors.IsValidation(err))
}
