package repository

import (
	"context"
)

// TokenService mints and reads emulator ID tokens
type TokenService interface {
	// MintToken creates an unsigned ID token for uid carrying the given custom claims
	MintToken(ctx context.Context, projectID, uid string, claims map[string]interface{}) (string, error)
	// ParseToken reads a bearer token. The owner token yields admin Claims.
	ParseToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the identity decoded from a bearer token
type Claims struct {
	Admin bool
	UID   string
	// Token holds every claim of the token, exposed to rules as request.auth.token
	Token map[string]interface{}
}
