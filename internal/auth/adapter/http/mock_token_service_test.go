package http_test

import (
	"context"

	"rockmap-rules/internal/auth/domain/repository"

	"github.com/stretchr/testify/mock"
)

type mockTokenService struct {
	mock.Mock
}

func (m *mockTokenService) MintToken(ctx context.Context, projectID, uid string, claims map[string]interface{}) (string, error) {
	args := m.Called(ctx, projectID, uid, claims)
	return args.String(0), args.Error(1)
}

func (m *mockTokenService) ParseToken(ctx context.Context, tokenString string) (*repository.Claims, error) {
	args := m.Called(ctx, tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Claims), args.Error(1)
}
