package http

import (
	"strings"

	"rockmap-rules/internal/auth/domain/repository"
	"rockmap-rules/internal/shared/contextkeys"
	"rockmap-rules/internal/shared/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

const claimsLocalKey = "auth_claims"

// AuthMiddleware resolves the caller of emulator requests from the Authorization header
type AuthMiddleware struct {
	tokens repository.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens repository.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequestID middleware
func (m *AuthMiddleware) RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     fiber.HeaderXRequestID,
		Generator:  uuid.NewString,
		ContextKey: string(contextkeys.RequestIDKey),
	})
}

// Identify decodes the bearer token when one is present. Requests without
// one continue unauthenticated; an unreadable token is rejected.
func (m *AuthMiddleware) Identify() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if requestID, ok := c.Locals(string(contextkeys.RequestIDKey)).(string); ok {
			ctx = utils.WithRequestID(ctx, requestID)
		}

		token := extractToken(c)
		if token == "" {
			c.SetUserContext(ctx)
			return c.Next()
		}

		claims, err := m.tokens.ParseToken(ctx, token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    fiber.StatusUnauthorized,
					"message": "invalid ID token: " + err.Error(),
					"status":  "UNAUTHENTICATED",
				},
			})
		}

		if claims.UID != "" {
			ctx = utils.WithActorUID(ctx, claims.UID)
		}
		c.Locals(claimsLocalKey, claims)
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// GetClaims returns the claims resolved by Identify, nil for unauthenticated requests
func GetClaims(c *fiber.Ctx) *repository.Claims {
	claims, _ := c.Locals(claimsLocalKey).(*repository.Claims)
	return claims
}

func extractToken(c *fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
