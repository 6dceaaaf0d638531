package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/vibecodezero/subscriber-service/pkg/util"
)

// AdminMiddleware validates bearer tokens on the admin surface.
type AdminMiddleware struct {
	tokens  *TokenManager
	enabled bool
}

// NewAdminMiddleware constructs middleware. When disabled (no admin
// password configured) every protected request is rejected.
func NewAdminMiddleware(tokens *TokenManager, enabled bool) *AdminMiddleware {
	return &AdminMiddleware{tokens: tokens, enabled: enabled}
}

// Handle enforces authentication for protected routes.
func (m *AdminMiddleware) Handle(c *fiber.Ctx) error {
	if !m.enabled {
		return apperrors.NewUnauthorized("admin access is not configured")
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	if err := m.tokens.ParseToken(parts[1]); err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	return c.Next()
}
