package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vibecodezero/subscriber-service/internal/api/dto"
	"github.com/vibecodezero/subscriber-service/internal/auth"
	"github.com/vibecodezero/subscriber-service/internal/config"
	apperrors "github.com/vibecodezero/subscriber-service/pkg/util"
)

// AdminHandler issues bearer tokens for the admin surface.
type AdminHandler struct {
	tokens *auth.TokenManager
	cfg    config.AdminConfig
}

// NewAdminHandler constructs handler.
func NewAdminHandler(tokens *auth.TokenManager, cfg config.AdminConfig) *AdminHandler {
	return &AdminHandler{tokens: tokens, cfg: cfg}
}

// Login handles POST /api/admin/login.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	if h.cfg.PasswordHash == "" {
		return apperrors.NewUnauthorized("admin access is not configured")
	}

	var req dto.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Password == "" {
		return apperrors.NewValidationError("password required", nil)
	}

	if err := auth.ComparePassword(h.cfg.PasswordHash, req.Password); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateToken()
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	return c.JSON(dto.AdminLoginResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
