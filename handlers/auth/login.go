package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lingodeck/api/model"
	authutil "github.com/lingodeck/api/utils/auth"
	"github.com/lingodeck/api/utils/middleware"
	"github.com/lingodeck/api/utils/response"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var user model.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		// Same response for unknown email and wrong password
		return response.Unauthorized(c, "Invalid email or password")
	}

	if !authutil.CheckPassword(req.Password, user.PasswordHash) {
		return response.Unauthorized(c, "Invalid email or password")
	}

	return h.issueTokens(c, &user)
}

// Logout handles POST /api/v1/auth/logout. Bumping the token version
// invalidates every issued token, and live playback sessions are torn
// down so no timer keeps reporting progress for a signed-out user.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	if err := h.db.Model(user).
		Update("token_version", user.TokenVersion+1).Error; err != nil {
		return response.InternalServerError(c, "Failed to log out")
	}

	if h.onLogout != nil {
		h.onLogout(user.ID)
	}

	return response.SuccessWithMessage(c, "Logged out successfully", nil)
}
