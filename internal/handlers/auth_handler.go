package handlers

import (
	"net/http"

	"flagforge/internal/api/middleware"
	"flagforge/internal/api/validator"
	"flagforge/internal/models"
	"flagforge/internal/utils"
	"flagforge/internal/utils/logger"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuthHandler(db *gorm.DB) *AuthHandler {
	return &AuthHandler{db: db, log: logger.New("AuthHandler")}
}

// Login
// @Summary Authenticate with email and password
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req validator.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var user models.User
	if err := h.db.Preload("Roles").First(&user, "email = ?", req.Email).Error; err != nil {
		// same response as a bad password; never reveal which part failed
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}

	token, err := utils.GenerateJWT(user)
	if err != nil {
		return h.log.Error("Failed to generate token ❌", err)
	}
	refresh, err := utils.GenerateRefreshToken(user)
	if err != nil {
		return h.log.Error("Failed to generate refresh token ❌", err)
	}

	h.log.Info("🔓 %s logged in", user.Email)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"token":        token,
		"refreshToken": refresh,
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

// Me returns the authenticated principal with its effective roles.
func (h *AuthHandler) Me(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing credentials")
	}

	roleNames := make([]string, 0, len(principal.Roles))
	for _, role := range principal.Roles {
		roleNames = append(roleNames, role.Name)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":       principal.ID,
		"email":    principal.Email,
		"name":     principal.Name,
		"roles":    roleNames,
		"isApiKey": principal.IsAPIKey,
	})
}
