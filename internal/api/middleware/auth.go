package middleware

import (
	"net/http"
	"strings"

	"flagforge/internal/apikeys"
	"flagforge/internal/models"
	"flagforge/internal/rbac"
	"flagforge/internal/utils"
	"flagforge/internal/utils/logger"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

var log = logger.New("auth_middleware")

const principalKey = "principal"

// AuthMiddleware authenticates every request on the protected API group.
// Two credential forms are accepted: a JWT bearer token for humans and an
// X-API-KEY header for machine clients. Both resolve to an rbac.Principal;
// handlers never see the raw credential.
type AuthMiddleware struct {
	db   *gorm.DB
	keys *apikeys.Service
}

func NewAuthMiddleware(db *gorm.DB, keys *apikeys.Service) *AuthMiddleware {
	return &AuthMiddleware{db: db, keys: keys}
}

func (m *AuthMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if key := c.Request().Header.Get("X-API-KEY"); key != "" {
				return m.authenticateAPIKey(c, key, next)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing credentials")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			return m.authenticateJWT(c, tokenParts[1], next)
		}
	}
}

// authenticateJWT verifies the token and loads the user's roles from the
// database. Roles are deliberately not embedded in the token: a role
// change takes effect on the next request, not at token expiry.
func (m *AuthMiddleware) authenticateJWT(c echo.Context, tokenString string, next echo.HandlerFunc) error {
	claims, err := utils.ParseJWT(tokenString)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	var user models.User
	if err := m.db.Preload("Roles").First(&user, "id = ?", claims.UserID).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not found")
	}

	c.Set(principalKey, rbac.Principal{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Roles: user.Roles,
	})
	return next(c)
}

// authenticateAPIKey validates the candidate against the stored hash. The
// key's scopes are synthesized into a role so permission checks run the
// same path as for users.
func (m *AuthMiddleware) authenticateAPIKey(c echo.Context, candidate string, next echo.HandlerFunc) error {
	key, err := m.keys.Validate(c.Request().Context(), candidate)
	if err != nil {
		log.Warn("rejected API key from %s", c.RealIP())
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid API key")
	}

	c.Set(principalKey, rbac.Principal{
		ID:       key.ID,
		Name:     key.Name,
		Roles:    []models.Role{rbac.ScopeRole(key.Scopes)},
		IsAPIKey: true,
	})
	return next(c)
}

// GetPrincipal returns the authenticated principal, or false when the
// request never passed the auth middleware.
func GetPrincipal(c echo.Context) (rbac.Principal, bool) {
	principal, ok := c.Get(principalKey).(rbac.Principal)
	return principal, ok
}
