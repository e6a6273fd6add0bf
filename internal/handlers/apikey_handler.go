package handlers

import (
	"net/http"

	"flagforge/internal/api/middleware"
	"flagforge/internal/api/validator"
	"flagforge/internal/apikeys"
	"flagforge/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

type APIKeyHandler struct {
	service *apikeys.Service
	log     *logger.Logger
}

func NewAPIKeyHandler(service *apikeys.Service) *APIKeyHandler {
	return &APIKeyHandler{service: service, log: logger.New("APIKeyHandler")}
}

// Create
// @Summary Issue a new API key
// @Description The plaintext key appears in this response only; it is
// @Description never stored and cannot be retrieved again.
// @Accept json
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Router /api-keys [post]
func (h *APIKeyHandler) Create(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing credentials")
	}

	var req validator.APIKeyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	key, plaintext, err := h.service.Issue(c.Request().Context(), req.Name, req.Scopes, req.ExpiresAt, principal.ID)
	if err != nil {
		return err
	}

	h.log.Info("🔑 API key %s issued by %s", key.Name, principal.Email)
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"key":       key,
		"plaintext": plaintext,
	})
}

// List
// @Summary List API keys without secrets
// @Produce json
// @Success 200 {array} models.APIKey
// @Router /api-keys [get]
func (h *APIKeyHandler) List(c echo.Context) error {
	keys, err := h.service.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, keys)
}

// Revoke
// @Summary Revoke an API key
// @Success 204
// @Router /api-keys/{id} [delete]
func (h *APIKeyHandler) Revoke(c echo.Context) error {
	if err := h.service.Revoke(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
