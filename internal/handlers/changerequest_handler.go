package handlers

import (
	"net/http"

	"flagforge/internal/api/middleware"
	"flagforge/internal/api/validator"
	"flagforge/internal/changerequests"
	"flagforge/internal/models"
	"flagforge/internal/utils/logger"

	"github.com/labstack/echo/v4"
)

type ChangeRequestHandler struct {
	service *changerequests.Service
	log     *logger.Logger
}

func NewChangeRequestHandler(service *changerequests.Service) *ChangeRequestHandler {
	return &ChangeRequestHandler{service: service, log: logger.New("ChangeRequestHandler")}
}

// Propose
// @Summary Propose a configuration change
// @Accept json
// @Produce json
// @Success 201 {object} models.ChangeRequest
// @Router /change-requests [post]
func (h *ChangeRequestHandler) Propose(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing credentials")
	}

	var req validator.ChangeRequestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	cr, err := h.service.Propose(c.Request().Context(), principal, changerequests.ProposeInput{
		Title:          req.Title,
		Description:    req.Description,
		Project:        req.Project,
		FlagKey:        req.FlagKey,
		ResourceType:   req.ResourceType,
		ProposedConfig: req.ProposedConfig,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cr)
}

// List
// @Summary List change requests, newest first
// @Produce json
// @Success 200 {array} models.ChangeRequest
// @Router /change-requests [get]
func (h *ChangeRequestHandler) List(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing credentials")
	}

	filter := changerequests.ListFilter{
		Status:  models.ChangeRequestStatus(c.QueryParam("status")),
		Project: c.QueryParam("project"),
		FlagKey: c.QueryParam("flagKey"),
	}

	requests, err := h.service.List(c.Request().Context(), principal, filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, requests)
}

// Get
// @Summary Fetch one change request with its reviews
// @Produce json
// @Success 200 {object} models.ChangeRequest
// @Router /change-requests/{id} [get]
func (h *ChangeRequestHandler) Get(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing credentials")
	}

	cr, err := h.service.Get(c.Request().Context(), principal, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cr)
}

// Review
// @Summary Submit an approval or rejection
// @Accept json
// @Produce json
// @Success 200 {object} models.ChangeRequest
// @Router /change-requests/{id}/reviews [post]
func (h *ChangeRequestHandler) Review(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing credentials")
	}

	var req validator.ReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	cr, err := h.service.Review(c.Request().Context(), principal, c.Param("id"), models.ReviewDecision(req.Decision), req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cr)
}

// Apply
// @Summary Publish the proposed configuration and mark the request applied
// @Produce json
// @Success 200 {object} models.ChangeRequest
// @Router /change-requests/{id}/apply [post]
func (h *ChangeRequestHandler) Apply(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing credentials")
	}

	cr, err := h.service.Apply(c.Request().Context(), principal, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cr)
}

// Cancel
// @Summary Cancel a pending or approved request
// @Produce json
// @Success 200 {object} models.ChangeRequest
// @Router /change-requests/{id}/cancel [post]
func (h *ChangeRequestHandler) Cancel(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing credentials")
	}

	cr, err := h.service.Cancel(c.Request().Context(), principal, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cr)
}
