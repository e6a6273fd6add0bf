package api

import (
	"net/http"

	appmiddleware "flagforge/internal/api/middleware"
	"flagforge/internal/handlers"
	"flagforge/internal/models"
	"flagforge/internal/routes"

	_ "flagforge/docs/swagger"

	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

func (s *Server) registerRoutes() {
	s.echo.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "FlagForge")
	})
	// Health check
	// @Summary Health check
	// @Description Check if the server is running
	// @Accept json
	// @Produce json
	// @Success 200 {object} map[string]string "OK"
	// @Router /health [get]
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// Public auth routes
	routes.SetupAuthRoutes(s.echo, s.db)

	// API v1 group; everything below authenticates via JWT or API key
	api := s.echo.Group("/api/v1")
	auth := appmiddleware.NewAuthMiddleware(s.db, s.deps.APIKeys)
	api.Use(auth.Middleware())

	authHandler := handlers.NewAuthHandler(s.db)
	api.GET("/users/me", authHandler.Me)

	// Change requests authorize inside the service layer: permission
	// depends on the operation, not just the route.
	crHandler := handlers.NewChangeRequestHandler(s.deps.ChangeRequests)
	cr := api.Group("/change-requests")
	cr.POST("", crHandler.Propose)
	cr.GET("", crHandler.List)
	cr.GET("/:id", crHandler.Get)
	cr.POST("/:id/reviews", crHandler.Review)
	cr.POST("/:id/apply", crHandler.Apply)
	cr.POST("/:id/cancel", crHandler.Cancel)

	keyHandler := handlers.NewAPIKeyHandler(s.deps.APIKeys)
	keys := api.Group("/api-keys")
	keys.POST("", keyHandler.Create, appmiddleware.Require(models.ResourceAPIKey, models.ActionWrite))
	keys.GET("", keyHandler.List, appmiddleware.Require(models.ResourceAPIKey, models.ActionRead))
	keys.DELETE("/:id", keyHandler.Revoke, appmiddleware.Require(models.ResourceAPIKey, models.ActionDelete))

	roleHandler := handlers.NewRoleHandler(s.db)
	roles := api.Group("/roles")
	roles.GET("", roleHandler.List, appmiddleware.Require(models.ResourceRole, models.ActionRead))
	roles.POST("", roleHandler.Create, appmiddleware.Require(models.ResourceRole, models.ActionWrite))
	roles.PUT("/:id", roleHandler.Update, appmiddleware.Require(models.ResourceRole, models.ActionWrite))
	roles.DELETE("/:id", roleHandler.Delete, appmiddleware.Require(models.ResourceRole, models.ActionDelete))

	api.PUT("/users/:id/roles", roleHandler.AssignToUser, appmiddleware.Require(models.ResourceUser, models.ActionWrite))
}
