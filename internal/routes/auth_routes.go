package routes

import (
	"flagforge/internal/handlers"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// SetupAuthRoutes registers the unauthenticated login endpoint.
func SetupAuthRoutes(e *echo.Echo, db *gorm.DB) {
	authHandler := handlers.NewAuthHandler(db)

	auth := e.Group("/api/v1/auth")
	auth.POST("/login", authHandler.Login)
}
