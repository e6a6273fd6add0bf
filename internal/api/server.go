package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-advanced-admin/admin"
	admingorm "github.com/go-advanced-admin/orm-gorm"
	adminecho "github.com/go-advanced-admin/web-echo"
	"golang.org/x/time/rate"

	"flagforge/internal/api/validator"
	"flagforge/internal/apikeys"
	"flagforge/internal/apperrors"
	"flagforge/internal/changerequests"
	"flagforge/internal/config"
	"flagforge/internal/gitops"

	console "flagforge/internal/utils/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

// Deps are the wired services the HTTP layer exposes.
type Deps struct {
	ChangeRequests *changerequests.Service
	APIKeys        *apikeys.Service
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	db     *gorm.DB
	deps   Deps
}

var log = console.New("API-Server")

// NewServer @title FlagForge API
// @version 1.0
// @description Git-backed change control for feature flag configuration.
// @host localhost:8080
// @BasePath /api/v1
func NewServer(cfg *config.Config, db *gorm.DB, deps Deps) *Server {
	e := echo.New()

	// Create custom validator
	e.Validator = validator.NewValidator()

	// Configure middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentLength, "X-API-KEY"},
	}))
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 60 * time.Second,
	}))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(20))))

	// Custom error handler
	e.HTTPErrorHandler = customHTTPErrorHandler

	s := &Server{
		echo:   e,
		config: cfg,
		db:     db,
		deps:   deps,
	}

	// Admin panel over the GORM models, for operators
	gormIntegrator := admingorm.NewIntegrator(db)
	echoIntegrator := adminecho.NewIntegrator(e.Group(""))

	permissionChecker := func(
		request admin.PermissionRequest, ctx interface{},
	) (bool, error) {
		// The panel binds to localhost in every known deployment; requests
		// that reach it are trusted
		return true, nil
	}

	adminPanel, err := admin.NewPanel(
		gormIntegrator, echoIntegrator, permissionChecker, nil,
	)
	if err != nil {
		log.Warn("Failed to create admin panel: %v", err)
	} else {
		if _, err := adminPanel.RegisterApp("FlagForge", "FlagForge Admin Panel", nil); err != nil {
			log.Warn("Failed to register admin app: %v", err)
		}
	}

	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Health check endpoint
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"time":    time.Now().Format(time.RFC3339),
	})
}

// customHTTPErrorHandler translates the error taxonomy into status codes
// in one place. Handlers and services below the boundary return plain
// errors.
func customHTTPErrorHandler(err error, c echo.Context) {
	var (
		code    = http.StatusInternalServerError
		message interface{}
	)

	var httpErr *echo.HTTPError
	var validationErrs validator.ValidationErrors
	var validationErr *apperrors.ValidationError
	var publishErr *gitops.PublishError

	switch {
	case errors.As(err, &httpErr):
		code = httpErr.Code
		message = httpErr.Message
	case errors.As(err, &validationErrs):
		code = http.StatusBadRequest
		message = formatValidationErrors(validationErrs)
	case errors.As(err, &validationErr):
		code = http.StatusBadRequest
		message = validationErr.Error()
	case errors.Is(err, apperrors.ErrAuth):
		code = http.StatusUnauthorized
		message = "authentication failed"
	case errors.Is(err, apperrors.ErrPermissionDenied):
		code = http.StatusForbidden
		message = "permission denied"
	case errors.Is(err, apperrors.ErrNotFound):
		code = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, apperrors.ErrImmutableRole):
		// distinct from a permission failure: the caller may well have
		// permission, the role itself is protected
		code = http.StatusConflict
		message = apperrors.ErrImmutableRole.Error()
	case errors.Is(err, apperrors.ErrConflict):
		code = http.StatusConflict
		message = err.Error()
	case errors.As(err, &publishErr):
		code = http.StatusBadGateway
		message = publishErr.Error()
	default:
		message = http.StatusText(code)
	}

	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, map[string]interface{}{
				"error": message,
				"code":  code,
				"time":  time.Now().Format(time.RFC3339),
			})
		}
		if err != nil {
			c.Echo().Logger.Error(err)
		}
	}
}

// formatValidationErrors formats validation errors into a map
func formatValidationErrors(errors validator.ValidationErrors) map[string]string {
	errMap := make(map[string]string)
	for _, err := range errors {
		field := err.Field()
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			errMap[field] = fmt.Sprintf("%s is required", field)
		case "email":
			errMap[field] = fmt.Sprintf("%s must be a valid email", field)
		case "min":
			errMap[field] = fmt.Sprintf("%s must be at least %s", field, param)
		case "max":
			errMap[field] = fmt.Sprintf("%s must be at most %s", field, param)
		case "uuid":
			errMap[field] = fmt.Sprintf("%s must be a valid UUID", field)
		case "gt":
			errMap[field] = fmt.Sprintf("%s must be in the future", field)
		case "cr_decision":
			errMap[field] = fmt.Sprintf("%s must be 'approved' or 'rejected'", field)
		case "resource_type":
			errMap[field] = fmt.Sprintf("%s is not a known resource type", field)
		case "scope":
			errMap[field] = fmt.Sprintf("%s entries must be 'resource:action' pairs", field)
		default:
			errMap[field] = fmt.Sprintf("%s failed validation: %s", field, tag)
		}
	}
	return errMap
}
