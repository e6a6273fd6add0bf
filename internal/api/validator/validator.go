package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"flagforge/internal/models"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ValidationErrors wraps the validator's ValidationErrors
type ValidationErrors []playgroundvalidator.FieldError

// CustomValidator wraps go-playground/validator
type CustomValidator struct {
	validator *playgroundvalidator.Validate
}

// NewValidator creates a new validator instance
func NewValidator() echo.Validator {
	v := playgroundvalidator.New()

	// Report field names from json tags
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Register custom validations
	err := v.RegisterValidation("cr_decision", validateDecision)
	if err != nil {
		return nil
	}
	err = v.RegisterValidation("resource_type", validateResourceType)
	if err != nil {
		return nil
	}
	err = v.RegisterValidation("scope", validateScope)
	if err != nil {
		return nil
	}

	return &CustomValidator{validator: v}
}

// Custom validation functions
func validateDecision(fl playgroundvalidator.FieldLevel) bool {
	decision := fl.Field().String()
	return decision == string(models.DecisionApproved) || decision == string(models.DecisionRejected)
}

func validateResourceType(fl playgroundvalidator.FieldLevel) bool {
	switch fl.Field().String() {
	case models.ResourceFlag, models.ResourceProject, models.ResourceFlagSet, models.ResourceSegment, models.ResourceSettings:
		return true
	default:
		return false
	}
}

// validateScope accepts "resource:action" pairs, with "*" allowed on
// either side.
func validateScope(fl playgroundvalidator.FieldLevel) bool {
	parts := strings.SplitN(fl.Field().String(), ":", 2)
	return len(parts) == 2 && parts[0] != "" && parts[1] != ""
}

// Validate implements echo.Validator interface
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		var validationErrors playgroundvalidator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return ValidationErrors(validationErrors)
		}
		return err
	}
	return nil
}

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var fields []string
	for _, err := range ve {
		fields = append(fields, err.Field())
	}
	return fmt.Sprintf("validation failed on fields: %s", strings.Join(fields, ", "))
}

// LoginRequest Request validation structs based on models
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangeRequestRequest struct {
	Title          string          `json:"title" validate:"required,min=2"`
	Description    string          `json:"description"`
	Project        string          `json:"project"`
	FlagKey        string          `json:"flagKey" validate:"required"`
	ResourceType   string          `json:"resourceType" validate:"omitempty,resource_type"`
	ProposedConfig json.RawMessage `json:"proposedConfig" validate:"required"`
}

type ReviewRequest struct {
	Decision string `json:"decision" validate:"required,cr_decision"`
	Comment  string `json:"comment"`
}

type APIKeyRequest struct {
	Name      string     `json:"name" validate:"required,min=2"`
	Scopes    []string   `json:"scopes" validate:"required,min=1,dive,scope"`
	ExpiresAt *time.Time `json:"expiresAt" validate:"omitempty,gt"`
}

type PermissionRequest struct {
	Resource string   `json:"resource" validate:"required"`
	Actions  []string `json:"actions" validate:"required,min=1"`
}

type RoleRequest struct {
	Name        string              `json:"name" validate:"required,min=2"`
	Description string              `json:"description"`
	Permissions []PermissionRequest `json:"permissions" validate:"required,min=1,dive"`
}

type AssignRolesRequest struct {
	RoleIDs []string `json:"roleIds" validate:"required,dive,uuid"`
}
