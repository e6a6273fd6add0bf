package handlers

import (
	"errors"
	"net/http"

	"flagforge/internal/api/validator"
	"flagforge/internal/apperrors"
	"flagforge/internal/models"
	"flagforge/internal/utils/logger"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type RoleHandler struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRoleHandler(db *gorm.DB) *RoleHandler {
	return &RoleHandler{db: db, log: logger.New("RoleHandler")}
}

// List
// @Summary List all roles
// @Produce json
// @Success 200 {array} models.Role
// @Router /roles [get]
func (h *RoleHandler) List(c echo.Context) error {
	var roles []models.Role
	if err := h.db.Order("name ASC").Find(&roles).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, roles)
}

// Create
// @Summary Create a custom role
// @Accept json
// @Produce json
// @Success 201 {object} models.Role
// @Router /roles [post]
func (h *RoleHandler) Create(c echo.Context) error {
	var req validator.RoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if models.IsBuiltinRoleName(req.Name) {
		return apperrors.ErrImmutableRole
	}

	role := models.Role{
		Name:        req.Name,
		Description: req.Description,
		Permissions: toPermissionList(req.Permissions),
	}
	if err := h.db.Create(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Conflict("role %s already exists", req.Name)
		}
		return err
	}

	h.log.Info("➕ role %s created", role.Name)
	return c.JSON(http.StatusCreated, role)
}

// Update
// @Summary Replace a custom role's description and permissions
// @Accept json
// @Produce json
// @Success 200 {object} models.Role
// @Router /roles/{id} [put]
func (h *RoleHandler) Update(c echo.Context) error {
	var req validator.RoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var role models.Role
	if err := h.db.First(&role, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("role", c.Param("id"))
		}
		return err
	}
	if role.IsBuiltin {
		return apperrors.ErrImmutableRole
	}
	if models.IsBuiltinRoleName(req.Name) {
		return apperrors.ErrImmutableRole
	}

	role.Name = req.Name
	role.Description = req.Description
	role.Permissions = toPermissionList(req.Permissions)
	if err := h.db.Save(&role).Error; err != nil {
		return err
	}

	h.log.Info("✏️ role %s updated", role.Name)
	return c.JSON(http.StatusOK, role)
}

// Delete
// @Summary Delete a custom role and its assignments
// @Success 204
// @Router /roles/{id} [delete]
func (h *RoleHandler) Delete(c echo.Context) error {
	var role models.Role
	if err := h.db.First(&role, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("role", c.Param("id"))
		}
		return err
	}
	if role.IsBuiltin {
		return apperrors.ErrImmutableRole
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", role.ID).Delete(&models.UserRoleAssignment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&role).Error
	})
	if err != nil {
		return err
	}

	h.log.Info("🗑️ role %s deleted", role.Name)
	return c.NoContent(http.StatusNoContent)
}

// AssignToUser
// @Summary Replace a user's role assignments
// @Description The assignment set is replaced atomically; a failure
// @Description leaves the previous assignments intact.
// @Accept json
// @Produce json
// @Success 200 {object} models.User
// @Router /users/{id}/roles [put]
func (h *RoleHandler) AssignToUser(c echo.Context) error {
	var req validator.AssignRolesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("user", c.Param("id"))
		}
		return err
	}

	var roles []models.Role
	if err := h.db.Find(&roles, "id IN ?", req.RoleIDs).Error; err != nil {
		return err
	}
	if len(roles) != len(req.RoleIDs) {
		return apperrors.Validation("roleIds", "one or more roles do not exist")
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.UserRoleAssignment{}).Error; err != nil {
			return err
		}
		for _, role := range roles {
			assignment := models.UserRoleAssignment{UserID: user.ID, RoleID: role.ID}
			if err := tx.Create(&assignment).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := h.db.Preload("Roles").First(&user, "id = ?", user.ID).Error; err != nil {
		return err
	}

	h.log.Info("👥 roles of %s replaced (%d assigned)", user.Email, len(roles))
	return c.JSON(http.StatusOK, user)
}

func toPermissionList(perms []validator.PermissionRequest) models.PermissionList {
	out := make(models.PermissionList, 0, len(perms))
	for _, p := range perms {
		out = append(out, models.Permission{Resource: p.Resource, Actions: p.Actions})
	}
	return out
}
