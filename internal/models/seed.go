package models

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	console "flagforge/internal/utils/logger"

	"gorm.io/gorm"
)

var log = console.New("SEEDER")

// nonUserResources is every resource except user management. The admin
// built-in gets all actions on these but not on "user".
var nonUserResources = []string{
	ResourceFlag,
	ResourceProject,
	ResourceFlagSet,
	ResourceSegment,
	ResourceSettings,
	ResourceChangeRequest,
	ResourceAPIKey,
	ResourceRole,
}

// BuiltinRoles returns the fixed definitions of the built-in roles.
func BuiltinRoles() []Role {
	adminPerms := make(PermissionList, 0, len(nonUserResources))
	for _, res := range nonUserResources {
		adminPerms = append(adminPerms, Permission{Resource: res, Actions: []string{ActionAll}})
	}

	return []Role{
		{
			Name:        RoleViewer,
			Description: "Read-only access to every resource",
			Permissions: PermissionList{
				{Resource: "*", Actions: []string{ActionRead}},
			},
			IsBuiltin: true,
		},
		{
			Name:        RoleEditor,
			Description: "Edit flags, projects, flag sets and segments",
			Permissions: PermissionList{
				{Resource: ResourceFlag, Actions: []string{ActionRead, ActionWrite, ActionDelete}},
				{Resource: ResourceProject, Actions: []string{ActionRead, ActionWrite, ActionDelete}},
				{Resource: ResourceFlagSet, Actions: []string{ActionRead, ActionWrite}},
				{Resource: ResourceSegment, Actions: []string{ActionRead, ActionWrite}},
				{Resource: ResourceSettings, Actions: []string{ActionRead}},
			},
			IsBuiltin: true,
		},
		{
			Name:        RoleAdmin,
			Description: "All actions on every resource except user management",
			Permissions: adminPerms,
			IsBuiltin:   true,
		},
		{
			Name:        RoleOwner,
			Description: "All actions on every resource including user management",
			Permissions: PermissionList{
				{Resource: "*", Actions: []string{ActionAll}},
			},
			IsBuiltin: true,
		},
	}
}

// SeedBuiltinRoles inserts the built-in roles if absent. Re-seeding is
// idempotent: existing rows are matched by name and left untouched.
func SeedBuiltinRoles(db *gorm.DB) error {
	for _, role := range BuiltinRoles() {
		if err := db.Where(Role{Name: role.Name}).
			Attrs(Role{Description: role.Description, Permissions: role.Permissions, IsBuiltin: true}).
			FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role.Name, err)
		}
	}
	return nil
}

// CreateOwnerFromEnv creates the initial owner account when no user holds
// the owner role yet. Controlled by OWNER_EMAIL / OWNER_PASSWORD /
// OWNER_NAME.
func CreateOwnerFromEnv(db *gorm.DB) error {
	var ownerRole Role
	if err := db.Where("name = ?", RoleOwner).First(&ownerRole).Error; err != nil {
		return fmt.Errorf("owner role not seeded: %w", err)
	}

	var count int64
	if err := db.Model(&UserRoleAssignment{}).Where("role_id = ?", ownerRole.ID).Count(&count).Error; err != nil {
		return err
	}
	log.Info("Owner assignment count: %d", count)
	if count > 0 {
		return nil
	}

	email, ok := os.LookupEnv("OWNER_EMAIL")
	if !ok {
		return fmt.Errorf("OWNER_EMAIL not set")
	}

	password, ok := os.LookupEnv("OWNER_PASSWORD")
	if !ok {
		return fmt.Errorf("OWNER_PASSWORD not set")
	}

	name := os.Getenv("OWNER_NAME")

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %v", err)
	}

	user := User{
		Email:    email,
		Name:     name,
		Password: string(hashedPassword),
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(User{Email: email}).Attrs(user).FirstOrCreate(&user).Error; err != nil {
			return fmt.Errorf("failed to create owner user: %v", err)
		}
		assignment := UserRoleAssignment{UserID: user.ID, RoleID: ownerRole.ID}
		if err := tx.Where(assignment).FirstOrCreate(&assignment).Error; err != nil {
			return fmt.Errorf("failed to assign owner role: %v", err)
		}
		return nil
	})
}
