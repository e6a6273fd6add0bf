package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type User struct {
	Base
	Email    string   `gorm:"uniqueIndex;not null" json:"email" validate:"required,email"`
	Password string   `gorm:"not null" json:"-"`
	Name     string   `json:"name"`
	Roles    []Role   `gorm:"many2many:user_role_assignments;" json:"roles,omitempty"`
	APIKeys  []APIKey `gorm:"foreignKey:CreatedByID" json:"-"`
	Provider string   `gorm:"default:'local'" json:"provider"` // 'local', 'oidc', etc.
}

// Permission grants a set of actions on a single resource. Resource "*"
// matches every resource, an action "*" matches every action.
type Permission struct {
	Resource string   `json:"resource" validate:"required"`
	Actions  []string `json:"actions" validate:"required,min=1"`
}

// PermissionList is stored as a jsonb column on roles.
type PermissionList []Permission

func (p PermissionList) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *PermissionList) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		*p = nil
		return nil
	default:
		return fmt.Errorf("unsupported type for PermissionList: %T", value)
	}
}

type Role struct {
	Base
	Name        string         `gorm:"uniqueIndex;not null" json:"name" validate:"required,min=2"`
	Description string         `json:"description"`
	Permissions PermissionList `gorm:"type:jsonb" json:"permissions" validate:"required,min=1,dive"`
	IsBuiltin   bool           `gorm:"not null;default:false" json:"isBuiltin"`
}

// UserRoleAssignment joins users to roles. A user's role set is always
// replaced as a whole inside one transaction, never edited row by row.
type UserRoleAssignment struct {
	UserID    string    `gorm:"type:uuid;primaryKey" json:"userId"`
	RoleID    string    `gorm:"type:uuid;primaryKey" json:"roleId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ScopeList is stored as a jsonb column on API keys. Entries are
// "resource:action" pairs.
type ScopeList []string

func (s ScopeList) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *ScopeList) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	case nil:
		*s = nil
		return nil
	default:
		return fmt.Errorf("unsupported type for ScopeList: %T", value)
	}
}

// APIKey is a machine credential. Only the bcrypt hash of the secret is
// stored; the prefix exists for lookup and display.
type APIKey struct {
	Base
	Name        string     `gorm:"not null" json:"name" validate:"required,min=2"`
	Prefix      string     `gorm:"size:8;index;not null" json:"prefix"`
	Hash        string     `gorm:"not null" json:"-"`
	Scopes      ScopeList  `gorm:"type:jsonb" json:"scopes"`
	CreatedByID *string    `gorm:"type:uuid" json:"createdById,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
}

// Expired reports whether the key is past its expiry at the given instant.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}
