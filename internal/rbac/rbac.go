// Package rbac evaluates whether a principal may perform an action on a
// resource. Evaluation is pure: roles are resolved by the caller (database
// for users, scope list for API keys) and permissions across roles are
// unioned, never layered.
package rbac

import (
	"strings"

	"flagforge/internal/models"
)

// Principal is an authenticated user or API key as seen by the permission
// engine.
type Principal struct {
	ID       string
	Email    string
	Name     string
	Roles    []models.Role
	IsAPIKey bool
}

// HasPermission reports whether any of the principal's roles grants the
// action on the resource. No roles means no permissions.
func HasPermission(roles []models.Role, resource, action string) bool {
	for _, role := range roles {
		for _, perm := range role.Permissions {
			if perm.Resource != "*" && perm.Resource != resource {
				continue
			}
			for _, a := range perm.Actions {
				if a == models.ActionAll || a == action {
					return true
				}
			}
		}
	}
	return false
}

// Can is the Principal-level convenience over HasPermission.
func (p Principal) Can(resource, action string) bool {
	return HasPermission(p.Roles, resource, action)
}

// ScopeRole synthesizes an unnamed role from an API key's scope list so
// keys flow through the same evaluation path as users. Scopes are
// "resource:action" pairs; "*:*" grants everything.
func ScopeRole(scopes []string) models.Role {
	perms := make(map[string][]string)
	for _, scope := range scopes {
		parts := strings.SplitN(scope, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		perms[parts[0]] = append(perms[parts[0]], parts[1])
	}

	role := models.Role{Name: "api-key-scopes"}
	for resource, actions := range perms {
		role.Permissions = append(role.Permissions, models.Permission{
			Resource: resource,
			Actions:  actions,
		})
	}
	return role
}
