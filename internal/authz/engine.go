// Package authz resolves roles to permission sets and hierarchy levels.
//
// The engine is a pure lookup/comparison component: the required permission
// for an operation is computed by the transport adapter and passed in. Role
// configuration is copied at construction and immutable afterwards. Lookups
// are total: unknown roles resolve to level 0 and an empty permission set.
package authz

import (
	"slices"
)

// Engine answers permission and hierarchy questions for roles.
type Engine struct {
	hierarchy   map[string]int
	permissions map[string][]string
}

// NewEngine creates an Engine from the role hierarchy and permission maps.
// Both maps are defensively copied so later mutation of the inputs cannot
// change authorization behavior.
func NewEngine(hierarchy map[string]int, permissions map[string][]string) *Engine {
	h := make(map[string]int, len(hierarchy))
	for role, level := range hierarchy {
		h[role] = level
	}

	p := make(map[string][]string, len(permissions))
	for role, perms := range permissions {
		p[role] = slices.Clone(perms)
	}

	return &Engine{hierarchy: h, permissions: p}
}

// GetPermissions returns the permission set configured for the role.
// Unknown roles get an empty set.
func (e *Engine) GetPermissions(role string) []string {
	perms, ok := e.permissions[role]
	if !ok {
		return []string{}
	}
	return slices.Clone(perms)
}

// HasPermission reports whether the role's permission set contains the
// required permission (exact string membership).
func (e *Engine) HasPermission(role, requiredPermission string) bool {
	if requiredPermission == "" {
		return false
	}
	return slices.Contains(e.permissions[role], requiredPermission)
}

// HierarchyLevel returns the configured level for the role, or 0 when unknown.
func (e *Engine) HierarchyLevel(role string) int {
	return e.hierarchy[role]
}

// SatisfiesHierarchy reports whether the actual role's level is at least the
// required role's level.
func (e *Engine) SatisfiesHierarchy(actualRole, requiredRole string) bool {
	return e.HierarchyLevel(actualRole) >= e.HierarchyLevel(requiredRole)
}
