package http

import (
	"strings"
)

// apiPrefix is stripped before deriving the resource segment.
const apiPrefix = "/api/v1/"

// adminPermissions maps administrative resource segments to the permission
// guarding them, overriding the verb-based derivation.
var adminPermissions = map[string]string{
	"keys":     "admin:apikeys",
	"users":    "admin:users",
	"security": "admin:system",
}

// PermissionFor derives the permission required for a request from its method
// and path. Administrative resources map to admin:* permissions; everything
// else maps the HTTP verb onto the first path segment: GET reads, DELETE
// deletes, and mutating verbs write. Paths outside the API prefix require no
// permission.
func PermissionFor(method, path string) string {
	if !strings.HasPrefix(path, apiPrefix) {
		return ""
	}

	rest := strings.TrimPrefix(path, apiPrefix)
	resource, _, _ := strings.Cut(rest, "/")
	if resource == "" {
		return ""
	}

	if perm, ok := adminPermissions[resource]; ok {
		return perm
	}
	// Auth endpoints (logout, session introspection) need a valid credential
	// but no role permission.
	if resource == "auth" {
		return ""
	}

	switch method {
	case "GET", "HEAD":
		return "read:" + resource
	case "DELETE":
		return "delete:" + resource
	default:
		return "write:" + resource
	}
}
