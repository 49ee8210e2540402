package rbac

import (
	"slices"
	"strings"

	"fleamarket/infrastructure/cache"
)

const (
	RoleClerk    = "clerk"
	RoleOverseer = "overseer"
)

// Rbac registers API resources per role.
type Rbac struct {
	cache *cache.RbacRolesCache
}

func New(c *cache.RbacRolesCache) *Rbac {
	return &Rbac{cache: c}
}

// Add allows role to call method on path. Overseers inherit every clerk
// resource.
func (r *Rbac) Add(role, code, method, path string) {
	if r == nil || r.cache == nil {
		return
	}
	roles := []string{role}
	if role == RoleClerk {
		roles = append(roles, RoleOverseer)
	}
	for _, role := range roles {
		r.cache.Add(role, cache.Resource{
			Role:   role,
			Code:   code,
			Method: strings.ToUpper(method),
			Path:   path,
		})
	}
}

// Allowed reports whether any of roles may call method on urlPath.
func (r *Rbac) Allowed(roles []string, urlPath, method string) bool {
	if r == nil || r.cache == nil || len(roles) == 0 {
		return false
	}
	return ValidateResourceAccess(r.cache.ResourcesFor(roles), urlPath, method)
}

func IsOverseer(roles []string) bool {
	return slices.Contains(roles, RoleOverseer)
}

func ValidateResourceAccess(resources []cache.Resource, urlPath, method string) bool {
	method = strings.ToUpper(method)
	for _, res := range resources {
		if res.Method != method {
			continue
		}
		if matchPath(res.Path, urlPath) {
			return true
		}
	}
	return false
}

func matchPath(pattern, path string) bool {
	if pattern == path {
		return true
	}

	patternSeg := strings.Split(strings.Trim(pattern, "/"), "/")
	pathSeg := strings.Split(strings.Trim(path, "/"), "/")

	// Segment wildcard: /api/receipt/*/pdf.
	if len(patternSeg) == len(pathSeg) {
		for i := range patternSeg {
			if patternSeg[i] != "*" && patternSeg[i] != pathSeg[i] {
				return false
			}
		}
		return true
	}

	// Trailing wildcard matches any deeper suffix.
	if last := len(patternSeg) - 1; last >= 0 && patternSeg[last] == "*" {
		prefix := "/" + strings.Join(patternSeg[:last], "/")
		return strings.HasPrefix("/"+strings.Trim(path, "/"), prefix+"/")
	}

	return false
}
