package cache

import (
	"sort"
	"sync"
)

// Resource binds one API route to the role allowed to call it.
type Resource struct {
	Code   string
	Path   string
	Method string
	Role   string
}

// RbacRolesCache stores resources per role.
type RbacRolesCache struct {
	mu        sync.RWMutex
	resources map[string][]Resource
}

func NewRbacRolesCache() *RbacRolesCache {
	return &RbacRolesCache{resources: make(map[string][]Resource)}
}

func (c *RbacRolesCache) Add(role string, r Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[role] = append(c.resources[role], r)
}

func (c *RbacRolesCache) ResourcesFor(roles []string) []Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Resource, 0)
	for _, role := range roles {
		out = append(out, c.resources[role]...)
	}
	return out
}

// PermissionCodes returns the sorted, de-duplicated resource codes of roles.
func (c *RbacRolesCache) PermissionCodes(roles []string) []string {
	seen := make(map[string]struct{})
	for _, r := range c.ResourcesFor(roles) {
		seen[r.Code] = struct{}{}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
