package routing

import (
	"sync"
	"time"

	"github.com/caseline-io/caseline-backend/internal/models"
)

// RoleCacheTTL bounds how long a role lookup stays cached. The window is a
// business-rule constant, not configuration.
const RoleCacheTTL = time.Hour

type roleEntry struct {
	user      *models.User
	expiresAt time.Time
}

// RoleCache is a process-wide, time-bounded cache of "first user with this
// role". It is injected into the engine rather than held as package state,
// so tests get per-instance isolation and role-membership changes can be
// pushed through Invalidate.
type RoleCache struct {
	mu      sync.Mutex
	entries map[models.Role]roleEntry
	ttl     time.Duration
	clock   func() time.Time
}

// NewRoleCache creates a RoleCache with the standard TTL
func NewRoleCache() *RoleCache {
	return newRoleCache(RoleCacheTTL, time.Now)
}

func newRoleCache(ttl time.Duration, clock func() time.Time) *RoleCache {
	return &RoleCache{
		entries: make(map[models.Role]roleEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached user for a role, or false when absent or expired
func (c *RoleCache) Get(role models.Role) (*models.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[role]
	if !ok {
		return nil, false
	}
	if c.clock().After(entry.expiresAt) {
		delete(c.entries, role)
		return nil, false
	}
	return entry.user, true
}

// Put stores the user for a role with a fresh TTL
func (c *RoleCache) Put(role models.Role, user *models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[role] = roleEntry{
		user:      user,
		expiresAt: c.clock().Add(c.ttl),
	}
}

// Invalidate drops the entry for one role
func (c *RoleCache) Invalidate(role models.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, role)
}

// InvalidateAll drops every entry
func (c *RoleCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[models.Role]roleEntry)
}
