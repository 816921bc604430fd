package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrAccessUnavailable wraps backing-store failures so callers can tell an
// outage apart from a genuine denial.
var ErrAccessUnavailable = errors.New("access decision unavailable")

// MembershipStore answers whether a user has an active membership in a project.
type MembershipStore interface {
	ActiveMembershipExists(ctx context.Context, projectID, userID int64) (bool, error)
}

type Checker struct {
	store  MembershipStore
	cache  Cache
	logger *slog.Logger

	// gen counts ClearAccessCache calls. A decision is cached only if no clear
	// happened between its store lookup and the write; mu orders the two.
	mu  sync.RWMutex
	gen uint64
}

func NewChecker(store MembershipStore, cache Cache, logger *slog.Logger) *Checker {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{store: store, cache: cache, logger: logger}
}

// Cache exposes the decision cache for health checks.
func (c *Checker) Cache() Cache {
	return c.cache
}

// CheckProjectAccess decides whether p may access projectID. Cached decisions
// win; otherwise admins are allowed and everyone else needs an active
// membership. Store failures return false and an error wrapping
// ErrAccessUnavailable, and are not cached.
func (c *Checker) CheckProjectAccess(ctx context.Context, p *Principal, projectID int64) (bool, error) {
	if p == nil || !p.Active {
		return false, nil
	}

	key := Key{UserID: p.ID, ProjectID: projectID}
	start := c.generation()

	allowed, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "access cache read failed, falling back to store",
			"user_id", p.ID, "project_id", projectID, "error", err)
	} else if found {
		return allowed, nil
	}

	if p.IsAdmin() {
		allowed = true
	} else {
		allowed, err = c.store.ActiveMembershipExists(ctx, projectID, p.ID)
		if err != nil {
			return false, fmt.Errorf("%w: membership lookup for user %d project %d: %v",
				ErrAccessUnavailable, p.ID, projectID, err)
		}
	}

	c.remember(ctx, key, allowed, start)
	return allowed, nil
}

func (c *Checker) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// remember caches the decision unless the cache was cleared after start.
func (c *Checker) remember(ctx context.Context, key Key, allowed bool, start uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.gen != start {
		c.logger.DebugContext(ctx, "access cache cleared during check, not caching",
			"user_id", key.UserID, "project_id", key.ProjectID)
		return
	}
	if err := c.cache.Set(ctx, key, allowed); err != nil {
		c.logger.WarnContext(ctx, "access cache write failed",
			"user_id", key.UserID, "project_id", key.ProjectID, "error", err)
	}
}

// HasProjectAccess is the fail-closed form of CheckProjectAccess: any error
// is logged and reported as no access.
func (c *Checker) HasProjectAccess(ctx context.Context, p *Principal, projectID int64) bool {
	allowed, err := c.CheckProjectAccess(ctx, p, projectID)
	if err != nil {
		c.logger.ErrorContext(ctx, "project access check failed",
			"user_id", p.ID, "project_id", projectID, "error", err)
		return false
	}
	return allowed
}

type clearScope struct {
	userID    *int64
	projectID *int64
}

type ClearOption func(*clearScope)

func ForUser(userID int64) ClearOption {
	return func(s *clearScope) { s.userID = &userID }
}

func ForProject(projectID int64) ClearOption {
	return func(s *clearScope) { s.projectID = &projectID }
}

// ClearAccessCache drops cached decisions. With no options everything is
// cleared; with both ForUser and ForProject exactly one entry; with one of
// them every entry of that user or project.
func (c *Checker) ClearAccessCache(ctx context.Context, opts ...ClearOption) error {
	var scope clearScope
	for _, opt := range opts {
		opt(&scope)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++

	var err error
	switch {
	case scope.userID != nil && scope.projectID != nil:
		err = c.cache.Delete(ctx, Key{UserID: *scope.userID, ProjectID: *scope.projectID})
	case scope.userID != nil:
		err = c.cache.DeleteUser(ctx, *scope.userID)
	case scope.projectID != nil:
		err = c.cache.DeleteProject(ctx, *scope.projectID)
	default:
		err = c.cache.Flush(ctx)
	}
	if err != nil {
		return fmt.Errorf("clear access cache: %w", err)
	}
	return nil
}
