package profiles

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vidfriends/friends/internal/models"
)

// ErrLookupUnavailable indicates no profile source is configured.
var ErrLookupUnavailable = errors.New("profile lookup unavailable")

// Source resolves the public profile of an account.
type Source interface {
	PublicProfile(ctx context.Context, accountID string) (models.Profile, error)
}

type cacheEntry struct {
	profile models.Profile
	expires time.Time
}

// CachingLookup wraps another Source with a TTL-based in-memory cache. Failed
// lookups are not cached.
type CachingLookup struct {
	base Source
	ttl  time.Duration
	now  func() time.Time

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCachingLookup returns a Source that caches profiles for the provided TTL.
func NewCachingLookup(base Source, ttl time.Duration) *CachingLookup {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingLookup{
		base:  base,
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]cacheEntry),
	}
}

// PublicProfile returns a cached profile when fresh, otherwise it delegates to
// the underlying source and stores the result.
func (c *CachingLookup) PublicProfile(ctx context.Context, accountID string) (models.Profile, error) {
	if c == nil || c.base == nil {
		return models.Profile{}, ErrLookupUnavailable
	}

	now := c.now()

	c.mu.RLock()
	entry, ok := c.items[accountID]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.profile, nil
	}

	profile, err := c.base.PublicProfile(ctx, accountID)
	if err != nil {
		return models.Profile{}, err
	}

	c.mu.Lock()
	c.items[accountID] = cacheEntry{profile: profile, expires: now.Add(c.ttl)}
	c.evictExpiredLocked(now)
	c.mu.Unlock()

	return profile, nil
}

func (c *CachingLookup) evictExpiredLocked(now time.Time) {
	for key, entry := range c.items {
		if !now.Before(entry.expires) {
			delete(c.items, key)
		}
	}
}
