package repositories

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultNegativeTTL bounds how long an unknown user is remembered
	DefaultNegativeTTL = 5 * time.Second
	// DefaultLookupTimeout bounds a shared lookup once it is detached from its callers
	DefaultLookupTimeout = 5 * time.Second
)

// cacheEntry represents a single cache entry with TTL. A nil memberships
// records a user the directory does not know.
type cacheEntry struct {
	memberships *Memberships
	insertedAt  time.Time
	element     *list.Element // For LRU tracking
}

// CachedDirectory wraps a DirectoryRepository with an in-memory LRU cache
// with TTL. Concurrent misses for the same user share one lookup, which runs
// detached from the caller that started it so one cancelled request does not
// fail the others. ErrNotFound is cached for NegativeTTL; other errors are
// never cached. Returned memberships are shared and must not be modified.
type CachedDirectory struct {
	next DirectoryRepository

	mu            sync.Mutex
	entries       map[uuid.UUID]*cacheEntry
	lruList       *list.List
	maxSize       int
	ttl           time.Duration
	negativeTTL   time.Duration
	lookupTimeout time.Duration
	hits          uint64
	misses        uint64

	group singleflight.Group
	now   func() time.Time
}

// CacheOption configures a CachedDirectory
type CacheOption func(*CachedDirectory)

// WithNegativeTTL sets how long ErrNotFound results are cached; zero disables it
func WithNegativeTTL(ttl time.Duration) CacheOption {
	return func(c *CachedDirectory) {
		if ttl >= 0 {
			c.negativeTTL = ttl
		}
	}
}

// WithLookupTimeout bounds each lookup against the wrapped repository
func WithLookupTimeout(timeout time.Duration) CacheOption {
	return func(c *CachedDirectory) {
		if timeout > 0 {
			c.lookupTimeout = timeout
		}
	}
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// NewCachedDirectory creates a cache in front of next. A non-positive
// maxSize or ttl disables caching and returns next unchanged.
func NewCachedDirectory(next DirectoryRepository, maxSize int, ttl time.Duration, opts ...CacheOption) DirectoryRepository {
	if maxSize <= 0 || ttl <= 0 {
		return next
	}
	c := &CachedDirectory{
		next:          next,
		entries:       make(map[uuid.UUID]*cacheEntry),
		lruList:       list.New(),
		maxSize:       maxSize,
		ttl:           ttl,
		negativeTTL:   min(DefaultNegativeTTL, ttl),
		lookupTimeout: DefaultLookupTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetMemberships returns cached memberships or loads them from the wrapped repository
func (c *CachedDirectory) GetMemberships(ctx context.Context, userID uuid.UUID) (*Memberships, error) {
	if entry, ok := c.get(userID); ok {
		if entry.memberships == nil {
			return nil, ErrNotFound
		}
		return entry.memberships, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := c.group.DoChan(userID.String(), func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.lookupTimeout)
		defer cancel()

		m, err := c.next.GetMemberships(lookupCtx, userID)
		switch {
		case err == nil:
			c.set(userID, m)
		case errors.Is(err, ErrNotFound) && c.negativeTTL > 0:
			c.set(userID, nil)
		}
		return m, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Memberships), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// HealthCheck delegates to the wrapped repository
func (c *CachedDirectory) HealthCheck(ctx context.Context) error {
	return c.next.HealthCheck(ctx)
}

func (c *CachedDirectory) get(userID uuid.UUID) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[userID]
	if !exists || c.expired(entry, c.now()) {
		c.misses++
		if exists {
			c.removeEntry(userID)
		}
		return cacheEntry{}, false
	}

	c.lruList.MoveToFront(entry.element)
	c.hits++
	return *entry, true
}

// expired must be called with lock held
func (c *CachedDirectory) expired(entry *cacheEntry, now time.Time) bool {
	ttl := c.ttl
	if entry.memberships == nil {
		ttl = c.negativeTTL
	}
	return now.Sub(entry.insertedAt) > ttl
}

func (c *CachedDirectory) set(userID uuid.UUID, m *Memberships) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[userID]; exists {
		entry.memberships = m
		entry.insertedAt = c.now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	c.entries[userID] = &cacheEntry{
		memberships: m,
		insertedAt:  c.now(),
		element:     c.lruList.PushFront(userID),
	}
}

// Invalidate drops the cached memberships of a user
func (c *CachedDirectory) Invalidate(userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(userID)
}

// Clear removes all entries from the cache
func (c *CachedDirectory) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[uuid.UUID]*cacheEntry)
	c.lruList.Init()
}

// Stats returns cache statistics
func (c *CachedDirectory) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// CleanupExpired removes all expired entries and returns how many were removed
func (c *CachedDirectory) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for id, entry := range c.entries {
		if c.expired(entry, now) {
			c.removeEntry(id)
			removed++
		}
	}
	return removed
}

// StartCleanupWorker periodically removes expired entries until ctx is done
func (c *CachedDirectory) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-ctx.Done():
			return
		}
	}
}

// removeEntry must be called with lock held
func (c *CachedDirectory) removeEntry(id uuid.UUID) {
	if entry, exists := c.entries[id]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, id)
	}
}

// evictLRU must be called with lock held
func (c *CachedDirectory) evictLRU() {
	back := c.lruList.Back()
	if back == nil {
		return
	}
	id := back.Value.(uuid.UUID)
	c.lruList.Remove(back)
	delete(c.entries, id)
}
