package multiplexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/codingwatching/agor/internal/common/logger"
)

// Querier is the read surface of the multiplexer the cache fronts.
type Querier interface {
	SessionExists(ctx context.Context, session, identity string) (bool, error)
	TabNames(ctx context.Context, session, identity string) ([]string, error)
}

type cacheKey struct {
	session  string
	identity string
}

type cacheEntry struct {
	exists     bool
	existsAt   time.Time
	tabs       []string
	tabsAt     time.Time
}

// QueryCache is a TTL-bounded, stale-tolerant cache over multiplexer
// introspection queries. Reads degrade to conservative defaults
// (exists=false, no tabs) on failure or timeout so a stuck multiplexer
// never blocks the orchestrator. Invalidate must be called synchronously
// after any tab-mutating action to avoid read-your-own-write races.
type QueryCache struct {
	querier Querier
	ttl     time.Duration

	mu      sync.RWMutex
	entries map[cacheKey]*cacheEntry

	// Concurrent misses for the same key collapse into one external query.
	group singleflight.Group

	logger *logger.Logger
}

// NewQueryCache creates a cache over querier with the given TTL window.
func NewQueryCache(querier Querier, ttl time.Duration, log *logger.Logger) *QueryCache {
	return &QueryCache{
		querier: querier,
		ttl:     ttl,
		entries: make(map[cacheKey]*cacheEntry),
		logger:  log.WithFields(zap.String("component", "multiplexer-cache")),
	}
}

// SessionExists reports whether the session exists, serving from the cache
// within the TTL window.
func (c *QueryCache) SessionExists(ctx context.Context, session, identity string) bool {
	key := cacheKey{session: session, identity: identity}

	c.mu.RLock()
	entry, ok := c.entries[key]
	if ok && !entry.existsAt.IsZero() && time.Since(entry.existsAt) < c.ttl {
		exists := entry.exists
		c.mu.RUnlock()
		return exists
	}
	c.mu.RUnlock()

	v, _, _ := c.group.Do(fmt.Sprintf("exists:%s:%s", session, identity), func() (interface{}, error) {
		exists, err := c.querier.SessionExists(ctx, session, identity)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				c.logger.Warn("session existence query timed out, assuming absent",
					zap.String("session", session),
					zap.String("identity", identity))
			} else {
				c.logger.Debug("session existence query failed",
					zap.String("session", session),
					zap.Error(err))
			}
			// Serve the default without caching it, so the next read
			// retries as soon as the multiplexer recovers.
			return false, nil
		}
		c.store(key, func(e *cacheEntry) {
			e.exists = exists
			e.existsAt = time.Now()
		})
		return exists, nil
	})
	return v.(bool)
}

// Tabs returns the session's tab names, serving from the cache within the
// TTL window. Failures degrade to an empty list.
func (c *QueryCache) Tabs(ctx context.Context, session, identity string) []string {
	key := cacheKey{session: session, identity: identity}

	c.mu.RLock()
	entry, ok := c.entries[key]
	if ok && !entry.tabsAt.IsZero() && time.Since(entry.tabsAt) < c.ttl {
		tabs := entry.tabs
		c.mu.RUnlock()
		return tabs
	}
	c.mu.RUnlock()

	v, _, _ := c.group.Do(fmt.Sprintf("tabs:%s:%s", session, identity), func() (interface{}, error) {
		tabs, err := c.querier.TabNames(ctx, session, identity)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				c.logger.Warn("tab name query timed out, assuming no tabs",
					zap.String("session", session),
					zap.String("identity", identity))
			} else {
				c.logger.Debug("tab name query failed",
					zap.String("session", session),
					zap.Error(err))
			}
			// Serve the default without caching it, so the next read
			// retries as soon as the multiplexer recovers.
			return []string(nil), nil
		}
		c.store(key, func(e *cacheEntry) {
			e.tabs = tabs
			e.tabsAt = time.Now()
		})
		return tabs, nil
	})
	if v == nil {
		return nil
	}
	return v.([]string)
}

// Invalidate drops the cache entry for (session, identity). Callers must
// invoke this synchronously after creating or renaming a tab, before
// returning control, so the next read observes the mutation.
func (c *QueryCache) Invalidate(session, identity string) {
	c.mu.Lock()
	delete(c.entries, cacheKey{session: session, identity: identity})
	c.mu.Unlock()
}

func (c *QueryCache) store(key cacheKey, update func(*cacheEntry)) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{}
		c.entries[key] = entry
	}
	update(entry)
	c.mu.Unlock()
}
