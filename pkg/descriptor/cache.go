package descriptor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Cache memoises descriptors per (type name, with dependencies) for the life
// of the process. Concurrent callers asking for the same key share a single
// in-flight request. Failures are returned to every waiting caller and are not
// memoised, so the next call retries. Sets returned by GetWithDependencies are
// copies owned by the caller.
type Cache struct {
	source Source
	logger *zap.Logger

	group singleflight.Group

	mu     sync.RWMutex
	gen    uint64
	single map[string]Descriptor
	deps   map[string]Set
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLogger attaches a zap logger. Cache activity is logged at debug level.
func WithLogger(logger *zap.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Ensure Cache satisfies Source so caches can be stacked behind registries
// and forms transparently.
var _ Source = (*Cache)(nil)

// NewCache wraps source with memoisation.
func NewCache(source Source, options ...CacheOption) *Cache {
	c := &Cache{
		source: source,
		logger: zap.NewNop(),
		single: make(map[string]Descriptor),
		deps:   make(map[string]Set),
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Get returns the descriptor for name, fetching it at most once.
func (c *Cache) Get(ctx context.Context, name string) (Descriptor, error) {
	if c == nil || c.source == nil {
		return Descriptor{}, errors.New("descriptor: cache has no source")
	}
	c.mu.RLock()
	desc, ok := c.single[name]
	c.mu.RUnlock()
	if ok {
		return desc, nil
	}

	result, err := c.do(ctx, cacheKey(name, false), func(fetchCtx context.Context) (any, error) {
		c.mu.RLock()
		cached, hit := c.single[name]
		gen := c.gen
		c.mu.RUnlock()
		if hit {
			return cached, nil
		}
		desc, err := c.source.Get(fetchCtx, name)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.single[name] = desc
		}
		c.mu.Unlock()
		return desc, nil
	})
	if err != nil {
		return Descriptor{}, err
	}
	return result.(Descriptor), nil
}

// GetWithDependencies returns the descriptor set for name and every type it
// references, fetching it at most once. Descriptors in the returned set also
// populate the single-type cache.
func (c *Cache) GetWithDependencies(ctx context.Context, name string) (Set, error) {
	if c == nil || c.source == nil {
		return nil, errors.New("descriptor: cache has no source")
	}
	c.mu.RLock()
	set, ok := c.deps[name]
	c.mu.RUnlock()
	if ok {
		return set.Clone(), nil
	}

	result, err := c.do(ctx, cacheKey(name, true), func(fetchCtx context.Context) (any, error) {
		c.mu.RLock()
		cached, hit := c.deps[name]
		gen := c.gen
		c.mu.RUnlock()
		if hit {
			return cached, nil
		}
		set, err := c.source.GetWithDependencies(fetchCtx, name)
		if err != nil {
			return nil, err
		}
		set = set.Clone()
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			return set, nil
		}
		c.deps[name] = set
		for typeName, desc := range set {
			if _, exists := c.single[typeName]; !exists {
				c.single[typeName] = desc
			}
		}
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(Set).Clone(), nil
}

// Prefetch warms the dependency cache for several types in parallel.
func (c *Cache) Prefetch(ctx context.Context, names ...string) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, name := range names {
		group.Go(func() error {
			_, err := c.GetWithDependencies(groupCtx, name)
			return err
		})
	}
	return group.Wait()
}

// Clear drops every memoised descriptor. In-flight requests still complete
// for their callers but no longer populate the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.single = make(map[string]Descriptor)
	c.deps = make(map[string]Set)
}

// Len reports how many single-type and dependency entries are cached.
func (c *Cache) Len() (single, deps int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.single), len(c.deps)
}

// do runs fetch once per key. The fetch is detached from the caller's
// cancellation: a caller whose ctx ends stops waiting but the shared request
// finishes for the other waiters.
func (c *Cache) do(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		c.logger.Debug("descriptor fetch", zap.String("key", key))
		return fetch(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("descriptor fetch coalesced", zap.String("key", key))
		}
		if res.Err != nil {
			c.logger.Debug("descriptor fetch failed", zap.String("key", key), zap.Error(res.Err))
			return nil, fmt.Errorf("descriptor: resolve %s: %w", key, res.Err)
		}
		return res.Val, nil
	}
}

func cacheKey(name string, withDeps bool) string {
	if withDeps {
		return name + "+deps"
	}
	return name
}
