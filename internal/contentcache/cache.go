// Package contentcache guarantees each distinct content object is
// classified at most once per audit run. Identical content referenced from
// thousands of commits costs one scan.
package contentcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/ukbb-tools/gitaudit/internal/classify"
	"github.com/ukbb-tools/gitaudit/internal/history"
	"github.com/ukbb-tools/gitaudit/pkg/gitlib"
)

// ErrCacheCoordination indicates the first-classify-wins discipline was
// violated. Defensive: it should never occur, and is treated as fatal
// because a broken cache invalidates the dedup invariant.
var ErrCacheCoordination = errors.New("content cache coordination violated")

// Cache memoizes classification results keyed by content id. Safe for
// concurrent use: the first requester of an id computes, concurrent
// requesters await the in-flight result (singleflight), later requesters
// hit the memoized map. Raw content bytes never outlive the classification
// call.
type Cache struct {
	store  history.Store
	engine *classify.Engine

	mu      sync.RWMutex
	results map[gitlib.Hash]*classify.Result

	group       singleflight.Group
	invocations atomic.Int64
}

// New creates a cache that reads content from store and classifies it with
// engine.
func New(store history.Store, engine *classify.Engine) *Cache {
	return &Cache{
		store:   store,
		engine:  engine,
		results: make(map[gitlib.Hash]*classify.Result),
	}
}

// flight is the singleflight payload: the result plus whether this flight
// actually ran the classifier.
type flight struct {
	result   *classify.Result
	computed bool
}

// Classify returns the classification for the given content id, computing
// it on first request. computed reports whether this call did the scan
// (false for cache hits and for callers that awaited another flight). An
// unreadable object returns the read error; failures are not cached, so a
// later request for the same id may still succeed.
func (c *Cache) Classify(ctx context.Context, id gitlib.Hash) (result *classify.Result, computed bool, err error) {
	c.mu.RLock()
	cached, ok := c.results[id]
	c.mu.RUnlock()

	if ok {
		return cached, false, nil
	}

	value, err, shared := c.group.Do(id.String(), func() (any, error) {
		// Double-check under the group: a previous flight may have
		// completed between the read lock and Do.
		c.mu.RLock()
		existing, done := c.results[id]
		c.mu.RUnlock()

		if done {
			return flight{result: existing}, nil
		}

		return c.compute(ctx, id)
	})
	if err != nil {
		return nil, false, err
	}

	fl, ok := value.(flight)
	if !ok {
		return nil, false, fmt.Errorf("%w: unexpected cached type %T", ErrCacheCoordination, value)
	}

	return fl.result, fl.computed && !shared, nil
}

func (c *Cache) compute(ctx context.Context, id gitlib.Hash) (flight, error) {
	data, size, err := c.store.OpenContent(ctx, id)
	if err != nil {
		return flight{}, fmt.Errorf("%w: %w", history.ErrObjectRead, err)
	}

	c.invocations.Add(1)
	result := c.engine.ClassifyBytes(data, size)

	c.mu.Lock()
	c.results[id] = result
	c.mu.Unlock()

	return flight{result: result, computed: true}, nil
}

// Invocations reports how many classification computations actually ran.
// The dedup invariant is Invocations() == number of distinct content ids.
func (c *Cache) Invocations() int64 {
	return c.invocations.Load()
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.results)
}

// Snapshot returns a copy of the cached results keyed by content id. Used
// by checkpointing.
func (c *Cache) Snapshot() map[gitlib.Hash]*classify.Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[gitlib.Hash]*classify.Result, len(c.results))
	for id, result := range c.results {
		out[id] = result
	}

	return out
}

// Restore preloads results, e.g. from a checkpoint. Existing entries win.
func (c *Cache) Restore(results map[gitlib.Hash]*classify.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, result := range results {
		if _, exists := c.results[id]; !exists {
			c.results[id] = result
		}
	}
}
