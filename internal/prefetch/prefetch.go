// Package prefetch models the display layer's background loader at the
// core boundary: N concurrent reads of dataset paths, deduplicated so
// each value is computed at most once, with a bounded cache in front.
// The core itself is reentrant and pure; this layer only avoids
// wasteful duplicate materialization.
package prefetch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ChannyClaus/silx/spech5"
)

const defaultCacheSize = 1024

// Loader serves dataset values from a spech5 file with
// at-most-once-compute-per-key discipline.
type Loader struct {
	file  *spech5.File
	group singleflight.Group
	cache *valueCache
}

// New wraps file. cacheSize bounds the number of retained values;
// zero or negative selects the default.
func New(file *spech5.File, cacheSize int) *Loader {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	return &Loader{
		file:  file,
		cache: newValueCache(cacheSize),
	}
}

// Get returns the materialized value at path. Concurrent calls for the
// same path share one computation.
func (l *Loader) Get(path string) (any, error) {
	if v, ok := l.cache.get(path); ok {
		return v, nil
	}
	v, err, _ := l.group.Do(path, func() (any, error) {
		ds, err := l.file.Dataset(path)
		if err != nil {
			return nil, err
		}
		val, err := ds.Read()
		if err != nil {
			return nil, err
		}
		l.cache.put(path, val)
		return val, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Keys lists the immediate children of a group path, for consumers
// walking ahead of the display position.
func (l *Loader) Keys(path string) ([]string, error) {
	g, err := l.file.Group(path)
	if err != nil {
		return nil, err
	}
	return g.Keys(), nil
}

// Prefetch loads paths ahead of time with at most workers concurrent
// reads. The first error cancels the remaining loads; cancellation and
// timeouts belong to this layer only, never to the core.
func (l *Loader) Prefetch(ctx context.Context, paths []string, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range paths {
		p := p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := l.Get(p)
			return err
		})
	}
	return g.Wait()
}

// valueCache is a bounded FIFO-evicting cache of materialized values.
type valueCache struct {
	mu      sync.Mutex
	entries map[string]any
	keys    []string
	maxSize int
}

func newValueCache(maxSize int) *valueCache {
	return &valueCache{
		entries: make(map[string]any, maxSize),
		keys:    make([]string, 0, maxSize),
		maxSize: maxSize,
	}
}

func (c *valueCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *valueCache) put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		c.entries[key] = value
		return
	}
	if len(c.entries) >= c.maxSize {
		evict := c.keys[0]
		c.keys = c.keys[1:]
		delete(c.entries, evict)
	}
	c.entries[key] = value
	c.keys = append(c.keys, key)
}
