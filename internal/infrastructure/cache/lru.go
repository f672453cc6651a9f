// Package cache provides the bounded caches behind ports.Cache.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultSize = 1024

// LookupRecorder observes cache hits and misses.
type LookupRecorder interface {
	RecordCacheLookup(cache string, hit bool)
}

type Option[K comparable, V any] func(*LRU[K, V])

// WithClone copies values on the way in and out so callers never share
// backing arrays with the cache.
func WithClone[K comparable, V any](clone func(V) V) Option[K, V] {
	return func(c *LRU[K, V]) {
		c.clone = clone
	}
}

func WithRecorder[K comparable, V any](recorder LookupRecorder) Option[K, V] {
	return func(c *LRU[K, V]) {
		c.recorder = recorder
	}
}

// LRU is a thread-safe least-recently-used cache.
type LRU[K comparable, V any] struct {
	name     string
	inner    *lru.Cache[K, V]
	clone    func(V) V
	recorder LookupRecorder
}

// NewLRU builds a cache holding at most size entries. A non-positive size
// falls back to DefaultSize.
func NewLRU[K comparable, V any](name string, size int, opts ...Option[K, V]) (*LRU[K, V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	inner, err := lru.New[K, V](size)
	if err != nil {
		return nil, err
	}
	c := &LRU[K, V]{name: name, inner: inner}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *LRU[K, V]) Get(key K) (V, bool) {
	value, ok := c.inner.Get(key)
	if c.recorder != nil {
		c.recorder.RecordCacheLookup(c.name, ok)
	}
	if ok && c.clone != nil {
		value = c.clone(value)
	}
	return value, ok
}

func (c *LRU[K, V]) Add(key K, value V) {
	if c.clone != nil {
		value = c.clone(value)
	}
	c.inner.Add(key, value)
}

func (c *LRU[K, V]) Len() int {
	return c.inner.Len()
}

func (c *LRU[K, V]) Remove(key K) {
	c.inner.Remove(key)
}

// CloneVector is the WithClone function for embedding caches.
func CloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
