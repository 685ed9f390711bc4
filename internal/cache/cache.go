// Package cache keeps short-lived typed snapshots keyed by entity id.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache holds snapshots of type V for a fixed time after they are stored
type Cache[V any] interface {
	Get(id string) (V, bool)
	Set(id string, value V)
	Invalidate(id string)
	Flush()
	Len() int
}

// TTLCache is a Cache backed by go-cache. Keys are namespaced so several
// TTLCaches may share one process without colliding in logs or dumps.
type TTLCache[V any] struct {
	namespace string
	data      *gocache.Cache
}

// New creates a snapshot cache; expired entries are purged every 2*ttl
func New[V any](namespace string, ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		namespace: namespace,
		data:      gocache.New(ttl, 2*ttl),
	}
}

func (c *TTLCache[V]) key(id string) string {
	return c.namespace + ":" + id
}

// Get returns the snapshot of id while it is fresh
func (c *TTLCache[V]) Get(id string) (V, bool) {
	var zero V
	raw, ok := c.data.Get(c.key(id))
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// Set stores the snapshot of id with the cache TTL
func (c *TTLCache[V]) Set(id string, value V) {
	c.data.Set(c.key(id), value, gocache.DefaultExpiration)
}

// Invalidate drops the snapshot of id
func (c *TTLCache[V]) Invalidate(id string) {
	c.data.Delete(c.key(id))
}

// Flush drops every snapshot
func (c *TTLCache[V]) Flush() {
	c.data.Flush()
}

// Len counts stored snapshots, including expired ones not yet purged
func (c *TTLCache[V]) Len() int {
	return c.data.ItemCount()
}
