// Package history provides fixed-capacity logs used for routing, network and incident history.
package history

import "sync"

// DefaultCapacity is the retention used when a non-positive capacity is requested
const DefaultCapacity = 1000

// Ring is a fixed-capacity FIFO log. Once full, every append evicts the oldest entry.
// It is safe for concurrent use.
type Ring[T any] struct {
	mu    sync.RWMutex
	buf   []T
	start int // index of the oldest entry
	size  int
}

// NewRing creates a ring holding at most capacity entries
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Append adds v as the newest entry
func (r *Ring[T]) Append(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// Len returns the number of retained entries
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap returns the maximum number of entries
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Items returns every retained entry, oldest first
func (r *Ring[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastLocked(r.size)
}

// Last returns the n most recent entries, oldest first.
// A non-positive n returns everything.
func (r *Ring[T]) Last(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n > r.size {
		n = r.size
	}
	return r.lastLocked(n)
}

// Filter returns the entries matching keep, oldest first, limited to the newest limit matches
func (r *Ring[T]) Filter(keep func(T) bool, limit int) []T {
	all := r.Items()
	out := make([]T, 0)
	for _, v := range all {
		if keep(v) {
			out = append(out, v)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (r *Ring[T]) lastLocked(n int) []T {
	out := make([]T, n)
	offset := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.start+offset+i)%len(r.buf)]
	}
	return out
}
