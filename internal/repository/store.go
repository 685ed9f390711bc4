package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when an entity id is unknown to a store
var ErrNotFound = errors.New("not found")

// Store defines the persistence operations every entity collection supports
type Store[T any] interface {
	// Get returns the entity stored under id or ErrNotFound
	Get(ctx context.Context, id string) (T, error)

	// List returns every entity ordered by id
	List(ctx context.Context) ([]T, error)

	// Put creates or replaces the entity stored under id
	Put(ctx context.Context, id string, value T) error

	// Delete removes the entity stored under id or returns ErrNotFound
	Delete(ctx context.Context, id string) error
}

// memoryStore implements Store in process memory
type memoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	clone func(T) T
}

// NewMemoryStore creates an in-memory store. clone, when set, is applied on every
// read and write so callers never share mutable state with the store.
func NewMemoryStore[T any](clone func(T) T) Store[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &memoryStore[T]{
		items: make(map[string]T),
		clone: clone,
	}
}

// Get returns the entity stored under id
func (s *memoryStore[T]) Get(_ context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return s.clone(v), nil
}

// List returns every entity ordered by id
func (s *memoryStore[T]) List(_ context.Context) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.clone(s.items[id]))
	}
	return out, nil
}

// Put creates or replaces the entity stored under id
func (s *memoryStore[T]) Put(_ context.Context, id string, value T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[id] = s.clone(value)
	return nil
}

// Delete removes the entity stored under id
func (s *memoryStore[T]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}
