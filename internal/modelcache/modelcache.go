// Package modelcache provides a keyed one-shot initializer registry.
// Stage services use it to resolve model configuration and warm model
// storage exactly once per process, without ambient global state.
package modelcache

import "sync"

type entry[V any] struct {
	once  sync.Once
	value V
	err   error
}

// Registry memoizes the result of a loader per key. The loader for a key
// runs at most once; later calls return the cached value or error.
type Registry[V any] struct {
	mu      sync.Mutex
	entries map[string]*entry[V]
}

// New returns an empty registry.
func New[V any]() *Registry[V] {
	return &Registry[V]{entries: make(map[string]*entry[V])}
}

// Get returns the cached value for key, invoking load on first use.
func (r *Registry[V]) Get(key string, load func() (V, error)) (V, error) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry[V]{}
		r.entries[key] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.value, e.err = load()
	})
	return e.value, e.err
}

// Len reports how many keys have been requested.
func (r *Registry[V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
