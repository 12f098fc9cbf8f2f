// Package xmap provides a type-safe wrapper around sync.Map.
package xmap

import (
	"sync"
)

// Map is a concurrent map with typed keys and values.
type Map[K comparable, V any] struct {
	m sync.Map
}

func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{}
}

// Load returns the value stored for key. ok reports whether the key was
// present.
func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	v, ok := m.m.Load(key)
	if !ok {
		return value, false
	}

	//nolint:forcetypeassert // Only Store writes to the map.
	return v.(V), true
}

// Store sets the value for a key.
func (m *Map[K, V]) Store(key K, value V) {
	m.m.Store(key, value)
}

// LoadOrStore returns the existing value for key if present, otherwise it
// stores and returns value. loaded is true if the value was already present.
func (m *Map[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	v, loaded := m.m.LoadOrStore(key, value)
	//nolint:forcetypeassert // Only Store writes to the map.
	return v.(V), loaded
}

// LoadAndDelete removes key, returning the previous value if any.
func (m *Map[K, V]) LoadAndDelete(key K) (value V, loaded bool) {
	v, loaded := m.m.LoadAndDelete(key)
	if !loaded {
		return value, false
	}

	//nolint:forcetypeassert // Only Store writes to the map.
	return v.(V), true
}

// Delete removes key.
func (m *Map[K, V]) Delete(key K) {
	m.m.Delete(key)
}

// Range calls f for each entry until f returns false.
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	m.m.Range(func(key, value any) bool {
		//nolint:forcetypeassert // Only Store writes to the map.
		return f(key.(K), value.(V))
	})
}

// Clear removes all entries.
func (m *Map[K, V]) Clear() {
	m.m.Clear()
}
