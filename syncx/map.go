package syncx

import (
	"sync"
)

// Map is a typed sync.Map.
type Map[K any, V any] struct {
	data sync.Map
}

func (m *Map[K, V]) Store(key K, value V) {
	m.data.Store(key, value)
}

func (m *Map[K, V]) Delete(key K) {
	m.data.Delete(key)
}

func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	v, ok := m.data.Load(key)
	if ok {
		value, ok = v.(V)
	}
	return
}

func (m *Map[K, V]) LoadOrStore(key K, value V) (V, bool) {
	v, loaded := m.data.LoadOrStore(key, value)
	return v.(V), loaded
}

// LoadOrCreate returns the value of key, storing newValue(key) when the key
// is absent. newValue may run more than once under contention but only one
// result is ever stored.
func (m *Map[K, V]) LoadOrCreate(key K, newValue func(K) V) (V, bool) {
	if v, loaded := m.data.Load(key); loaded {
		return v.(V), true
	}
	return m.LoadOrStore(key, newValue(key))
}

func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	m.data.Range(func(k, v any) bool {
		return f(k.(K), v.(V))
	})
}

func (m *Map[K, V]) Len() int {
	n := 0
	m.data.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func NewMap[K any, V any]() *Map[K, V] {
	return &Map[K, V]{}
}
