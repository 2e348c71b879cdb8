package syncx

import (
	"sync"
)

// LockMap hands out one mutex per key. Mutexes are never removed, so keys
// should come from a bounded set such as types or call sites.
type LockMap[K comparable] struct {
	locks Map[K, *sync.Mutex]
}

func (lm *LockMap[K]) LoadOrCreate(key K) *sync.Mutex {
	m, _ := lm.locks.LoadOrCreate(key, func(K) *sync.Mutex { return &sync.Mutex{} })
	return m
}

// WithLock runs fn while holding the mutex of key.
func (lm *LockMap[K]) WithLock(key K, fn func()) {
	m := lm.LoadOrCreate(key)
	m.Lock()
	defer m.Unlock()
	fn()
}

func (lm *LockMap[K]) Len() int {
	return lm.locks.Len()
}
