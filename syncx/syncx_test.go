package syncx

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	m := NewMap[string, int]()
	_, ok := m.Load("a")
	assert.False(t, ok)

	v, loaded := m.LoadOrCreate("a", func(string) int { return 1 })
	assert.Equal(t, 1, v)
	assert.False(t, loaded)

	v, loaded = m.LoadOrCreate("a", func(string) int { return 2 })
	assert.Equal(t, 1, v)
	assert.True(t, loaded)

	m.Store("b", 3)
	sum := 0
	m.Range(func(_ string, v int) bool {
		sum += v
		return true
	})
	assert.Equal(t, 4, sum)
	assert.Equal(t, 2, m.Len())

	m.Delete("a")
	assert.Equal(t, 1, m.Len())
}

func TestLockMap(t *testing.T) {
	var lm LockMap[int]
	assert.Same(t, lm.LoadOrCreate(1), lm.LoadOrCreate(1))
	assert.NotSame(t, lm.LoadOrCreate(1), lm.LoadOrCreate(2))
	assert.Equal(t, 2, lm.Len())

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lm.WithLock(3, func() { counter++ })
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, counter)
}
