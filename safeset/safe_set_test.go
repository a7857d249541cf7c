package safeset

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeSet(t *testing.T) {
	s := NewSafeSet[int]()

	t.Run("add reports new members only", func(t *testing.T) {
		assert.True(t, s.Add(3))
		assert.False(t, s.Add(3))
		assert.True(t, s.Add(4))
		assert.Equal(t, 2, s.Size())
	})

	t.Run("remove reports membership", func(t *testing.T) {
		assert.True(t, s.Remove(3))
		assert.False(t, s.Remove(3))
		assert.Equal(t, 1, s.Size())
		assert.True(t, s.Add(3))
	})
}

func TestSafeSet_ConcurrentAdd(t *testing.T) {
	s := NewSafeSet[int]()
	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if s.Add(i) {
					mu.Lock()
					inserted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, inserted)
	assert.Equal(t, 100, s.Size())
}
