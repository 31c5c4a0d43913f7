package protocol

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceIsStrictlyIncreasing(t *testing.T) {
	var s Sequence
	seen := make(map[int64]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v := s.Next()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 800)
	assert.Equal(t, int64(800), s.Last())
	assert.Equal(t, int64(801), s.Next())
}

func TestWatermarkDropsStaleAndDuplicate(t *testing.T) {
	var w Watermark

	assert.True(t, w.Advance(5))
	assert.False(t, w.Advance(3), "reordered")
	assert.False(t, w.Advance(5), "duplicate")
	assert.True(t, w.Advance(6))
	assert.Equal(t, int64(6), w.Last())
}
