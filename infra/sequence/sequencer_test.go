package sequence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextIsMonotonic(t *testing.T) {
	s := New(0)
	assert.Equal(t, uint64(1), s.Next())
	assert.Equal(t, uint64(2), s.Next())
	assert.Equal(t, uint64(2), s.Current())
}

func TestStartOffset(t *testing.T) {
	s := New(100)
	assert.Equal(t, uint64(101), s.Next())
}

func TestReset(t *testing.T) {
	s := New(0)
	s.Next()
	s.Next()
	s.Reset(50)
	assert.Equal(t, uint64(50), s.Current())
	assert.Equal(t, uint64(51), s.Next())
}

func TestConcurrentNextNeverRepeats(t *testing.T) {
	const workers, perWorker = 8, 10_000
	s := New(0)
	ids := make([][]uint64, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			out := make([]uint64, perWorker)
			for i := range out {
				out[i] = s.Next()
			}
			ids[w] = out
		}(w)
	}
	wg.Wait()

	seen := make(map[uint64]struct{}, workers*perWorker)
	for _, out := range ids {
		for _, id := range out {
			if _, dup := seen[id]; dup {
				t.Fatalf("sequence %d issued twice", id)
			}
			seen[id] = struct{}{}
		}
	}
	assert.Equal(t, uint64(workers*perWorker), s.Current())
}
