package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	_, ok := q.Dequeue()
	assert.False(t, ok)

	for i := 1; i <= 5; i++ {
		q.Enqueue(i)
	}
	assert.Equal(t, 5, q.Len())

	head, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, 1, head)
	assert.Equal(t, 5, q.Len())

	for i := 1; i <= 5; i++ {
		v, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueFind(t *testing.T) {
	q := NewQueue[int]()
	_, ok := q.Find(func(int) bool { return true })
	assert.False(t, ok)

	for _, v := range []int{1, 4, 6, 8} {
		q.Enqueue(v)
	}
	even, ok := q.Find(func(v int) bool { return v%2 == 0 })
	require.True(t, ok)
	assert.Equal(t, 4, even)
	assert.Equal(t, 4, q.Len(), "find leaves the queue untouched")

	_, ok = q.Find(func(v int) bool { return v > 10 })
	assert.False(t, ok)
}

func TestQueueSignalCoalesces(t *testing.T) {
	q := NewQueue[string]()
	q.Enqueue("a")
	q.Enqueue("b")
	q.Notify()

	select {
	case <-q.Ready():
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-q.Ready():
		t.Fatal("signals should coalesce")
	default:
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue[int]()
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Enqueue(p*1000 + i)
			}
		}(p)
	}
	wg.Wait()
	require.Equal(t, 800, q.Len())

	// per-producer order survives interleaving
	last := make(map[int]int)
	for {
		v, ok := q.Dequeue()
		if !ok {
			break
		}
		p := v / 1000
		if prev, seen := last[p]; seen {
			assert.Greater(t, v, prev)
		}
		last[p] = v
	}
}
