package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEventQueueFIFO(t *testing.T) {
	q := NewEventQueue[int]()
	for i := 0; i < 5; i++ {
		q.Push(i)
	}

	require.Equal(t, 5, q.Len())
	require.Equal(t, []int{0, 1, 2, 3, 4}, q.DrainAll())
	require.Equal(t, 0, q.Len())
}

func TestEventQueueDrainEmptyReturnsNil(t *testing.T) {
	q := NewEventQueue[string]()
	require.Nil(t, q.DrainAll())
}

func TestEventQueueDrainLeavesQueueReusable(t *testing.T) {
	q := NewEventQueue[int]()
	q.Push(1)
	require.Equal(t, []int{1}, q.DrainAll())

	q.Push(2)
	q.Push(3)
	require.Equal(t, []int{2, 3}, q.DrainAll())
}

func TestEventQueueConcurrentPushers(t *testing.T) {
	const producers = 8
	const perProducer = 200

	q := NewEventQueue[[2]int]()
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push([2]int{p, i})
			}
		}(p)
	}
	wg.Wait()

	drained := q.DrainAll()
	require.Len(t, drained, producers*perProducer)

	// No event is lost or duplicated, and each producer's events stay
	// in the order they were pushed.
	lastSeen := make(map[int]int)
	for p := 0; p < producers; p++ {
		lastSeen[p] = -1
	}
	for _, ev := range drained {
		p, i := ev[0], ev[1]
		require.Equal(t, lastSeen[p]+1, i, "producer %d events out of order", p)
		lastSeen[p] = i
	}
}

func TestEventQueueOrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q := NewEventQueue[int]()
		pushed := rapid.SliceOfN(rapid.Int(), 1, 100).Draw(t, "pushed")

		var drained []int
		for i, v := range pushed {
			q.Push(v)
			// Interleave drains at arbitrary points.
			if rapid.Bool().Draw(t, "drainNow") || i == len(pushed)-1 {
				drained = append(drained, q.DrainAll()...)
			}
		}
		drained = append(drained, q.DrainAll()...)

		require.Equal(t, pushed, drained)
	})
}
