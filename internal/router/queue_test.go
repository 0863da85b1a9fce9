package router

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue(0)

	for _, n := range []string{"1", "2", "3"} {
		require.True(t, q.Enqueue(StateEvent(n, 0)))
	}

	for _, want := range []string{"1", "2", "3"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.PhoneNumber)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_GrowsPastCapacity(t *testing.T) {
	q := newEventQueue(2)
	for i := 0; i < 10; i++ {
		require.True(t, q.Enqueue(ConnectedEvent()))
	}
	assert.Equal(t, 10, q.Len())
}

func TestEventQueue_WaitSignalsOnEnqueue(t *testing.T) {
	q := newEventQueue(0)

	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(ConnectedEvent())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not signal")
	}
}

func TestEventQueue_SignalsCoalesce(t *testing.T) {
	q := newEventQueue(0)
	q.Enqueue(ConnectedEvent())
	q.Enqueue(ConnectedEvent())

	<-q.Wait()
	select {
	case <-q.Wait():
		t.Fatal("second signal should have been coalesced")
	default:
	}
	assert.Equal(t, 2, q.Len())
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue(0)
	q.Enqueue(ConnectedEvent())
	q.Close()
	q.Close()

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(ConnectedEvent()), "enqueue after close should return false")

	_, open := <-q.Wait()
	assert.False(t, open, "Wait channel should be closed")

	_, ok := q.TryDequeue()
	assert.True(t, ok, "events queued before Close are still delivered")
}

func TestEventQueue_ThreadSafe(t *testing.T) {
	q := newEventQueue(0)

	const producers = 10
	const eventsPerProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < eventsPerProducer; i++ {
				q.Enqueue(ConnectedEvent())
			}
		}()
	}
	wg.Wait()

	received := 0
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		received++
	}
	assert.Equal(t, producers*eventsPerProducer, received)
}
