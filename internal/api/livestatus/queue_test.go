package livestatus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int](0)
	for i := 1; i <= 3; i++ {
		_, dropped, status := q.Push(i, OverflowWait)
		require.False(t, dropped)
		require.Equal(t, QueueOK, status)
	}
	assert.Equal(t, 3, q.Len())
	for i := 1; i <= 3; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

func TestQueueOverflowStrategies(t *testing.T) {
	t.Run("pop oldest", func(t *testing.T) {
		q := NewQueue[string](2)
		q.Push("a", OverflowPopOldest)
		q.Push("b", OverflowPopOldest)
		dropped, hasDropped, status := q.Push("c", OverflowPopOldest)
		assert.True(t, hasDropped)
		assert.Equal(t, "a", dropped)
		assert.Equal(t, QueueOverflow, status)
		assert.Equal(t, []string{"b", "c"}, q.Drain())
	})

	t.Run("dont push", func(t *testing.T) {
		q := NewQueue[string](1)
		q.Push("a", OverflowDontPush)
		_, hasDropped, status := q.Push("b", OverflowDontPush)
		assert.False(t, hasDropped)
		assert.Equal(t, QueueOverflow, status)
		assert.Equal(t, []string{"a"}, q.Drain())
	})

	t.Run("wait", func(t *testing.T) {
		q := NewQueue[int](1)
		q.Push(1, OverflowWait)
		pushed := make(chan QueueStatus)
		go func() {
			_, _, status := q.Push(2, OverflowWait)
			pushed <- status
		}()
		select {
		case <-pushed:
			t.Fatal("push on a full queue returned")
		case <-time.After(20 * time.Millisecond):
		}
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, 1, v)
		assert.Equal(t, QueueOK, <-pushed)
	})
}

func TestQueueJoinWakesWaiters(t *testing.T) {
	q := NewQueue[int](1)
	popped := make(chan bool)
	go func() {
		_, ok := q.Pop()
		popped <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	q.Join()
	assert.False(t, <-popped)

	_, _, status := q.Push(1, OverflowWait)
	assert.Equal(t, QueueJoined, status)
}
