package livestatus

import "sync"

// OverflowStrategy decides what Push does on a full queue.
type OverflowStrategy int

const (
	// OverflowWait blocks until there is room.
	OverflowWait OverflowStrategy = iota
	// OverflowPopOldest drops the oldest element to make room.
	OverflowPopOldest
	// OverflowDontPush refuses the new element.
	OverflowDontPush
)

// QueueStatus is the outcome of a Push.
type QueueStatus int

const (
	QueueOK QueueStatus = iota
	QueueOverflow
	QueueJoined
)

// Queue is a bounded FIFO shared by producers and consumers. After Join it
// refuses every Push and Pop. A limit of 0 means unbounded.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []T
	limit    int
	joined   bool
}

func NewQueue[T any](limit int) *Queue[T] {
	q := &Queue[T]{limit: limit}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

func (q *Queue[T]) full() bool { return q.limit > 0 && len(q.items) >= q.limit }

// Push appends elem. With OverflowPopOldest on a full queue the oldest
// element is returned in dropped and the status is QueueOverflow. With
// OverflowDontPush elem itself is refused with QueueOverflow.
func (q *Queue[T]) Push(elem T, strategy OverflowStrategy) (dropped T, hasDropped bool, status QueueStatus) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.joined {
		return dropped, false, QueueJoined
	}
	status = QueueOK
	if q.full() {
		switch strategy {
		case OverflowWait:
			for q.full() && !q.joined {
				q.notFull.Wait()
			}
			if q.joined {
				return dropped, false, QueueJoined
			}
		case OverflowPopOldest:
			dropped, hasDropped = q.items[0], true
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			status = QueueOverflow
		case OverflowDontPush:
			return dropped, false, QueueOverflow
		}
	}
	q.items = append(q.items, elem)
	q.notEmpty.Signal()
	return dropped, hasDropped, status
}

// Pop removes the oldest element, blocking while the queue is empty. It
// reports false once the queue is joined.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.joined {
		q.notEmpty.Wait()
	}
	var zero T
	if q.joined {
		return zero, false
	}
	elem := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	q.notFull.Signal()
	return elem, true
}

// Join wakes every blocked caller and makes the queue unusable.
func (q *Queue[T]) Join() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.joined = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Drain removes and returns every queued element.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	q.notFull.Broadcast()
	return items
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
