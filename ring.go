package mqpub

import (
	"sync"
	"time"

	"github.com/coregx/mqpub/model"
)

// DefaultRingCapacity is the default hot-path queue size in slots.
const DefaultRingCapacity = 65536

// RingQueue is the bounded FIFO backing the hot path: a fixed arena of
// message slots indexed by modulo arithmetic over monotonically increasing
// head/tail counters. Many producers push concurrently; the drain worker is
// the single consumer.
//
// Each operation takes one short critical section; no allocation happens
// inside the buffer. A full queue is a defined condition, not an error —
// Push reports it and the router spills to the outbox.
//
// Messages in the ring are volatile: they are lost on process exit. That is
// accepted hot-path behavior; durability starts at the outbox.
type RingQueue struct {
	mu      sync.Mutex
	notFull *sync.Cond
	slots   []model.Message
	head    uint64 // next slot to pop
	tail    uint64 // next slot to fill
	mask    uint64
}

// NewRingQueue creates a ring queue with the given slot count.
// Capacity must be a power of two so slot indexing reduces to a mask.
func NewRingQueue(capacity int) (*RingQueue, error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, NewError(ErrCodeConfiguration, "ring capacity must be a power of two")
	}
	q := &RingQueue{
		slots: make([]model.Message, capacity),
		mask:  uint64(capacity) - 1,
	}
	q.notFull = sync.NewCond(&q.mu)
	return q, nil
}

// Push appends a message to the queue. Returns false if the queue is full;
// it never blocks.
func (q *RingQueue) Push(m model.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.tail-q.head > q.mask {
		return false
	}
	q.slots[q.tail&q.mask] = m
	q.tail++
	return true
}

// PushWait appends a message, blocking up to timeout for a slot to free if
// the queue is full. Returns false if the timeout elapsed with the queue
// still full. The wait is bounded; producers are never parked indefinitely.
func (q *RingQueue) PushWait(m model.Message, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	// The timer broadcast unparks waiters so they can observe the deadline;
	// sync.Cond has no timed wait of its own.
	timer := time.AfterFunc(timeout, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.notFull.Broadcast()
	})
	defer timer.Stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.tail-q.head > q.mask {
		if !time.Now().Before(deadline) {
			return false
		}
		q.notFull.Wait()
	}
	q.slots[q.tail&q.mask] = m
	q.tail++
	return true
}

// Pop removes and returns the oldest message. The second return value is
// false if the queue is empty. Single-consumer: only the drain worker calls Pop.
func (q *RingQueue) Pop() (model.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == q.tail {
		return model.Message{}, false
	}
	m := q.slots[q.head&q.mask]
	q.slots[q.head&q.mask] = model.Message{} // release payload reference
	q.head++
	q.notFull.Signal()
	return m, true
}

// Len returns the number of occupied slots.
func (q *RingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int(q.tail - q.head)
}

// Cap returns the slot count.
func (q *RingQueue) Cap() int {
	return len(q.slots)
}
