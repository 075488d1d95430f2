package reactor

import (
	"sync"

	"github.com/eapache/queue"
)

// taskQueue is the reactor's FIFO task queue: multi-producer (any
// goroutine may Push), single-consumer (only the reactor's own worker
// goroutine Pops). It is the one synchronized structure on the hot path,
// built atop the teacher corpus's own eapache/queue ring buffer rather
// than a channel, so the reactor can drain an unbounded backlog in one
// pass without blocking producers.
type taskQueue struct {
	mu sync.Mutex
	q  *queue.Queue
}

func newTaskQueue() *taskQueue {
	return &taskQueue{q: queue.New()}
}

// push enqueues task; safe from any goroutine.
func (tq *taskQueue) push(task func()) {
	tq.mu.Lock()
	tq.q.Add(task)
	tq.mu.Unlock()
}

// pop removes and returns the oldest task, or (nil, false) if empty.
// Only the reactor's worker goroutine calls pop.
func (tq *taskQueue) pop() (func(), bool) {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	if tq.q.Length() == 0 {
		return nil, false
	}
	t := tq.q.Peek().(func())
	tq.q.Remove()
	return t, true
}

// len returns the approximate current depth, used by the select
// strategy to decide whether to poll or block.
func (tq *taskQueue) len() int {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	return tq.q.Length()
}
