package reactor

import (
	"container/heap"
	"sync"
	"time"
)

// timerTask is one entry in the reactor's scheduled-task min-heap,
// ordered by deadline (spec §3: "a min-heap of (deadline, runnable)
// scheduled tasks").
type timerTask struct {
	deadline  time.Time
	run       func()
	cancelled bool
	index     int
}

// Cancel marks the task cancelled; per spec §5 this does not remove it
// from the heap immediately — the reactor discards it lazily on pop.
func (t *timerTask) Cancel() bool {
	if t == nil || t.cancelled {
		return false
	}
	t.cancelled = true
	return true
}

type timerHeap []*timerTask

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timerHeap) Push(x any) {
	t := x.(*timerTask)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// timerQueue guards a timerHeap with a mutex; scheduling may be called
// from any goroutine (via Reactor.Schedule), but only the reactor's
// worker goroutine pops ready tasks out of it.
type timerQueue struct {
	mu sync.Mutex
	h  timerHeap
}

func newTimerQueue() *timerQueue {
	return &timerQueue{}
}

func (tq *timerQueue) schedule(deadline time.Time, run func()) *timerTask {
	t := &timerTask{deadline: deadline, run: run}
	tq.mu.Lock()
	heap.Push(&tq.h, t)
	tq.mu.Unlock()
	return t
}

// nextDeadline returns the deadline of the earliest non-cancelled task
// without removing that task, or ok=false if the heap is empty. Cancelled
// entries it finds at the top of the heap are discarded.
func (tq *timerQueue) nextDeadline() (deadline time.Time, ok bool) {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	for tq.h.Len() > 0 {
		t := tq.h[0]
		if t.cancelled {
			heap.Pop(&tq.h)
			continue
		}
		return t.deadline, true
	}
	return time.Time{}, false
}

// popReady removes and returns every task whose deadline is <= now,
// discarding cancelled entries it encounters along the way.
func (tq *timerQueue) popReady(now time.Time) []func() {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	var ready []func()
	for tq.h.Len() > 0 {
		t := tq.h[0]
		if t.cancelled {
			heap.Pop(&tq.h)
			continue
		}
		if t.deadline.After(now) {
			break
		}
		heap.Pop(&tq.h)
		ready = append(ready, t.run)
	}
	return ready
}

func (tq *timerQueue) len() int {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	return tq.h.Len()
}
