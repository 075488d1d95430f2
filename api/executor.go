package api

import "time"

// Executor is anything that can run a submitted task and report whether
// the calling goroutine is already running on it. A Reactor is the
// canonical Executor; handlers may instead be bound to an override
// executor (e.g. a fixed worker pool) per spec §5, at the cost of losing
// per-channel ordering relative to handlers on other executors.
type Executor interface {
	// Submit enqueues task for execution; safe from any goroutine.
	Submit(task func())
	// Schedule enqueues task to run no earlier than delay from now.
	Schedule(task func(), delay time.Duration) Cancelable
	// InEventLoop reports whether the calling goroutine is this
	// executor's worker.
	InEventLoop() bool
}

// Cancelable is a handle on a scheduled task. Cancellation does not
// remove the task from the reactor's timer heap immediately; the
// reactor discards it lazily on pop (spec §5).
type Cancelable interface {
	Cancel() bool
}
