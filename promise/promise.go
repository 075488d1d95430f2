// Package promise implements api.Promise/api.Future: a write-once result
// container whose listeners always run on a named api.Executor, in the
// order they were attached (spec §3, §5 invariant 4).
package promise

import (
	"sync"

	"github.com/arcwire/reactor/api"
)

type state int32

const (
	stateIncomplete state = iota
	stateSuccess
	stateFailure
	stateCancelled
)

// Promise is the concrete api.Promise/api.Future implementation.
type Promise struct {
	mu        sync.Mutex
	st        state
	value     any
	err       error
	executor  api.Executor
	done      chan struct{}
	closed    bool
	listeners []func(api.Future)
}

// New returns an incomplete Promise whose listeners will be invoked on
// executor.
func New(executor api.Executor) *Promise {
	return &Promise{executor: executor, done: make(chan struct{})}
}

// Completed returns an already-successfully-completed Promise, useful
// for synchronous fast paths (e.g. a no-op Flush).
func Completed(executor api.Executor, value any) *Promise {
	p := New(executor)
	p.Success(value)
	return p
}

// Failed returns an already-failed Promise.
func Failed(executor api.Executor, err error) *Promise {
	p := New(executor)
	p.Failure(err)
	return p
}

func (p *Promise) Executor() api.Executor { return p.executor }

func (p *Promise) IsDone() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st != stateIncomplete
}

func (p *Promise) IsSuccess() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st == stateSuccess
}

func (p *Promise) IsCancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st == stateCancelled
}

func (p *Promise) Cause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Promise) Result() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Success completes the promise successfully; returns false if the
// promise had already completed (a no-op, per spec §3 write-once).
func (p *Promise) Success(v any) bool {
	return p.complete(stateSuccess, v, nil)
}

// Failure completes the promise with err; returns false if already
// completed.
func (p *Promise) Failure(err error) bool {
	return p.complete(stateFailure, nil, err)
}

// Cancel completes the promise as cancelled if it has not yet completed
// (spec §5). It does not stop the backing work, so callers that know
// that work has already begun should not call Cancel.
func (p *Promise) Cancel() bool {
	return p.complete(stateCancelled, nil, nil)
}

func (p *Promise) complete(st state, v any, err error) bool {
	p.mu.Lock()
	if p.st != stateIncomplete {
		p.mu.Unlock()
		return false
	}
	p.st = st
	p.value = v
	p.err = err
	listeners := p.listeners
	p.listeners = nil
	if !p.closed {
		close(p.done)
		p.closed = true
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		p.runListener(fn)
	}
	return true
}

// AddListener registers fn to run on Executor() once this promise
// completes; if it has already completed, fn is scheduled immediately,
// preserving the order listeners were attached across both the pending
// and already-complete paths.
func (p *Promise) AddListener(fn func(api.Future)) api.Future {
	p.mu.Lock()
	if p.st == stateIncomplete {
		p.listeners = append(p.listeners, fn)
		p.mu.Unlock()
		return p
	}
	p.mu.Unlock()
	p.runListener(fn)
	return p
}

func (p *Promise) runListener(fn func(api.Future)) {
	if p.executor == nil {
		fn(p)
		return
	}
	p.executor.Submit(func() { fn(p) })
}

// Await blocks the calling goroutine until the promise completes.
func (p *Promise) Await() api.Future {
	<-p.done
	return p
}
