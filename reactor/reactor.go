// Package reactor implements the single-threaded event loop (component A)
// and the fixed-size reactor group (component B) from the core's data
// model: each Reactor owns a readiness Selector, a FIFO task queue and a
// scheduled-task min-heap, and is the only goroutine ever allowed to
// mutate a channel, pipeline or selection key bound to it.
//
// Grounded on the teacher's core/concurrency/eventloop.go (the
// batch/backoff loop shape) fused with reactor/reactor_linux.go and
// reactor/epoll_reactor.go (the actual epoll wiring the teacher's event
// loop never had, since it polled a Go channel rather than a selector).
package reactor

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arcwire/reactor/api"
	"github.com/arcwire/reactor/internal/logging"
	"github.com/arcwire/reactor/promise"
)

var log = logging.For("reactor")

// readyHandler is implemented by whatever CompleteRegistration attaches
// as a SelectionKey's UserData: the reactor calls HandleReady whenever
// the selector reports readiness for that key, translating it into
// inbound pipeline events. Concrete channel/transport types implement
// this; the reactor itself never interprets readiness beyond dispatch.
type readyHandler interface {
	HandleReady(ops api.ReadyOp)
}

// defaultSpinThreshold and defaultSpinWindow parameterize the
// selector-rebuild workaround (spec §4.1): if Select reports readiness
// without any ready key this many times within defaultSpinWindow, the
// selector is rebuilt.
const (
	defaultSpinThreshold = 2048
	defaultSpinWindow    = time.Second
	ioTaskRatioDefault   = 1.0 // spend up to ioElapsed on tasks after I/O

	// defaultSelectErrorThreshold bounds the selector-error rebuild path
	// (spec §7): each non-EINTR Select error triggers a rebuild, and only
	// after this many consecutive failures survive a rebuild does the
	// reactor give up and terminate.
	defaultSelectErrorThreshold = 5
)

// Reactor is the concrete api.Reactor implementation.
type Reactor struct {
	selector api.Selector
	tasks    *taskQueue
	timers   *timerQueue

	workerGID atomic.Uint64
	started   atomic.Bool

	shuttingDown atomic.Bool
	shutdown     atomic.Bool
	terminated   *promise.Promise

	quiet      time.Duration
	deadline   time.Time
	lastTaskNs atomic.Int64
	channelCnt atomic.Int64

	spinCount       int
	spinWindowStart time.Time

	consecutiveSelectErrors int

	regMu         sync.Mutex
	registrations map[uintptr]fdRegistration

	startOnce sync.Once

	pinnedCPU    int
	pinnedCPUSet bool
}

// PinToCPU records a CPU for this reactor's worker goroutine to lock
// itself to once started; NewGroup uses this to spread reactors across
// cores. Must be called before the reactor starts (before any Submit,
// Schedule or Register call).
func (r *Reactor) PinToCPU(cpu int) {
	r.pinnedCPU = cpu
	r.pinnedCPUSet = true
}

// New constructs a Reactor with a fresh platform selector but does not
// start its goroutine; the goroutine starts lazily on first Submit,
// Schedule or Register call (spec §4.1: "thread started on first task
// submission").
func New() (*Reactor, error) {
	sel, err := newPlatformSelector()
	if err != nil {
		return nil, err
	}
	r := &Reactor{
		selector:      sel,
		tasks:         newTaskQueue(),
		timers:        newTimerQueue(),
		registrations: make(map[uintptr]fdRegistration),
	}
	// The terminated promise completes after the loop has exited, when
	// nothing drains r's task queue any more, so its listeners run inline
	// on the completing goroutine instead of being submitted to r.
	r.terminated = promise.New(nil)
	return r, nil
}

// Selector exposes the reactor's selector so transports can register
// descriptors directly (the reactor itself never opens sockets).
func (r *Reactor) Selector() api.Selector { return r.selector }

func (r *Reactor) ensureStarted() {
	r.startOnce.Do(func() {
		r.started.Store(true)
		go r.run()
	})
}

// Submit enqueues task for execution on this reactor; safe from any
// goroutine (spec §4.1).
func (r *Reactor) Submit(task func()) {
	r.ensureStarted()
	r.lastTaskNs.Store(time.Now().UnixNano())
	r.tasks.push(task)
	r.selector.Wakeup()
}

// Schedule enqueues task to run no earlier than delay from now.
func (r *Reactor) Schedule(task func(), delay time.Duration) api.Cancelable {
	r.ensureStarted()
	t := r.timers.schedule(time.Now().Add(delay), task)
	r.selector.Wakeup()
	return t
}

// InEventLoop reports whether the calling goroutine is this reactor's
// worker.
func (r *Reactor) InEventLoop() bool {
	return r.started.Load() && goroutineID() == r.workerGID.Load()
}

// Register binds ch to this reactor permanently (spec §4.3/§4.1): a
// successful register is the only way a channel becomes owned by a
// reactor. If called off-reactor, the attach runs as a submitted task
// and the returned future completes on this reactor.
func (r *Reactor) Register(ch api.Channel) api.Future {
	p := promise.New(r)
	if r.shuttingDown.Load() {
		p.Failure(api.ErrShuttingDown)
		return p
	}
	do := func() {
		if err := ch.CompleteRegistration(r); err != nil {
			p.Failure(err)
			return
		}
		r.channelCnt.Add(1)
		p.Success(ch)
	}
	if r.InEventLoop() {
		do()
	} else {
		r.Submit(do)
	}
	return p
}

// ChannelClosed is called by a channel, once its state reaches closed,
// so the reactor can track the termination criterion from spec §4.1
// ("terminates when shutdown requested and queue drained and all
// registered channels closed").
func (r *Reactor) ChannelClosed() {
	r.channelCnt.Add(-1)
}

// ShutdownGracefully requests shutdown per spec §4.1.
func (r *Reactor) ShutdownGracefully(quiet, timeout time.Duration) api.Future {
	r.ensureStarted()
	r.quiet = quiet
	r.deadline = time.Now().Add(timeout)
	r.shuttingDown.Store(true)
	r.selector.Wakeup()
	return r.terminated
}

func (r *Reactor) IsShuttingDown() bool { return r.shuttingDown.Load() }
func (r *Reactor) IsShutdown() bool     { return r.shutdown.Load() }
func (r *Reactor) IsTerminated() bool   { return r.terminated.IsDone() }

// run is the reactor's main loop; it executes on exactly one goroutine
// for the reactor's entire life.
func (r *Reactor) run() {
	runtime.LockOSThread()
	if r.pinnedCPUSet {
		pinToCPU(r.pinnedCPU)
	}
	r.workerGID.Store(goroutineID())
	r.spinWindowStart = time.Now()

	var readyKeys []*api.SelectionKey
	for {
		if r.shuttingDown.Load() && r.canTerminate() {
			break
		}
		if r.shuttingDown.Load() && time.Now().After(r.deadline) {
			break
		}

		timeoutNanos := r.selectTimeout()
		ioStart := time.Now()
		keys, err := r.selector.Select(readyKeys[:0], timeoutNanos)
		if err != nil {
			if isRetryableSelectorError(err) {
				continue
			}
			r.consecutiveSelectErrors++
			log.Warn().Err(err).Int("consecutive", r.consecutiveSelectErrors).
				Msg("selector error, rebuilding selector")
			r.rebuildSelector()
			if r.consecutiveSelectErrors >= defaultSelectErrorThreshold {
				log.Error().Err(err).Msg("persistent selector failure, terminating reactor")
				r.terminated.Failure(err)
				return
			}
			continue
		}
		r.consecutiveSelectErrors = 0
		readyKeys = keys

		if len(readyKeys) == 0 && timeoutNanos == 0 {
			r.trackSpin()
		} else {
			r.spinCount = 0
			r.spinWindowStart = time.Now()
		}

		for _, key := range readyKeys {
			r.dispatchReady(key)
		}
		ioElapsed := time.Since(ioStart)

		r.runDueTimers()
		r.runTasks(ioElapsed)
	}

	r.shutdown.Store(true)
	r.selector.Close()
	r.terminated.Success(nil)
}

func (r *Reactor) dispatchReady(key *api.SelectionKey) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Warn().Interface("panic", rec).Msg("panic in readiness callback, reactor continues")
		}
	}()
	if rh, ok := key.UserData.(readyHandler); ok {
		rh.HandleReady(key.Ready)
	}
}

// canTerminate reports whether shutdown's quiescence condition is met:
// no task submitted within the last `quiet` window, and every
// registered channel has closed.
func (r *Reactor) canTerminate() bool {
	if r.channelCnt.Load() > 0 {
		return false
	}
	if r.tasks.len() > 0 || r.timers.len() > 0 {
		return false
	}
	last := time.Unix(0, r.lastTaskNs.Load())
	return time.Since(last) >= r.quiet
}

// selectTimeout implements the select-strategy described in spec §4.1:
// process tasks first if any are pending, otherwise block until the
// next scheduled deadline (capped so timers fire within one tick), or
// indefinitely if nothing is scheduled. Returns nanoseconds, or
// negative for "block indefinitely".
func (r *Reactor) selectTimeout() int64 {
	if r.tasks.len() > 0 {
		return 0 // poll non-blocking: process tasks first
	}
	if deadline, ok := r.timers.nextDeadline(); ok {
		d := time.Until(deadline)
		if d <= 0 {
			return 0
		}
		return int64(d)
	}
	if r.shuttingDown.Load() {
		// Don't block indefinitely while trying to quiesce.
		return int64(50 * time.Millisecond)
	}
	return -1
}

func (r *Reactor) runDueTimers() {
	for _, task := range r.timers.popReady(time.Now()) {
		r.runProtected(task)
	}
}

// runTasks drains the task queue, bounded by the I/O-to-task wall-time
// ratio (spec §4.1): after spending ioElapsed on I/O, spend up to
// ioElapsed on tasks, then resume the loop. A floor ensures forward
// progress even when ioElapsed is ~0 (pure task storms).
func (r *Reactor) runTasks(ioElapsed time.Duration) {
	budget := time.Duration(float64(ioElapsed) * ioTaskRatioDefault)
	if budget < time.Millisecond {
		budget = time.Millisecond
	}
	deadline := time.Now().Add(budget)
	for {
		task, ok := r.tasks.pop()
		if !ok {
			return
		}
		r.runProtected(task)
		if time.Now().After(deadline) {
			return
		}
	}
}

func (r *Reactor) runProtected(task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Warn().Interface("panic", rec).Msg("panic in reactor task, reactor continues")
		}
	}()
	task()
}

// trackSpin implements the selector-rebuild workaround (spec §4.1): if
// the selector reports "ready but no key" defaultSpinThreshold times
// within defaultSpinWindow, rebuild it.
func (r *Reactor) trackSpin() {
	r.spinCount++
	if time.Since(r.spinWindowStart) > defaultSpinWindow {
		r.spinCount = 0
		r.spinWindowStart = time.Now()
		return
	}
	if r.spinCount < defaultSpinThreshold {
		return
	}
	r.rebuildSelector()
	r.spinCount = 0
	r.spinWindowStart = time.Now()
}

// goroutineID returns an identifier for the calling goroutine, parsed
// from its runtime stack header ("goroutine N [state]:"). It is used
// only for the InEventLoop assertion, never for scheduling decisions.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	fields := bytes.Fields(buf)
	if len(fields) < 2 {
		return 0
	}
	id, _ := strconv.ParseUint(string(fields[1]), 10, 64)
	return id
}
