package reactor_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcwire/reactor/reactor"
)

func newTestReactor(t *testing.T) *reactor.Reactor {
	t.Helper()
	r, err := reactor.New()
	require.NoError(t, err)
	return r
}

func TestSubmitRunsOnTheReactorGoroutine(t *testing.T) {
	r := newTestReactor(t)

	done := make(chan struct{})
	var inLoop bool
	r.Submit(func() {
		inLoop = r.InEventLoop()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submitted task never ran")
	}
	assert.True(t, inLoop, "a task running via Submit must observe InEventLoop() == true")
	assert.False(t, r.InEventLoop(), "the calling (test) goroutine is never the reactor's worker")
}

func TestSubmitPreservesFIFOOrder(t *testing.T) {
	r := newTestReactor(t)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		n := i
		r.Submit(func() {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			wg.Done()
		})
	}

	waitWithTimeout(t, &wg, time.Second)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestScheduleRunsNoEarlierThanDelay(t *testing.T) {
	r := newTestReactor(t)

	start := time.Now()
	done := make(chan time.Time, 1)
	r.Schedule(func() {
		done <- time.Now()
	}, 50*time.Millisecond)

	select {
	case fired := <-done:
		assert.GreaterOrEqual(t, fired.Sub(start), 45*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("scheduled task never ran")
	}
}

func TestScheduleCancelPreventsExecution(t *testing.T) {
	r := newTestReactor(t)

	var ran atomic.Bool
	cancel := r.Schedule(func() { ran.Store(true) }, 30*time.Millisecond)
	assert.True(t, cancel.Cancel())

	time.Sleep(100 * time.Millisecond)
	assert.False(t, ran.Load(), "a cancelled scheduled task must not run")
}

func TestShutdownGracefullyTerminatesWithNoWork(t *testing.T) {
	r := newTestReactor(t)

	future := r.ShutdownGracefully(10*time.Millisecond, time.Second)
	future.Await()

	assert.True(t, r.IsTerminated())
	assert.True(t, r.IsShutdown())
	assert.True(t, r.IsShuttingDown())
}

func waitWithTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for tasks to complete")
	}
}
