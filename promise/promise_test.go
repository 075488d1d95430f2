package promise_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcwire/reactor/api"
	"github.com/arcwire/reactor/promise"
)

// inlineExecutor runs submitted tasks synchronously, on the calling
// goroutine, so listener-order assertions don't race against a real
// worker.
type inlineExecutor struct{}

func (inlineExecutor) Submit(task func())                            { task() }
func (inlineExecutor) Schedule(func(), time.Duration) api.Cancelable { return nil }
func (inlineExecutor) InEventLoop() bool                             { return true }

func TestPromiseWriteOnce(t *testing.T) {
	p := promise.New(inlineExecutor{})

	require.True(t, p.Success(42))
	require.False(t, p.Success(43), "a second Success must be a no-op")
	require.False(t, p.Failure(errors.New("too late")), "Failure after Success must be a no-op")

	assert.True(t, p.IsDone())
	assert.True(t, p.IsSuccess())
	assert.Equal(t, 42, p.Result())
	assert.Nil(t, p.Cause())
}

func TestPromiseFailure(t *testing.T) {
	p := promise.New(inlineExecutor{})
	boom := errors.New("boom")

	require.True(t, p.Failure(boom))
	assert.True(t, p.IsDone())
	assert.False(t, p.IsSuccess())
	assert.Same(t, boom, p.Cause())
}

func TestPromiseListenersRunInAdditionOrder(t *testing.T) {
	p := promise.New(inlineExecutor{})
	var order []int
	var mu sync.Mutex

	record := func(n int) func(api.Future) {
		return func(api.Future) {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}
	}

	p.AddListener(record(1))
	p.AddListener(record(2))
	p.Success(nil)
	// Listeners added after completion still run, in the order attached.
	p.AddListener(record(3))

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestPromiseAwaitBlocksUntilCompletion(t *testing.T) {
	p := promise.New(inlineExecutor{})
	done := make(chan struct{})

	go func() {
		p.Await()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Await returned before the promise completed")
	case <-time.After(20 * time.Millisecond):
	}

	p.Success("done")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Await did not unblock after completion")
	}
}

func TestCompletedAndFailed(t *testing.T) {
	c := promise.Completed(inlineExecutor{}, "value")
	assert.True(t, c.IsSuccess())
	assert.Equal(t, "value", c.Result())

	boom := errors.New("boom")
	f := promise.Failed(inlineExecutor{}, boom)
	assert.False(t, f.IsSuccess())
	assert.Same(t, boom, f.Cause())
}
