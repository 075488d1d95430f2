package channel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcwire/reactor/api"
	"github.com/arcwire/reactor/channel"
	"github.com/arcwire/reactor/promise"
)

// fakeTransport is a minimal api.Transport double recording lifecycle
// calls instead of touching any real descriptor.
type fakeTransport struct {
	attached   api.Reactor
	closed     bool
	beginReads int
}

func (t *fakeTransport) Attach(r api.Reactor)                { t.attached = r }
func (t *fakeTransport) Bind(string, api.Promise)            {}
func (t *fakeTransport) Connect(string, string, api.Promise) {}
func (t *fakeTransport) Disconnect(promise api.Promise)      { promise.Success(nil) }
func (t *fakeTransport) Close(promise api.Promise) {
	t.closed = true
	promise.Success(nil)
}
func (t *fakeTransport) Deregister(promise api.Promise)      { promise.Success(nil) }
func (t *fakeTransport) BeginRead()                          { t.beginReads++ }
func (t *fakeTransport) Write(any, api.Promise)              {}
func (t *fakeTransport) Flush()                              {}
func (t *fakeTransport) FD() (uintptr, bool)                 { return 0, false }
func (t *fakeTransport) SupportsOption(api.OptionKey) bool   { return true }

// fakeReactor runs everything inline, synchronously, so channel tests
// don't need a real selector/goroutine.
type fakeReactor struct {
	closedChannels int
}

func (r *fakeReactor) Submit(task func())                            { task() }
func (r *fakeReactor) Schedule(func(), time.Duration) api.Cancelable { return nil }
func (r *fakeReactor) InEventLoop() bool                             { return true }
func (r *fakeReactor) Register(ch api.Channel) api.Future {
	if err := ch.CompleteRegistration(r); err != nil {
		return promise.Failed(r, err)
	}
	return promise.Completed(r, ch)
}
func (r *fakeReactor) RegisterFD(uintptr, api.ReadyOp, any) (*api.SelectionKey, error) {
	return &api.SelectionKey{}, nil
}
func (r *fakeReactor) ModifyFD(*api.SelectionKey, api.ReadyOp) error { return nil }
func (r *fakeReactor) CancelFD(*api.SelectionKey) error              { return nil }
func (r *fakeReactor) ChannelClosed()                                { r.closedChannels++ }
func (r *fakeReactor) ShutdownGracefully(time.Duration, time.Duration) api.Future {
	return promise.Completed(r, nil)
}
func (r *fakeReactor) IsShuttingDown() bool { return false }
func (r *fakeReactor) IsShutdown() bool     { return false }
func (r *fakeReactor) IsTerminated() bool   { return false }

func TestCompleteRegistrationOrderOfEffectsForAcceptedChild(t *testing.T) {
	transport := &fakeTransport{}
	ch := channel.New(transport, true) // startActive: an accepted child

	r := &fakeReactor{}
	require.NoError(t, ch.CompleteRegistration(r))

	assert.Equal(t, api.StateActive, ch.State())
	assert.True(t, ch.IsActive())
	assert.True(t, ch.IsRegistered())
	assert.Same(t, r, transport.attached)
	assert.Equal(t, 1, transport.beginReads, "auto-read must issue one BeginRead once active")
}

func TestCompleteRegistrationForListeningChannelStopsAtRegistered(t *testing.T) {
	transport := &fakeTransport{}
	ch := channel.New(transport, false) // a listening channel, not yet bound

	r := &fakeReactor{}
	require.NoError(t, ch.CompleteRegistration(r))

	assert.Equal(t, api.StateRegistered, ch.State())
	assert.False(t, ch.IsActive())
	assert.Equal(t, 0, transport.beginReads)
}

func TestDoubleRegistrationFails(t *testing.T) {
	transport := &fakeTransport{}
	ch := channel.New(transport, false)
	r := &fakeReactor{}

	require.NoError(t, ch.CompleteRegistration(r))
	assert.ErrorIs(t, ch.CompleteRegistration(r), api.ErrAlreadyRegistered)
}

func TestCloseTransitionsToClosedAndNotifiesReactor(t *testing.T) {
	transport := &fakeTransport{}
	ch := channel.New(transport, true)
	r := &fakeReactor{}
	require.NoError(t, ch.CompleteRegistration(r))

	ch.Close().Await()

	assert.Equal(t, api.StateClosed, ch.State())
	assert.True(t, transport.closed)
	assert.Equal(t, 1, r.closedChannels)
}

func TestSetAutoReadOnWhileActiveTriggersRead(t *testing.T) {
	transport := &fakeTransport{}
	ch := channel.New(transport, true)
	r := &fakeReactor{}
	require.NoError(t, ch.CompleteRegistration(r))

	before := transport.beginReads
	ch.SetAutoRead(false)
	ch.SetAutoRead(true)

	assert.Greater(t, transport.beginReads, before)
	assert.True(t, ch.AutoRead())
}

func TestOpsOnClosedChannelFailWithErrClosed(t *testing.T) {
	transport := &fakeTransport{}
	ch := channel.New(transport, true)
	r := &fakeReactor{}
	require.NoError(t, ch.CompleteRegistration(r))

	ch.Close().Await()
	require.Equal(t, api.StateClosed, ch.State())

	assert.ErrorIs(t, ch.Bind("localhost:0").Await().Cause(), api.ErrClosed)
	assert.ErrorIs(t, ch.Connect("localhost:0").Await().Cause(), api.ErrClosed)
	assert.ErrorIs(t, ch.Disconnect().Await().Cause(), api.ErrClosed)
	assert.ErrorIs(t, ch.Deregister().Await().Cause(), api.ErrClosed)
	assert.ErrorIs(t, ch.Read().Await().Cause(), api.ErrClosed)
	assert.ErrorIs(t, ch.Write("x").Await().Cause(), api.ErrClosed)
	assert.ErrorIs(t, ch.WriteAndFlush("x").Await().Cause(), api.ErrClosed)

	// Flush has no return value; it must simply not panic on a closed channel.
	assert.NotPanics(t, func() { ch.Flush() })
}

func TestAttributesRoundTrip(t *testing.T) {
	key := api.NewAttrKey("channel_test.marker")
	ch := channel.New(&fakeTransport{}, false)

	_, ok := ch.Attr(key)
	assert.False(t, ok)

	ch.SetAttr(key, 42)
	v, ok := ch.Attr(key)
	require.True(t, ok)
	assert.Equal(t, 42, v)
}
