package bootstrap

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/arcwire/reactor/api"
	"github.com/arcwire/reactor/channel"
	"github.com/arcwire/reactor/promise"
)

// fakeTransport is a no-op api.Transport double for bootstrap tests.
type fakeTransport struct {
	closed bool
}

func (t *fakeTransport) Attach(api.Reactor)                  {}
func (t *fakeTransport) Bind(string, api.Promise)            {}
func (t *fakeTransport) Connect(string, string, api.Promise) {}
func (t *fakeTransport) Disconnect(p api.Promise)            { p.Success(nil) }
func (t *fakeTransport) Close(p api.Promise) {
	t.closed = true
	p.Success(nil)
}
func (t *fakeTransport) Deregister(p api.Promise)          { p.Success(nil) }
func (t *fakeTransport) BeginRead()                        {}
func (t *fakeTransport) Write(any, api.Promise)            {}
func (t *fakeTransport) Flush()                            {}
func (t *fakeTransport) FD() (uintptr, bool)               { return 0, false }
func (t *fakeTransport) SupportsOption(api.OptionKey) bool { return true }

// fakeReactor runs everything inline; used as the sole member of a
// single-reactor fakeGroup.
type fakeReactor struct{ registerErr error }

func (r *fakeReactor) Submit(task func())                            { task() }
func (r *fakeReactor) Schedule(func(), time.Duration) api.Cancelable { return nil }
func (r *fakeReactor) InEventLoop() bool                             { return true }
func (r *fakeReactor) Register(ch api.Channel) api.Future {
	if r.registerErr != nil {
		return promise.Failed(r, r.registerErr)
	}
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
func (r *fakeReactor) ChannelClosed()                                {}
func (r *fakeReactor) ShutdownGracefully(time.Duration, time.Duration) api.Future {
	return promise.Completed(r, nil)
}
func (r *fakeReactor) IsShuttingDown() bool { return false }
func (r *fakeReactor) IsShutdown() bool     { return false }
func (r *fakeReactor) IsTerminated() bool   { return false }

type fakeGroup struct{ r *fakeReactor }

func (g *fakeGroup) Next() api.Reactor       { return g.r }
func (g *fakeGroup) Reactors() []api.Reactor { return []api.Reactor{g.r} }
func (g *fakeGroup) ShutdownGracefully(time.Duration, time.Duration) api.Future {
	return promise.Completed(g.r, nil)
}
func (g *fakeGroup) AwaitTermination(time.Duration) bool { return true }
func (g *fakeGroup) IsShuttingDown() bool                { return false }
func (g *fakeGroup) IsShutdown() bool                    { return false }
func (g *fakeGroup) IsTerminated() bool                  { return false }

type markerInitializer struct{ initialized int }

func (m *markerInitializer) HandlerAdded(api.HandlerContext)   {}
func (m *markerInitializer) HandlerRemoved(api.HandlerContext) {}
func (m *markerInitializer) InitChannel(ch api.Channel) error {
	m.initialized++
	return nil
}

func TestAcceptorRegistersAcceptedChildOnChildGroup(t *testing.T) {
	childReactor := &fakeReactor{}
	group := &fakeGroup{r: childReactor}
	init := &markerInitializer{}

	a := newAcceptor(group, init, api.NewOptionMap(), nil)
	child := channel.New(&fakeTransport{}, true)

	ctx := &stubContext{ch: parentChannel()}
	a.ChannelRead(ctx, child)

	assert.Equal(t, api.StateActive, child.State())
	assert.Equal(t, 1, init.initialized)
}

func TestAcceptorForwardsNonChannelMessages(t *testing.T) {
	group := &fakeGroup{r: &fakeReactor{}}
	a := newAcceptor(group, &markerInitializer{}, api.NewOptionMap(), nil)

	ctx := &stubContext{ch: parentChannel()}
	a.ChannelRead(ctx, "not a channel")

	assert.True(t, ctx.firedRead, "non-channel messages must be forwarded, not swallowed")
}

func TestAcceptorClosesChildOnRegistrationFailure(t *testing.T) {
	boom := errors.New("registration refused")
	childReactor := &fakeReactor{registerErr: boom}
	group := &fakeGroup{r: childReactor}
	init := &markerInitializer{}
	transport := &fakeTransport{}

	a := newAcceptor(group, init, api.NewOptionMap(), nil)
	child := channel.New(transport, true)

	ctx := &stubContext{ch: parentChannel()}
	a.ChannelRead(ctx, child)

	assert.True(t, transport.closed, "a child that fails to register must be closed")
}

// parentChannel returns a throwaway, never-registered channel used only
// as stubContext's Channel() return value in these tests.
func parentChannel() api.Channel {
	return channel.New(&fakeTransport{}, false)
}

// stubContext is a minimal api.HandlerContext double: only the methods
// the acceptor actually calls are meaningfully implemented.
type stubContext struct {
	ch        api.Channel
	firedRead bool
}

func (c *stubContext) Name() string           { return "acceptor" }
func (c *stubContext) Handler() any           { return nil }
func (c *stubContext) Channel() api.Channel   { return c.ch }
func (c *stubContext) Pipeline() api.Pipeline { return c.ch.Pipeline() }
func (c *stubContext) Executor() api.Executor { return &inlineExecutor{} }

func (c *stubContext) FireChannelRegistered()         {}
func (c *stubContext) FireChannelUnregistered()       {}
func (c *stubContext) FireChannelActive()             {}
func (c *stubContext) FireChannelInactive()           {}
func (c *stubContext) FireChannelRead(msg any)        { c.firedRead = true }
func (c *stubContext) FireChannelReadComplete()       {}
func (c *stubContext) FireUserEventTriggered(any)     {}
func (c *stubContext) FireChannelWritabilityChanged() {}
func (c *stubContext) FireExceptionCaught(error)      {}

func (c *stubContext) Bind(string) api.Future       { return nil }
func (c *stubContext) Connect(string) api.Future    { return nil }
func (c *stubContext) Disconnect() api.Future       { return nil }
func (c *stubContext) Close() api.Future            { return nil }
func (c *stubContext) Deregister() api.Future       { return nil }
func (c *stubContext) Read() api.Future             { return nil }
func (c *stubContext) Write(any) api.Future         { return nil }
func (c *stubContext) Flush()                       {}
func (c *stubContext) WriteAndFlush(any) api.Future { return nil }

type inlineExecutor struct{}

func (inlineExecutor) Submit(task func())                            { task() }
func (inlineExecutor) Schedule(func(), time.Duration) api.Cancelable { return nil }
func (inlineExecutor) InEventLoop() bool                             { return true }
