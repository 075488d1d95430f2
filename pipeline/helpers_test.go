package pipeline_test

import (
	"github.com/arcwire/reactor/api"
)

// fakeTransport is a minimal api.Transport double: it records calls
// instead of touching any real descriptor, letting pipeline tests
// exercise outbound propagation down to the transport head without a
// socket.
type fakeTransport struct {
	reactor    api.Reactor
	writes     []any
	flushCount int
	reads      int
	bound      string
}

func (t *fakeTransport) Attach(r api.Reactor) { t.reactor = r }

func (t *fakeTransport) Bind(localAddr string, promise api.Promise) {
	t.bound = localAddr
	promise.Success(nil)
}
func (t *fakeTransport) Connect(remoteAddr, localAddr string, promise api.Promise) {
	promise.Success(nil)
}
func (t *fakeTransport) Disconnect(promise api.Promise) { promise.Success(nil) }
func (t *fakeTransport) Close(promise api.Promise)      { promise.Success(nil) }
func (t *fakeTransport) Deregister(promise api.Promise) { promise.Success(nil) }
func (t *fakeTransport) BeginRead()                     { t.reads++ }
func (t *fakeTransport) Write(msg any, promise api.Promise) {
	t.writes = append(t.writes, msg)
	promise.Success(nil)
}
func (t *fakeTransport) Flush()                            { t.flushCount++ }
func (t *fakeTransport) FD() (uintptr, bool)               { return 0, false }
func (t *fakeTransport) SupportsOption(api.OptionKey) bool { return true }

// fakeChannel is a minimal api.Channel double whose EventLoop is nil, so
// every pipeline mutation and dispatch in these tests runs inline on the
// calling goroutine.
type fakeChannel struct {
	id         string
	transport  api.Transport
	pl         api.Pipeline
	config     *api.OptionMap
	attrs      *api.AttributeMap
	state      api.ChannelState
	registered bool
	active     bool
}

func newFakeChannel(transport api.Transport) *fakeChannel {
	return &fakeChannel{
		id:        "fake-ch",
		transport: transport,
		config:    api.NewOptionMap(),
		attrs:     api.NewAttributeMap(),
	}
}

func (c *fakeChannel) ID() string                     { return c.id }
func (c *fakeChannel) Pipeline() api.Pipeline         { return c.pl }
func (c *fakeChannel) Config() api.Config             { return fakeConfig{c.config} }
func (c *fakeChannel) Transport() api.Transport       { return c.transport }
func (c *fakeChannel) Attr(k api.AttrKey) (any, bool) { return c.attrs.Get(k) }
func (c *fakeChannel) SetAttr(k api.AttrKey, v any)   { c.attrs.Set(k, v) }
func (c *fakeChannel) IsActive() bool                 { return c.active }
func (c *fakeChannel) IsRegistered() bool             { return c.registered }
func (c *fakeChannel) State() api.ChannelState        { return c.state }
func (c *fakeChannel) EventLoop() api.Reactor         { return nil }

func (c *fakeChannel) Bind(string) api.Future       { return nil }
func (c *fakeChannel) Connect(string) api.Future    { return nil }
func (c *fakeChannel) Disconnect() api.Future       { return nil }
func (c *fakeChannel) Close() api.Future            { return nil }
func (c *fakeChannel) Deregister() api.Future       { return nil }
func (c *fakeChannel) Read() api.Future             { return nil }
func (c *fakeChannel) Write(any) api.Future         { return nil }
func (c *fakeChannel) Flush()                       {}
func (c *fakeChannel) WriteAndFlush(any) api.Future { return nil }

func (c *fakeChannel) CompleteRegistration(api.Reactor) error { return nil }

type fakeConfig struct{ m *api.OptionMap }

func (f fakeConfig) Set(k api.OptionKey, v any) error { return f.m.Set(k, v) }
func (f fakeConfig) Get(k api.OptionKey) (any, bool)  { return f.m.Get(k) }
func (f fakeConfig) Options() *api.OptionMap          { return f.m }
