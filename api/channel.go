package api

// Config is a Channel's configuration surface: a set of recognized
// options (see OptionKey) backed by an OptionMap.
type Config interface {
	Set(key OptionKey, value any) error
	Get(key OptionKey) (any, bool)
	Options() *OptionMap
}

// Channel abstracts one network endpoint: a listening socket or an
// accepted connection. Every operation is safe to call from any
// goroutine; if the caller is not on the channel's reactor, the
// operation is enqueued as a task and the returned Future completes on
// that reactor (spec §4.3).
type Channel interface {
	// ID is a stable identity for logging/debugging.
	ID() string

	Bind(localAddr string) Future
	Connect(remoteAddr string) Future
	Disconnect() Future
	Close() Future
	Deregister() Future
	Read() Future
	Write(msg any) Future
	Flush()
	WriteAndFlush(msg any) Future

	Pipeline() Pipeline
	Config() Config
	Attr(key AttrKey) (any, bool)
	SetAttr(key AttrKey, value any)

	IsActive() bool
	IsRegistered() bool
	State() ChannelState
	EventLoop() Reactor

	// Transport exposes the external collaborator backing this channel's
	// head-of-pipeline operations.
	Transport() Transport

	// CompleteRegistration performs the registration order of effects:
	// attach to r, fire channelRegistered, and — if this channel is
	// already active (an accepted child) — fire channelActive and, if
	// auto-read, issue a read. It does not fire handlerAdded: a context
	// added before registration already had handlerAdded run at add
	// time, on the adding goroutine. It is called by r
	// itself, already running on r's own goroutine; callers should use
	// Reactor.Register instead of calling this directly.
	CompleteRegistration(r Reactor) error
}

// Pipeline is the ordered chain of handler contexts attached to a
// Channel. Mutation methods are safe from any goroutine; calls off the
// owning reactor are enqueued as tasks (spec §4.4, §5).
type Pipeline interface {
	AddFirst(name string, h Handler) Pipeline
	AddLast(name string, h Handler) Pipeline
	AddBefore(baseName, name string, h Handler) Pipeline
	AddAfter(baseName, name string, h Handler) Pipeline
	Replace(oldName, newName string, h Handler) Pipeline
	Remove(name string) Pipeline

	Get(name string) HandlerContext
	Names() []string

	Channel() Channel

	FireChannelRegistered() Pipeline
	FireChannelUnregistered() Pipeline
	FireChannelActive() Pipeline
	FireChannelInactive() Pipeline
	FireChannelRead(msg any) Pipeline
	FireChannelReadComplete() Pipeline
	FireUserEventTriggered(evt any) Pipeline
	FireChannelWritabilityChanged() Pipeline
	FireExceptionCaught(err error) Pipeline

	Bind(localAddr string, promise Promise) Future
	Connect(remoteAddr string, promise Promise) Future
	Disconnect(promise Promise) Future
	Close(promise Promise) Future
	Deregister(promise Promise) Future
	Read() Pipeline
	Write(msg any, promise Promise) Future
	Flush() Pipeline
	WriteAndFlush(msg any, promise Promise) Future
}
