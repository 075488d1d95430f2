package api

// HandlerContext is the pipeline's view of a handler's position: the
// fire* methods propagate an inbound event to the next applicable
// context, the rest issue outbound operations starting from this
// context's position. Implemented by pipeline.context; declared here so
// handler implementations (which live outside the pipeline package) can
// depend on it without an import cycle.
type HandlerContext interface {
	Name() string
	Handler() any
	Channel() Channel
	Pipeline() Pipeline
	Executor() Executor

	FireChannelRegistered()
	FireChannelUnregistered()
	FireChannelActive()
	FireChannelInactive()
	FireChannelRead(msg any)
	FireChannelReadComplete()
	FireUserEventTriggered(evt any)
	FireChannelWritabilityChanged()
	FireExceptionCaught(err error)

	Bind(localAddr string) Future
	Connect(remoteAddr string) Future
	Disconnect() Future
	Close() Future
	Deregister() Future
	Read() Future
	Write(msg any) Future
	Flush()
	WriteAndFlush(msg any) Future
}

// Handler is the minimal tag every pipeline participant satisfies; a
// concrete handler additionally implements whichever of the per-event
// interfaces below describe the events it cares about. There is no
// universal base interface listing every method: a handler's mask is
// exactly the set of these optional interfaces it satisfies, so a type
// that defines only ChannelRead carries only MaskChannelRead, with no
// "skip" bookkeeping required.
type Handler interface {
	// HandlerAdded is called once, before the context becomes reachable
	// by dispatch, on the context's executor.
	HandlerAdded(ctx HandlerContext)
	// HandlerRemoved is called once, after the context is unreachable by
	// dispatch, on the context's executor.
	HandlerRemoved(ctx HandlerContext)
}

// Sharable marks a handler instance as safe to add to more than one
// pipeline context concurrently. Adding a non-sharable handler instance
// to a pipeline that already holds it is a configuration error
// (ErrNotSharable); adding it to a different pipeline is not detected.
type Sharable interface {
	Sharable() bool
}

// Inbound per-event capability interfaces.
type (
	ChannelRegisteredHandler interface {
		ChannelRegistered(ctx HandlerContext)
	}
	ChannelUnregisteredHandler interface {
		ChannelUnregistered(ctx HandlerContext)
	}
	ChannelActiveHandler interface {
		ChannelActive(ctx HandlerContext)
	}
	ChannelInactiveHandler interface {
		ChannelInactive(ctx HandlerContext)
	}
	ChannelReadHandler interface {
		ChannelRead(ctx HandlerContext, msg any)
	}
	ChannelReadCompleteHandler interface {
		ChannelReadComplete(ctx HandlerContext)
	}
	UserEventTriggeredHandler interface {
		UserEventTriggered(ctx HandlerContext, evt any)
	}
	ChannelWritabilityChangedHandler interface {
		ChannelWritabilityChanged(ctx HandlerContext)
	}
	ExceptionCaughtHandler interface {
		ExceptionCaught(ctx HandlerContext, err error)
	}
)

// Outbound per-event capability interfaces.
type (
	BindHandler interface {
		Bind(ctx HandlerContext, localAddr string, promise Promise)
	}
	ConnectHandler interface {
		Connect(ctx HandlerContext, remoteAddr string, promise Promise)
	}
	DisconnectHandler interface {
		Disconnect(ctx HandlerContext, promise Promise)
	}
	CloseHandler interface {
		Close(ctx HandlerContext, promise Promise)
	}
	DeregisterHandler interface {
		Deregister(ctx HandlerContext, promise Promise)
	}
	ReadHandler interface {
		Read(ctx HandlerContext)
	}
	WriteHandler interface {
		Write(ctx HandlerContext, msg any, promise Promise)
	}
	FlushHandler interface {
		Flush(ctx HandlerContext)
	}
)

// Initializer is the deferred-initialization handler described in
// spec §4.4: when channelRegistered reaches it, InitChannel populates
// the real pipeline, and the pipeline removes this handler afterward.
// InitChannel must run at most once per channel even if HandlerAdded and
// channelRegistered race (spec §8 invariant 3).
type Initializer interface {
	Handler
	InitChannel(ch Channel) error
}
