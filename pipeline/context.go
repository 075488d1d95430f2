package pipeline

import (
	"fmt"

	"github.com/arcwire/reactor/api"
)

// context is the concrete api.HandlerContext: one node in the pipeline's
// doubly linked list, carrying the handler, its computed mask, an
// optional override executor, and the added/removed guard flags from
// spec §3 ("Handler Context").
type context struct {
	name    string
	handler api.Handler
	mask    api.EventMask
	pl      *Pipeline

	// overrideExecutor is set only when the handler was added with an
	// explicit executor (spec §5); nil means "dispatch on the channel's
	// reactor", resolved fresh on every call via resolveExecutor so a
	// context created before the channel is registered still ends up on
	// the reactor once one is assigned, instead of being pinned to the
	// nil snapshot it was built with.
	overrideExecutor api.Executor

	prev, next *context

	isHead, isTail bool
	added, removed bool
}

func (c *context) Name() string           { return c.name }
func (c *context) Handler() any           { return c.handler }
func (c *context) Channel() api.Channel   { return c.pl.channel }
func (c *context) Pipeline() api.Pipeline { return c.pl }
func (c *context) Executor() api.Executor { return c.resolveExecutor() }

// resolveExecutor returns the override executor if one was set,
// otherwise the channel's current reactor (spec §3's default: "every
// context's executor is the channel's reactor unless the handler was
// added with an explicit override executor"). It is nil only when the
// channel has no reactor yet, i.e. before registration.
func (c *context) resolveExecutor() api.Executor {
	if c.overrideExecutor != nil {
		return c.overrideExecutor
	}
	return c.pl.channel.EventLoop()
}

// runOn invokes fn on c's executor, inline if the caller is already
// there or none is assigned yet, or as a submitted task otherwise — the
// thread-affinity rule from spec §4.4 ("Every pipeline callback runs on
// the context's executor").
func (c *context) runOn(fn func()) {
	ex := c.resolveExecutor()
	if ex == nil || ex.InEventLoop() {
		fn()
		return
	}
	ex.Submit(fn)
}

// dispatchInbound invokes an inbound handler call, converting any panic
// into an exceptionCaught fired starting at ctx.next (spec §7's
// handler-thrown kind: "caught by the dispatching context and converted
// to exceptionCaught fired to the next inbound context, so the throwing
// handler does not receive its own error").
func dispatchInbound(ctx *context, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			ctx.FireExceptionCaught(fmt.Errorf("pipeline: handler %q panicked: %v", ctx.name, rec))
		}
	}()
	fn()
}

// dispatchOutbound invokes an outbound handler call that owns promise,
// converting any panic into a failure on promise so the operation still
// completes exactly once (spec §7's propagation policy), rather than
// leaving the caller's future pending forever.
func dispatchOutbound(ctx *context, promise api.Promise, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			promise.Failure(fmt.Errorf("pipeline: handler %q panicked: %v", ctx.name, rec))
		}
	}()
	fn()
}

// ---- inbound propagation (head -> tail) ----

func (c *context) FireChannelRegistered() {
	nxt := c.pl.nextInbound(c, api.MaskChannelRegistered)
	nxt.runOn(func() {
		if nxt.isTail {
			return
		}
		dispatchInbound(nxt, func() {
			nxt.handler.(api.ChannelRegisteredHandler).ChannelRegistered(nxt)
		})
	})
}

func (c *context) FireChannelUnregistered() {
	nxt := c.pl.nextInbound(c, api.MaskChannelUnregistered)
	nxt.runOn(func() {
		if nxt.isTail {
			return
		}
		dispatchInbound(nxt, func() {
			nxt.handler.(api.ChannelUnregisteredHandler).ChannelUnregistered(nxt)
		})
	})
}

func (c *context) FireChannelActive() {
	nxt := c.pl.nextInbound(c, api.MaskChannelActive)
	nxt.runOn(func() {
		if nxt.isTail {
			return
		}
		dispatchInbound(nxt, func() {
			nxt.handler.(api.ChannelActiveHandler).ChannelActive(nxt)
		})
	})
}

func (c *context) FireChannelInactive() {
	nxt := c.pl.nextInbound(c, api.MaskChannelInactive)
	nxt.runOn(func() {
		if nxt.isTail {
			return
		}
		dispatchInbound(nxt, func() {
			nxt.handler.(api.ChannelInactiveHandler).ChannelInactive(nxt)
		})
	})
}

func (c *context) FireChannelRead(msg any) {
	nxt := c.pl.nextInbound(c, api.MaskChannelRead)
	nxt.runOn(func() {
		if nxt.isTail {
			c.pl.defaultUnhandledInbound(msg)
			return
		}
		dispatchInbound(nxt, func() {
			nxt.handler.(api.ChannelReadHandler).ChannelRead(nxt, msg)
		})
	})
}

func (c *context) FireChannelReadComplete() {
	nxt := c.pl.nextInbound(c, api.MaskChannelReadComplete)
	nxt.runOn(func() {
		if nxt.isTail {
			return
		}
		dispatchInbound(nxt, func() {
			nxt.handler.(api.ChannelReadCompleteHandler).ChannelReadComplete(nxt)
		})
	})
}

func (c *context) FireUserEventTriggered(evt any) {
	nxt := c.pl.nextInbound(c, api.MaskUserEventTriggered)
	nxt.runOn(func() {
		if nxt.isTail {
			return
		}
		dispatchInbound(nxt, func() {
			nxt.handler.(api.UserEventTriggeredHandler).UserEventTriggered(nxt, evt)
		})
	})
}

func (c *context) FireChannelWritabilityChanged() {
	nxt := c.pl.nextInbound(c, api.MaskChannelWritabilityChanged)
	nxt.runOn(func() {
		if nxt.isTail {
			return
		}
		dispatchInbound(nxt, func() {
			nxt.handler.(api.ChannelWritabilityChangedHandler).ChannelWritabilityChanged(nxt)
		})
	})
}

// FireExceptionCaught propagates starting at c.next, per spec §7's
// "handler-thrown" rule: the throwing handler's own context never
// receives its own error, only downstream contexts do.
func (c *context) FireExceptionCaught(err error) {
	nxt := c.pl.nextInbound(c, api.MaskExceptionCaught)
	nxt.runOn(func() {
		if nxt.isTail {
			c.pl.defaultUnhandledException(err)
			return
		}
		dispatchInbound(nxt, func() {
			nxt.handler.(api.ExceptionCaughtHandler).ExceptionCaught(nxt, err)
		})
	})
}

// ---- outbound propagation (tail -> head) ----

func (c *context) Bind(localAddr string) api.Future {
	p := c.pl.newPromise()
	prv := c.pl.prevOutbound(c, api.MaskBind)
	prv.runOn(func() {
		dispatchOutbound(prv, p, func() {
			if prv.isHead {
				c.pl.channel.Transport().Bind(localAddr, p)
				return
			}
			prv.handler.(api.BindHandler).Bind(prv, localAddr, p)
		})
	})
	return p
}

func (c *context) Connect(remoteAddr string) api.Future {
	p := c.pl.newPromise()
	prv := c.pl.prevOutbound(c, api.MaskConnect)
	prv.runOn(func() {
		dispatchOutbound(prv, p, func() {
			if prv.isHead {
				c.pl.channel.Transport().Connect(remoteAddr, "", p)
				return
			}
			prv.handler.(api.ConnectHandler).Connect(prv, remoteAddr, p)
		})
	})
	return p
}

func (c *context) Disconnect() api.Future {
	p := c.pl.newPromise()
	prv := c.pl.prevOutbound(c, api.MaskDisconnect)
	prv.runOn(func() {
		dispatchOutbound(prv, p, func() {
			if prv.isHead {
				c.pl.channel.Transport().Disconnect(p)
				return
			}
			prv.handler.(api.DisconnectHandler).Disconnect(prv, p)
		})
	})
	return p
}

func (c *context) Close() api.Future {
	p := c.pl.newPromise()
	prv := c.pl.prevOutbound(c, api.MaskClose)
	prv.runOn(func() {
		dispatchOutbound(prv, p, func() {
			if prv.isHead {
				c.pl.channel.Transport().Close(p)
				return
			}
			prv.handler.(api.CloseHandler).Close(prv, p)
		})
	})
	return p
}

func (c *context) Deregister() api.Future {
	p := c.pl.newPromise()
	prv := c.pl.prevOutbound(c, api.MaskDeregister)
	prv.runOn(func() {
		dispatchOutbound(prv, p, func() {
			if prv.isHead {
				c.pl.channel.Transport().Deregister(p)
				return
			}
			prv.handler.(api.DeregisterHandler).Deregister(prv, p)
		})
	})
	return p
}

func (c *context) Read() api.Future {
	p := c.pl.newPromise()
	prv := c.pl.prevOutbound(c, api.MaskRead)
	prv.runOn(func() {
		dispatchOutbound(prv, p, func() {
			if prv.isHead {
				c.pl.channel.Transport().BeginRead()
				p.Success(nil)
				return
			}
			prv.handler.(api.ReadHandler).Read(prv)
			p.Success(nil)
		})
	})
	return p
}

func (c *context) Write(msg any) api.Future {
	p := c.pl.newPromise()
	prv := c.pl.prevOutbound(c, api.MaskWrite)
	prv.runOn(func() {
		dispatchOutbound(prv, p, func() {
			if prv.isHead {
				c.pl.channel.Transport().Write(msg, p)
				return
			}
			prv.handler.(api.WriteHandler).Write(prv, msg, p)
		})
	})
	return p
}

func (c *context) Flush() {
	prv := c.pl.prevOutbound(c, api.MaskFlush)
	prv.runOn(func() {
		defer func() {
			if rec := recover(); rec != nil {
				pipelineLog.Warn().Str("handler", prv.name).Interface("panic", rec).
					Msg("panic in outbound Flush, flush dropped")
			}
		}()
		if prv.isHead {
			c.pl.channel.Transport().Flush()
			return
		}
		prv.handler.(api.FlushHandler).Flush(prv)
	})
}

func (c *context) WriteAndFlush(msg any) api.Future {
	f := c.Write(msg)
	c.Flush()
	return f
}
