package pipeline

import (
	"fmt"
	"sync"

	"github.com/arcwire/reactor/api"
	"github.com/arcwire/reactor/internal/logging"
	"github.com/arcwire/reactor/promise"
)

var pipelineLog = logging.For("pipeline")

// Pipeline is the concrete api.Pipeline: a doubly linked chain of
// contexts bounded by a head and a tail sentinel, neither of which is
// ever removed (spec §4.4 invariant). Mutation methods enforce the
// single-writer rule by running on the channel's reactor, submitting
// as a task when called off-reactor; like Netty, they return
// immediately regardless of whether the mutation has already run.
type Pipeline struct {
	channel api.Channel

	mu    sync.Mutex
	names map[string]*context

	head *context
	tail *context
}

// New builds an empty pipeline (head directly linked to tail) bound to
// ch. ch.EventLoop() may be nil at this point — a channel not yet
// registered has no reactor, and mutations run inline until it does.
func New(ch api.Channel) *Pipeline {
	p := &Pipeline{
		channel: ch,
		names:   make(map[string]*context),
	}
	p.head = &context{name: "head", pl: p, isHead: true}
	p.tail = &context{name: "tail", pl: p, isTail: true}
	p.head.next = p.tail
	p.tail.prev = p.head
	return p
}

// mutate runs fn on the channel's reactor if one is assigned, inline
// if the caller is already on it or none is assigned yet, else as a
// submitted task (spec §4.4: "safe from any goroutine").
func (p *Pipeline) mutate(fn func()) {
	r := p.channel.EventLoop()
	if r == nil || r.InEventLoop() {
		fn()
		return
	}
	r.Submit(fn)
}

func (p *Pipeline) newPromise() *promise.Promise {
	return promise.New(p.channel.EventLoop())
}

// ---- linked-list mutation ----

func (p *Pipeline) insertBetween(prev, next *context, name string, h api.Handler) {
	p.mu.Lock()
	if _, exists := p.names[name]; exists {
		p.mu.Unlock()
		panic(fmt.Errorf("pipeline: duplicate handler name %q: %w", name, api.ErrHandlerExists))
	}
	if sh, ok := h.(api.Sharable); !ok || !sh.Sharable() {
		for _, c := range p.names {
			if c.handler == h {
				p.mu.Unlock()
				panic(fmt.Errorf("pipeline: handler instance already added (not Sharable): %q: %w", name, api.ErrNotSharable))
			}
		}
	}
	ctx := &context{
		name:    name,
		handler: h,
		mask:    maskOf(h),
		pl:      p,
	}
	ctx.prev = prev
	ctx.next = next
	prev.next = ctx
	next.prev = ctx
	p.names[name] = ctx
	p.mu.Unlock()

	ctx.runOn(func() {
		h.HandlerAdded(ctx)
		ctx.added = true
	})
}

func (p *Pipeline) AddFirst(name string, h api.Handler) api.Pipeline {
	p.mutate(func() { p.insertBetween(p.head, p.head.next, name, h) })
	return p
}

func (p *Pipeline) AddLast(name string, h api.Handler) api.Pipeline {
	p.mutate(func() { p.insertBetween(p.tail.prev, p.tail, name, h) })
	return p
}

func (p *Pipeline) AddBefore(baseName, name string, h api.Handler) api.Pipeline {
	p.mutate(func() {
		p.mu.Lock()
		base, ok := p.names[baseName]
		p.mu.Unlock()
		if !ok {
			panic(fmt.Errorf("pipeline: no such handler %q: %w", baseName, api.ErrHandlerNotFound))
		}
		p.insertBetween(base.prev, base, name, h)
	})
	return p
}

func (p *Pipeline) AddAfter(baseName, name string, h api.Handler) api.Pipeline {
	p.mutate(func() {
		p.mu.Lock()
		base, ok := p.names[baseName]
		p.mu.Unlock()
		if !ok {
			panic(fmt.Errorf("pipeline: no such handler %q: %w", baseName, api.ErrHandlerNotFound))
		}
		p.insertBetween(base, base.next, name, h)
	})
	return p
}

// Replace swaps oldName's handler for a new one under newName,
// in-place (its neighbors are unaffected), running handlerRemoved for
// the old handler and handlerAdded for the new one (spec §4.4).
func (p *Pipeline) Replace(oldName, newName string, h api.Handler) api.Pipeline {
	p.mutate(func() {
		if oldName == p.head.name || oldName == p.tail.name {
			panic(fmt.Errorf("pipeline: cannot replace %q: %w", oldName, api.ErrRemoveSentinel))
		}
		p.mu.Lock()
		old, ok := p.names[oldName]
		if !ok {
			p.mu.Unlock()
			panic(fmt.Errorf("pipeline: no such handler %q: %w", oldName, api.ErrHandlerNotFound))
		}
		if oldName != newName {
			if _, exists := p.names[newName]; exists {
				p.mu.Unlock()
				panic(fmt.Errorf("pipeline: duplicate handler name %q: %w", newName, api.ErrHandlerExists))
			}
		}
		ctx := &context{
			name:    newName,
			handler: h,
			mask:    maskOf(h),
			pl:      p,
			prev:    old.prev,
			next:    old.next,
		}
		ctx.prev.next = ctx
		ctx.next.prev = ctx
		delete(p.names, oldName)
		p.names[newName] = ctx
		p.mu.Unlock()

		old.runOn(func() {
			old.handler.HandlerRemoved(old)
			old.removed = true
		})
		ctx.runOn(func() {
			h.HandlerAdded(ctx)
			ctx.added = true
		})
	})
	return p
}

func (p *Pipeline) Remove(name string) api.Pipeline {
	p.mutate(func() {
		if name == p.head.name || name == p.tail.name {
			panic(fmt.Errorf("pipeline: cannot remove %q: %w", name, api.ErrRemoveSentinel))
		}
		p.mu.Lock()
		ctx, ok := p.names[name]
		if !ok {
			p.mu.Unlock()
			panic(fmt.Errorf("pipeline: no such handler %q: %w", name, api.ErrHandlerNotFound))
		}
		ctx.prev.next = ctx.next
		ctx.next.prev = ctx.prev
		delete(p.names, name)
		p.mu.Unlock()

		ctx.runOn(func() {
			ctx.handler.HandlerRemoved(ctx)
			ctx.removed = true
		})
	})
	return p
}

func (p *Pipeline) Get(name string) api.HandlerContext {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx, ok := p.names[name]
	if !ok {
		return nil
	}
	return ctx
}

func (p *Pipeline) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.names))
	for cur := p.head.next; cur != p.tail; cur = cur.next {
		out = append(out, cur.name)
	}
	return out
}

func (p *Pipeline) Channel() api.Channel { return p.channel }

// ---- dispatch helpers shared with context ----

// nextInbound walks forward from from, returning the first context
// whose mask carries bit, or the tail sentinel if none does (spec
// §4.5's O(1)-skip property).
func (p *Pipeline) nextInbound(from *context, bit api.EventMask) *context {
	for cur := from.next; ; cur = cur.next {
		if cur.isTail || cur.mask.Has(bit) {
			return cur
		}
	}
}

// prevOutbound walks backward from from, returning the first context
// whose mask carries bit, or the head sentinel if none does.
func (p *Pipeline) prevOutbound(from *context, bit api.EventMask) *context {
	for cur := from.prev; ; cur = cur.prev {
		if cur.isHead || cur.mask.Has(bit) {
			return cur
		}
	}
}

func (p *Pipeline) defaultUnhandledInbound(msg any) {
	pipelineLog.Debug().Interface("message", msg).Msg("discarding unhandled inbound message at pipeline tail")
}

func (p *Pipeline) defaultUnhandledException(err error) {
	pipelineLog.Warn().Err(err).Str("channel", p.channel.ID()).Msg("unhandled exception reached pipeline tail")
}

// ---- pipeline-level propagation entry points (start at head/tail) ----

func (p *Pipeline) FireChannelRegistered() api.Pipeline {
	p.head.FireChannelRegistered()
	return p
}
func (p *Pipeline) FireChannelUnregistered() api.Pipeline {
	p.head.FireChannelUnregistered()
	return p
}
func (p *Pipeline) FireChannelActive() api.Pipeline {
	p.head.FireChannelActive()
	return p
}
func (p *Pipeline) FireChannelInactive() api.Pipeline {
	p.head.FireChannelInactive()
	return p
}
func (p *Pipeline) FireChannelRead(msg any) api.Pipeline {
	p.head.FireChannelRead(msg)
	return p
}
func (p *Pipeline) FireChannelReadComplete() api.Pipeline {
	p.head.FireChannelReadComplete()
	return p
}
func (p *Pipeline) FireUserEventTriggered(evt any) api.Pipeline {
	p.head.FireUserEventTriggered(evt)
	return p
}
func (p *Pipeline) FireChannelWritabilityChanged() api.Pipeline {
	p.head.FireChannelWritabilityChanged()
	return p
}
func (p *Pipeline) FireExceptionCaught(err error) api.Pipeline {
	p.head.FireExceptionCaught(err)
	return p
}

// ---- pipeline-level outbound entry points (start at tail, explicit promise) ----

func (p *Pipeline) Bind(localAddr string, promise api.Promise) api.Future {
	prv := p.prevOutbound(p.tail, api.MaskBind)
	prv.runOn(func() {
		dispatchOutbound(prv, promise, func() {
			if prv.isHead {
				p.channel.Transport().Bind(localAddr, promise)
				return
			}
			prv.handler.(api.BindHandler).Bind(prv, localAddr, promise)
		})
	})
	return promise
}

func (p *Pipeline) Connect(remoteAddr string, promise api.Promise) api.Future {
	prv := p.prevOutbound(p.tail, api.MaskConnect)
	prv.runOn(func() {
		dispatchOutbound(prv, promise, func() {
			if prv.isHead {
				p.channel.Transport().Connect(remoteAddr, "", promise)
				return
			}
			prv.handler.(api.ConnectHandler).Connect(prv, remoteAddr, promise)
		})
	})
	return promise
}

func (p *Pipeline) Disconnect(promise api.Promise) api.Future {
	prv := p.prevOutbound(p.tail, api.MaskDisconnect)
	prv.runOn(func() {
		dispatchOutbound(prv, promise, func() {
			if prv.isHead {
				p.channel.Transport().Disconnect(promise)
				return
			}
			prv.handler.(api.DisconnectHandler).Disconnect(prv, promise)
		})
	})
	return promise
}

func (p *Pipeline) Close(promise api.Promise) api.Future {
	prv := p.prevOutbound(p.tail, api.MaskClose)
	prv.runOn(func() {
		dispatchOutbound(prv, promise, func() {
			if prv.isHead {
				p.channel.Transport().Close(promise)
				return
			}
			prv.handler.(api.CloseHandler).Close(prv, promise)
		})
	})
	return promise
}

func (p *Pipeline) Deregister(promise api.Promise) api.Future {
	prv := p.prevOutbound(p.tail, api.MaskDeregister)
	prv.runOn(func() {
		dispatchOutbound(prv, promise, func() {
			if prv.isHead {
				p.channel.Transport().Deregister(promise)
				return
			}
			prv.handler.(api.DeregisterHandler).Deregister(prv, promise)
		})
	})
	return promise
}

func (p *Pipeline) Read() api.Pipeline {
	prv := p.prevOutbound(p.tail, api.MaskRead)
	prv.runOn(func() {
		defer func() {
			if rec := recover(); rec != nil {
				pipelineLog.Warn().Str("handler", prv.name).Interface("panic", rec).
					Msg("panic in outbound Read, read request dropped")
			}
		}()
		if prv.isHead {
			p.channel.Transport().BeginRead()
			return
		}
		prv.handler.(api.ReadHandler).Read(prv)
	})
	return p
}

func (p *Pipeline) Write(msg any, promise api.Promise) api.Future {
	prv := p.prevOutbound(p.tail, api.MaskWrite)
	prv.runOn(func() {
		dispatchOutbound(prv, promise, func() {
			if prv.isHead {
				p.channel.Transport().Write(msg, promise)
				return
			}
			prv.handler.(api.WriteHandler).Write(prv, msg, promise)
		})
	})
	return promise
}

func (p *Pipeline) Flush() api.Pipeline {
	prv := p.prevOutbound(p.tail, api.MaskFlush)
	prv.runOn(func() {
		defer func() {
			if rec := recover(); rec != nil {
				pipelineLog.Warn().Str("handler", prv.name).Interface("panic", rec).
					Msg("panic in outbound Flush, flush dropped")
			}
		}()
		if prv.isHead {
			p.channel.Transport().Flush()
			return
		}
		prv.handler.(api.FlushHandler).Flush(prv)
	})
	return p
}

func (p *Pipeline) WriteAndFlush(msg any, promise api.Promise) api.Future {
	f := p.Write(msg, promise)
	p.Flush()
	return f
}
