package bootstrap

import (
	"fmt"
	"time"

	"github.com/arcwire/reactor/api"
	"github.com/arcwire/reactor/pipeline"
)

// acceptor is the tail inbound handler of the server pipeline (spec
// §4.6): each channelRead delivers a freshly accepted child channel,
// which it configures and hands off to a chosen child reactor.
type acceptor struct {
	childGroup   api.ReactorGroup
	childInit    api.Initializer
	childOptions *api.OptionMap
	childAttrs   []attrEntry
}

func newAcceptor(group api.ReactorGroup, init api.Initializer, opts *api.OptionMap, attrs []attrEntry) *acceptor {
	return &acceptor{childGroup: group, childInit: init, childOptions: opts, childAttrs: attrs}
}

func (a *acceptor) HandlerAdded(api.HandlerContext)   {}
func (a *acceptor) HandlerRemoved(api.HandlerContext) {}

// ChannelRead treats msg as a newly accepted child channel and performs,
// atomically from an outside observer's perspective: append the child
// initializer, apply child options/attrs, and register on one reactor
// chosen from the child group. Any failure force-closes the child.
func (a *acceptor) ChannelRead(ctx api.HandlerContext, msg any) {
	child, ok := msg.(api.Channel)
	if !ok {
		ctx.FireChannelRead(msg)
		return
	}
	if err := a.acceptChild(child); err != nil {
		child.Close()
		ctx.FireExceptionCaught(err)
	}
}

func (a *acceptor) acceptChild(child api.Channel) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("bootstrap: panic accepting child %s: %v", child.ID(), rec)
		}
	}()

	child.Pipeline().AddLast("initializer", pipeline.Deferred(a.childInit))
	a.childOptions.Each(func(k api.OptionKey, v any) {
		_ = child.Config().Set(k, v)
	})
	for _, attr := range a.childAttrs {
		child.SetAttr(attr.key, attr.value)
	}

	r := a.childGroup.Next()
	r.Register(child).AddListener(func(f api.Future) {
		if f.Cause() != nil {
			log.Warn().Err(f.Cause()).Str("channel", child.ID()).Msg("failed to register accepted channel, closing it")
			child.Close()
		}
	})
	return nil
}

// autoReadToggle is satisfied by channel.Channel; the acceptor uses it
// for accept-backpressure without importing the channel package
// directly (avoiding a needless concrete dependency here).
type autoReadToggle interface {
	AutoRead() bool
	SetAutoRead(bool)
}

// ExceptionCaught implements spec §4.6's accept-backpressure toggle: an
// exception reaching the acceptor turns autoRead off on the server
// channel and schedules it back on one second later. Accepts pause only
// if the server channel's transport honours autoRead; the TCP Listener
// keeps accepting. The exception still propagates so the application
// can observe it.
func (a *acceptor) ExceptionCaught(ctx api.HandlerContext, err error) {
	if toggle, ok := ctx.Channel().(autoReadToggle); ok && toggle.AutoRead() {
		toggle.SetAutoRead(false)
		ctx.Executor().Schedule(func() {
			toggle.SetAutoRead(true)
		}, time.Second)
	}
	ctx.FireExceptionCaught(err)
}
