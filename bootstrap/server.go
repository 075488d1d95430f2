// Package bootstrap implements the server bootstrap and acceptor
// handler (component F): binding a listening channel on a parent
// reactor group, then handing each accepted child channel to a child
// reactor group with per-child options, attributes and an
// initializer-based pipeline. Grounded on the teacher's server/run.go
// (bind → accept-loop → graceful-teardown shape) and server/options.go
// (functional-option configuration surface), adapted from "one fixed
// WebSocket server" into a generic bind/accept pipeline wiring.
package bootstrap

import (
	"github.com/arcwire/reactor/api"
	"github.com/arcwire/reactor/channel"
	"github.com/arcwire/reactor/internal/logging"
	"github.com/arcwire/reactor/promise"
	"github.com/arcwire/reactor/transport/tcp"
)

var log = logging.For("bootstrap")

type attrEntry struct {
	key   api.AttrKey
	value any
}

// ChannelFactory constructs the server (listening) channel Bind
// registers and binds. Defaults to a TCP listener transport wrapped in
// channel.New; a custom factory lets a caller swap in another
// api.Transport (e.g. a test double, or a future UDP/Unix-socket
// transport) without otherwise touching the bootstrap.
type ChannelFactory func() api.Channel

func defaultChannelFactory() api.Channel {
	transport := tcp.NewListener()
	ch := channel.New(transport, false)
	transport.SetChannel(ch)
	return ch
}

// ServerBootstrap is the configuration surface from spec §4.6: a
// parent group that accepts connections, a child group that serves
// them, and the options/attributes/initializer applied to each side.
type ServerBootstrap struct {
	parentGroup api.ReactorGroup
	childGroup  api.ReactorGroup

	parentHandler    api.Handler
	childInitializer api.Initializer

	parentOptions *api.OptionMap
	childOptions  *api.OptionMap
	parentAttrs   []attrEntry
	childAttrs    []attrEntry

	channelFactory ChannelFactory
}

// New returns an unconfigured ServerBootstrap.
func New() *ServerBootstrap {
	return &ServerBootstrap{
		parentOptions:  api.NewOptionMap(),
		childOptions:   api.NewOptionMap(),
		channelFactory: defaultChannelFactory,
	}
}

// Channel overrides the factory used to construct the server channel,
// in place of the default TCP listener transport.
func (b *ServerBootstrap) Channel(factory ChannelFactory) *ServerBootstrap {
	b.channelFactory = factory
	return b
}

// Group sets the parent (accepting) and child (serving) reactor groups.
// If child is nil, Bind falls back to parent with a warning (spec §9
// open question, resolved in DESIGN.md).
func (b *ServerBootstrap) Group(parent, child api.ReactorGroup) *ServerBootstrap {
	b.parentGroup = parent
	b.childGroup = child
	return b
}

// Handler sets the optional handler installed on the server (listening)
// channel's own pipeline.
func (b *ServerBootstrap) Handler(h api.Handler) *ServerBootstrap {
	b.parentHandler = h
	return b
}

// ChildInitializer sets the required per-accepted-channel initializer.
func (b *ServerBootstrap) ChildInitializer(init api.Initializer) *ServerBootstrap {
	b.childInitializer = init
	return b
}

func (b *ServerBootstrap) Option(key api.OptionKey, value any) *ServerBootstrap {
	_ = b.parentOptions.Set(key, value)
	return b
}

func (b *ServerBootstrap) ChildOption(key api.OptionKey, value any) *ServerBootstrap {
	_ = b.childOptions.Set(key, value)
	return b
}

func (b *ServerBootstrap) Attr(key api.AttrKey, value any) *ServerBootstrap {
	b.parentAttrs = append(b.parentAttrs, attrEntry{key, value})
	return b
}

func (b *ServerBootstrap) ChildAttr(key api.AttrKey, value any) *ServerBootstrap {
	b.childAttrs = append(b.childAttrs, attrEntry{key, value})
	return b
}

func (b *ServerBootstrap) validate() error {
	if b.childInitializer == nil {
		return api.ErrMissingChildInit
	}
	if b.parentGroup == nil {
		return api.ErrMissingBindAddr // no parent group to bind on
	}
	return nil
}

// Bind implements spec §4.6's bind sequence: instantiate the server
// channel, apply parent options/attrs, install a one-shot initializer
// that (on channelRegistered) adds the user's parent handler and then
// submits — not calls inline — the task that appends the acceptor
// handler, then registers and binds the channel. The returned future
// completes with the bound server channel, or a failure.
func (b *ServerBootstrap) Bind(addr string) api.Future {
	if err := b.validate(); err != nil {
		return promise.Failed(nil, err)
	}
	if addr == "" {
		return promise.Failed(nil, api.ErrMissingBindAddr)
	}

	childGroup := b.childGroup
	if childGroup == nil {
		childGroup = b.parentGroup
		log.Warn().Msg("no child reactor group configured, serving accepted channels on the parent group")
	}

	ch := b.channelFactory()

	b.parentOptions.Each(func(k api.OptionKey, v any) {
		_ = ch.Config().Set(k, v)
	})
	for _, a := range b.parentAttrs {
		ch.SetAttr(a.key, a.value)
	}

	ch.Pipeline().AddLast("bootstrap-init", &serverInit{
		parentHandler: b.parentHandler,
		childGroup:    childGroup,
		childInit:     b.childInitializer,
		childOptions:  b.childOptions,
		childAttrs:    b.childAttrs,
	})

	r := b.parentGroup.Next()
	result := promise.New(r)
	r.Register(ch).AddListener(func(f api.Future) {
		if f.Cause() != nil {
			result.Failure(f.Cause())
			return
		}
		ch.Bind(addr).AddListener(func(bf api.Future) {
			if bf.Cause() != nil {
				result.Failure(bf.Cause())
				return
			}
			result.Success(ch)
		})
	})
	return result
}

// serverInit is the server pipeline's own one-shot setup handler — not
// the user-facing deferred Initializer from §4.4, since it runs
// exactly once by construction (added before the channel is ever
// registered, so there is no handlerAdded/channelRegistered race to
// guard against).
type serverInit struct {
	parentHandler api.Handler
	childGroup    api.ReactorGroup
	childInit     api.Initializer
	childOptions  *api.OptionMap
	childAttrs    []attrEntry
}

func (s *serverInit) HandlerAdded(api.HandlerContext)   {}
func (s *serverInit) HandlerRemoved(api.HandlerContext) {}

func (s *serverInit) ChannelRegistered(ctx api.HandlerContext) {
	if s.parentHandler != nil {
		ctx.Pipeline().AddLast("parent-handler", s.parentHandler)
	}
	// Submitting, rather than calling inline, is required: appending the
	// acceptor before the pipeline has finished propagating this very
	// channelRegistered event would let the first accept's channelRead
	// reach a pipeline where the acceptor isn't yet present (spec §4.6).
	ctx.Executor().Submit(func() {
		ctx.Pipeline().AddLast("acceptor", newAcceptor(s.childGroup, s.childInit, s.childOptions, s.childAttrs))
	})
	ctx.FireChannelRegistered()
	ctx.Pipeline().Remove(ctx.Name())
}
