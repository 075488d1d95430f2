// Package channel implements the concrete api.Channel: a network
// endpoint's state machine, attribute map and per-channel config,
// wired to a pipeline.Pipeline and an api.Transport. Grounded on the
// teacher's server/types.go Config/Server struct shape, generalized
// from "one fixed server" to "one channel, bound to whichever reactor
// registers it."
package channel

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arcwire/reactor/api"
	"github.com/arcwire/reactor/internal/logging"
	"github.com/arcwire/reactor/pipeline"
	"github.com/arcwire/reactor/promise"
)

var log = logging.For("channel")

// Channel is the concrete api.Channel.
type Channel struct {
	id        string
	transport api.Transport

	pl     *pipeline.Pipeline
	config *Config
	attrs  *api.AttributeMap

	mu      sync.Mutex
	state   api.ChannelState
	reactor api.Reactor

	// startActive marks a channel that is already connected at
	// construction time (an accepted child), as opposed to a listening
	// channel that only becomes active once bound.
	startActive bool

	autoRead atomic.Bool
}

var idSeq atomic.Uint64

// New constructs a Channel wrapping transport. If startActive is true,
// CompleteRegistration additionally fires channelActive (and, if
// auto-read, issues a read) immediately after channelRegistered — the
// accepted-child path from spec §4.3.
func New(transport api.Transport, startActive bool) *Channel {
	ch := &Channel{
		id:          fmt.Sprintf("ch-%d", idSeq.Add(1)),
		transport:   transport,
		config:      NewConfig(transport),
		attrs:       api.NewAttributeMap(),
		startActive: startActive,
	}
	ch.autoRead.Store(true)
	ch.pl = pipeline.New(ch)
	return ch
}

func (ch *Channel) ID() string               { return ch.id }
func (ch *Channel) Pipeline() api.Pipeline   { return ch.pl }
func (ch *Channel) Config() api.Config       { return ch.config }
func (ch *Channel) Transport() api.Transport { return ch.transport }

func (ch *Channel) Attr(key api.AttrKey) (any, bool)   { return ch.attrs.Get(key) }
func (ch *Channel) SetAttr(key api.AttrKey, value any) { ch.attrs.Set(key, value) }

func (ch *Channel) State() api.ChannelState {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

func (ch *Channel) IsRegistered() bool {
	return ch.State() >= api.StateRegistered && ch.State() != api.StateClosed
}

func (ch *Channel) IsActive() bool { return ch.State() == api.StateActive }

// checkOpen returns api.ErrClosed if the channel has already reached
// StateClosed; operations that reach the transport make no sense on a
// closed channel, so callers fail fast instead of propagating through
// the pipeline.
func (ch *Channel) checkOpen() error {
	if ch.State() == api.StateClosed {
		return api.ErrClosed
	}
	return nil
}

func (ch *Channel) EventLoop() api.Reactor {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.reactor
}

// transition moves the channel to next, enforcing the monotonic
// ordering from spec §3, and tells the owning reactor once the
// terminal state is reached so its quiescence check (spec §4.1) sees
// this channel as gone.
func (ch *Channel) transition(next api.ChannelState) error {
	ch.mu.Lock()
	if !ch.state.CanTransition(next) {
		ch.mu.Unlock()
		return fmt.Errorf("channel %s: %w: %s -> %s", ch.id, api.ErrInvalidState, ch.state, next)
	}
	prev := ch.state
	ch.state = next
	r := ch.reactor
	ch.mu.Unlock()

	if next == api.StateClosed && prev != api.StateClosed && r != nil {
		r.ChannelClosed()
	}
	return nil
}

// CompleteRegistration implements the registration order of effects
// documented on api.Channel. It runs on r, already called from within r's own goroutine
// (via Reactor.Register), so no further dispatch is needed here.
func (ch *Channel) CompleteRegistration(r api.Reactor) error {
	ch.mu.Lock()
	if ch.state != api.StateUnregistered {
		ch.mu.Unlock()
		return api.ErrAlreadyRegistered
	}
	ch.reactor = r
	ch.mu.Unlock()

	ch.transport.Attach(r)

	if err := ch.transition(api.StateRegistered); err != nil {
		return err
	}
	ch.pl.FireChannelRegistered()

	if ch.startActive {
		if err := ch.transition(api.StateActive); err != nil {
			return err
		}
		ch.pl.FireChannelActive()
		if ch.autoRead.Load() {
			ch.pl.Read()
		}
	}
	return nil
}

// ---- Channel operations: forward to the pipeline, starting at the tail ----

func (ch *Channel) Bind(localAddr string) api.Future {
	p := promise.New(ch.EventLoop())
	if err := ch.checkOpen(); err != nil {
		p.Failure(err)
		return p
	}
	ch.pl.Bind(localAddr, p)
	p.AddListener(func(f api.Future) {
		if f.Cause() == nil && ch.transition(api.StateActive) == nil {
			ch.pl.FireChannelActive()
		}
	})
	return p
}

func (ch *Channel) Connect(remoteAddr string) api.Future {
	p := promise.New(ch.EventLoop())
	if err := ch.checkOpen(); err != nil {
		p.Failure(err)
		return p
	}
	ch.pl.Connect(remoteAddr, p)
	return p
}

func (ch *Channel) Disconnect() api.Future {
	p := promise.New(ch.EventLoop())
	if err := ch.checkOpen(); err != nil {
		p.Failure(err)
		return p
	}
	ch.pl.Disconnect(p)
	return p
}

func (ch *Channel) Close() api.Future {
	p := promise.New(ch.EventLoop())
	ch.pl.Close(p)
	p.AddListener(func(f api.Future) {
		if f.Cause() == nil {
			if err := ch.transition(api.StateClosed); err != nil {
				log.Warn().Err(err).Str("channel", ch.id).Msg("state transition after close failed")
			}
		}
	})
	return p
}

func (ch *Channel) Deregister() api.Future {
	p := promise.New(ch.EventLoop())
	if err := ch.checkOpen(); err != nil {
		p.Failure(err)
		return p
	}
	ch.pl.Deregister(p)
	return p
}

func (ch *Channel) Read() api.Future {
	if err := ch.checkOpen(); err != nil {
		return promise.Failed(ch.EventLoop(), err)
	}
	ch.pl.Read()
	return promise.Completed(ch.EventLoop(), nil)
}

func (ch *Channel) Write(msg any) api.Future {
	p := promise.New(ch.EventLoop())
	if err := ch.checkOpen(); err != nil {
		p.Failure(err)
		return p
	}
	ch.pl.Write(msg, p)
	return p
}

func (ch *Channel) Flush() {
	if ch.checkOpen() != nil {
		return
	}
	ch.pl.Flush()
}

func (ch *Channel) WriteAndFlush(msg any) api.Future {
	p := promise.New(ch.EventLoop())
	if err := ch.checkOpen(); err != nil {
		p.Failure(err)
		return p
	}
	ch.pl.WriteAndFlush(msg, p)
	return p
}

// SetAutoRead toggles auto-read per spec §6: when disabled, a transport
// that consults OptionAutoRead (transport/tcp.Conn does, after its
// current read round) stops issuing new reads until re-enabled, the
// basis for the acceptor's accept-backpressure behavior.
func (ch *Channel) SetAutoRead(on bool) {
	ch.autoRead.Store(on)
	_ = ch.config.Set(api.OptionAutoRead, on)
	if on && ch.IsActive() {
		ch.pl.Read()
	}
}

func (ch *Channel) AutoRead() bool { return ch.autoRead.Load() }
