//go:build linux

// Package tcp provides a TCP transport atop non-blocking sockets and
// golang.org/x/sys/unix, registered for readiness with a reactor's
// selector. Grounded on the teacher's internal/transport/transport_linux.go
// (non-blocking socket creation, TCP_NODELAY, unix.Recvmsg/Sendmsg) and
// transport/tcp/listener.go's accept loop, adapted from call-and-return
// Send/Recv into the reactor's readiness-driven read/write model; the
// teacher's WebSocket handshake is out of scope here (transport is raw
// bytes, see the Non-goals this spec carries forward).
package tcp

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/arcwire/reactor/api"
	"github.com/arcwire/reactor/internal/logging"
)

var log = logging.For("transport/tcp")

const readChunkSize = 64 * 1024

// Conn is an api.Transport over a connected, non-blocking TCP socket:
// either the child of an accepted connection or the result of a
// successful Connect. Read readiness is manually re-armed after each
// completed read round-trip so a channel with auto-read disabled
// naturally stops receiving further readiness events (spec §6's
// accept-backpressure mechanism generalizes to any connection).
type Conn struct {
	fd int

	ch  api.Channel
	r   api.Reactor
	key *api.SelectionKey

	mu       sync.Mutex
	writeBuf bytes.Buffer
	closed   bool

	// highWatermark/lowWatermark implement the write-buffer hysteresis
	// from spec §3/§6 (OptionWriteHighWatermark/OptionWriteLowWatermark):
	// writable flips false once the pending write buffer reaches
	// highWatermark and back to true only once it drains to lowWatermark,
	// each transition firing channelWritabilityChanged exactly once.
	highWatermark int
	lowWatermark  int
	writable      atomic.Bool
}

const (
	defaultWriteHighWatermark = 64 * 1024
	defaultWriteLowWatermark  = 32 * 1024
)

// NewConn wraps an already-connected, non-blocking socket fd.
func NewConn(fd int) *Conn {
	c := &Conn{fd: fd, highWatermark: defaultWriteHighWatermark, lowWatermark: defaultWriteLowWatermark}
	c.writable.Store(true)
	return c
}

// SetChannel gives the transport a back-reference to the channel whose
// pipeline it feeds. Callers construct the Channel around this
// transport, then call SetChannel before registering it.
func (c *Conn) SetChannel(ch api.Channel) { c.ch = ch }

func (c *Conn) FD() (uintptr, bool) { return uintptr(c.fd), true }

func (c *Conn) Attach(r api.Reactor) {
	c.r = r
	c.applySocketOptions()
	key, err := r.RegisterFD(uintptr(c.fd), api.OpRead, c)
	if err != nil {
		log.Error().Err(err).Msg("failed to register connection with selector")
		return
	}
	c.key = key
}

// applySocketOptions translates the channel's configured TCPNoDelay and
// SoLinger options, if any, into socket options on the already-open fd
// (spec §6: a configured option takes effect only if the transport
// understands it, see SupportsOption).
func (c *Conn) applySocketOptions() {
	if v, ok := c.ch.Config().Get(api.OptionTCPNoDelay); ok {
		nodelay := 0
		if v.(bool) {
			nodelay = 1
		}
		if err := unix.SetsockoptInt(c.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, nodelay); err != nil {
			log.Warn().Err(err).Msg("failed to apply tcpNoDelay option")
		}
	}
	if v, ok := c.ch.Config().Get(api.OptionSoLinger); ok {
		linger := unix.Linger{Onoff: 1, Linger: int32(v.(int))}
		if v.(int) < 0 {
			linger = unix.Linger{Onoff: 0}
		}
		if err := unix.SetsockoptLinger(c.fd, unix.SOL_SOCKET, unix.SO_LINGER, &linger); err != nil {
			log.Warn().Err(err).Msg("failed to apply soLinger option")
		}
	}
	if v, ok := c.ch.Config().Get(api.OptionReceiveBufferSize); ok {
		if err := unix.SetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_RCVBUF, v.(int)); err != nil {
			log.Warn().Err(err).Msg("failed to apply receiveBufferSize option")
		}
	}
	if v, ok := c.ch.Config().Get(api.OptionSendBufferSize); ok {
		if err := unix.SetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_SNDBUF, v.(int)); err != nil {
			log.Warn().Err(err).Msg("failed to apply sendBufferSize option")
		}
	}
	if v, ok := c.ch.Config().Get(api.OptionWriteHighWatermark); ok {
		c.highWatermark = v.(int)
	}
	if v, ok := c.ch.Config().Get(api.OptionWriteLowWatermark); ok {
		c.lowWatermark = v.(int)
	}
}

// HandleReady translates selector readiness into pipeline events.
func (c *Conn) HandleReady(ops api.ReadyOp) {
	if ops&api.OpRead != 0 {
		c.doRead()
	}
	if ops&api.OpWrite != 0 {
		c.doFlush()
	}
}

func (c *Conn) doRead() {
	buf := make([]byte, readChunkSize)
	read := 0
	for {
		n, err := unix.Read(c.fd, buf)
		if n > 0 {
			msg := make([]byte, n)
			copy(msg, buf[:n])
			c.ch.Pipeline().FireChannelRead(msg)
			read += n
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			c.ch.Pipeline().FireExceptionCaught(fmt.Errorf("tcp: read: %w", err))
			c.shutdownLocal()
			return
		}
		if n == 0 {
			c.ch.Pipeline().FireChannelInactive()
			c.shutdownLocal()
			return
		}
		if n < len(buf) {
			break // short read: drained the socket for this readiness tick
		}
	}
	if read > 0 {
		c.ch.Pipeline().FireChannelReadComplete()
	}
	if auto, ok := c.ch.Config().Get(api.OptionAutoRead); !ok || auto.(bool) {
		c.BeginRead()
	} else {
		c.pauseRead()
	}
}

// BeginRead re-arms OpRead interest; a no-op if already armed.
func (c *Conn) BeginRead() {
	if c.r == nil || c.key == nil {
		return
	}
	if err := c.r.ModifyFD(c.key, c.key.Interest|api.OpRead); err != nil {
		log.Warn().Err(err).Msg("failed to re-arm read interest")
	}
}

func (c *Conn) pauseRead() {
	if c.r == nil || c.key == nil {
		return
	}
	_ = c.r.ModifyFD(c.key, c.key.Interest&^api.OpRead)
}

func (c *Conn) Write(msg any, promise api.Promise) {
	data, ok := msg.([]byte)
	if !ok {
		promise.Failure(fmt.Errorf("tcp: Write expects []byte, got %T", msg))
		return
	}
	c.mu.Lock()
	c.writeBuf.Write(data)
	length := c.writeBuf.Len()
	c.mu.Unlock()
	c.updateWritability(length)
	promise.Success(nil)
}

// updateWritability fires channelWritabilityChanged on each hysteresis
// transition: writable -> not-writable once length reaches
// highWatermark, not-writable -> writable once it drains to
// lowWatermark. A length sitting between the two watermarks, or one
// that doesn't cross the boundary it's already on the far side of,
// produces no event.
func (c *Conn) updateWritability(length int) {
	if length >= c.highWatermark && c.writable.CompareAndSwap(true, false) {
		c.ch.Pipeline().FireChannelWritabilityChanged()
	} else if length <= c.lowWatermark && c.writable.CompareAndSwap(false, true) {
		c.ch.Pipeline().FireChannelWritabilityChanged()
	}
}

func (c *Conn) Flush() { c.doFlush() }

func (c *Conn) doFlush() {
	c.mu.Lock()
	if c.writeBuf.Len() == 0 {
		c.mu.Unlock()
		return
	}
	pending := c.writeBuf.Bytes()
	n, err := unix.Write(c.fd, pending)
	if n > 0 {
		c.writeBuf.Next(n)
	}
	remaining := c.writeBuf.Len()
	c.mu.Unlock()

	if err != nil && err != unix.EAGAIN && err != unix.EWOULDBLOCK {
		c.ch.Pipeline().FireExceptionCaught(fmt.Errorf("tcp: write: %w", err))
		c.shutdownLocal()
		return
	}

	if remaining > 0 {
		if c.r != nil && c.key != nil {
			_ = c.r.ModifyFD(c.key, c.key.Interest|api.OpWrite)
		}
	} else if c.r != nil && c.key != nil {
		_ = c.r.ModifyFD(c.key, c.key.Interest&^api.OpWrite)
	}
	c.updateWritability(remaining)
}

func (c *Conn) Bind(string, api.Promise)            {}
func (c *Conn) Connect(string, string, api.Promise) {}

func (c *Conn) Disconnect(promise api.Promise) { c.Close(promise) }

func (c *Conn) Close(promise api.Promise) {
	c.shutdownLocal()
	promise.Success(nil)
}

func (c *Conn) Deregister(promise api.Promise) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed && c.r != nil && c.key != nil {
		_ = c.r.CancelFD(c.key)
	}
	promise.Success(nil)
}

// SupportsOption reports the options an established connection
// understands (spec §6); the listener-only options (ReusePort,
// Backlog) are rejected here since they apply only before accept.
func (c *Conn) SupportsOption(key api.OptionKey) bool {
	switch key {
	case api.OptionTCPNoDelay, api.OptionSoLinger, api.OptionAutoRead,
		api.OptionReceiveBufferSize, api.OptionSendBufferSize,
		api.OptionWriteHighWatermark, api.OptionWriteLowWatermark:
		return true
	default:
		return false
	}
}

func (c *Conn) shutdownLocal() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if c.r != nil && c.key != nil {
		_ = c.r.CancelFD(c.key)
	}
	_ = unix.Close(c.fd)
}
