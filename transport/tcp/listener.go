//go:build linux

package tcp

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/arcwire/reactor/api"
	"github.com/arcwire/reactor/channel"
)

// Listener is an api.Transport over a listening TCP socket. Its
// channelRead events deliver freshly accepted child Channels, mirroring
// Netty's NioServerSocketChannel. Grounded on the teacher's
// transport/tcp/listener.go accept loop, with the teacher's inline
// WebSocket handshake removed — accepted connections are handed to the
// pipeline as raw child channels, same as any other inbound message.
type Listener struct {
	fd  int
	r   api.Reactor
	ch  api.Channel
	key *api.SelectionKey
}

// NewListener returns an unbound listener transport.
func NewListener() *Listener { return &Listener{fd: -1} }

func (l *Listener) SetChannel(ch api.Channel) { l.ch = ch }

func (l *Listener) FD() (uintptr, bool) {
	if l.fd < 0 {
		return 0, false
	}
	return uintptr(l.fd), true
}

func (l *Listener) Attach(r api.Reactor) { l.r = r }

func (l *Listener) Bind(localAddr string, promise api.Promise) {
	sockaddr, err := resolveTCP4(localAddr)
	if err != nil {
		promise.Failure(fmt.Errorf("tcp: resolve %q: %w", localAddr, err))
		return
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		promise.Failure(fmt.Errorf("tcp: socket: %w", err))
		return
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if v, ok := l.ch.Config().Get(api.OptionReusePort); ok {
		if enabled, _ := v.(bool); enabled {
			_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		}
	}

	if err := unix.Bind(fd, sockaddr); err != nil {
		_ = unix.Close(fd)
		promise.Failure(fmt.Errorf("tcp: bind: %w", err))
		return
	}

	backlog := 1024
	if v, ok := l.ch.Config().Get(api.OptionBacklog); ok {
		backlog = v.(int)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		promise.Failure(fmt.Errorf("tcp: listen: %w", err))
		return
	}

	l.fd = fd
	key, err := l.r.RegisterFD(uintptr(fd), api.OpRead, l)
	if err != nil {
		_ = unix.Close(fd)
		promise.Failure(err)
		return
	}
	l.key = key
	promise.Success(nil)
}

// HandleReady accepts every pending connection, wrapping each in its
// own Channel and firing it as an inbound message to this listening
// channel's pipeline — the acceptor handler downstream registers it
// with a child reactor (spec §7). Accepting does not consult autoRead:
// every read readiness drains the accept queue, and an accept error
// other than EAGAIN is logged, not fired into the pipeline.
func (l *Listener) HandleReady(ops api.ReadyOp) {
	if ops&api.OpRead == 0 {
		return
	}
	for {
		nfd, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			log.Warn().Err(err).Msg("accept failed")
			return
		}
		conn := NewConn(nfd)
		child := channel.New(conn, true)
		conn.SetChannel(child)
		l.ch.Pipeline().FireChannelRead(child)
	}
}

func (l *Listener) BeginRead() {} // always armed once bound

func (l *Listener) Write(_ any, promise api.Promise) {
	promise.Failure(api.ErrUnsupported)
}
func (l *Listener) Flush() {}

func (l *Listener) Connect(_, _ string, promise api.Promise) {
	promise.Failure(api.ErrUnsupported)
}
func (l *Listener) Disconnect(promise api.Promise) { l.Close(promise) }

func (l *Listener) Close(promise api.Promise) {
	if l.fd >= 0 {
		if l.r != nil && l.key != nil {
			_ = l.r.CancelFD(l.key)
		}
		_ = unix.Close(l.fd)
		l.fd = -1
	}
	promise.Success(nil)
}

func (l *Listener) Deregister(promise api.Promise) {
	if l.r != nil && l.key != nil {
		_ = l.r.CancelFD(l.key)
	}
	promise.Success(nil)
}

// SupportsOption reports the options a listening socket understands
// (spec §6): ReusePort and Backlog take effect at Bind; AutoRead is
// stored so the acceptor can toggle it, but HandleReady does not read
// it, so turning it off does not pause accepts. Anything else —
// TCPNoDelay, SoLinger, the buffer/watermark family — applies only to
// accepted connections, not the listener itself.
func (l *Listener) SupportsOption(key api.OptionKey) bool {
	switch key {
	case api.OptionReusePort, api.OptionBacklog, api.OptionAutoRead:
		return true
	default:
		return false
	}
}

func resolveTCP4(addr string) (unix.Sockaddr, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, err
	}
	var ip [4]byte
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(ip[:], ip4)
	}
	return &unix.SockaddrInet4{Port: tcpAddr.Port, Addr: ip}, nil
}
