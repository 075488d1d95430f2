//go:build linux

// Linux epoll(7)-backed api.Selector, grounded on the teacher's
// reactor/reactor_linux.go + reactor/epoll_reactor.go.

package reactor

import (
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/arcwire/reactor/api"
)

type epollSelector struct {
	epfd int

	mu   sync.Mutex
	keys map[int32]*api.SelectionKey

	wakeupR, wakeupW int // pipe used to interrupt a blocked EpollWait
}

// newPlatformSelector constructs the Linux epoll selector.
func newPlatformSelector() (api.Selector, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	fds, err := unixPipe()
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	s := &epollSelector{
		epfd:    epfd,
		keys:    make(map[int32]*api.SelectionKey),
		wakeupR: fds[0],
		wakeupW: fds[1],
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, s.wakeupR, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(s.wakeupR),
	}); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func unixPipe() ([2]int, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return fds, err
	}
	return fds, nil
}

func toEpollEvents(interest api.ReadyOp) uint32 {
	var ev uint32
	if interest&api.OpRead != 0 {
		ev |= unix.EPOLLIN
	}
	if interest&api.OpWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func fromEpollEvents(ev uint32) api.ReadyOp {
	var r api.ReadyOp
	if ev&unix.EPOLLIN != 0 {
		r |= api.OpRead
	}
	if ev&unix.EPOLLOUT != 0 {
		r |= api.OpWrite
	}
	if ev&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		r |= api.OpError
	}
	return r
}

func (s *epollSelector) Register(fd uintptr, interest api.ReadyOp, userData any) (*api.SelectionKey, error) {
	key := &api.SelectionKey{FD: fd, Interest: interest, UserData: userData}
	ev := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.keys[int32(fd)] = key
	s.mu.Unlock()
	return key, nil
}

func (s *epollSelector) Modify(key *api.SelectionKey, interest api.ReadyOp) error {
	ev := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(key.FD)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, int(key.FD), &ev); err != nil {
		return err
	}
	key.Interest = interest
	return nil
}

func (s *epollSelector) Cancel(key *api.SelectionKey) error {
	// EPOLL_CTL_DEL with a nil event is valid on Linux >= 2.6.9.
	err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, int(key.FD), nil)
	s.mu.Lock()
	delete(s.keys, int32(key.FD))
	s.mu.Unlock()
	if err == unix.ENOENT {
		// Already cancelled keys are discarded rather than treated as an
		// error (spec §4.1 selector-rebuild note: cancelled keys are
		// discarded).
		return nil
	}
	return err
}

func (s *epollSelector) Select(dst []*api.SelectionKey, timeoutNanos int64) ([]*api.SelectionKey, error) {
	timeoutMs := -1
	if timeoutNanos >= 0 {
		timeoutMs = int(timeoutNanos / int64(1_000_000))
		if timeoutMs == 0 && timeoutNanos > 0 {
			timeoutMs = 1
		}
	}
	var raw [256]unix.EpollEvent
	n, err := unix.EpollWait(s.epfd, raw[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		fd := raw[i].Fd
		if int(fd) == s.wakeupR {
			drainWakeupPipe(s.wakeupR)
			continue
		}
		key, ok := s.keys[fd]
		if !ok {
			continue
		}
		key.Ready = fromEpollEvents(raw[i].Events)
		dst = append(dst, key)
	}
	return dst, nil
}

func drainWakeupPipe(fd int) {
	var buf [64]byte
	for {
		n, err := unix.Read(fd, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (s *epollSelector) Wakeup() {
	unix.Write(s.wakeupW, []byte{0})
}

func (s *epollSelector) Close() error {
	unix.Close(s.wakeupR)
	unix.Close(s.wakeupW)
	return unix.Close(s.epfd)
}

// isRetryableSelectorError classifies errors the reactor should simply
// retry on its next loop iteration without even counting toward the
// rebuild/terminate path (spec §4.1: EINTR is routine, not a failure).
func isRetryableSelectorError(err error) bool {
	return err == syscall.EINTR
}
