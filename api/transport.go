package api

// Transport is the external collaborator consumed by the head of a
// pipeline: the low-level send/bind/connect machinery the core treats
// as a black box (spec §6). A concrete transport reports readiness
// events into its owning reactor, which translates them into inbound
// pipeline events.
type Transport interface {
	// Attach gives the transport the reactor that now owns its channel,
	// so it can register its descriptor (once it has one) for readiness.
	// Called once, by Channel.CompleteRegistration, before any other
	// Transport method.
	Attach(r Reactor)

	Bind(localAddr string, promise Promise)
	Connect(remoteAddr, localAddr string, promise Promise)
	Disconnect(promise Promise)
	Close(promise Promise)
	Deregister(promise Promise)

	// BeginRead asks the transport for more inbound data; used by
	// auto-read and by explicit Channel.Read calls.
	BeginRead()

	Write(msg any, promise Promise)
	Flush()

	// FD exposes the underlying descriptor for selector registration.
	// Returns false if the transport has no OS-level descriptor (e.g. it
	// has not yet bound or connected).
	FD() (fd uintptr, ok bool)

	// SupportsOption reports whether this transport understands key.
	// Config.Set consults this and skips, with a logged warning, any
	// configured option the underlying channel doesn't support (spec §6).
	SupportsOption(key OptionKey) bool
}

// ReadyOp is a bitset of readiness conditions a Selector reports.
type ReadyOp uint8

const (
	OpRead ReadyOp = 1 << iota
	OpWrite
	OpError
)

// SelectionKey is a live registration of a descriptor with a Selector.
type SelectionKey struct {
	FD       uintptr
	Interest ReadyOp
	Ready    ReadyOp
	// UserData is opaque to the selector; the reactor stores the owning
	// channel here.
	UserData any
}

// Selector is the OS-level multiplexer consumed by the reactor (spec
// §6): epoll/kqueue/IOCP-equivalent readiness delivery for registered
// descriptors.
type Selector interface {
	// Register associates fd with this selector for the given interest
	// set, returning a key the reactor retains for Modify/Cancel.
	Register(fd uintptr, interest ReadyOp, userData any) (*SelectionKey, error)
	// Modify updates a previously registered key's interest set.
	Modify(key *SelectionKey, interest ReadyOp) error
	// Cancel removes a key from the selector; already-cancelled keys are
	// discarded by the reactor rather than re-submitted.
	Cancel(key *SelectionKey) error

	// Select blocks up to timeout for readiness, appending ready keys to
	// dst and returning the (possibly grown) slice. timeout < 0 blocks
	// indefinitely; timeout == 0 polls without blocking.
	Select(dst []*SelectionKey, timeout int64) ([]*SelectionKey, error)

	// Wakeup interrupts a blocked Select call from another goroutine.
	Wakeup()

	Close() error
}
