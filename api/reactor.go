package api

import "time"

// Reactor is a single-threaded event loop: the only mutator of any
// channel, pipeline or selection key bound to it. Every other package
// depends only on this interface, never on a concrete reactor type.
type Reactor interface {
	Executor

	// Register binds ch to this reactor permanently; a successful
	// register is the only way a channel becomes owned by a reactor.
	Register(ch Channel) Future

	// RegisterFD, ModifyFD and CancelFD register a transport's raw
	// descriptor with this reactor's selector. Transports use these
	// instead of talking to a Selector directly so the selector-rebuild
	// workaround (spec §4.1) stays transparent to them.
	RegisterFD(fd uintptr, interest ReadyOp, userData any) (*SelectionKey, error)
	ModifyFD(key *SelectionKey, interest ReadyOp) error
	CancelFD(key *SelectionKey) error

	// ChannelClosed tells the reactor a channel it owns has reached
	// StateClosed, so its quiescence check (used while shutting down
	// gracefully) no longer waits on it.
	ChannelClosed()

	// ShutdownGracefully requests shutdown: new tasks are still accepted
	// until the loop observes no new tasks for quiet, or timeout elapses,
	// whichever comes first. The returned future completes exactly once,
	// after the loop has exited and all owned resources are closed.
	ShutdownGracefully(quiet, timeout time.Duration) Future

	// IsShuttingDown reports whether ShutdownGracefully has been called.
	IsShuttingDown() bool
	// IsShutdown reports whether the loop has stopped accepting new work.
	IsShutdown() bool
	// IsTerminated reports whether the loop has fully exited.
	IsTerminated() bool
}

// ReactorGroup holds a fixed-size pool of reactors and a chooser that
// assigns each new channel to exactly one of them for its lifetime.
type ReactorGroup interface {
	// Next returns the reactor chosen for the next registration.
	Next() Reactor
	// Reactors returns every reactor owned by this group, in chooser
	// order.
	Reactors() []Reactor
	// ShutdownGracefully fans ShutdownGracefully out to every reactor and
	// returns a future completing when all of them have terminated.
	ShutdownGracefully(quiet, timeout time.Duration) Future
	// AwaitTermination blocks up to d for every reactor to terminate,
	// reporting whether they all did.
	AwaitTermination(d time.Duration) bool
	IsShuttingDown() bool
	IsShutdown() bool
	IsTerminated() bool
}
