package reactor

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/arcwire/reactor/api"
	"github.com/arcwire/reactor/promise"
)

// Group is a fixed-size pool of reactors with a round-robin chooser
// (component B). When N is a power of two, indices are produced by a
// masked increment instead of modulo (spec §4.2).
type Group struct {
	reactors []*Reactor
	mask     uint64 // len-1 if len is a power of two, else 0
	usesMask bool
	counter  atomic.Uint64
}

// NewGroup constructs a Group of n reactors, each started lazily.
// Panics if n < 1, matching the invariant |reactors| >= 1 (spec §3).
func NewGroup(n int) (*Group, error) {
	if n < 1 {
		panic("reactor: group size must be >= 1")
	}
	g := &Group{reactors: make([]*Reactor, n)}
	for i := 0; i < n; i++ {
		r, err := New()
		if err != nil {
			for j := 0; j < i; j++ {
				g.reactors[j].selector.Close()
			}
			return nil, err
		}
		r.PinToCPU(i % runtime.NumCPU())
		g.reactors[i] = r
	}
	if n&(n-1) == 0 {
		g.usesMask = true
		g.mask = uint64(n - 1)
	}
	return g, nil
}

// Next returns the reactor chosen for the next registration, advancing
// the round-robin chooser.
func (g *Group) Next() api.Reactor {
	n := g.counter.Add(1) - 1
	if g.usesMask {
		return g.reactors[n&g.mask]
	}
	return g.reactors[n%uint64(len(g.reactors))]
}

// Reactors returns every reactor in chooser order.
func (g *Group) Reactors() []api.Reactor {
	out := make([]api.Reactor, len(g.reactors))
	for i, r := range g.reactors {
		out[i] = r
	}
	return out
}

// ShutdownGracefully fans out to every reactor and returns a future that
// completes once all of them have terminated.
func (g *Group) ShutdownGracefully(quiet, timeout time.Duration) api.Future {
	agg := promise.New(nil)
	var remaining atomic.Int64
	remaining.Store(int64(len(g.reactors)))

	for _, r := range g.reactors {
		r.ShutdownGracefully(quiet, timeout).AddListener(func(f api.Future) {
			if f.Cause() != nil {
				agg.Failure(f.Cause())
				return
			}
			if remaining.Add(-1) == 0 {
				agg.Success(nil)
			}
		})
	}
	return agg
}

// AwaitTermination blocks up to d for every reactor to terminate.
func (g *Group) AwaitTermination(d time.Duration) bool {
	deadline := time.Now().Add(d)
	for _, r := range g.reactors {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return g.IsTerminated()
		}
		select {
		case <-awaitChan(r.terminated):
		case <-time.After(remaining):
			return false
		}
	}
	return g.IsTerminated()
}

func awaitChan(p *promise.Promise) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		p.Await()
		close(ch)
	}()
	return ch
}

func (g *Group) IsShuttingDown() bool {
	for _, r := range g.reactors {
		if !r.IsShuttingDown() {
			return false
		}
	}
	return true
}

func (g *Group) IsShutdown() bool {
	for _, r := range g.reactors {
		if !r.IsShutdown() {
			return false
		}
	}
	return true
}

func (g *Group) IsTerminated() bool {
	for _, r := range g.reactors {
		if !r.IsTerminated() {
			return false
		}
	}
	return true
}
