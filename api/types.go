package api

// ChannelState is the monotonic lifecycle of a Channel, per the data model:
// unregistered -> registered -> active -> closed, with active -> registered
// forbidden.
type ChannelState int32

const (
	StateUnregistered ChannelState = iota
	StateRegistered
	StateActive
	StateClosed
)

func (s ChannelState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CanTransition reports whether moving from s to next respects the
// monotonic ordering, with the single carve-out that active cannot revert
// to registered.
func (s ChannelState) CanTransition(next ChannelState) bool {
	if next == StateClosed {
		return s != StateClosed
	}
	if s == StateActive && next == StateRegistered {
		return false
	}
	return next >= s
}

// EventMask is a bitset over the pipeline's event methods, computed once
// per handler type and cached; the pipeline skips any context whose mask
// lacks the event's bit.
type EventMask uint32

const (
	MaskChannelRegistered EventMask = 1 << iota
	MaskChannelUnregistered
	MaskChannelActive
	MaskChannelInactive
	MaskChannelRead
	MaskChannelReadComplete
	MaskUserEventTriggered
	MaskChannelWritabilityChanged
	MaskExceptionCaught

	MaskBind
	MaskConnect
	MaskDisconnect
	MaskClose
	MaskDeregister
	MaskRead
	MaskWrite
	MaskFlush
)

// MaskInboundAll and MaskOutboundAll are the unions of every inbound and
// every outbound event bit. The pipeline's mask computation does not
// start from them: it sets one bit per capability interface a handler
// satisfies.
const (
	MaskInboundAll = MaskChannelRegistered | MaskChannelUnregistered | MaskChannelActive |
		MaskChannelInactive | MaskChannelRead | MaskChannelReadComplete |
		MaskUserEventTriggered | MaskChannelWritabilityChanged | MaskExceptionCaught

	MaskOutboundAll = MaskBind | MaskConnect | MaskDisconnect | MaskClose |
		MaskDeregister | MaskRead | MaskWrite | MaskFlush
)

// Has reports whether the mask carries every bit in want.
func (m EventMask) Has(want EventMask) bool { return m&want == want }
