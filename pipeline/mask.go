// Package pipeline implements the channel pipeline (component D) and the
// handler-mask computation (component E): a doubly linked chain of
// handler contexts through which inbound and outbound events are
// dispatched, skipping any context whose handler does not implement a
// given event in O(1).
package pipeline

import (
	"reflect"
	"sync"

	"github.com/arcwire/reactor/api"
)

// maskCache memoizes computeMask per concrete handler type, avoiding
// repeated type assertions on the hot path (spec §4.5: "Cache results in
// a per-thread map keyed by handler class"; a process-wide sync.Map
// serves the same purpose and is simpler under Go's goroutine model).
var maskCache sync.Map // map[reflect.Type]api.EventMask

// maskOf returns the cached, or newly computed, event mask for h's
// concrete type.
func maskOf(h api.Handler) api.EventMask {
	t := reflect.TypeOf(h)
	if cached, ok := maskCache.Load(t); ok {
		return cached.(api.EventMask)
	}
	m := computeMask(h)
	maskCache.Store(t, m)
	return m
}

// computeMask inspects which of the per-event capability interfaces h
// satisfies. Unlike a reflective "skip annotation" scan, Go's structural
// typing makes this exact: a handler that embeds no shared base and
// defines only ChannelRead satisfies only ChannelReadHandler, so it
// carries only MaskChannelRead — spec §4.5's correctness clause ("a
// handler not overriding a method must not set its bit") holds by
// construction, with no inheritance-of-"skip" bookkeeping required.
func computeMask(h api.Handler) api.EventMask {
	var m api.EventMask

	if _, ok := h.(api.ChannelRegisteredHandler); ok {
		m |= api.MaskChannelRegistered
	}
	if _, ok := h.(api.ChannelUnregisteredHandler); ok {
		m |= api.MaskChannelUnregistered
	}
	if _, ok := h.(api.ChannelActiveHandler); ok {
		m |= api.MaskChannelActive
	}
	if _, ok := h.(api.ChannelInactiveHandler); ok {
		m |= api.MaskChannelInactive
	}
	if _, ok := h.(api.ChannelReadHandler); ok {
		m |= api.MaskChannelRead
	}
	if _, ok := h.(api.ChannelReadCompleteHandler); ok {
		m |= api.MaskChannelReadComplete
	}
	if _, ok := h.(api.UserEventTriggeredHandler); ok {
		m |= api.MaskUserEventTriggered
	}
	if _, ok := h.(api.ChannelWritabilityChangedHandler); ok {
		m |= api.MaskChannelWritabilityChanged
	}
	if _, ok := h.(api.ExceptionCaughtHandler); ok {
		m |= api.MaskExceptionCaught
	}

	if _, ok := h.(api.BindHandler); ok {
		m |= api.MaskBind
	}
	if _, ok := h.(api.ConnectHandler); ok {
		m |= api.MaskConnect
	}
	if _, ok := h.(api.DisconnectHandler); ok {
		m |= api.MaskDisconnect
	}
	if _, ok := h.(api.CloseHandler); ok {
		m |= api.MaskClose
	}
	if _, ok := h.(api.DeregisterHandler); ok {
		m |= api.MaskDeregister
	}
	if _, ok := h.(api.ReadHandler); ok {
		m |= api.MaskRead
	}
	if _, ok := h.(api.WriteHandler); ok {
		m |= api.MaskWrite
	}
	if _, ok := h.(api.FlushHandler); ok {
		m |= api.MaskFlush
	}

	return m
}
