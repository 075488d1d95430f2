// Package api declares the contracts shared between the reactor, pipeline,
// channel and bootstrap packages: the surface each of those packages is
// built against, independent of any one implementation.
package api

import "errors"

// Sentinel errors surfaced by the core. Callers compare with errors.Is.
var (
	ErrClosed            = errors.New("reactor: already closed")
	ErrShuttingDown      = errors.New("reactor: shutting down")
	ErrAlreadyRegistered = errors.New("channel: already registered")
	ErrNotRegistered     = errors.New("channel: not registered")
	ErrInvalidState      = errors.New("channel: invalid state transition")
	ErrHandlerExists     = errors.New("pipeline: handler with that name already exists")
	ErrHandlerNotFound   = errors.New("pipeline: handler not found")
	ErrNotSharable       = errors.New("pipeline: handler is not sharable and is already added")
	ErrRemoveSentinel    = errors.New("pipeline: head and tail contexts cannot be removed")
	ErrDuplicateKey      = errors.New("api: a key with that name is already registered")
	ErrMissingChildInit  = errors.New("bootstrap: child initializer is required")
	ErrMissingBindAddr   = errors.New("bootstrap: bind address is required")
	ErrUnsupported       = errors.New("transport: operation not supported by this transport")
)
