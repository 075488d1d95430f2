//go:build !linux

// Package tcp provides a TCP transport; this build has no non-Linux
// backend yet (a real build would add one behind the same api.Transport
// contract, as reactor's selector does).
package tcp
