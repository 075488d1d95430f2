//go:build !linux

// Fallback for platforms without a wired selector backend, grounded on
// the teacher's reactor/reactor_stub.go: a clear "unsupported platform"
// error rather than a fabricated poller. A real build would add a kqueue
// (BSD/Darwin) or IOCP (Windows) backend behind the same api.Selector
// contract, following reactor/reactor_windows.go's pattern.
package reactor

import (
	"errors"

	"github.com/arcwire/reactor/api"
)

func newPlatformSelector() (api.Selector, error) {
	return nil, errors.New("reactor: no selector backend for this platform")
}

// isRetryableSelectorError mirrors selector_linux.go's classification;
// unreachable in practice since newPlatformSelector above always fails
// before a reactor ever reaches its select loop on this platform.
func isRetryableSelectorError(err error) bool {
	return false
}
