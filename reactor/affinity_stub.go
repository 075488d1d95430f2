//go:build !linux

package reactor

// pinToCPU is a no-op outside Linux; a real build would add the
// platform equivalent (SetThreadAffinityMask on Windows) behind this
// same function.
func pinToCPU(cpu int) {}
