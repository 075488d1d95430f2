//go:build linux

package reactor

import (
	"syscall"
	"unsafe"
)

// pinToCPU restricts the calling OS thread's scheduling to cpu (run has
// already locked the reactor goroutine to that thread). Grounded on the teacher's CPU-pinning helper; adapted so a
// reactor group can give each reactor its own core, avoiding cross-core
// cache bouncing of a channel's selection key between reactors (a
// reactor never migrates once started, so one pin call per reactor
// lifetime suffices).
func pinToCPU(cpu int) {
	var mask [1024 / 64]uint64
	mask[cpu/64] |= 1 << uint(cpu%64)
	_, _, errno := syscall.RawSyscall(
		syscall.SYS_SCHED_SETAFFINITY,
		0, // pid 0: the calling thread

		unsafe.Sizeof(mask),
		uintptr(unsafe.Pointer(&mask[0])),
	)
	if errno != 0 {
		log.Warn().Int("cpu", cpu).Err(errno).Msg("failed to set reactor CPU affinity")
	}
}
