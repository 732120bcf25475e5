//go:build linux

package sandbox

import "syscall"

// setRlimits installs RLIMIT_CPU and RLIMIT_AS on the calling process,
// matching the original's preexec_fn/resource.setrlimit. Must run before
// any user code executes.
func setRlimits(cpuSeconds, memoryMB int64) error {
	if cpuSeconds > 0 {
		lim := syscall.Rlimit{Cur: uint64(cpuSeconds), Max: uint64(cpuSeconds)}
		if err := syscall.Setrlimit(syscall.RLIMIT_CPU, &lim); err != nil {
			return err
		}
	}
	if memoryMB > 0 {
		bytes := uint64(memoryMB) * 1024 * 1024
		lim := syscall.Rlimit{Cur: bytes, Max: bytes}
		if err := syscall.Setrlimit(syscall.RLIMIT_AS, &lim); err != nil {
			return err
		}
	}
	return nil
}
