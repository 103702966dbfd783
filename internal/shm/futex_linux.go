//go:build linux

package shm

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Shared (non-private) futex operations, so that waiters in other processes
// mapping the same word are woken.
const (
	futexWaitOp = 0
	futexWakeOp = 1
)

// FutexWait sleeps while *addr == val. A negative timeout waits forever.
// It returns nil when woken or when *addr already differs from val,
// ErrTimedOut when the timeout elapses and ErrInterrupted when a signal
// handler ran. Spurious wakeups are possible; callers re-check the word.
func FutexWait(addr *uint32, val uint32, timeout time.Duration) error {
	var tsp *unix.Timespec
	if timeout >= 0 {
		ts := unix.NsecToTimespec(timeout.Nanoseconds())
		tsp = &ts
	}
	_, _, errno := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexWaitOp,
		uintptr(val),
		uintptr(unsafe.Pointer(tsp)),
		0, 0)
	switch errno {
	case 0, unix.EAGAIN:
		return nil
	case unix.ETIMEDOUT:
		return ErrTimedOut
	case unix.EINTR:
		return ErrInterrupted
	default:
		return errno
	}
}

// FutexWake wakes up to n waiters sleeping on addr and returns how many were woken.
func FutexWake(addr *uint32, n int) (int, error) {
	woken, _, errno := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexWakeOp,
		uintptr(n),
		0, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(woken), nil
}
