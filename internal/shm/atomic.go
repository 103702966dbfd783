package shm

import (
	"sync/atomic"
	"unsafe"
)

// The helpers below operate on words inside a mapped region. addr must be
// naturally aligned; mmap returns page aligned memory so fixed offsets that
// are multiples of the word size are safe.

// AtomicLoadUint64 loads a uint64 from shared memory atomically.
func AtomicLoadUint64(addr unsafe.Pointer) uint64 {
	return atomic.LoadUint64((*uint64)(addr))
}

// AtomicStoreUint64 stores a uint64 to shared memory atomically.
func AtomicStoreUint64(addr unsafe.Pointer, val uint64) {
	atomic.StoreUint64((*uint64)(addr), val)
}

// AtomicAddUint64 adds delta to a uint64 in shared memory and returns the new value.
func AtomicAddUint64(addr unsafe.Pointer, delta uint64) uint64 {
	return atomic.AddUint64((*uint64)(addr), delta)
}

// AtomicCompareAndSwapUint64 atomically compares and swaps a uint64 in shared memory.
func AtomicCompareAndSwapUint64(addr unsafe.Pointer, old, new uint64) bool {
	return atomic.CompareAndSwapUint64((*uint64)(addr), old, new)
}

// AtomicLoadInt32 loads an int32 from shared memory atomically.
func AtomicLoadInt32(addr unsafe.Pointer) int32 {
	return atomic.LoadInt32((*int32)(addr))
}

// AtomicStoreInt32 stores an int32 to shared memory atomically.
func AtomicStoreInt32(addr unsafe.Pointer, val int32) {
	atomic.StoreInt32((*int32)(addr), val)
}

// AtomicLoadUint32 loads a uint32 from shared memory atomically.
func AtomicLoadUint32(addr unsafe.Pointer) uint32 {
	return atomic.LoadUint32((*uint32)(addr))
}

// AtomicStoreUint32 stores a uint32 to shared memory atomically.
func AtomicStoreUint32(addr unsafe.Pointer, val uint32) {
	atomic.StoreUint32((*uint32)(addr), val)
}
