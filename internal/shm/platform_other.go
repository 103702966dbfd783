//go:build !linux

package shm

import (
	"context"
	"time"
)

// MapRegion is not implemented on this platform.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	return nil, ErrUnsupported
}

// UnmapRegion is not implemented on this platform.
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	return ErrUnsupported
}

// Unmap is not implemented on this platform.
func (r *MappedRegion) Unmap() error {
	return ErrUnsupported
}

// UnlinkRegion is not implemented on this platform.
func UnlinkRegion(name string) error {
	return ErrUnsupported
}

// Exists always reports false on this platform.
func Exists(name string) bool {
	return false
}

// FutexWait is not implemented on this platform.
func FutexWait(addr *uint32, val uint32, timeout time.Duration) error {
	return ErrUnsupported
}

// FutexWake is not implemented on this platform.
func FutexWake(addr *uint32, n int) (int, error) {
	return 0, ErrUnsupported
}
