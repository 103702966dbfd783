// Package shm contains the platform-specific helpers behind the shared table
// and the named semaphores: named memory regions, futexes and atomics over
// mapped memory.
package shm

import (
	"errors"
	"os"
	"strings"
	"sync"
	"unsafe"
)

const devShmDir = "/dev/shm"

// DefaultPerm is the permission used for named objects when MapOptions.Perm is zero.
const DefaultPerm os.FileMode = 0666

var (
	ErrNotExist     = errors.New("shared memory object does not exist")
	ErrInvalidName  = errors.New("invalid shared memory name")
	ErrInvalidSize  = errors.New("invalid shared memory size")
	ErrSizeMismatch = errors.New("shared memory object is smaller than expected")
	ErrNoSpace      = errors.New("not enough space left on " + devShmDir)
	ErrUnsupported  = errors.New("shared memory is not supported on this platform")
	ErrTimedOut     = errors.New("futex wait timed out")
	ErrInterrupted  = errors.New("futex wait interrupted")
)

// LittleEndian reports the byte order of the host, which is also the byte
// order of every word stored in a mapped region.
var LittleEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// MappedRegion represents a memory-mapped shared region.
type MappedRegion struct {
	Addr []byte
	Name string
	Size int

	fd      int
	key     string
	created bool

	mu     sync.Mutex
	closed bool
}

// Created reports whether this mapping created the named object.
func (r *MappedRegion) Created() bool {
	return r.created
}

// Pointer returns the address of the byte at off inside the mapping.
func (r *MappedRegion) Pointer(off int) unsafe.Pointer {
	return unsafe.Pointer(&r.Addr[off])
}

// MapOptions defines options for mapping shared memory.
type MapOptions struct {
	Name   string
	Size   int
	Create bool
	// Perm is applied to objects this call creates. Zero means DefaultPerm.
	Perm os.FileMode
}

// objectPath turns a POSIX style name ("/producer_consumer_table") into the
// file backing it under /dev/shm.
func objectPath(name string) (string, error) {
	base := strings.TrimPrefix(name, "/")
	if base == "" || strings.ContainsRune(base, '/') || base == "." || base == ".." {
		return "", ErrInvalidName
	}
	return devShmDir + "/" + base, nil
}

// Function implementations are provided in platform-specific files (platform_linux.go, platform_other.go).
