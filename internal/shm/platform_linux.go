//go:build linux

package shm

import (
	"context"
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/unix"
)

// MapRegion maps or creates a shared memory region (Linux implementation).
// A created region is zero-filled; an attached region must be at least opts.Size bytes.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if opts.Size <= 0 {
		return nil, ErrInvalidSize
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shmPath, err := objectPath(opts.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, opts.Name)
	}
	perm := opts.Perm
	if perm == 0 {
		perm = DefaultPerm
	}

	flags := unix.O_RDWR | unix.O_CLOEXEC
	if opts.Create {
		if !canCreateOnDevShm(uint64(opts.Size)) {
			return nil, fmt.Errorf("%w: path %s size %d", ErrNoSpace, shmPath, opts.Size)
		}
		flags |= unix.O_CREAT
	}
	fd, err := unix.Open(shmPath, flags, uint32(perm.Perm()))
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, fmt.Errorf("open %s: %w", opts.Name, ErrNotExist)
		}
		return nil, fmt.Errorf("open %s: %w", opts.Name, err)
	}

	if opts.Create {
		// umask applies to O_CREAT; the mode is forced so the other role can attach.
		if err := unix.Fchmod(fd, uint32(perm.Perm())); err != nil && !errors.Is(err, unix.EPERM) {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("fchmod %s: %w", opts.Name, err)
		}
		if err := unix.Ftruncate(fd, int64(opts.Size)); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("ftruncate %s: %w", opts.Name, err)
		}
	} else {
		var st unix.Stat_t
		if err := unix.Fstat(fd, &st); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("fstat %s: %w", opts.Name, err)
		}
		if st.Size < int64(opts.Size) {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("%w: %s has %d bytes, want %d", ErrSizeMismatch, opts.Name, st.Size, opts.Size)
		}
	}

	addr, err := unix.Mmap(fd, 0, opts.Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", opts.Name, err)
	}
	if opts.Create {
		for i := range addr {
			addr[i] = 0
		}
	}

	region := &MappedRegion{
		Addr:    addr,
		Name:    opts.Name,
		Size:    opts.Size,
		fd:      fd,
		created: opts.Create,
	}
	track(region)
	return region, nil
}

// UnmapRegion unmaps and closes the shared memory region (Linux implementation).
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	if region == nil {
		return nil
	}
	return region.Unmap()
}

// Unmap releases the mapping and its descriptor. It is safe to call more than once.
func (r *MappedRegion) Unmap() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	untrack(r)

	var errs []error
	if r.Addr != nil {
		if err := unix.Munmap(r.Addr); err != nil {
			errs = append(errs, fmt.Errorf("munmap %s: %w", r.Name, err))
		}
		r.Addr = nil
	}
	if err := unix.Close(r.fd); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", r.Name, err))
	}
	return errors.Join(errs...)
}

// UnlinkRegion removes the named object. Processes that still map it keep
// their mapping until they unmap. A missing object is not an error.
func UnlinkRegion(name string) error {
	shmPath, err := objectPath(name)
	if err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}
	if err := unix.Unlink(shmPath); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("unlink %s: %w", name, err)
	}
	return nil
}

// Exists reports whether the named object is present.
func Exists(name string) bool {
	shmPath, err := objectPath(name)
	if err != nil {
		return false
	}
	return unix.Access(shmPath, unix.F_OK) == nil
}

func canCreateOnDevShm(size uint64) bool {
	usage, err := disk.Usage(devShmDir)
	if err != nil {
		// statfs failures leave the decision to ftruncate/mmap.
		return true
	}
	return usage.Free >= size
}
