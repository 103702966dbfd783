// Package sem implements named counting semaphores that can be shared by
// unrelated processes on the same host.
//
// A semaphore is a small object under /dev/shm named "sem.<name>", laid out
// like glibc's 64-bit sem_t: one 64-bit word holding the count in its low 32
// bits and the number of sleeping waiters in its high 32 bits. Waiters sleep
// on a shared futex over the count word, so a Post from any process mapping
// the object wakes them.
package sem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unsafe"

	"github.com/srediag/shmtable/internal/shm"
)

const (
	objectSize   = 32
	valueMask    = 0xffffffff
	waiterShift  = 32
	oneWaiter    = uint64(1) << waiterShift
	minusWaiter  = ^(oneWaiter - 1)

	// MaxValue is the largest count a semaphore can hold.
	MaxValue = valueMask
)

var (
	ErrNotExist    = errors.New("semaphore does not exist")
	ErrTimeout     = errors.New("semaphore wait timed out")
	ErrInterrupted = errors.New("semaphore wait interrupted by signal")
	ErrOverflow    = errors.New("semaphore value overflow")
	ErrClosed      = errors.New("semaphore closed")
)

// Semaphore is a handle on a named counting semaphore.
type Semaphore struct {
	name   string
	region *shm.MappedRegion
	word   unsafe.Pointer
	value  *uint32
}

// Create creates the named semaphore, or resets it if it already exists, and
// sets its count to initial.
func Create(ctx context.Context, name string, initial uint32, perm os.FileMode) (*Semaphore, error) {
	region, err := shm.MapRegion(ctx, shm.MapOptions{
		Name:   objectName(name),
		Size:   objectSize,
		Create: true,
		Perm:   perm,
	})
	if err != nil {
		return nil, fmt.Errorf("create semaphore %s: %w", name, err)
	}
	s := newSemaphore(name, region)
	shm.AtomicStoreUint64(s.word, uint64(initial))
	return s, nil
}

// Open attaches to an existing named semaphore.
func Open(ctx context.Context, name string) (*Semaphore, error) {
	region, err := shm.MapRegion(ctx, shm.MapOptions{
		Name: objectName(name),
		Size: objectSize,
	})
	if err != nil {
		if errors.Is(err, shm.ErrNotExist) {
			return nil, fmt.Errorf("open semaphore %s: %w", name, ErrNotExist)
		}
		return nil, fmt.Errorf("open semaphore %s: %w", name, err)
	}
	return newSemaphore(name, region), nil
}

// Unlink removes the named semaphore. Handles already open keep working.
func Unlink(name string) error {
	return shm.UnlinkRegion(objectName(name))
}

// Exists reports whether the named semaphore is present.
func Exists(name string) bool {
	return shm.Exists(objectName(name))
}

func objectName(name string) string {
	return "sem." + strings.TrimPrefix(name, "/")
}

func newSemaphore(name string, region *shm.MappedRegion) *Semaphore {
	off := 0
	if !shm.LittleEndian {
		off = 4
	}
	return &Semaphore{
		name:   name,
		region: region,
		word:   region.Pointer(0),
		value:  (*uint32)(region.Pointer(off)),
	}
}

// Name returns the name the semaphore was created or opened with.
func (s *Semaphore) Name() string {
	return s.name
}

// Value returns the current count. It is a diagnostic snapshot and must not
// drive synchronization decisions.
func (s *Semaphore) Value() uint32 {
	return uint32(shm.AtomicLoadUint64(s.word) & valueMask)
}

// Waiters returns the number of processes currently sleeping in Wait.
func (s *Semaphore) Waiters() uint32 {
	return uint32(shm.AtomicLoadUint64(s.word) >> waiterShift)
}

// TryWait decrements the count if it is positive and reports whether it did.
func (s *Semaphore) TryWait() bool {
	for {
		d := shm.AtomicLoadUint64(s.word)
		if d&valueMask == 0 {
			return false
		}
		if shm.AtomicCompareAndSwapUint64(s.word, d, d-1) {
			return true
		}
	}
}

// Wait blocks until the count can be decremented. It returns ErrInterrupted
// if a signal handler interrupted the sleep; the caller decides whether to retry.
func (s *Semaphore) Wait() error {
	return s.wait(-1)
}

// TimedWait is Wait bounded by d. It returns ErrTimeout when no unit became
// available within d.
func (s *Semaphore) TimedWait(d time.Duration) error {
	if d < 0 {
		d = 0
	}
	return s.wait(d)
}

func (s *Semaphore) wait(timeout time.Duration) error {
	if s.region == nil {
		return ErrClosed
	}
	if s.TryWait() {
		return nil
	}

	shm.AtomicAddUint64(s.word, oneWaiter)
	defer shm.AtomicAddUint64(s.word, minusWaiter)

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if s.TryWait() {
			return nil
		}
		sleep := time.Duration(-1)
		if timeout >= 0 {
			sleep = time.Until(deadline)
			if sleep <= 0 {
				return ErrTimeout
			}
		}
		switch err := shm.FutexWait(s.value, 0, sleep); {
		case err == nil, errors.Is(err, shm.ErrTimedOut):
		case errors.Is(err, shm.ErrInterrupted):
			// one last chance before reporting the interruption
			if s.TryWait() {
				return nil
			}
			return ErrInterrupted
		default:
			return fmt.Errorf("wait on semaphore %s: %w", s.name, err)
		}
	}
}

// Post increments the count and wakes one waiter if any is sleeping.
func (s *Semaphore) Post() error {
	if s.region == nil {
		return ErrClosed
	}
	for {
		d := shm.AtomicLoadUint64(s.word)
		if d&valueMask == valueMask {
			return fmt.Errorf("post semaphore %s: %w", s.name, ErrOverflow)
		}
		if shm.AtomicCompareAndSwapUint64(s.word, d, d+1) {
			if d>>waiterShift > 0 {
				if _, err := shm.FutexWake(s.value, 1); err != nil {
					return fmt.Errorf("wake semaphore %s: %w", s.name, err)
				}
			}
			return nil
		}
	}
}

// Close detaches from the semaphore without removing it. It is safe to call more than once.
func (s *Semaphore) Close() error {
	if s == nil || s.region == nil {
		return nil
	}
	err := s.region.Unmap()
	s.region = nil
	return err
}
