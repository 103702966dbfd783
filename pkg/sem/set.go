package sem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Names holds the well-known names of the three semaphores guarding a table.
type Names struct {
	Mutex string
	Empty string
	Full  string
}

// DefaultNames returns the names shared by the producer and the consumer.
func DefaultNames() Names {
	return Names{
		Mutex: "/producer_consumer_mutex",
		Empty: "/producer_consumer_empty",
		Full:  "/producer_consumer_full",
	}
}

// WithNamespace prefixes every name with ns, so that independent
// producer/consumer pairs can run side by side. An empty ns is a no-op.
func (n Names) WithNamespace(ns string) Names {
	return Names{
		Mutex: Namespaced(ns, n.Mutex),
		Empty: Namespaced(ns, n.Empty),
		Full:  Namespaced(ns, n.Full),
	}
}

func (n Names) all() []string {
	return []string{n.Mutex, n.Empty, n.Full}
}

// Namespaced returns "/<ns>_<name>" for a POSIX style name.
func Namespaced(ns, name string) string {
	if ns == "" {
		return name
	}
	ns = strings.NewReplacer("/", "_", ".", "_").Replace(ns)
	return "/" + ns + "_" + strings.TrimPrefix(name, "/")
}

// Set is the mutex/empty/full triple of the bounded buffer protocol.
type Set struct {
	Names Names
	Mutex *Semaphore
	Empty *Semaphore
	Full  *Semaphore
}

// CreateSet creates the three semaphores with mutex=1, empty=capacity, full=0.
// Semaphores created before a failure are closed and unlinked again.
func CreateSet(ctx context.Context, names Names, capacity uint32, perm os.FileMode) (*Set, error) {
	set := &Set{Names: names}
	var err error
	if set.Mutex, err = Create(ctx, names.Mutex, 1, perm); err != nil {
		return nil, err
	}
	if set.Empty, err = Create(ctx, names.Empty, capacity, perm); err != nil {
		_ = set.Close()
		_ = UnlinkSet(names)
		return nil, err
	}
	if set.Full, err = Create(ctx, names.Full, 0, perm); err != nil {
		_ = set.Close()
		_ = UnlinkSet(names)
		return nil, err
	}
	return set, nil
}

// OpenSet attaches to the three semaphores. It fails if any of them is missing.
func OpenSet(ctx context.Context, names Names) (*Set, error) {
	set := &Set{Names: names}
	var err error
	if set.Mutex, err = Open(ctx, names.Mutex); err != nil {
		return nil, err
	}
	if set.Empty, err = Open(ctx, names.Empty); err != nil {
		_ = set.Close()
		return nil, err
	}
	if set.Full, err = Open(ctx, names.Full); err != nil {
		_ = set.Close()
		return nil, err
	}
	return set, nil
}

// Close detaches from all three semaphores.
func (s *Set) Close() error {
	if s == nil {
		return nil
	}
	return errors.Join(s.Mutex.Close(), s.Empty.Close(), s.Full.Close())
}

// UnlinkSet removes the three named semaphores.
func UnlinkSet(names Names) error {
	var errs []error
	for _, name := range names.all() {
		if err := Unlink(name); err != nil {
			errs = append(errs, fmt.Errorf("unlink semaphore %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// ExistsSet reports whether all three semaphores are present.
func ExistsSet(names Names) bool {
	for _, name := range names.all() {
		if !Exists(name) {
			return false
		}
	}
	return true
}
