package table

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unsafe"

	"github.com/srediag/shmtable/internal/shm"
)

const (
	// Capacity is the number of item slots in the table.
	Capacity = 2
	// DefaultName is the well-known name of the segment.
	DefaultName = "/producer_consumer_table"
	// NoItem is returned by Remove when the table is empty.
	NoItem int32 = -1
)

// Size is the exact byte size of the segment.
const Size = int(unsafe.Sizeof(layout{}))

var (
	ErrNotExist       = errors.New("shared table does not exist")
	ErrTableFull      = errors.New("shared table is full")
	ErrInvalidMax     = errors.New("max items must be positive")
	ErrCorruptedTable = errors.New("shared table state is out of range")
)

type layout struct {
	Items         [Capacity]int32
	Count         int32
	TotalProduced int32
	MaxItems      int32
	ProducerDone  uint32 // low byte is the C bool; the rest is padding
}

const (
	offCount         = 8
	offTotalProduced = 12
	offMaxItems      = 16
	offProducerDone  = 20
)

// State is a copy of the table fields.
type State struct {
	Items         []int32
	Count         int
	TotalProduced int
	MaxItems      int
	ProducerDone  bool
}

// Table is a mapped view of the shared table segment.
type Table struct {
	name   string
	region *shm.MappedRegion
	l      *layout
}

// Create creates (or recreates) the segment, zero-initializes it and records maxItems.
func Create(ctx context.Context, name string, maxItems int, perm os.FileMode) (*Table, error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMax, maxItems)
	}
	region, err := shm.MapRegion(ctx, shm.MapOptions{
		Name:   name,
		Size:   Size,
		Create: true,
		Perm:   perm,
	})
	if err != nil {
		return nil, fmt.Errorf("create table %s: %w", name, err)
	}
	t := newTable(name, region)
	shm.AtomicStoreInt32(t.ptr(offCount), 0)
	shm.AtomicStoreInt32(t.ptr(offTotalProduced), 0)
	shm.AtomicStoreUint32(t.ptr(offProducerDone), 0)
	shm.AtomicStoreInt32(t.ptr(offMaxItems), int32(maxItems))
	return t, nil
}

// Attach maps an existing segment.
func Attach(ctx context.Context, name string) (*Table, error) {
	region, err := shm.MapRegion(ctx, shm.MapOptions{Name: name, Size: Size})
	if err != nil {
		if errors.Is(err, shm.ErrNotExist) {
			return nil, fmt.Errorf("attach table %s: %w", name, ErrNotExist)
		}
		return nil, fmt.Errorf("attach table %s: %w", name, err)
	}
	return newTable(name, region), nil
}

// Unlink removes the named segment.
func Unlink(name string) error {
	return shm.UnlinkRegion(name)
}

// Exists reports whether the named segment is present.
func Exists(name string) bool {
	return shm.Exists(name)
}

func newTable(name string, region *shm.MappedRegion) *Table {
	return &Table{
		name:   name,
		region: region,
		l:      (*layout)(region.Pointer(0)),
	}
}

func (t *Table) ptr(off int) unsafe.Pointer {
	return t.region.Pointer(off)
}

// Name returns the segment name.
func (t *Table) Name() string {
	return t.name
}

// Insert appends item at items[count]. The caller holds the mutex.
// On a full table it returns ErrTableFull and leaves the table untouched.
func (t *Table) Insert(item int32) error {
	count := t.l.Count
	if count < 0 || count > Capacity {
		return fmt.Errorf("%w: count=%d", ErrCorruptedTable, count)
	}
	if count == Capacity {
		return ErrTableFull
	}
	t.l.Items[count] = item
	shm.AtomicStoreInt32(t.ptr(offCount), count+1)
	shm.AtomicStoreInt32(t.ptr(offTotalProduced), t.l.TotalProduced+1)
	return nil
}

// Remove takes items[0] and shifts the remaining items left. The caller holds
// the mutex. On an empty table it returns (NoItem, false).
func (t *Table) Remove() (int32, bool) {
	count := t.l.Count
	if count <= 0 || count > Capacity {
		return NoItem, false
	}
	item := t.l.Items[0]
	copy(t.l.Items[:count-1], t.l.Items[1:count])
	shm.AtomicStoreInt32(t.ptr(offCount), count-1)
	return item, true
}

// SetProducerDone marks the producer as permanently stopped. The caller holds the mutex.
func (t *Table) SetProducerDone() {
	var v uint32 = 1
	if !shm.LittleEndian {
		v = 1 << 24
	}
	shm.AtomicStoreUint32(t.ptr(offProducerDone), v)
}

// Snapshot copies the table fields. The caller holds the mutex for a consistent view.
func (t *Table) Snapshot() State {
	count := int(t.Count())
	n := count
	if n < 0 {
		n = 0
	}
	if n > Capacity {
		n = Capacity
	}
	items := make([]int32, n)
	copy(items, t.l.Items[:n])
	return State{
		Items:         items,
		Count:         count,
		TotalProduced: int(t.TotalProduced()),
		MaxItems:      t.MaxItems(),
		ProducerDone:  t.ProducerDone(),
	}
}

// MaxItems returns the immutable target item count.
func (t *Table) MaxItems() int {
	return int(shm.AtomicLoadInt32(t.ptr(offMaxItems)))
}

// ProducerDone reports whether the producer has stopped for good.
func (t *Table) ProducerDone() bool {
	return shm.AtomicLoadUint32(t.ptr(offProducerDone)) != 0
}

// Count returns the number of occupied slots.
func (t *Table) Count() int32 {
	return shm.AtomicLoadInt32(t.ptr(offCount))
}

// TotalProduced returns the number of items ever inserted.
func (t *Table) TotalProduced() int32 {
	return shm.AtomicLoadInt32(t.ptr(offTotalProduced))
}

// Detach unmaps the segment and leaves the named object in place.
func (t *Table) Detach() error {
	if t == nil || t.region == nil {
		return nil
	}
	err := t.region.Unmap()
	t.region = nil
	t.l = nil
	return err
}

// Destroy unmaps and unlinks the segment.
func (t *Table) Destroy() error {
	if t == nil {
		return nil
	}
	return errors.Join(t.Detach(), Unlink(t.name))
}
