package table

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/srediag/shmtable/internal/shm"
)

type TableTestSuite struct {
	suite.Suite
	name  string
	owner *Table
}

func (s *TableTestSuite) SetupTest() {
	s.name = fmt.Sprintf("/shmtable_table_test_%d_%d", os.Getpid(), time.Now().UnixNano())
	var err error
	s.owner, err = Create(context.Background(), s.name, 5, 0)
	s.Require().NoError(err)
}

func (s *TableTestSuite) TearDownTest() {
	s.Require().NoError(s.owner.Destroy())
	s.False(Exists(s.name))
}

func (s *TableTestSuite) TestLayout() {
	s.Equal(24, Size)
	s.Equal(uintptr(offCount), unsafe.Offsetof(layout{}.Count))
	s.Equal(uintptr(offTotalProduced), unsafe.Offsetof(layout{}.TotalProduced))
	s.Equal(uintptr(offMaxItems), unsafe.Offsetof(layout{}.MaxItems))
	s.Equal(uintptr(offProducerDone), unsafe.Offsetof(layout{}.ProducerDone))
}

func (s *TableTestSuite) TestCreateInitializes() {
	st := s.owner.Snapshot()
	s.Equal(0, st.Count)
	s.Equal(0, st.TotalProduced)
	s.Equal(5, st.MaxItems)
	s.False(st.ProducerDone)
	s.Empty(st.Items)
	s.Equal(s.name, s.owner.Name())
}

func (s *TableTestSuite) TestInsertRemoveFIFO() {
	s.Require().NoError(s.owner.Insert(11))
	s.Require().NoError(s.owner.Insert(22))

	item, ok := s.owner.Remove()
	s.True(ok)
	s.Equal(int32(11), item)

	s.Require().NoError(s.owner.Insert(33))
	s.Equal([]int32{22, 33}, s.owner.Snapshot().Items)

	item, ok = s.owner.Remove()
	s.True(ok)
	s.Equal(int32(22), item)
	item, ok = s.owner.Remove()
	s.True(ok)
	s.Equal(int32(33), item)
	s.Equal(int32(3), s.owner.TotalProduced())
	s.Equal(int32(0), s.owner.Count())
}

func (s *TableTestSuite) TestInsertWhenFull() {
	s.Require().NoError(s.owner.Insert(1))
	s.Require().NoError(s.owner.Insert(2))
	s.ErrorIs(s.owner.Insert(3), ErrTableFull)

	st := s.owner.Snapshot()
	s.Equal(2, st.Count)
	s.Equal(2, st.TotalProduced)
	s.Equal([]int32{1, 2}, st.Items)
}

// A second remover racing on a drained table gets the sentinel and count stays intact.
func (s *TableTestSuite) TestRemoveRaceReturnsSentinel() {
	peer, err := Attach(context.Background(), s.name)
	s.Require().NoError(err)
	defer peer.Detach()

	s.Require().NoError(s.owner.Insert(7))
	s.Require().NoError(s.owner.Insert(8))
	s.Equal(int32(2), peer.Count())

	_, ok := peer.Remove()
	s.True(ok)
	_, ok = s.owner.Remove()
	s.True(ok)

	item, ok := peer.Remove()
	s.False(ok)
	s.Equal(NoItem, item)
	s.Equal(int32(0), s.owner.Count())
}

func (s *TableTestSuite) TestProducerDoneVisibleToPeer() {
	peer, err := Attach(context.Background(), s.name)
	s.Require().NoError(err)
	defer peer.Detach()

	s.False(peer.ProducerDone())
	s.owner.SetProducerDone()
	s.True(peer.ProducerDone())
	s.Equal(5, peer.MaxItems())
	if shm.LittleEndian {
		s.Equal(byte(1), s.owner.region.Addr[offProducerDone])
	}
}

func (s *TableTestSuite) TestCorruptedCount() {
	s.owner.l.Count = 9
	s.ErrorIs(s.owner.Insert(1), ErrCorruptedTable)
	_, ok := s.owner.Remove()
	s.False(ok)
	s.Len(s.owner.Snapshot().Items, Capacity)
	s.owner.l.Count = 0
}

func (s *TableTestSuite) TestDetachIsIdempotent() {
	peer, err := Attach(context.Background(), s.name)
	s.Require().NoError(err)
	s.Require().NoError(peer.Detach())
	s.Require().NoError(peer.Detach())
	s.True(Exists(s.name))
}

func TestTableTestSuite(t *testing.T) {
	suite.Run(t, new(TableTestSuite))
}

func TestAttachMissing(t *testing.T) {
	_, err := Attach(context.Background(), fmt.Sprintf("/shmtable_missing_%d", time.Now().UnixNano()))
	require.ErrorIs(t, err, ErrNotExist)
}

func TestCreateRejectsNonPositiveMax(t *testing.T) {
	_, err := Create(context.Background(), "/shmtable_never_created", 0, 0)
	require.ErrorIs(t, err, ErrInvalidMax)
	require.False(t, Exists("/shmtable_never_created"))
}
