package sem

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func testName() string {
	return fmt.Sprintf("/shmtable_sem_test_%d_%d", os.Getpid(), time.Now().UnixNano())
}

type SemaphoreTestSuite struct {
	suite.Suite
	name string
}

func (s *SemaphoreTestSuite) SetupTest() {
	s.name = testName()
}

func (s *SemaphoreTestSuite) TearDownTest() {
	s.Require().NoError(Unlink(s.name))
}

func (s *SemaphoreTestSuite) TestCreateAndOpen() {
	ctx := context.Background()
	owner, err := Create(ctx, s.name, 2, 0)
	s.Require().NoError(err)
	defer owner.Close()
	s.True(Exists(s.name))
	s.Equal(s.name, owner.Name())

	peer, err := Open(ctx, s.name)
	s.Require().NoError(err)
	defer peer.Close()

	s.Equal(uint32(2), peer.Value())
	s.True(peer.TryWait())
	s.Equal(uint32(1), owner.Value())
	s.True(owner.TryWait())
	s.False(peer.TryWait())
	s.Require().NoError(owner.Post())
	s.Equal(uint32(1), peer.Value())
}

func (s *SemaphoreTestSuite) TestCreateResetsValue() {
	ctx := context.Background()
	first, err := Create(ctx, s.name, 5, 0)
	s.Require().NoError(err)
	s.Require().NoError(first.Close())

	second, err := Create(ctx, s.name, 0, 0)
	s.Require().NoError(err)
	defer second.Close()
	s.Equal(uint32(0), second.Value())
}

func (s *SemaphoreTestSuite) TestOpenMissing() {
	_, err := Open(context.Background(), s.name)
	s.ErrorIs(err, ErrNotExist)
}

func (s *SemaphoreTestSuite) TestTimedWaitTimesOut() {
	sem, err := Create(context.Background(), s.name, 0, 0)
	s.Require().NoError(err)
	defer sem.Close()

	start := time.Now()
	err = sem.TimedWait(30 * time.Millisecond)
	s.ErrorIs(err, ErrTimeout)
	s.GreaterOrEqual(time.Since(start), 30*time.Millisecond)
	s.Equal(uint32(0), sem.Waiters())

	s.ErrorIs(sem.TimedWait(0), ErrTimeout)
}

func (s *SemaphoreTestSuite) TestPostWakesWaiterOnOtherHandle() {
	ctx := context.Background()
	waiterSide, err := Create(ctx, s.name, 0, 0)
	s.Require().NoError(err)
	defer waiterSide.Close()
	postSide, err := Open(ctx, s.name)
	s.Require().NoError(err)
	defer postSide.Close()

	done := make(chan error, 1)
	go func() {
		for {
			err := waiterSide.Wait()
			if err == ErrInterrupted {
				continue
			}
			done <- err
			return
		}
	}()

	s.Eventually(func() bool { return postSide.Waiters() == 1 }, time.Second, time.Millisecond)
	s.Require().NoError(postSide.Post())
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(2 * time.Second):
		s.Fail("waiter was not woken")
	}
	s.Equal(uint32(0), postSide.Value())
	s.Equal(uint32(0), postSide.Waiters())
}

func (s *SemaphoreTestSuite) TestCountingUnderContention() {
	ctx := context.Background()
	sem, err := Create(ctx, s.name, 0, 0)
	s.Require().NoError(err)
	defer sem.Close()

	const posts = 200
	var wg sync.WaitGroup
	got := make(chan struct{}, posts)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := sem.TimedWait(200 * time.Millisecond)
				if err == ErrTimeout {
					return
				}
				if err == nil {
					got <- struct{}{}
				}
			}
		}()
	}
	for i := 0; i < posts; i++ {
		s.Require().NoError(sem.Post())
	}
	wg.Wait()
	s.Len(got, posts)
	s.Equal(uint32(0), sem.Value())
}

func (s *SemaphoreTestSuite) TestOverflowAndClosed() {
	sem, err := Create(context.Background(), s.name, MaxValue, 0)
	s.Require().NoError(err)
	s.ErrorIs(sem.Post(), ErrOverflow)
	s.Require().NoError(sem.Close())
	s.Require().NoError(sem.Close())
	s.ErrorIs(sem.Post(), ErrClosed)
	s.ErrorIs(sem.Wait(), ErrClosed)
}

func TestSemaphoreTestSuite(t *testing.T) {
	suite.Run(t, new(SemaphoreTestSuite))
}

func TestNamespaced(t *testing.T) {
	assert.Equal(t, "/producer_consumer_full", Namespaced("", "/producer_consumer_full"))
	assert.Equal(t, "/run1_producer_consumer_full", Namespaced("run1", "/producer_consumer_full"))
	assert.Equal(t, "/a_b_producer_consumer_full", Namespaced("a/b", "/producer_consumer_full"))

	names := DefaultNames().WithNamespace("ns")
	assert.Equal(t, "/ns_producer_consumer_mutex", names.Mutex)
	assert.Equal(t, "/ns_producer_consumer_empty", names.Empty)
	assert.Equal(t, "/ns_producer_consumer_full", names.Full)
}

func TestSetLifecycle(t *testing.T) {
	ctx := context.Background()
	names := DefaultNames().WithNamespace(fmt.Sprintf("settest%d_%d", os.Getpid(), time.Now().UnixNano()))
	defer func() { require.NoError(t, UnlinkSet(names)) }()

	_, err := OpenSet(ctx, names)
	require.ErrorIs(t, err, ErrNotExist)

	set, err := CreateSet(ctx, names, 2, 0)
	require.NoError(t, err)
	defer set.Close()
	assert.True(t, ExistsSet(names))
	assert.Equal(t, uint32(1), set.Mutex.Value())
	assert.Equal(t, uint32(2), set.Empty.Value())
	assert.Equal(t, uint32(0), set.Full.Value())

	peer, err := OpenSet(ctx, names)
	require.NoError(t, err)
	require.NoError(t, peer.Close())

	require.NoError(t, Unlink(names.Full))
	assert.False(t, ExistsSet(names))
	_, err = OpenSet(ctx, names)
	assert.ErrorIs(t, err, ErrNotExist)
}
