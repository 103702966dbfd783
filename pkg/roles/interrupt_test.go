/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package roles

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/srediag/shmtable/pkg/sem"
)

// interruptOnce makes the first wait on target report a signal interruption.
// before, when set, runs just ahead of the interruption.
func interruptOnce(sess *Session, target *sem.Semaphore, before func()) *atomic.Int32 {
	var hits atomic.Int32
	sess.waitOn = func(sm *sem.Semaphore, d time.Duration) error {
		if sm == target && hits.CompareAndSwap(0, 1) {
			if before != nil {
				before()
			}
			return sem.ErrInterrupted
		}
		return semWait(sm, d)
	}
	return &hits
}

func (s *RolesTestSuite) TestInterruptedWaitsAreRetried() {
	popts := s.options(3)
	popts.Generator = NewSequenceGenerator(1)
	pSess, p := s.producer(popts)
	defer pSess.Close()

	var processed []int32
	copts := s.options(0)
	creg := prometheus.NewRegistry()
	copts.Registerer = creg
	copts.Processor = ProcessorFunc(func(_ context.Context, item int32, consumed, maxItems int) error {
		processed = append(processed, item)
		s.Equal(len(processed), consumed)
		s.Equal(3, maxItems)
		return nil
	})
	cSess, c := s.consumer(copts)
	defer cSess.Close()

	pHits := interruptOnce(pSess, pSess.Semaphores().Empty, nil)
	cHits := interruptOnce(cSess, cSess.Semaphores().Full, nil)

	pOut, cOut := s.runBoth(p, c)
	s.Require().NoError(pOut.err)
	s.Require().NoError(cOut.err)

	want := []int32{1, 2, 3}
	s.Equal(want, pOut.res.Items)
	s.Equal(want, cOut.res.Items)
	s.Equal(want, processed)
	s.False(pOut.res.Cancelled)
	s.False(cOut.res.Cancelled)

	s.Equal(int32(1), pHits.Load())
	s.Equal(int32(1), cHits.Load())
	s.Equal(float64(1), testutil.ToFloat64(pSess.Metrics().WaitInterrupts))

	families := gather(s.T(), creg)
	interrupts := families["shmtable_wait_interrupts_total"]
	s.Require().NotNil(interrupts)
	s.Equal(float64(1), interrupts.GetMetric()[0].GetCounter().GetValue())
}

func (s *RolesTestSuite) TestInterruptedMutexIsRetried() {
	popts := s.options(1)
	popts.Generator = NewSequenceGenerator(8)
	pSess, p := s.producer(popts)
	defer pSess.Close()
	hits := interruptOnce(pSess, pSess.Semaphores().Mutex, nil)

	res, err := p.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal([]int32{8}, res.Items)
	s.Equal(int32(1), hits.Load())
	s.Equal(float64(1), testutil.ToFloat64(pSess.Metrics().WaitInterrupts))
	s.Equal(uint32(1), pSess.Semaphores().Mutex.Value())
	s.True(pSess.Table().ProducerDone())
}

// A signal that raised the cancel flag ends the consumer at the next check.
func (s *RolesTestSuite) TestInterruptedConsumerObservesCancel() {
	pSess, _ := s.producer(s.options(3))
	defer pSess.Close()
	cSess, c := s.consumer(s.options(0))
	defer cSess.Close()
	interruptOnce(cSess, cSess.Semaphores().Full, cSess.Cancel().Stop)

	res, err := c.Run(s.ctx)
	s.Require().NoError(err)
	s.True(res.Cancelled)
	s.Empty(res.Items)
	s.Equal(float64(1), testutil.ToFloat64(cSess.Metrics().WaitInterrupts))
	s.Equal(float64(0), testutil.ToFloat64(cSess.Metrics().WaitTimeouts))
}

// An interrupted slot wait after cancellation leaves without taking a slot.
func (s *RolesTestSuite) TestInterruptedProducerObservesCancel() {
	pSess, p := s.producer(s.options(3))
	defer pSess.Close()
	interruptOnce(pSess, pSess.Semaphores().Empty, pSess.Cancel().Stop)

	res, err := p.Run(s.ctx)
	s.Require().NoError(err)
	s.True(res.Cancelled)
	s.Empty(res.Items)
	s.Equal(0, res.TotalProduced)
	s.Equal(float64(1), testutil.ToFloat64(pSess.Metrics().WaitInterrupts))

	set := pSess.Semaphores()
	s.Equal(uint32(2), set.Empty.Value())
	s.Equal(uint32(0), set.Full.Value())
	s.True(pSess.Table().ProducerDone())
}
