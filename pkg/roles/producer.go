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
	"errors"
	"fmt"
	"time"

	"github.com/srediag/shmtable/pkg/sem"
	"github.com/srediag/shmtable/pkg/table"
)

// Result summarizes a finished loop.
type Result struct {
	Role Role
	// Items holds what this role inserted (producer) or processed (consumer), in order.
	Items []int32
	// TotalProduced is the table's totalProduced when the loop exited.
	TotalProduced int
	// Cancelled is true when the loop stopped because of the cancel flag.
	Cancelled bool
}

// Producer inserts generated items until the target is reached or cancellation.
type Producer struct {
	s *Session
}

// NewProducer binds a producer loop to a session created by NewProducerSession.
func NewProducer(s *Session) (*Producer, error) {
	if s.role != RoleProducer {
		return nil, ErrWrongRole
	}
	return &Producer{s: s}, nil
}

// Run executes the production loop on the role's dedicated worker. Cancelling
// ctx has the same effect as stopping the session's Cancel flag.
func (p *Producer) Run(ctx context.Context) (Result, error) {
	stop := context.AfterFunc(ctx, p.s.cancel.Stop)
	defer stop()

	ctx, span := p.s.tel.startRun(ctx, RoleProducer, p.s.table.MaxItems())
	var res Result
	err := runOnWorker(p.s.log, func() error {
		var err error
		res, err = p.loop(ctx)
		return err
	})
	endRun(span, res, err)
	return res, err
}

func (p *Producer) loop(ctx context.Context) (res Result, err error) {
	s := p.s
	t, set := s.table, s.sems
	res.Role = RoleProducer
	maxItems := t.MaxItems()
	s.log.Infof("started, will produce %d items", maxItems)

	defer func() {
		if doneErr := p.markDone(); doneErr != nil && err == nil {
			err = doneErr
		}
		res.TotalProduced = int(t.TotalProduced())
		res.Cancelled = s.cancel.Stopped()
		if res.Cancelled {
			s.log.Infof("cancellation observed, stopping")
		}
		s.log.Infof("exiting, total items produced: %d", res.TotalProduced)
	}()

	for !s.cancel.Stopped() && int(t.TotalProduced()) < maxItems {
		s.heartbeat()
		item := s.opts.Generator.Next()

		acquired, err := p.waitSlot()
		if err != nil {
			return res, err
		}
		if !acquired {
			break
		}
		if err := s.lock(); err != nil {
			s.post(set.Empty)
			return res, err
		}

		inserted := false
		var insertErr error
		// re-check: cancellation may have arrived while waiting for the slot
		if !s.cancel.Stopped() && int(t.TotalProduced()) < maxItems {
			insertErr = t.Insert(item)
			inserted = insertErr == nil
		}
		count, total := t.Count(), t.TotalProduced()
		s.unlock()
		s.post(set.Full)

		s.metrics.TableCount.Set(float64(count))
		switch {
		case inserted:
			res.Items = append(res.Items, item)
			s.metrics.ItemsProduced.Inc()
			s.tel.item(ctx)
			s.log.Infof("added item %d to the table, table count: %d (total produced: %d/%d)", item, count, total, maxItems)
		case errors.Is(insertErr, table.ErrTableFull):
			s.metrics.RaceWarnings.WithLabelValues("insert").Inc()
			s.log.Warnf("table is full, item %d skipped", item)
		case insertErr != nil:
			s.metrics.RaceWarnings.WithLabelValues("insert").Inc()
			s.log.Warnf("insert of item %d skipped: %v", item, insertErr)
		}

		s.pause(s.opts.ProduceDelay)
	}
	return res, nil
}

// waitSlot waits for an empty slot in WaitBound steps so that a producer
// with no consumer still observes cancellation. It returns false when
// cancelled before a slot was acquired.
func (p *Producer) waitSlot() (bool, error) {
	s := p.s
	for {
		err := s.waitOn(s.sems.Empty, s.opts.WaitBound)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, sem.ErrTimeout):
			s.metrics.WaitTimeouts.Inc()
		case errors.Is(err, sem.ErrInterrupted):
			s.metrics.WaitInterrupts.Inc()
		default:
			s.log.Errorf("error waiting for an empty slot: %v", err)
			return false, fmt.Errorf("%w: empty: %v", ErrWaitFailed, err)
		}
		if s.cancel.Stopped() {
			return false, nil
		}
	}
}

// markDone publishes the termination handshake flag.
func (p *Producer) markDone() error {
	if err := p.s.lock(); err != nil {
		p.s.log.Errorf("could not mark producer done: %v", err)
		return err
	}
	p.s.table.SetProducerDone()
	p.s.unlock()
	return nil
}

// AwaitDrain waits until the consumer emptied the table, the timeout
// elapsed, ctx ended or the session was cancelled. It reports whether the
// table was drained. The producer calls it before Close so that a consumer
// still working through the last items finds the objects in place.
func (p *Producer) AwaitDrain(ctx context.Context, timeout time.Duration) (bool, error) {
	tick := p.s.opts.WaitBound / 10
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	for {
		st, err := p.s.Snapshot()
		if err != nil {
			return false, err
		}
		if st.Count == 0 {
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-p.s.cancel.Done():
			return false, nil
		case <-time.After(tick):
		}
	}
}
