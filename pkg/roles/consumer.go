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

	"github.com/srediag/shmtable/pkg/sem"
)

// Consumer removes and processes items until the producer is done and the
// table is drained, maxItems items were processed, or cancellation.
type Consumer struct {
	s *Session
}

// NewConsumer binds a consumer loop to a session created by NewConsumerSession.
func NewConsumer(s *Session) (*Consumer, error) {
	if s.role != RoleConsumer {
		return nil, ErrWrongRole
	}
	return &Consumer{s: s}, nil
}

// Run executes the consumption loop on the role's dedicated worker. Cancelling
// ctx has the same effect as stopping the session's Cancel flag.
func (c *Consumer) Run(ctx context.Context) (Result, error) {
	stop := context.AfterFunc(ctx, c.s.cancel.Stop)
	defer stop()

	ctx, span := c.s.tel.startRun(ctx, RoleConsumer, c.s.table.MaxItems())
	var res Result
	err := runOnWorker(c.s.log, func() error {
		var err error
		res, err = c.loop(ctx)
		return err
	})
	endRun(span, res, err)
	return res, err
}

func (c *Consumer) loop(ctx context.Context) (res Result, err error) {
	s := c.s
	t, set := s.table, s.sems
	res.Role = RoleConsumer
	maxItems := t.MaxItems()
	s.log.Infof("started, will consume up to %d items", maxItems)

	defer func() {
		res.TotalProduced = int(t.TotalProduced())
		s.log.Infof("exiting, total items consumed: %d", len(res.Items))
	}()

	for {
		if s.cancel.Stopped() {
			res.Cancelled = true
			s.log.Infof("cancellation observed, stopping")
			return res, nil
		}
		if len(res.Items) >= maxItems {
			return res, nil
		}
		// hints only: both fields are monotonic
		if t.ProducerDone() && len(res.Items) >= int(t.TotalProduced()) {
			s.log.Infof("producer is done and all items have been consumed")
			return res, nil
		}
		s.heartbeat()

		err := s.waitOn(set.Full, s.opts.WaitBound)
		switch {
		case err == nil:
		case errors.Is(err, sem.ErrTimeout):
			s.metrics.WaitTimeouts.Inc()
			if err := s.lock(); err != nil {
				return res, err
			}
			drained := t.ProducerDone() && t.Count() == 0
			s.unlock()
			if drained {
				s.log.Infof("producer is done and no more items to consume")
				return res, nil
			}
			continue
		case errors.Is(err, sem.ErrInterrupted):
			s.metrics.WaitInterrupts.Inc()
			continue
		default:
			s.log.Errorf("error waiting for an item: %v", err)
			return res, fmt.Errorf("%w: full: %v", ErrWaitFailed, err)
		}

		if err := s.lock(); err != nil {
			s.post(set.Full)
			return res, err
		}
		item, ok := t.Remove()
		count := t.Count()
		s.unlock()
		s.post(set.Empty)

		s.metrics.TableCount.Set(float64(count))
		if !ok {
			s.metrics.RaceWarnings.WithLabelValues("remove").Inc()
			s.log.Warnf("table is empty, nothing removed")
			continue
		}
		res.Items = append(res.Items, item)
		s.metrics.ItemsConsumed.Inc()
		s.tel.item(ctx)
		s.log.Debugf("removed item %d from the table, table count: %d", item, count)

		if err := s.opts.Processor.Process(ctx, item, len(res.Items), maxItems); err != nil {
			s.log.Warnf("processing item %d: %v", item, err)
		}
		s.pause(s.opts.ConsumeDelay)
	}
}
