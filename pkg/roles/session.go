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

// Package roles implements the producer and consumer sides of the shared
// table protocol.
//
// Each process builds one Session, the explicit context object holding the
// mapped table, the semaphore set and everything the loop needs, and drives
// it with a Producer or a Consumer. Insertion waits on empty then mutex and
// signals full; removal waits on full then mutex and signals empty. The
// mutex is never held across a blocking call other than its own acquisition.
package roles

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fastrand"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/shmtable/internal/logging"
	"github.com/srediag/shmtable/internal/shm"
	"github.com/srediag/shmtable/pkg/health"
	"github.com/srediag/shmtable/pkg/sem"
	"github.com/srediag/shmtable/pkg/table"
)

// DefaultMaxItems replaces a non-positive producer target.
const DefaultMaxItems = 10

// Role tells the two sides apart.
type Role int

const (
	RoleProducer Role = iota
	RoleConsumer
)

func (r Role) String() string {
	if r == RoleProducer {
		return "producer"
	}
	return "consumer"
}

// Names are the well-known names of the shared objects.
type Names struct {
	Table      string
	Semaphores sem.Names
}

// DefaultNames returns the names both roles agree on.
func DefaultNames() Names {
	return Names{Table: table.DefaultName, Semaphores: sem.DefaultNames()}
}

// WithNamespace isolates an independent producer/consumer pair.
func (n Names) WithNamespace(ns string) Names {
	return Names{
		Table:      sem.Namespaced(ns, n.Table),
		Semaphores: n.Semaphores.WithNamespace(ns),
	}
}

// Options configure a Session. Zero values pick defaults.
type Options struct {
	Names Names
	// MaxItems is the producer's target. The consumer reads it from the table.
	MaxItems int
	Perm     os.FileMode

	// WaitBound bounds the consumer's wait on full. Default 1s.
	WaitBound time.Duration
	// ProduceDelay and ConsumeDelay bound the random pause after each iteration.
	ProduceDelay time.Duration
	ConsumeDelay time.Duration
	// AttachTimeout lets the consumer retry a missing table/semaphores with
	// exponential backoff. Zero fails on the first attempt.
	AttachTimeout time.Duration

	Logger     *logging.Logger
	Registerer prometheus.Registerer
	Tracer     trace.Tracer
	Meter      metric.Meter
	Health     health.HealthProvider
	Cancel     *Cancel

	Generator Generator
	Processor Processor
}

func (o *Options) applyDefaults(role Role) {
	if o.Names.Table == "" {
		o.Names = DefaultNames()
	}
	if o.WaitBound <= 0 {
		o.WaitBound = time.Second
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	o.Logger = o.Logger.Named(role.String())
	if o.Registerer == nil {
		o.Registerer = prometheus.NewRegistry()
	}
	if o.Cancel == nil {
		o.Cancel = NewCancel()
	}
	if o.Generator == nil {
		o.Generator = RandomGenerator{}
	}
	if o.Processor == nil {
		o.Processor = LogProcessor{Log: o.Logger}
	}
}

// Session is the per-process context shared by a role's loop.
type Session struct {
	role    Role
	opts    Options
	table   *table.Table
	sems    *sem.Set
	log     *logging.Logger
	metrics *Metrics
	tel     *telemetry
	cancel  *Cancel
	// waitOn blocks on sm; a negative d waits without bound.
	waitOn func(sm *sem.Semaphore, d time.Duration) error

	closeOnce sync.Once
	closeErr  error
}

// NewProducerSession creates the table and the semaphore set. Objects created
// before a failure are removed again.
func NewProducerSession(ctx context.Context, opts Options) (*Session, error) {
	opts.applyDefaults(RoleProducer)
	if opts.MaxItems <= 0 {
		opts.Logger.Warnf("invalid number of items %d, using default: %d", opts.MaxItems, DefaultMaxItems)
		opts.MaxItems = DefaultMaxItems
	}
	s, err := newSession(RoleProducer, opts)
	if err != nil {
		return nil, err
	}

	s.table, err = table.Create(ctx, opts.Names.Table, opts.MaxItems, opts.Perm)
	if err != nil {
		s.log.Errorf("failed to create shared memory: %v", err)
		return nil, err
	}
	s.sems, err = sem.CreateSet(ctx, opts.Names.Semaphores, table.Capacity, opts.Perm)
	if err != nil {
		s.log.Errorf("failed to create semaphores: %v", err)
		_ = s.table.Destroy()
		return nil, err
	}
	s.ready()
	return s, nil
}

// NewConsumerSession attaches to the table and semaphores the producer created.
// It never creates or removes named objects.
func NewConsumerSession(ctx context.Context, opts Options) (*Session, error) {
	opts.applyDefaults(RoleConsumer)
	s, err := newSession(RoleConsumer, opts)
	if err != nil {
		return nil, err
	}

	attach := func() error {
		tbl, err := table.Attach(ctx, opts.Names.Table)
		if err != nil {
			return retryable(err, table.ErrNotExist)
		}
		set, err := sem.OpenSet(ctx, opts.Names.Semaphores)
		if err != nil {
			_ = tbl.Detach()
			return retryable(err, sem.ErrNotExist)
		}
		s.table, s.sems = tbl, set
		return nil
	}

	if opts.AttachTimeout > 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 50 * time.Millisecond
		b.MaxInterval = time.Second
		b.MaxElapsedTime = opts.AttachTimeout
		err = backoff.RetryNotify(attach, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
			s.log.Debugf("shared objects not ready, retrying in %s: %v", next, err)
		})
	} else {
		err = attach()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
	}
	if err != nil {
		s.log.Errorf("failed to attach shared objects: %v", err)
		return nil, err
	}
	s.ready()
	return s, nil
}

// retryable keeps missing and half-created objects retryable; the producer
// may be between creating a file and sizing it.
func retryable(err, notExist error) error {
	if errors.Is(err, notExist) || errors.Is(err, shm.ErrSizeMismatch) {
		return err
	}
	return backoff.Permanent(err)
}

func newSession(role Role, opts Options) (*Session, error) {
	tel, err := newTelemetry(opts.Tracer, opts.Meter, role)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	return &Session{
		role:    role,
		opts:    opts,
		log:     opts.Logger,
		metrics: NewMetrics(opts.Registerer, role),
		tel:     tel,
		cancel:  opts.Cancel,
		waitOn:  semWait,
	}, nil
}

func (s *Session) ready() {
	if s.opts.Health != nil {
		s.opts.Health.SetReady(true)
	}
}

// Role returns the side this session plays.
func (s *Session) Role() Role { return s.role }

// Table returns the mapped table.
func (s *Session) Table() *table.Table { return s.table }

// Semaphores returns the semaphore set.
func (s *Session) Semaphores() *sem.Set { return s.sems }

// Metrics returns the role metrics.
func (s *Session) Metrics() *Metrics { return s.metrics }

// Cancel returns the session's stop flag.
func (s *Session) Cancel() *Cancel { return s.cancel }

// Snapshot reads the table under the mutex.
func (s *Session) Snapshot() (table.State, error) {
	if err := s.lock(); err != nil {
		return table.State{}, err
	}
	st := s.table.Snapshot()
	s.unlock()
	return st, nil
}

func semWait(sm *sem.Semaphore, d time.Duration) error {
	if d < 0 {
		return sm.Wait()
	}
	return sm.TimedWait(d)
}

// lock acquires the mutex semaphore. Signal interruptions are retried: the
// mutex is only ever held for a few memory writes.
func (s *Session) lock() error {
	for {
		err := s.waitOn(s.sems.Mutex, -1)
		if err == nil {
			return nil
		}
		if errors.Is(err, sem.ErrInterrupted) {
			s.metrics.WaitInterrupts.Inc()
			continue
		}
		return fmt.Errorf("%w: mutex: %v", ErrWaitFailed, err)
	}
}

func (s *Session) unlock() {
	if err := s.sems.Mutex.Post(); err != nil {
		s.log.Errorf("release mutex: %v", err)
	}
}

func (s *Session) post(sm *sem.Semaphore) {
	if err := sm.Post(); err != nil {
		s.log.Errorf("signal %s: %v", sm.Name(), err)
	}
}

func (s *Session) heartbeat() {
	if s.opts.Health != nil {
		s.opts.Health.Heartbeat()
	}
}

// pause sleeps a random duration below bound, returning early on cancellation.
func (s *Session) pause(bound time.Duration) {
	if bound <= 0 {
		return
	}
	us := bound / time.Microsecond
	if us > math.MaxUint32-1 {
		us = math.MaxUint32 - 1
	}
	d := time.Duration(fastrand.Uint32n(uint32(us)+1)) * time.Microsecond
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-s.cancel.Done():
	}
}

// Close releases every handle. The producer also unlinks the named objects;
// processes still attached keep their mappings. Close is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.opts.Health != nil {
			s.opts.Health.SetReady(false)
		}
		errs := []error{s.sems.Close(), s.table.Detach()}
		if s.role == RoleProducer {
			errs = append(errs, sem.UnlinkSet(s.opts.Names.Semaphores), table.Unlink(s.opts.Names.Table))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
