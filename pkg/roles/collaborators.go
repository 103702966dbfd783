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

	queuepkg "github.com/Workiva/go-datastructures/queue"
	"github.com/valyala/fastrand"

	"github.com/srediag/shmtable/internal/logging"
)

// Generator supplies the values the producer inserts.
type Generator interface {
	Next() int32
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() int32

func (f GeneratorFunc) Next() int32 { return f() }

// RandomGenerator yields values in [1, 100].
type RandomGenerator struct{}

func (RandomGenerator) Next() int32 {
	return int32(fastrand.Uint32n(100)) + 1
}

// SequenceGenerator yields start, start+1, ... and is safe for concurrent use.
type SequenceGenerator struct {
	next atomic.Int32
}

// NewSequenceGenerator returns a generator starting at start.
func NewSequenceGenerator(start int32) *SequenceGenerator {
	g := &SequenceGenerator{}
	g.next.Store(start)
	return g
}

func (g *SequenceGenerator) Next() int32 {
	return g.next.Add(1) - 1
}

// Processor consumes the items the consumer removed. It runs outside the
// critical section.
type Processor interface {
	Process(ctx context.Context, item int32, consumed, maxItems int) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, item int32, consumed, maxItems int) error

func (f ProcessorFunc) Process(ctx context.Context, item int32, consumed, maxItems int) error {
	return f(ctx, item, consumed, maxItems)
}

// LogProcessor reports every consumed item.
type LogProcessor struct {
	Log *logging.Logger
}

func (p LogProcessor) Process(_ context.Context, item int32, consumed, maxItems int) error {
	p.Log.Infof("consumed item %d (total consumed: %d/%d)", item, consumed, maxItems)
	return nil
}

// Recorder keeps consumed items in arrival order.
type Recorder struct {
	q *queuepkg.Queue
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{q: queuepkg.New(16)}
}

func (r *Recorder) Process(_ context.Context, item int32, _, _ int) error {
	return r.q.Put(item)
}

// Len returns the number of recorded items not drained yet.
func (r *Recorder) Len() int {
	return int(r.q.Len())
}

// Drain returns and forgets the recorded items, oldest first.
func (r *Recorder) Drain() []int32 {
	n := r.q.Len()
	if n == 0 {
		return nil
	}
	raw, err := r.q.Get(n)
	if err != nil {
		return nil
	}
	items := make([]int32, 0, len(raw))
	for _, v := range raw {
		items = append(items, v.(int32))
	}
	return items
}

// Close releases the recorder; further Process calls fail.
func (r *Recorder) Close() {
	r.q.Dispose()
}
