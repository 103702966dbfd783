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
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
)

// Cancel is the process-wide cooperative stop flag. It starts in the
// "continue" state and flips to "stop" exactly once.
type Cancel struct {
	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}
}

// NewCancel returns a flag in the "continue" state.
func NewCancel() *Cancel {
	return &Cancel{done: make(chan struct{})}
}

// Stop requests cancellation. Calling it again has no further effect.
func (c *Cancel) Stop() {
	c.once.Do(func() {
		c.stopped.Store(true)
		close(c.done)
	})
}

// Stopped reports whether Stop was called.
func (c *Cancel) Stopped() bool {
	return c.stopped.Load()
}

// Done is closed once Stop was called.
func (c *Cancel) Done() <-chan struct{} {
	return c.done
}

// NotifyOnSignal flips the flag when one of sigs arrives. The handler does
// nothing else; loops log the transition when they observe it. The returned
// function stops the signal relay.
func (c *Cancel) NotifyOnSignal(sigs ...os.Signal) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	quit := make(chan struct{})
	go func() {
		select {
		case <-ch:
			c.Stop()
		case <-quit:
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(quit)
		})
	}
}
