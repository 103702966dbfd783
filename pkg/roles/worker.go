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
	"fmt"

	"github.com/panjf2000/ants/v2"

	"github.com/srediag/shmtable/internal/logging"
)

type poolLogger struct {
	l *logging.Logger
}

func (p poolLogger) Printf(format string, args ...interface{}) {
	p.l.Warnf(format, args...)
}

// runOnWorker runs fn on a dedicated single-worker pool and waits for it.
// A panic in fn is returned as ErrWorkerPanic.
func runOnWorker(log *logging.Logger, fn func() error) error {
	pool, err := ants.NewPool(1, ants.WithLogger(poolLogger{log}))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWorkerStart, err)
	}
	defer pool.Release()

	done := make(chan struct{})
	var runErr error
	if err := pool.Submit(func() {
		defer close(done)
		defer func() {
			if p := recover(); p != nil {
				runErr = fmt.Errorf("%w: %v", ErrWorkerPanic, p)
			}
		}()
		runErr = fn()
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrWorkerStart, err)
	}
	<-done
	return runErr
}
