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

import "errors"

var (
	// ErrWaitFailed is a semaphore wait that failed for a reason other than
	// a timeout or a signal. It aborts the loop.
	ErrWaitFailed = errors.New("semaphore wait failed")
	// ErrWorkerStart means the dedicated loop worker could not be started.
	ErrWorkerStart = errors.New("failed to start role worker")
	// ErrWorkerPanic means the loop worker panicked.
	ErrWorkerPanic = errors.New("role worker panicked")
	// ErrWrongRole is returned when a session is driven by the other role.
	ErrWrongRole = errors.New("session belongs to the other role")
)
