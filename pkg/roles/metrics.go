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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of one role.
type Metrics struct {
	ItemsProduced  prometheus.Counter
	ItemsConsumed  prometheus.Counter
	RaceWarnings   *prometheus.CounterVec
	WaitTimeouts   prometheus.Counter
	WaitInterrupts prometheus.Counter
	TableCount     prometheus.Gauge
}

// NewMetrics registers the role metrics on reg.
func NewMetrics(reg prometheus.Registerer, role Role) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"role": role.String()}
	return &Metrics{
		ItemsProduced: factory.NewCounter(prometheus.CounterOpts{
			Name:        "shmtable_items_produced_total",
			Help:        "Items inserted into the shared table",
			ConstLabels: labels,
		}),
		ItemsConsumed: factory.NewCounter(prometheus.CounterOpts{
			Name:        "shmtable_items_consumed_total",
			Help:        "Items removed from the shared table and processed",
			ConstLabels: labels,
		}),
		RaceWarnings: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "shmtable_race_warnings_total",
			Help:        "Insert-when-full and remove-when-empty occurrences",
			ConstLabels: labels,
		}, []string{"op"}),
		WaitTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name:        "shmtable_wait_timeouts_total",
			Help:        "Bounded semaphore waits that timed out",
			ConstLabels: labels,
		}),
		WaitInterrupts: factory.NewCounter(prometheus.CounterOpts{
			Name:        "shmtable_wait_interrupts_total",
			Help:        "Semaphore waits interrupted by a signal",
			ConstLabels: labels,
		}),
		TableCount: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "shmtable_table_count",
			Help:        "Occupied slots observed in the last critical section",
			ConstLabels: labels,
		}),
	}
}
