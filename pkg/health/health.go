// Package health exposes liveness and readiness of a producer or consumer
// loop over HTTP.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ErrNotReady = errors.New("shared resources are not attached")
	ErrStalled  = errors.New("loop heartbeat is stale")
)

// HealthProvider is what a role loop reports to.
type HealthProvider interface {
	// Heartbeat records that the loop made progress.
	Heartbeat()
	// SetReady records whether the shared resources are attached.
	SetReady(ready bool)
}

// Monitor implements HealthProvider on top of a healthcheck.Handler.
type Monitor struct {
	handler    healthcheck.Handler
	gatherer   prometheus.Gatherer
	staleAfter time.Duration
	now        func() time.Time

	lastBeat atomic.Int64
	ready    atomic.Bool
}

// NewMonitor creates a monitor whose liveness fails when no heartbeat was
// recorded for staleAfter. When reg is non-nil the check results are also
// exported as <namespace>_healthcheck_status gauges and /metrics serves reg.
func NewMonitor(reg *prometheus.Registry, namespace string, staleAfter time.Duration) *Monitor {
	m := &Monitor{staleAfter: staleAfter, now: time.Now}
	if reg != nil {
		m.handler = healthcheck.NewMetricsHandler(reg, namespace)
		m.gatherer = reg
	} else {
		m.handler = healthcheck.NewHandler()
	}
	m.handler.AddLivenessCheck("loop-heartbeat", m.checkHeartbeat)
	m.handler.AddReadinessCheck("shared-resources", m.checkReady)
	return m
}

func (m *Monitor) Heartbeat() {
	m.lastBeat.Store(m.now().UnixNano())
}

func (m *Monitor) SetReady(ready bool) {
	m.ready.Store(ready)
}

func (m *Monitor) checkHeartbeat() error {
	last := m.lastBeat.Load()
	if last == 0 || m.staleAfter <= 0 {
		// not started yet
		return nil
	}
	if age := m.now().Sub(time.Unix(0, last)); age > m.staleAfter {
		return fmt.Errorf("%w: last beat %s ago", ErrStalled, age.Round(time.Millisecond))
	}
	return nil
}

func (m *Monitor) checkReady() error {
	if !m.ready.Load() {
		return ErrNotReady
	}
	return nil
}

// Handler serves /live, /ready and, with a registry, /metrics.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/live", m.handler.LiveEndpoint)
	mux.HandleFunc("/ready", m.handler.ReadyEndpoint)
	if m.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Serve listens on addr until ctx is done.
func (m *Monitor) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("health listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health serve %s: %w", addr, err)
	}
	return nil
}
