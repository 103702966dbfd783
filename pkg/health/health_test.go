package health

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
)

type HealthTestSuite struct {
	suite.Suite
	clock time.Time
	mon   *Monitor
	reg   *prometheus.Registry
}

func (s *HealthTestSuite) SetupTest() {
	s.clock = time.Unix(1700000000, 0)
	s.reg = prometheus.NewRegistry()
	s.mon = NewMonitor(s.reg, "shmtable", time.Second)
	s.mon.now = func() time.Time { return s.clock }
}

func (s *HealthTestSuite) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.mon.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (s *HealthTestSuite) TestReadiness() {
	s.Equal(http.StatusServiceUnavailable, s.get("/ready").Code)
	s.mon.SetReady(true)
	s.Equal(http.StatusOK, s.get("/ready").Code)
	s.mon.SetReady(false)
	s.Equal(http.StatusServiceUnavailable, s.get("/ready").Code)
}

func (s *HealthTestSuite) TestLiveness() {
	s.Equal(http.StatusOK, s.get("/live").Code)

	s.mon.Heartbeat()
	s.clock = s.clock.Add(500 * time.Millisecond)
	s.Equal(http.StatusOK, s.get("/live").Code)

	s.clock = s.clock.Add(2 * time.Second)
	s.Equal(http.StatusServiceUnavailable, s.get("/live").Code)
	s.ErrorIs(s.mon.checkHeartbeat(), ErrStalled)

	s.mon.Heartbeat()
	s.Equal(http.StatusOK, s.get("/live").Code)
}

func (s *HealthTestSuite) TestMetricsEndpoint() {
	s.mon.SetReady(true)
	s.get("/ready")
	body := s.get("/metrics").Body.String()
	s.True(strings.Contains(body, "shmtable_healthcheck_status"), body)
}

func (s *HealthTestSuite) TestWithoutRegistry() {
	mon := NewMonitor(nil, "", 0)
	rec := httptest.NewRecorder()
	mon.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusNotFound, rec.Code)
	mon.Heartbeat()
	s.NoError(mon.checkHeartbeat())
}

func TestHealthTestSuite(t *testing.T) {
	suite.Run(t, new(HealthTestSuite))
}
