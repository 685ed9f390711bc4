package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.ObserveRouting("nearest", "dc-1", time.Millisecond)
	m.ObserveRouting("nearest", "dc-1", time.Millisecond)
	m.ObserveFailover("failover", "manual", true)
	m.ObserveLinkProbe("link-1", "degraded")
	m.SetActiveIncidents(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RoutingDecisions.WithLabelValues("nearest", "dc-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FailoverActions.WithLabelValues("failover", "manual", "true")))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.LinkStatus.WithLabelValues("link-1")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveIncidents))

	m.ForgetLink("link-1")
	assert.Equal(t, 0, testutil.CollectAndCount(m.LinkStatus))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRouting("nearest", "dc-1", time.Millisecond)
		m.ObserveHTTP("GET", "/api/status", 200, time.Millisecond)
		m.ObserveSchedulerRun("link-sweep", true)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveStressTest("dc-1", false)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `dr_orchestrator_stress_tests_total{datacenter="dc-1",success="false"} 1`)
}
