package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirychukyurii/dr-orchestrator/internal/cache"
	"github.com/kirychukyurii/dr-orchestrator/internal/config"
	"github.com/kirychukyurii/dr-orchestrator/internal/healthcheck"
	"github.com/kirychukyurii/dr-orchestrator/internal/metrics"
	"github.com/kirychukyurii/dr-orchestrator/internal/model"
	"github.com/kirychukyurii/dr-orchestrator/internal/repository"
	"github.com/kirychukyurii/dr-orchestrator/internal/service"
)

func newTestServer(t *testing.T, basePath string) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.Capacity.StressJitter = 0
	m := metrics.New()

	dcs := service.NewDatacenterService(
		repository.NewMemoryStore[model.Datacenter](nil),
		healthcheck.NewStatusProbe(),
		cache.New[model.DatacenterHealth]("health", time.Minute),
		10,
		logger,
	)
	active := repository.NewMemoryActiveDatacenterRepository()
	failover := service.NewFailoverService(
		repository.NewMemoryStore(func(c model.FailoverConfig) model.FailoverConfig { return c.Clone() }),
		active,
		dcs,
		service.NewSwitcher(active, logger),
		cfg.Failover,
		m,
		logger,
	)
	simulated := healthcheck.NewSimulatedWithSeed(7)
	links := service.NewLinkService(repository.NewMemoryStore[model.NetworkLink](nil), dcs, simulated, simulated, cfg.Network, m, logger)
	router := service.NewRouterService(repository.NewMemoryStore[model.GeographicRoute](nil), dcs, cfg.Routing, m, logger)
	catalog := service.NewCatalogService(repository.NewMemoryStore[model.ServiceOffering](nil), "standard", logger)
	capacity := service.NewCapacityService(
		repository.NewMemoryStore(func(p model.CapacityPlan) model.CapacityPlan { return p.Clone() }),
		dcs,
		catalog,
		cfg.Capacity,
		m,
		logger,
	)
	incidents := service.NewIncidentService(
		repository.NewMemoryStore(func(i model.Incident) model.Incident { return i.Clone() }),
		dcs,
		service.NewActionExecutor(dcs, failover, logger),
		cfg.Incident,
		m,
		logger,
	)
	dcs.AddReferrer(failover)
	dcs.AddReferrer(links)

	handler := NewHandler(
		Services{
			Datacenters: dcs,
			Router:      router,
			Failover:    failover,
			Links:       links,
			Incidents:   incidents,
			Capacity:    capacity,
			Catalog:     catalog,
		},
		StatusInfo{
			StorageBackend: config.StorageMemory,
			StartedAt:      time.Now(),
			Jobs:           func() []string { return []string{"failover-evaluation"} },
		},
		m,
		basePath,
		logger,
	)

	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)
	return srv
}

// do sends a JSON request and decodes a JSON response into out when it is not nil
func do(t *testing.T, srv *httptest.Server, method, path string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func seedDatacenters(t *testing.T, srv *httptest.Server, prefix string) {
	t.Helper()

	for _, dc := range []model.Datacenter{
		{ID: "dc-minsk", Name: "Minsk", Country: "BY", Region: "eu-east", Coordinates: model.Coordinates{Latitude: 53.9045, Longitude: 27.5615}},
		{ID: "dc-moscow", Name: "Moscow", Country: "RU", Region: "eu-east", Coordinates: model.Coordinates{Latitude: 55.7558, Longitude: 37.6173}},
	} {
		code := do(t, srv, http.MethodPost, prefix+"/api/datacenters", dc, nil)
		require.Equal(t, http.StatusCreated, code)
	}
}

func TestDatacenterEndpoints(t *testing.T) {
	srv := newTestServer(t, "")
	seedDatacenters(t, srv, "")

	var errResp errorResponse
	code := do(t, srv, http.MethodPost, "/api/datacenters", model.Datacenter{ID: "dc-minsk", Name: "Minsk"}, &errResp)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, errResp.Error, "already exists")

	code = do(t, srv, http.MethodPost, "/api/datacenters", model.Datacenter{Name: "Nowhere", Coordinates: model.Coordinates{Latitude: 120}}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	var nearest nearestResponse
	code = do(t, srv, http.MethodGet, "/api/datacenters/nearest?lat=53.9&lon=27.56", nil, &nearest)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "dc-minsk", nearest.Datacenter.ID)
	assert.Less(t, nearest.Distance, 1.0)

	code = do(t, srv, http.MethodGet, "/api/datacenters/nearest?lat=north", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	var byCountry []model.Datacenter
	code = do(t, srv, http.MethodGet, "/api/datacenters?country=RU", nil, &byCountry)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, byCountry, 1)
	assert.Equal(t, "dc-moscow", byCountry[0].ID)

	var dc model.Datacenter
	code = do(t, srv, http.MethodPut, "/api/datacenters/dc-moscow/status", statusRequest{Status: model.DatacenterStatusMaintenance}, &dc)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.DatacenterStatusMaintenance, dc.Status)

	var health model.DatacenterHealth
	code = do(t, srv, http.MethodGet, "/api/datacenters/dc-moscow/health", nil, &health)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, health.Healthy)

	var overview model.DatacenterStatusOverview
	code = do(t, srv, http.MethodGet, "/api/datacenters/status", nil, &overview)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, overview.Total)
	assert.Equal(t, 1, overview.Maintenance)

	code = do(t, srv, http.MethodGet, "/api/datacenters/dc-unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDeleteDatacenter_SafeAndForce(t *testing.T) {
	srv := newTestServer(t, "")
	seedDatacenters(t, srv, "")

	code := do(t, srv, http.MethodPost, "/api/links", model.NetworkLink{
		ID:        "link-1",
		SourceDC:  "dc-minsk",
		TargetDC:  "dc-moscow",
		Bandwidth: 1000,
		Latency:   12,
	}, nil)
	require.Equal(t, http.StatusCreated, code)

	code = do(t, srv, http.MethodDelete, "/api/datacenters/dc-moscow", nil, nil)
	assert.Equal(t, http.StatusConflict, code)

	code = do(t, srv, http.MethodDelete, "/api/datacenters/dc-moscow?force=maybe", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code = do(t, srv, http.MethodDelete, "/api/datacenters/dc-moscow?force=true", nil, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code = do(t, srv, http.MethodGet, "/api/datacenters/dc-moscow", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestOptimalRoute(t *testing.T) {
	srv := newTestServer(t, "")

	req := model.RoutingRequest{
		UserLocation: model.UserLocation{Country: "BY", Coordinates: model.Coordinates{Latitude: 53.9, Longitude: 27.56}},
		Strategy:     model.StrategyNearest,
	}

	code := do(t, srv, http.MethodPost, "/api/routes/optimal", req, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	seedDatacenters(t, srv, "")

	var result model.RoutingResult
	code = do(t, srv, http.MethodPost, "/api/routes/optimal", req, &result)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "dc-minsk", result.TargetDC)
	assert.Equal(t, "dc-minsk", result.Route.TargetDC)

	var history []model.RoutingDecision
	code = do(t, srv, http.MethodGet, "/api/routes/history?limit=5", nil, &history)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, history, 1)

	code = do(t, srv, http.MethodGet, "/api/routes/history?limit=-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code = do(t, srv, http.MethodGet, "/api/routes/"+result.Route.ID, nil, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestFailoverEndpoints(t *testing.T) {
	srv := newTestServer(t, "")
	seedDatacenters(t, srv, "")

	code := do(t, srv, http.MethodPost, "/api/failover", model.FailoverConfig{
		ID:                    "pair-1",
		PrimaryDC:             "dc-minsk",
		SecondaryDC:           "dc-moscow",
		AutoFailover:          true,
		FailoverThreshold:     300,
		RecoveryTimeObjective: 60,
	}, nil)
	require.Equal(t, http.StatusCreated, code)

	var result model.FailoverResult
	code = do(t, srv, http.MethodPost, "/api/failover/pair-1/auto", nil, &result)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.FailoverActionNone, result.Action)

	code = do(t, srv, http.MethodPost, "/api/failover/pair-1/failover", reasonRequest{Reason: "drill"}, &result)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, result.Success)
	assert.Equal(t, model.FailoverActionFailover, result.Action)

	var active model.ActiveDatacenter
	code = do(t, srv, http.MethodGet, "/api/failover/pair-1/active", nil, &active)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "dc-moscow", active.Datacenter)

	// an empty body is a failback without a reason
	code = do(t, srv, http.MethodPost, "/api/failover/pair-1/failback", nil, &result)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.FailoverActionFailback, result.Action)

	var events []model.FailoverEvent
	code = do(t, srv, http.MethodGet, "/api/failover/history", nil, &events)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, events, 2)

	code = do(t, srv, http.MethodPost, "/api/failover", model.FailoverConfig{
		PrimaryDC:             "dc-minsk",
		SecondaryDC:           "dc-minsk",
		FailoverThreshold:     1,
		RecoveryTimeObjective: 1,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestIncidentEndpoints(t *testing.T) {
	srv := newTestServer(t, "")
	seedDatacenters(t, srv, "")

	var inc model.Incident
	code := do(t, srv, http.MethodPost, "/api/incidents", model.Incident{
		Type:        model.IncidentPowerOutage,
		Severity:    model.SeverityHigh,
		AffectedDCs: []string{"dc-minsk"},
		Description: "grid failure",
	}, &inc)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, model.IncidentStatusDetected, inc.Status)

	code = do(t, srv, http.MethodPost, fmt.Sprintf("/api/incidents/%s/actions", inc.ID), model.IncidentAction{
		Description: "page the on-call engineer",
		Type:        model.ActionAutomatic,
		Remediation: &model.Remediation{Kind: model.RemediationNotify},
	}, &inc)
	require.Equal(t, http.StatusCreated, code)
	require.Len(t, inc.Actions, 1)

	var recovery model.RecoveryResult
	code = do(t, srv, http.MethodPost, fmt.Sprintf("/api/incidents/%s/recover", inc.ID), nil, &recovery)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, recovery.Success)
	assert.Equal(t, 1, recovery.ActionsExecuted)
	assert.Equal(t, model.IncidentStatusResolved, recovery.Status)

	var errResp errorResponse
	code = do(t, srv, http.MethodPut, fmt.Sprintf("/api/incidents/%s/status", inc.ID), incidentStatusRequest{Status: model.IncidentStatusDetected}, &errResp)
	assert.Equal(t, http.StatusConflict, code)

	var resolved []model.Incident
	code = do(t, srv, http.MethodGet, "/api/incidents?status=resolved&type=power-outage", nil, &resolved)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resolved, 1)

	var active []model.Incident
	code = do(t, srv, http.MethodGet, "/api/incidents/active", nil, &active)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, active)
}

func TestCapacityAndCatalogEndpoints(t *testing.T) {
	srv := newTestServer(t, "")
	seedDatacenters(t, srv, "")

	code := do(t, srv, http.MethodGet, "/api/capacity/dc-minsk/analysis", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code = do(t, srv, http.MethodPost, "/api/catalog/offerings", model.ServiceOffering{
		ID:         "standard",
		Name:       "Standard DR",
		UnitPrices: model.Resources{CPU: 30, Memory: 4},
	}, nil)
	require.Equal(t, http.StatusCreated, code)

	code = do(t, srv, http.MethodPost, "/api/capacity/plans", model.CapacityPlan{
		DatacenterID:    "dc-minsk",
		CurrentCapacity: model.Resources{CPU: 100, Memory: 1024},
		ProjectedDemand: model.Resources{CPU: 300, Memory: 1024},
	}, nil)
	require.Equal(t, http.StatusCreated, code)

	var analysis model.CapacityAnalysis
	code = do(t, srv, http.MethodGet, "/api/capacity/dc-minsk/analysis", nil, &analysis)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, analysis.Recommendations, 1)
	assert.Equal(t, model.SeverityHigh, analysis.Recommendations[0].Priority)
	assert.Equal(t, 200*30.0, analysis.Recommendations[0].EstimatedCost)

	var stress model.StressTestResult
	code = do(t, srv, http.MethodPost, "/api/capacity/dc-minsk/stress-test", model.StressScenario{
		Name: "peak",
		Load: model.Resources{CPU: 97, Memory: 40, Storage: 40, Network: 40},
	}, &stress)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, stress.Success)

	var estimate model.CostEstimate
	code = do(t, srv, http.MethodPost, "/api/catalog/offerings/standard/cost", costRequest{
		Usage: model.Resources{CPU: 2, Memory: 8},
		Hours: 10,
	}, &estimate)
	require.Equal(t, http.StatusOK, code)
	assert.InDelta(t, 920.0, estimate.Total, 1e-9)

	code = do(t, srv, http.MethodPost, "/api/catalog/offerings/standard/cost", costRequest{Hours: 0}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStatusMetricsAndBasePath(t *testing.T) {
	srv := newTestServer(t, "/dr")
	seedDatacenters(t, srv, "/dr")

	var status model.ServiceStatus
	code := do(t, srv, http.MethodGet, "/dr/api/status", nil, &status)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, config.StorageMemory, status.StorageBackend)
	assert.Equal(t, "status", status.HealthProbe)
	assert.Equal(t, 2, status.Datacenters)
	assert.Equal(t, 2, status.ActiveDatacenters)
	assert.Equal(t, []string{"failover-evaluation"}, status.SchedulerJobs)

	code = do(t, srv, http.MethodGet, "/api/status", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)

	resp, err := srv.Client().Get(srv.URL + "/dr/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "dr_orchestrator_http_requests_total"))
}

func TestMalformedBody(t *testing.T) {
	srv := newTestServer(t, "")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/incidents", strings.NewReader("{not json"))
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
