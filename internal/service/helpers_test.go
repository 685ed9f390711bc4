package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kirychukyurii/dr-orchestrator/internal/cache"
	"github.com/kirychukyurii/dr-orchestrator/internal/config"
	"github.com/kirychukyurii/dr-orchestrator/internal/healthcheck"
	"github.com/kirychukyurii/dr-orchestrator/internal/model"
	"github.com/kirychukyurii/dr-orchestrator/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProbe reports health per datacenter id, healthy unless told otherwise
type fakeProbe struct {
	mu        sync.Mutex
	unhealthy map[string]bool
	errs      map[string]error
	calls     map[string]int
	gates     map[string]chan struct{}
	arrived   chan string
}

func newFakeProbe() *fakeProbe {
	return &fakeProbe{
		unhealthy: make(map[string]bool),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
		gates:     make(map[string]chan struct{}),
		arrived:   make(chan string, 64),
	}
}

func (p *fakeProbe) Name() string { return "fake" }

func (p *fakeProbe) Check(ctx context.Context, dc *model.Datacenter) (*healthcheck.Result, error) {
	p.mu.Lock()
	gate := p.gates[dc.ID]
	p.mu.Unlock()
	if gate != nil {
		p.arrived <- dc.ID
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[dc.ID]++
	if err := p.errs[dc.ID]; err != nil {
		return nil, err
	}
	if p.unhealthy[dc.ID] {
		return &healthcheck.Result{Healthy: false, Message: "down"}, nil
	}
	return &healthcheck.Result{Healthy: true, Message: "ok"}, nil
}

// hold blocks checks of id until the returned function is called; every blocked
// check is announced on p.arrived
func (p *fakeProbe) hold(id string) (release func()) {
	gate := make(chan struct{})
	p.mu.Lock()
	p.gates[id] = gate
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.gates, id)
			p.mu.Unlock()
			close(gate)
		})
	}
}

func (p *fakeProbe) setHealthy(id string, healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unhealthy[id] = !healthy
}

func (p *fakeProbe) callCount(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

func newTestDatacenterService(probe healthcheck.Probe) DatacenterService {
	return NewDatacenterService(
		repository.NewMemoryStore[model.Datacenter](nil),
		probe,
		cache.New[model.DatacenterHealth]("health", time.Minute),
		10,
		testLogger(),
	)
}

func testDatacenter(id string, lat, lon float64) *model.Datacenter {
	return &model.Datacenter{
		ID:          id,
		Name:        "Datacenter " + id,
		Country:     "BY",
		Region:      "eu-east",
		City:        "Minsk",
		Coordinates: model.Coordinates{Latitude: lat, Longitude: lon},
		Status:      model.DatacenterStatusActive,
		Capacity:    model.Resources{CPU: 1000, Memory: 4096, Storage: 100000, Network: 10000},
	}
}

func mustCreateDatacenters(t *testing.T, svc DatacenterService, dcs ...*model.Datacenter) {
	t.Helper()
	for _, dc := range dcs {
		_, err := svc.CreateDatacenter(context.Background(), dc)
		require.NoError(t, err)
	}
}

// fakeSwitcher records switches and fails while err is set
type fakeSwitcher struct {
	mu       sync.Mutex
	err      error
	switches []model.FailoverSide
}

func (s *fakeSwitcher) Switch(_ context.Context, _ *model.FailoverConfig, to model.FailoverSide, _ model.FailoverTrigger, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.switches = append(s.switches, to)
	return nil
}

func (s *fakeSwitcher) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type failoverFixture struct {
	probe    *fakeProbe
	dcs      DatacenterService
	store    repository.Store[model.FailoverConfig]
	switcher *fakeSwitcher
	failover FailoverService
}

func newFailoverFixture(t *testing.T) *failoverFixture {
	t.Helper()

	probe := newFakeProbe()
	dcs := newTestDatacenterService(probe)
	mustCreateDatacenters(t, dcs,
		testDatacenter("dc-primary", 53.90, 27.56),
		testDatacenter("dc-secondary", 55.76, 37.62),
	)

	sw := &fakeSwitcher{}
	store := repository.NewMemoryStore(func(c model.FailoverConfig) model.FailoverConfig { return c.Clone() })
	failover := NewFailoverService(
		store,
		repository.NewMemoryActiveDatacenterRepository(),
		dcs,
		sw,
		config.FailoverConfig{RetryDelay: time.Millisecond, HistorySize: 100},
		nil,
		testLogger(),
	)

	return &failoverFixture{probe: probe, dcs: dcs, store: store, switcher: sw, failover: failover}
}

func (f *failoverFixture) createPair(t *testing.T, id string, auto bool) *model.FailoverConfig {
	t.Helper()
	cfg, err := f.failover.CreateConfig(context.Background(), &model.FailoverConfig{
		ID:                    id,
		PrimaryDC:             "dc-primary",
		SecondaryDC:           "dc-secondary",
		AutoFailover:          auto,
		FailoverThreshold:     300,
		RecoveryTimeObjective: 60,
		HealthChecks:          model.HealthCheckSettings{Interval: 30, Timeout: 1, Retries: 1},
	})
	require.NoError(t, err)
	return cfg
}

// scriptedExecutor returns the configured error per action description
type scriptedExecutor struct {
	mu       sync.Mutex
	failures map[string]error
	executed []string
}

func (e *scriptedExecutor) Execute(_ context.Context, _ *model.Incident, action *model.IncidentAction) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executed = append(e.executed, action.Description)
	if err := e.failures[action.Description]; err != nil {
		return "", err
	}
	return "done: " + action.Description, nil
}

// expireCooldown moves the last action of a pair out of its cooldown window
func (f *failoverFixture) expireCooldown(t *testing.T, id string) {
	t.Helper()
	cfg, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	past := time.Now().UTC().Add(-cfg.Threshold() - time.Second)
	cfg.LastActionAt = &past
	require.NoError(t, f.store.Put(context.Background(), id, cfg))
}

var errRemediation = errors.New("remediation failed")
