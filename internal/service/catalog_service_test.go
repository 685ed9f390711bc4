package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirychukyurii/dr-orchestrator/internal/config"
	"github.com/kirychukyurii/dr-orchestrator/internal/model"
	"github.com/kirychukyurii/dr-orchestrator/internal/repository"
)

func newTestCatalog(defaultOffering string) CatalogService {
	return NewCatalogService(repository.NewMemoryStore[model.ServiceOffering](nil), defaultOffering, testLogger())
}

func TestCatalog_CalculateCost(t *testing.T) {
	svc := newTestCatalog("standard")

	_, err := svc.CreateOffering(context.Background(), &model.ServiceOffering{
		ID:         "standard",
		Name:       "Standard DR",
		Tier:       "standard",
		UnitPrices: model.Resources{CPU: 0.05, Memory: 0.01, Storage: 0.001, Network: 0.02},
		SLA:        99.9,
		RTO:        300,
		RPO:        60,
	})
	require.NoError(t, err)

	est, err := svc.CalculateCost(context.Background(), "standard", model.Resources{CPU: 10, Memory: 100, Storage: 1000, Network: 50}, 24)
	require.NoError(t, err)
	assert.InDelta(t, 12.0, est.Breakdown.CPU, 1e-9)
	assert.InDelta(t, 24.0, est.Breakdown.Memory, 1e-9)
	assert.InDelta(t, 24.0, est.Breakdown.Storage, 1e-9)
	assert.InDelta(t, 24.0, est.Breakdown.Network, 1e-9)
	assert.InDelta(t, 84.0, est.Total, 1e-9)

	_, err = svc.CalculateCost(context.Background(), "standard", model.Resources{CPU: 1}, 0)
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = svc.CalculateCost(context.Background(), "premium", model.Resources{CPU: 1}, 1)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestCatalog_UnitRate(t *testing.T) {
	svc := newTestCatalog("standard")

	_, ok := svc.UnitRate(context.Background(), model.ResourceCPU)
	assert.False(t, ok)

	_, err := svc.CreateOffering(context.Background(), &model.ServiceOffering{
		ID:         "standard",
		Name:       "Standard DR",
		UnitPrices: model.Resources{CPU: 40},
	})
	require.NoError(t, err)

	rate, ok := svc.UnitRate(context.Background(), model.ResourceCPU)
	assert.True(t, ok)
	assert.Equal(t, 40.0, rate)

	// unpriced resources fall through to the planner defaults
	_, ok = svc.UnitRate(context.Background(), model.ResourceMemory)
	assert.False(t, ok)
}

func TestCatalog_Validation(t *testing.T) {
	svc := newTestCatalog("")

	_, err := svc.CreateOffering(context.Background(), &model.ServiceOffering{Name: ""})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = svc.CreateOffering(context.Background(), &model.ServiceOffering{Name: "x", SLA: 101})
	assert.True(t, errors.Is(err, ErrValidation))

	o, err := svc.CreateOffering(context.Background(), &model.ServiceOffering{Name: "basic"})
	require.NoError(t, err)
	assert.True(t, o.Active)

	updated, err := svc.UpdateOffering(context.Background(), o.ID, &model.ServiceOffering{Name: "basic", Tier: "bronze"})
	require.NoError(t, err)
	assert.Equal(t, o.CreatedAt, updated.CreatedAt)

	require.NoError(t, svc.DeleteOffering(context.Background(), o.ID))
	err = svc.DeleteOffering(context.Background(), o.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestSeeder_SeedsOnceAndSkipsExisting(t *testing.T) {
	dcs := newTestDatacenterService(newFakeProbe())
	links, _ := newTestLinkService(t)
	failover := NewFailoverService(
		repository.NewMemoryStore[model.FailoverConfig](nil),
		repository.NewMemoryActiveDatacenterRepository(),
		dcs,
		&fakeSwitcher{},
		config.FailoverConfig{HistorySize: 10},
		nil,
		testLogger(),
	)
	catalog := newTestCatalog("standard")

	cfg := &config.Config{
		Datacenters: []config.DatacenterConfig{
			{ID: "dc-minsk", Name: "Minsk", Country: "BY", Latitude: 53.90, Longitude: 27.56},
			{ID: "dc-moscow", Name: "Moscow", Country: "RU", Latitude: 55.76, Longitude: 37.62, Status: "maintenance"},
		},
		FailoverConfigs: []config.FailoverPairConfig{
			{ID: "pair-1", PrimaryDC: "dc-minsk", SecondaryDC: "dc-moscow", FailoverThreshold: 300, RecoveryTimeObjective: 60},
		},
		Offerings: []config.OfferingConfig{
			{ID: "standard", Name: "Standard", UnitPrices: config.ResourcesConfig{CPU: 45}},
		},
	}

	seeder := &Seeder{Datacenters: dcs, Links: links, Failover: failover, Catalog: catalog, Logger: testLogger()}
	require.NoError(t, seeder.Seed(context.Background(), cfg))
	require.NoError(t, seeder.Seed(context.Background(), cfg))

	all, err := dcs.ListDatacenters(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, model.DatacenterStatusActive, all[0].Status)
	assert.Equal(t, model.DatacenterStatusMaintenance, all[1].Status)

	pair, err := failover.GetConfig(context.Background(), "pair-1")
	require.NoError(t, err)
	assert.Equal(t, model.SidePrimary, pair.ActiveSide)

	rate, ok := catalog.UnitRate(context.Background(), model.ResourceCPU)
	assert.True(t, ok)
	assert.Equal(t, 45.0, rate)

	cfg.FailoverConfigs[0].SecondaryDC = "dc-minsk"
	cfg.FailoverConfigs[0].ID = "pair-2"
	err = seeder.Seed(context.Background(), cfg)
	assert.True(t, errors.Is(err, ErrValidation))
}
