package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirychukyurii/dr-orchestrator/internal/config"
	"github.com/kirychukyurii/dr-orchestrator/internal/model"
	"github.com/kirychukyurii/dr-orchestrator/internal/repository"
)

type staticRates map[model.Resource]float64

func (r staticRates) UnitRate(_ context.Context, res model.Resource) (float64, bool) {
	v, ok := r[res]
	return v, ok
}

func newTestCapacityService(t *testing.T, rates UnitRateSource, cfg config.CapacityConfig) (CapacityService, DatacenterService) {
	t.Helper()

	dcs := newTestDatacenterService(newFakeProbe())
	mustCreateDatacenters(t, dcs, testDatacenter("dc-a", 53.90, 27.56))

	svc := NewCapacityService(
		repository.NewMemoryStore(func(p model.CapacityPlan) model.CapacityPlan { return p.Clone() }),
		dcs,
		rates,
		cfg,
		nil,
		testLogger(),
	)
	return svc, dcs
}

func TestAnalyzeCapacityNeeds_Gaps(t *testing.T) {
	svc, _ := newTestCapacityService(t, nil, config.CapacityConfig{})

	_, err := svc.CreatePlan(context.Background(), &model.CapacityPlan{
		ID:              "plan-1",
		DatacenterID:    "dc-a",
		CurrentCapacity: model.Resources{CPU: 1000, Memory: 4096, Storage: 100000, Network: 10000},
		ProjectedDemand: model.Resources{CPU: 1200, Memory: 4000, Storage: 110001, Network: 10600},
	})
	require.NoError(t, err)

	analysis, err := svc.AnalyzeCapacityNeeds(context.Background(), "dc-a")
	require.NoError(t, err)
	assert.Equal(t, "plan-1", analysis.PlanID)

	for _, r := range model.AllResources {
		want := analysis.ProjectedDemand.Get(r) - analysis.CurrentCapacity.Get(r)
		if want < 0 {
			want = 0
		}
		assert.Equal(t, want, analysis.CapacityGap.Get(r), "gap of %s", r)
	}

	byResource := make(map[model.Resource]model.ScalingRecommendation)
	for _, rec := range analysis.Recommendations {
		byResource[rec.Resource] = rec
	}
	require.Len(t, byResource, 3)
	assert.NotContains(t, byResource, model.ResourceMemory)

	// a gap of exactly 200 is not above the critical limit
	assert.Equal(t, model.SeverityHigh, byResource[model.ResourceCPU].Priority)
	assert.Equal(t, model.ScaleUp, byResource[model.ResourceCPU].Type)
	assert.Equal(t, 200*50.0, byResource[model.ResourceCPU].EstimatedCost)

	assert.Equal(t, model.SeverityCritical, byResource[model.ResourceStorage].Priority)
	assert.Equal(t, model.ScaleOut, byResource[model.ResourceStorage].Type)
	assert.Equal(t, model.SeverityHigh, byResource[model.ResourceNetwork].Priority)

	var total float64
	for _, rec := range analysis.Recommendations {
		total += rec.EstimatedCost
	}
	assert.InDelta(t, total, analysis.TotalEstimatedCost, 1e-9)
}

func TestAnalyzeCapacityNeeds_PriorityBoundaries(t *testing.T) {
	tests := []struct {
		gap  float64
		want model.Severity
	}{
		{gap: 1, want: model.SeverityMedium},
		{gap: 100, want: model.SeverityMedium},
		{gap: 101, want: model.SeverityHigh},
		{gap: 200, want: model.SeverityHigh},
		{gap: 201, want: model.SeverityCritical},
	}

	for _, tt := range tests {
		svc, _ := newTestCapacityService(t, nil, config.CapacityConfig{})
		_, err := svc.CreatePlan(context.Background(), &model.CapacityPlan{
			DatacenterID:    "dc-a",
			CurrentCapacity: model.Resources{CPU: 1000},
			ProjectedDemand: model.Resources{CPU: 1000 + tt.gap},
		})
		require.NoError(t, err)

		analysis, err := svc.AnalyzeCapacityNeeds(context.Background(), "dc-a")
		require.NoError(t, err)
		require.Len(t, analysis.Recommendations, 1)
		assert.Equal(t, tt.want, analysis.Recommendations[0].Priority, "gap %v", tt.gap)
	}
}

func TestAnalyzeCapacityNeeds_RegistryCapacityAndRates(t *testing.T) {
	svc, _ := newTestCapacityService(t, staticRates{model.ResourceCPU: 7}, config.CapacityConfig{
		UnitRates: map[string]float64{"memory": 2},
	})

	_, err := svc.CreatePlan(context.Background(), &model.CapacityPlan{
		DatacenterID:    "dc-a",
		ProjectedDemand: model.Resources{CPU: 1010, Memory: 4106},
	})
	require.NoError(t, err)

	analysis, err := svc.AnalyzeCapacityNeeds(context.Background(), "dc-a")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, analysis.CurrentCapacity.CPU)
	require.Len(t, analysis.Recommendations, 2)
	assert.Equal(t, 70.0, analysis.Recommendations[0].EstimatedCost)
	assert.Equal(t, 20.0, analysis.Recommendations[1].EstimatedCost)

	_, err = svc.AnalyzeCapacityNeeds(context.Background(), "dc-missing")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestAnalyzeCapacityNeeds_UsesLatestPlan(t *testing.T) {
	svc, _ := newTestCapacityService(t, nil, config.CapacityConfig{})

	_, err := svc.CreatePlan(context.Background(), &model.CapacityPlan{
		ID:              "plan-old",
		DatacenterID:    "dc-a",
		CurrentCapacity: model.Resources{CPU: 10},
		ProjectedDemand: model.Resources{CPU: 20},
	})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = svc.CreatePlan(context.Background(), &model.CapacityPlan{
		ID:              "plan-new",
		DatacenterID:    "dc-a",
		CurrentCapacity: model.Resources{CPU: 10},
		ProjectedDemand: model.Resources{CPU: 10},
	})
	require.NoError(t, err)

	analysis, err := svc.AnalyzeCapacityNeeds(context.Background(), "dc-a")
	require.NoError(t, err)
	assert.Equal(t, "plan-new", analysis.PlanID)
	assert.Empty(t, analysis.Recommendations)
}

func TestPerformStressTest(t *testing.T) {
	svc, _ := newTestCapacityService(t, nil, config.CapacityConfig{StressJitter: 0})

	res, err := svc.PerformStressTest(context.Background(), "dc-a", model.StressScenario{
		Name: "black friday",
		Load: model.Resources{CPU: 92, Memory: 80, Storage: 91, Network: 96},
	})
	require.NoError(t, err)

	bottlenecks := make(map[model.Resource]model.ResourceStressResult)
	for _, r := range res.Results {
		if r.Bottleneck {
			bottlenecks[r.Resource] = r
		}
	}
	assert.Len(t, bottlenecks, 3)
	assert.NotContains(t, bottlenecks, model.ResourceMemory)
	assert.Len(t, res.Bottlenecks, 3)

	priorities := make(map[model.Resource]model.Severity)
	for _, rec := range res.Recommendations {
		priorities[rec.Resource] = rec.Priority
	}
	assert.Equal(t, model.SeverityHigh, priorities[model.ResourceCPU])
	assert.Equal(t, model.SeverityHigh, priorities[model.ResourceStorage])
	assert.Equal(t, model.SeverityCritical, priorities[model.ResourceNetwork])
	assert.False(t, res.Success)

	res, err = svc.PerformStressTest(context.Background(), "dc-a", model.StressScenario{
		Load: model.Resources{CPU: 85, Memory: 50, Storage: 50, Network: 50},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, model.SeverityMedium, res.Recommendations[0].Priority)
	assert.InDelta(t, 50.0, res.Recommendations[0].Amount, 1e-9)
}

func TestPerformStressTest_JitterBounds(t *testing.T) {
	svc, _ := newTestCapacityService(t, nil, config.CapacityConfig{StressJitter: 0.2})

	for i := 0; i < 50; i++ {
		res, err := svc.PerformStressTest(context.Background(), "dc-a", model.StressScenario{
			Load: model.Resources{CPU: 50, Memory: 90, Storage: 10, Network: 0},
		})
		require.NoError(t, err)
		for _, r := range res.Results {
			switch r.Resource {
			case model.ResourceCPU:
				assert.GreaterOrEqual(t, r.MaxUsage, 50.0)
				assert.LessOrEqual(t, r.MaxUsage, 60.0)
			case model.ResourceMemory:
				assert.LessOrEqual(t, r.MaxUsage, 100.0)
			case model.ResourceNetwork:
				assert.Equal(t, 0.0, r.MaxUsage)
			}
		}
	}

	_, err := svc.PerformStressTest(context.Background(), "dc-a", model.StressScenario{Load: model.Resources{CPU: 120}})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestScalingActions(t *testing.T) {
	svc, dcs := newTestCapacityService(t, nil, config.CapacityConfig{})
	plan, err := svc.CreatePlan(context.Background(), &model.CapacityPlan{
		ID:              "plan-1",
		DatacenterID:    "dc-a",
		ProjectedDemand: model.Resources{CPU: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, model.PlanDraft, plan.Status)

	plan, err = svc.AddScalingAction(context.Background(), "plan-1", &model.ScalingAction{
		Resource: model.ResourceCPU,
		Amount:   4,
	})
	require.NoError(t, err)
	require.Len(t, plan.ScalingActions, 1)
	action := plan.ScalingActions[0]
	assert.Equal(t, model.ScalingPlanned, action.Status)
	assert.Equal(t, model.ScaleUp, action.Type)
	assert.Equal(t, 200.0, action.EstimatedCost)

	_, err = svc.UpdateScalingActionStatus(context.Background(), "plan-1", action.ID, model.ScalingCompleted)
	assert.True(t, errors.Is(err, ErrConflict))

	_, err = svc.UpdateScalingActionStatus(context.Background(), "plan-1", action.ID, model.ScalingInProgress)
	require.NoError(t, err)
	plan, err = svc.UpdateScalingActionStatus(context.Background(), "plan-1", action.ID, model.ScalingCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.ScalingCompleted, plan.ScalingActions[0].Status)

	_, err = svc.UpdateScalingActionStatus(context.Background(), "plan-1", action.ID, model.ScalingCancelled)
	assert.True(t, errors.Is(err, ErrConflict))

	_, err = svc.AddScalingAction(context.Background(), "plan-1", &model.ScalingAction{Resource: "gpu", Amount: 1})
	assert.True(t, errors.Is(err, ErrValidation))

	stats, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalPlans)
	assert.Equal(t, 1, stats.ByStatus[string(model.PlanDraft)])
	assert.Equal(t, 1, stats.ScalingByStatus[string(model.ScalingCompleted)])
	assert.Equal(t, 200.0, stats.AverageEstimatedCost)

	dcs.AddReferrer(svc)
	err = dcs.DeleteDatacenter(context.Background(), "dc-a", false)
	assert.True(t, errors.Is(err, ErrConflict))
}
