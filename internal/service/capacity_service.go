package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/kirychukyurii/dr-orchestrator/internal/config"
	"github.com/kirychukyurii/dr-orchestrator/internal/metrics"
	"github.com/kirychukyurii/dr-orchestrator/internal/model"
	"github.com/kirychukyurii/dr-orchestrator/internal/repository"
)

type gapThreshold struct {
	high     float64
	critical float64
}

var (
	defaultGapThresholds = map[model.Resource]gapThreshold{
		model.ResourceCPU:     {high: 100, critical: 200},
		model.ResourceMemory:  {high: 256, critical: 512},
		model.ResourceStorage: {high: 5000, critical: 10000},
		model.ResourceNetwork: {high: 500, critical: 1000},
	}

	defaultStressThresholds = map[model.Resource]float64{
		model.ResourceCPU:     80,
		model.ResourceMemory:  85,
		model.ResourceStorage: 90,
		model.ResourceNetwork: 75,
	}

	defaultUnitRates = map[model.Resource]float64{
		model.ResourceCPU:     50,
		model.ResourceMemory:  10,
		model.ResourceStorage: 0.1,
		model.ResourceNetwork: 5,
	}
)

// scalingTransitions lists the allowed scaling action status changes
var scalingTransitions = map[model.ScalingStatus][]model.ScalingStatus{
	model.ScalingPlanned:    {model.ScalingInProgress, model.ScalingCancelled},
	model.ScalingInProgress: {model.ScalingCompleted, model.ScalingCancelled},
}

// CapacityService defines the interface for capacity planning
type CapacityService interface {
	CreatePlan(ctx context.Context, plan *model.CapacityPlan) (*model.CapacityPlan, error)
	GetPlan(ctx context.Context, id string) (*model.CapacityPlan, error)
	UpdatePlan(ctx context.Context, id string, plan *model.CapacityPlan) (*model.CapacityPlan, error)
	DeletePlan(ctx context.Context, id string) error
	ListPlans(ctx context.Context, datacenterID string) ([]model.CapacityPlan, error)
	AddScalingAction(ctx context.Context, planID string, action *model.ScalingAction) (*model.CapacityPlan, error)
	UpdateScalingActionStatus(ctx context.Context, planID, actionID string, status model.ScalingStatus) (*model.CapacityPlan, error)
	AnalyzeCapacityNeeds(ctx context.Context, datacenterID string) (*model.CapacityAnalysis, error)
	PerformStressTest(ctx context.Context, datacenterID string, scenario model.StressScenario) (*model.StressTestResult, error)
	Statistics(ctx context.Context) (*model.CapacityStatistics, error)
	DatacenterReferences(ctx context.Context, datacenterID string) ([]string, error)
}

// capacityService implements CapacityService interface
type capacityService struct {
	store            repository.Store[model.CapacityPlan]
	dcService        DatacenterService
	rates            UnitRateSource
	jitter           float64
	unitRates        map[model.Resource]float64
	gapThresholds    map[model.Resource]gapThreshold
	stressThresholds map[model.Resource]float64
	metrics          *metrics.Metrics
	logger           *slog.Logger
	mu               sync.Mutex
	rndMu            sync.Mutex
	rnd              *rand.Rand
}

// NewCapacityService creates a new capacity planner. rates may be nil, in which
// case only the configured unit rates apply.
func NewCapacityService(
	store repository.Store[model.CapacityPlan],
	dcService DatacenterService,
	rates UnitRateSource,
	cfg config.CapacityConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) CapacityService {
	s := &capacityService{
		store:            store,
		dcService:        dcService,
		rates:            rates,
		jitter:           cfg.StressJitter,
		unitRates:        make(map[model.Resource]float64, len(defaultUnitRates)),
		gapThresholds:    make(map[model.Resource]gapThreshold, len(defaultGapThresholds)),
		stressThresholds: make(map[model.Resource]float64, len(defaultStressThresholds)),
		metrics:          m,
		logger:           logger,
		rnd:              rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}

	for _, r := range model.AllResources {
		s.unitRates[r] = defaultUnitRates[r]
		if v, ok := cfg.UnitRates[string(r)]; ok {
			s.unitRates[r] = v
		}

		s.gapThresholds[r] = defaultGapThresholds[r]
		if v, ok := cfg.GapThresholds[string(r)]; ok {
			s.gapThresholds[r] = gapThreshold{high: v.High, critical: v.Critical}
		}

		s.stressThresholds[r] = defaultStressThresholds[r]
		if v, ok := cfg.StressThresholds[string(r)]; ok {
			s.stressThresholds[r] = v
		}
	}

	return s
}

// CreatePlan stores a draft plan. An empty current capacity is taken from the registry.
func (s *capacityService) CreatePlan(ctx context.Context, plan *model.CapacityPlan) (*model.CapacityPlan, error) {
	if plan.Status == "" {
		plan.Status = model.PlanDraft
	}
	if err := s.validatePlan(ctx, plan); err != nil {
		return nil, err
	}
	if plan.ID == "" {
		plan.ID = newID("plan")
	}

	actions := make([]model.ScalingAction, 0, len(plan.ScalingActions))
	for i := range plan.ScalingActions {
		a, err := s.newScalingAction(ctx, &plan.ScalingActions[i])
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	plan.ScalingActions = actions

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Get(ctx, plan.ID); err == nil {
		return nil, conflictError("capacity plan %s already exists", plan.ID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check capacity plan %s: %w", plan.ID, err)
	}

	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	if err := s.store.Put(ctx, plan.ID, *plan); err != nil {
		return nil, fmt.Errorf("failed to store capacity plan %s: %w", plan.ID, err)
	}

	s.logger.Info("capacity plan created",
		slog.String("plan_id", plan.ID),
		slog.String("datacenter_id", plan.DatacenterID),
	)

	return plan, nil
}

// GetPlan returns a plan by id
func (s *capacityService) GetPlan(ctx context.Context, id string) (*model.CapacityPlan, error) {
	plan, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get capacity plan %s: %w", id, err)
	}
	return &plan, nil
}

// UpdatePlan replaces the period, capacities and status of a plan. Scaling actions are
// managed through their own operations and kept as they are.
func (s *capacityService) UpdatePlan(ctx context.Context, id string, update *model.CapacityPlan) (*model.CapacityPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get capacity plan %s: %w", id, err)
	}

	if update.DatacenterID != "" {
		plan.DatacenterID = update.DatacenterID
	}
	if !update.Period.Start.IsZero() || !update.Period.End.IsZero() {
		plan.Period = update.Period
	}
	if !update.CurrentCapacity.IsZero() {
		plan.CurrentCapacity = update.CurrentCapacity
	}
	if !update.ProjectedDemand.IsZero() {
		plan.ProjectedDemand = update.ProjectedDemand
	}
	if update.Status != "" {
		plan.Status = update.Status
	}
	if err := s.validatePlan(ctx, &plan); err != nil {
		return nil, err
	}
	plan.UpdatedAt = time.Now().UTC()

	if err := s.store.Put(ctx, id, plan); err != nil {
		return nil, fmt.Errorf("failed to store capacity plan %s: %w", id, err)
	}
	return &plan, nil
}

// DeletePlan removes a plan
func (s *capacityService) DeletePlan(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete capacity plan %s: %w", id, err)
	}
	return nil
}

// ListPlans returns every plan, or the plans of one datacenter when datacenterID is set
func (s *capacityService) ListPlans(ctx context.Context, datacenterID string) ([]model.CapacityPlan, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list capacity plans: %w", err)
	}
	if datacenterID == "" {
		return all, nil
	}

	out := make([]model.CapacityPlan, 0, len(all))
	for _, p := range all {
		if p.DatacenterID == datacenterID {
			out = append(out, p)
		}
	}
	return out, nil
}

// AddScalingAction appends a planned scaling action to a plan
func (s *capacityService) AddScalingAction(ctx context.Context, planID string, action *model.ScalingAction) (*model.CapacityPlan, error) {
	a, err := s.newScalingAction(ctx, action)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	plan, err := s.store.Get(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get capacity plan %s: %w", planID, err)
	}

	plan.ScalingActions = append(plan.ScalingActions, a)
	plan.UpdatedAt = time.Now().UTC()

	if err := s.store.Put(ctx, planID, plan); err != nil {
		return nil, fmt.Errorf("failed to store capacity plan %s: %w", planID, err)
	}

	s.logger.Info("scaling action added",
		slog.String("plan_id", planID),
		slog.String("action_id", a.ID),
		slog.String("resource", string(a.Resource)),
		slog.Float64("amount", a.Amount),
	)

	return &plan, nil
}

// UpdateScalingActionStatus moves a scaling action through planned, in-progress and
// completed; planned or in-progress actions may be cancelled
func (s *capacityService) UpdateScalingActionStatus(ctx context.Context, planID, actionID string, status model.ScalingStatus) (*model.CapacityPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, err := s.store.Get(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get capacity plan %s: %w", planID, err)
	}

	var action *model.ScalingAction
	for i := range plan.ScalingActions {
		if plan.ScalingActions[i].ID == actionID {
			action = &plan.ScalingActions[i]
			break
		}
	}
	if action == nil {
		return nil, fmt.Errorf("scaling action %s of plan %s: %w", actionID, planID, repository.ErrNotFound)
	}

	if action.Status == status {
		return &plan, nil
	}
	allowed := false
	for _, next := range scalingTransitions[action.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, conflictError("scaling action %s cannot move from %s to %s", actionID, action.Status, status)
	}

	action.Status = status
	plan.UpdatedAt = time.Now().UTC()

	if err := s.store.Put(ctx, planID, plan); err != nil {
		return nil, fmt.Errorf("failed to store capacity plan %s: %w", planID, err)
	}
	return &plan, nil
}

// AnalyzeCapacityNeeds compares the projected demand of the latest plan of a
// datacenter against its capacity and recommends scaling for every shortfall
func (s *capacityService) AnalyzeCapacityNeeds(ctx context.Context, datacenterID string) (*model.CapacityAnalysis, error) {
	dc, err := s.dcService.GetDatacenter(ctx, datacenterID)
	if err != nil {
		return nil, err
	}

	plans, err := s.ListPlans(ctx, datacenterID)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("capacity plan for datacenter %s: %w", datacenterID, repository.ErrNotFound)
	}
	plan := latestPlan(plans)

	current := plan.CurrentCapacity
	if current.IsZero() {
		current = dc.Capacity
	}

	analysis := &model.CapacityAnalysis{
		DatacenterID:    datacenterID,
		PlanID:          plan.ID,
		CurrentCapacity: current,
		ProjectedDemand: plan.ProjectedDemand,
		Recommendations: []model.ScalingRecommendation{},
		AnalyzedAt:      time.Now().UTC(),
	}

	for _, r := range model.AllResources {
		gap := math.Max(0, plan.ProjectedDemand.Get(r)-current.Get(r))
		analysis.CapacityGap.Set(r, gap)
		if gap <= 0 {
			continue
		}

		rec := model.ScalingRecommendation{
			Resource:      r,
			Type:          scalingTypeFor(r),
			Amount:        gap,
			Priority:      s.gapPriority(r, gap),
			EstimatedCost: gap * s.unitRate(ctx, r),
			Reason:        fmt.Sprintf("projected %s demand exceeds capacity by %.2f", r, gap),
		}
		analysis.Recommendations = append(analysis.Recommendations, rec)
		analysis.TotalEstimatedCost += rec.EstimatedCost
	}

	s.logger.Debug("capacity analyzed",
		slog.String("datacenter_id", datacenterID),
		slog.String("plan_id", plan.ID),
		slog.Int("recommendations", len(analysis.Recommendations)),
	)

	return analysis, nil
}

// gapPriority escalates strictly above the thresholds: a gap equal to a limit stays below it
func (s *capacityService) gapPriority(r model.Resource, gap float64) model.Severity {
	t := s.gapThresholds[r]
	switch {
	case gap > t.critical:
		return model.SeverityCritical
	case gap > t.high:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

// PerformStressTest simulates the scenario load against the datacenter. Each resource
// peaks at its declared load raised by a random factor of up to the configured jitter.
func (s *capacityService) PerformStressTest(ctx context.Context, datacenterID string, scenario model.StressScenario) (*model.StressTestResult, error) {
	for _, r := range model.AllResources {
		if v := scenario.Load.Get(r); v < 0 || v > 100 {
			return nil, validationError("load of %s must be between 0 and 100", r)
		}
	}
	if scenario.Duration < 0 {
		return nil, validationError("duration must not be negative")
	}

	dc, err := s.dcService.GetDatacenter(ctx, datacenterID)
	if err != nil {
		return nil, err
	}

	result := &model.StressTestResult{
		DatacenterID:    datacenterID,
		Scenario:        scenario,
		Results:         make([]model.ResourceStressResult, 0, len(model.AllResources)),
		Bottlenecks:     []string{},
		Recommendations: []model.ScalingRecommendation{},
		Success:         true,
		ExecutedAt:      time.Now().UTC(),
	}

	for _, r := range model.AllResources {
		usage := math.Min(100, scenario.Load.Get(r)*(1+s.jitterFactor()))
		usage = math.Round(usage*100) / 100
		threshold := s.stressThresholds[r]

		rr := model.ResourceStressResult{
			Resource:   r,
			MaxUsage:   usage,
			Threshold:  threshold,
			Bottleneck: usage > threshold,
		}
		result.Results = append(result.Results, rr)
		if !rr.Bottleneck {
			continue
		}

		result.Bottlenecks = append(result.Bottlenecks,
			fmt.Sprintf("%s usage %.2f%% exceeds %.0f%%", r, usage, threshold))

		amount := dc.Capacity.Get(r) * (usage - threshold) / 100
		rec := model.ScalingRecommendation{
			Resource:      r,
			Type:          scalingTypeFor(r),
			Amount:        math.Round(amount*100) / 100,
			Priority:      stressPriority(usage),
			EstimatedCost: amount * s.unitRate(ctx, r),
			Reason:        fmt.Sprintf("%s reached %.2f%% under scenario %q", r, usage, scenario.Name),
		}
		result.Recommendations = append(result.Recommendations, rec)
		if rec.Priority == model.SeverityCritical {
			result.Success = false
		}
	}

	s.metrics.ObserveStressTest(datacenterID, result.Success)

	s.logger.Info("stress test executed",
		slog.String("datacenter_id", datacenterID),
		slog.String("scenario", scenario.Name),
		slog.Int("bottlenecks", len(result.Bottlenecks)),
		slog.Bool("success", result.Success),
	)

	return result, nil
}

func (s *capacityService) jitterFactor() float64 {
	if s.jitter <= 0 {
		return 0
	}
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.rnd.Float64() * s.jitter
}

func stressPriority(usage float64) model.Severity {
	switch {
	case usage >= 95:
		return model.SeverityCritical
	case usage >= 90:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

// Statistics aggregates plans and their scaling actions
func (s *capacityService) Statistics(ctx context.Context) (*model.CapacityStatistics, error) {
	plans, err := s.ListPlans(ctx, "")
	if err != nil {
		return nil, err
	}

	stats := &model.CapacityStatistics{
		TotalPlans:      len(plans),
		ByStatus:        make(map[string]int),
		ScalingByStatus: make(map[string]int),
	}

	var cost float64
	for i := range plans {
		p := &plans[i]
		stats.ByStatus[string(p.Status)]++
		stats.TotalScalingActions += len(p.ScalingActions)
		for _, a := range p.ScalingActions {
			stats.ScalingByStatus[string(a.Status)]++
		}
		cost += p.EstimatedCost()
	}
	if len(plans) > 0 {
		stats.AverageEstimatedCost = math.Round(cost/float64(len(plans))*100) / 100
	}

	return stats, nil
}

// DatacenterReferences lists the plans of a datacenter
func (s *capacityService) DatacenterReferences(ctx context.Context, datacenterID string) ([]string, error) {
	plans, err := s.ListPlans(ctx, datacenterID)
	if err != nil {
		return nil, err
	}

	refs := make([]string, 0, len(plans))
	for _, p := range plans {
		refs = append(refs, "capacity plan "+p.ID)
	}
	return refs, nil
}

// unitRate prefers the catalog price and falls back to the configured rate
func (s *capacityService) unitRate(ctx context.Context, r model.Resource) float64 {
	if s.rates != nil {
		if rate, ok := s.rates.UnitRate(ctx, r); ok {
			return rate
		}
	}
	return s.unitRates[r]
}

func (s *capacityService) newScalingAction(ctx context.Context, tpl *model.ScalingAction) (model.ScalingAction, error) {
	if !tpl.Resource.Valid() {
		return model.ScalingAction{}, validationError("unknown resource %q", tpl.Resource)
	}
	if tpl.Type == "" {
		tpl.Type = scalingTypeFor(tpl.Resource)
	}
	if !tpl.Type.Valid() {
		return model.ScalingAction{}, validationError("unknown scaling type %q", tpl.Type)
	}
	if tpl.Amount <= 0 {
		return model.ScalingAction{}, validationError("scaling amount must be positive")
	}
	if tpl.Priority == "" {
		tpl.Priority = model.SeverityMedium
	}
	if !tpl.Priority.Valid() {
		return model.ScalingAction{}, validationError("unknown priority %q", tpl.Priority)
	}

	a := *tpl
	if a.ID == "" {
		a.ID = newID("scaling")
	}
	if a.EstimatedCost == 0 {
		a.EstimatedCost = a.Amount * s.unitRate(ctx, a.Resource)
	}
	if a.ImplementationDate.IsZero() {
		a.ImplementationDate = time.Now().UTC()
	}
	a.Status = model.ScalingPlanned
	return a, nil
}

func (s *capacityService) validatePlan(ctx context.Context, plan *model.CapacityPlan) error {
	if plan.DatacenterID == "" {
		return validationError("datacenter id is required")
	}
	if _, err := s.dcService.GetDatacenter(ctx, plan.DatacenterID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return validationError("unknown datacenter %s", plan.DatacenterID)
		}
		return err
	}
	if !plan.Status.Valid() {
		return validationError("unknown plan status %q", plan.Status)
	}
	if !plan.Period.End.IsZero() && plan.Period.End.Before(plan.Period.Start) {
		return validationError("period end must not be before its start")
	}
	for _, r := range model.AllResources {
		if plan.CurrentCapacity.Get(r) < 0 || plan.ProjectedDemand.Get(r) < 0 {
			return validationError("%s capacity and demand must not be negative", r)
		}
	}
	return nil
}

// latestPlan returns the most recently created plan, the highest id on ties
func latestPlan(plans []model.CapacityPlan) model.CapacityPlan {
	sorted := append([]model.CapacityPlan(nil), plans...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[len(sorted)-1]
}

// scalingTypeFor picks vertical scaling for compute and horizontal for storage and network
func scalingTypeFor(r model.Resource) model.ScalingType {
	switch r {
	case model.ResourceCPU, model.ResourceMemory:
		return model.ScaleUp
	default:
		return model.ScaleOut
	}
}
