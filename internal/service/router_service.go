package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/kirychukyurii/dr-orchestrator/internal/config"
	"github.com/kirychukyurii/dr-orchestrator/internal/geo"
	"github.com/kirychukyurii/dr-orchestrator/internal/history"
	"github.com/kirychukyurii/dr-orchestrator/internal/metrics"
	"github.com/kirychukyurii/dr-orchestrator/internal/model"
	"github.com/kirychukyurii/dr-orchestrator/internal/repository"
)

// statusLoad is the load proxy used by the least-loaded strategy
var statusLoad = map[model.DatacenterStatus]float64{
	model.DatacenterStatusActive:      0,
	model.DatacenterStatusMaintenance: 50,
	model.DatacenterStatusOffline:     100,
}

// RouterService defines the interface for geographic routing operations
type RouterService interface {
	DetermineOptimalDatacenter(ctx context.Context, req *model.RoutingRequest) (*model.RoutingResult, error)
	CreateRoute(ctx context.Context, route *model.GeographicRoute) (*model.GeographicRoute, error)
	GetRoute(ctx context.Context, id string) (*model.GeographicRoute, error)
	UpdateRoute(ctx context.Context, id string, route *model.GeographicRoute) (*model.GeographicRoute, error)
	DeleteRoute(ctx context.Context, id string) error
	ListRoutes(ctx context.Context) ([]model.GeographicRoute, error)
	History(limit int) []model.RoutingDecision
	Statistics(ctx context.Context) (*model.RoutingStatistics, error)
	DatacenterReferences(ctx context.Context, datacenterID string) ([]string, error)
}

// routerService implements RouterService interface
type routerService struct {
	store     repository.Store[model.GeographicRoute]
	dcService DatacenterService
	cfg       config.RoutingConfig
	history   *history.Ring[model.RoutingDecision]
	metrics   *metrics.Metrics
	logger    *slog.Logger
	mu        sync.Mutex
}

// NewRouterService creates a new router service
func NewRouterService(
	store repository.Store[model.GeographicRoute],
	dcService DatacenterService,
	cfg config.RoutingConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) RouterService {
	return &routerService{
		store:     store,
		dcService: dcService,
		cfg:       cfg,
		history:   history.NewRing[model.RoutingDecision](cfg.HistorySize),
		metrics:   m,
		logger:    logger,
	}
}

// scoredCandidate is a datacenter with its distance to the user and strategy score
type scoredCandidate struct {
	dc       *model.Datacenter
	distance float64
	score    float64
}

// DetermineOptimalDatacenter selects the target datacenter for a user location,
// persists the resulting route and records the decision in the routing history
func (s *routerService) DetermineOptimalDatacenter(ctx context.Context, req *model.RoutingRequest) (*model.RoutingResult, error) {
	start := time.Now()

	strategy := req.Strategy
	if strategy == "" {
		strategy = model.StrategyNearest
	}
	if !strategy.Valid() {
		return nil, validationError("unknown routing strategy %q", strategy)
	}
	if !req.UserLocation.Coordinates.Valid() {
		return nil, validationError("user coordinates out of range")
	}

	candidates, err := s.candidates(ctx, req.Candidates)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no eligible datacenter for strategy %s", ErrNoRouteAvailable, strategy)
	}

	// candidates are ordered by id, the first strict minimum wins
	var best *scoredCandidate
	for i := range candidates {
		c := &scoredCandidate{
			dc:       &candidates[i],
			distance: geo.Distance(req.UserLocation.Coordinates, candidates[i].Coordinates),
		}
		c.score = s.score(strategy, c)
		if best == nil || c.score < best.score {
			best = c
		}
	}

	now := time.Now().UTC()
	route := model.GeographicRoute{
		ID:              newID("route"),
		UserLocation:    req.UserLocation,
		TargetDC:        best.dc.ID,
		RoutingStrategy: strategy,
		Metrics:         s.routeMetrics(best.dc, best.distance),
		LastUpdated:     now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Put(ctx, route.ID, route); err != nil {
		return nil, fmt.Errorf("failed to store route %s: %w", route.ID, err)
	}

	elapsed := time.Since(start)
	s.history.Append(model.RoutingDecision{
		RouteID:      route.ID,
		UserLocation: req.UserLocation,
		Strategy:     strategy,
		TargetDC:     best.dc.ID,
		Distance:     best.distance,
		Metrics:      route.Metrics,
		Candidates:   len(candidates),
		ProcessingMs: float64(elapsed.Microseconds()) / 1000,
		Timestamp:    now,
	})
	s.metrics.ObserveRouting(string(strategy), best.dc.ID, elapsed)

	s.logger.Debug("routing decision",
		slog.String("strategy", string(strategy)),
		slog.String("target_datacenter", best.dc.ID),
		slog.Float64("distance_km", best.distance),
		slog.Int("candidates", len(candidates)),
	)

	return &model.RoutingResult{
		TargetDC: best.dc.ID,
		Distance: best.distance,
		Route:    route,
	}, nil
}

// candidates resolves the requested ids, or every datacenter, and drops offline ones
func (s *routerService) candidates(ctx context.Context, ids []string) ([]model.Datacenter, error) {
	var dcs []model.Datacenter
	if len(ids) == 0 {
		all, err := s.dcService.ListDatacenters(ctx)
		if err != nil {
			return nil, err
		}
		dcs = all
	} else {
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			dc, err := s.dcService.GetDatacenter(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, validationError("unknown candidate datacenter %s", id)
				}
				return nil, err
			}
			dcs = append(dcs, *dc)
		}
		sortDatacenters(dcs)
	}

	if !s.cfg.ExcludeOffline {
		return dcs, nil
	}

	out := dcs[:0]
	for _, dc := range dcs {
		if dc.Status != model.DatacenterStatusOffline {
			out = append(out, dc)
		}
	}
	return out, nil
}

func (s *routerService) score(strategy model.RoutingStrategy, c *scoredCandidate) float64 {
	switch strategy {
	case model.StrategyLowestLatency:
		return c.distance * s.cfg.LatencyPerKm
	case model.StrategyLeastLoaded:
		return statusLoad[c.dc.Status]
	case model.StrategyCostOptimized:
		return s.pricing(c.dc.Country).Multiplier
	default:
		return c.distance
	}
}

func (s *routerService) pricing(country string) config.PricingConfig {
	if p, ok := s.cfg.Pricing[country]; ok {
		return p
	}
	for k, p := range s.cfg.Pricing {
		if strings.EqualFold(k, country) {
			return p
		}
	}
	return s.cfg.DefaultPricing
}

// routeMetrics derives latency, bandwidth and cost from the distance to the target
func (s *routerService) routeMetrics(dc *model.Datacenter, distance float64) model.RouteMetrics {
	p := s.pricing(dc.Country)
	return model.RouteMetrics{
		Latency:   math.Max(1, math.Round(distance/100)+1),
		Bandwidth: math.Max(1000, 10000-distance*10),
		Cost:      p.BaseRate + distance*p.CostPerKm,
	}
}

// CreateRoute stores a route defined by the caller
func (s *routerService) CreateRoute(ctx context.Context, route *model.GeographicRoute) (*model.GeographicRoute, error) {
	if err := s.validateRoute(ctx, route); err != nil {
		return nil, err
	}
	if route.ID == "" {
		route.ID = newID("route")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Get(ctx, route.ID); err == nil {
		return nil, conflictError("route %s already exists", route.ID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check route %s: %w", route.ID, err)
	}

	route.LastUpdated = time.Now().UTC()
	if err := s.store.Put(ctx, route.ID, *route); err != nil {
		return nil, fmt.Errorf("failed to store route %s: %w", route.ID, err)
	}
	return route, nil
}

// GetRoute returns a route by id
func (s *routerService) GetRoute(ctx context.Context, id string) (*model.GeographicRoute, error) {
	route, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get route %s: %w", id, err)
	}
	return &route, nil
}

// UpdateRoute replaces a route
func (s *routerService) UpdateRoute(ctx context.Context, id string, route *model.GeographicRoute) (*model.GeographicRoute, error) {
	if err := s.validateRoute(ctx, route); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to get route %s: %w", id, err)
	}

	route.ID = id
	route.LastUpdated = time.Now().UTC()
	if err := s.store.Put(ctx, id, *route); err != nil {
		return nil, fmt.Errorf("failed to store route %s: %w", id, err)
	}
	return route, nil
}

// DeleteRoute removes a route
func (s *routerService) DeleteRoute(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete route %s: %w", id, err)
	}
	return nil
}

// ListRoutes returns all routes ordered by id
func (s *routerService) ListRoutes(ctx context.Context) ([]model.GeographicRoute, error) {
	routes, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	return routes, nil
}

// History returns the most recent routing decisions, oldest first
func (s *routerService) History(limit int) []model.RoutingDecision {
	return s.history.Last(limit)
}

// Statistics aggregates stored routes and the routing history
func (s *routerService) Statistics(ctx context.Context) (*model.RoutingStatistics, error) {
	routes, err := s.ListRoutes(ctx)
	if err != nil {
		return nil, err
	}

	stats := &model.RoutingStatistics{
		TotalRoutes: len(routes),
		ByStrategy:  make(map[string]int),
		ByTarget:    make(map[string]int),
	}
	for _, r := range routes {
		stats.ByStrategy[string(r.RoutingStrategy)]++
		stats.ByTarget[r.TargetDC]++
		stats.AverageMetrics.Latency += r.Metrics.Latency
		stats.AverageMetrics.Bandwidth += r.Metrics.Bandwidth
		stats.AverageMetrics.Cost += r.Metrics.Cost
	}
	if n := float64(len(routes)); n > 0 {
		stats.AverageMetrics.Latency /= n
		stats.AverageMetrics.Bandwidth /= n
		stats.AverageMetrics.Cost /= n
	}

	decisions := s.history.Items()
	stats.HistorySize = len(decisions)
	if len(decisions) > 0 {
		var total float64
		for _, d := range decisions {
			total += d.ProcessingMs
		}
		stats.AverageProcessing = total / float64(len(decisions))
	}

	return stats, nil
}

// DatacenterReferences lists the routes targeting the datacenter
func (s *routerService) DatacenterReferences(ctx context.Context, datacenterID string) ([]string, error) {
	routes, err := s.ListRoutes(ctx)
	if err != nil {
		return nil, err
	}

	var refs []string
	for _, r := range routes {
		if r.TargetDC == datacenterID {
			refs = append(refs, "route "+r.ID)
		}
	}
	return refs, nil
}

func (s *routerService) validateRoute(ctx context.Context, route *model.GeographicRoute) error {
	if route.TargetDC == "" {
		return validationError("target datacenter is required")
	}
	if route.RoutingStrategy == "" {
		route.RoutingStrategy = model.StrategyNearest
	}
	if !route.RoutingStrategy.Valid() {
		return validationError("unknown routing strategy %q", route.RoutingStrategy)
	}
	if !route.UserLocation.Coordinates.Valid() {
		return validationError("user coordinates out of range")
	}
	if _, err := s.dcService.GetDatacenter(ctx, route.TargetDC); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return validationError("unknown target datacenter %s", route.TargetDC)
		}
		return err
	}
	return nil
}
