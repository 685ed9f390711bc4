package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirychukyurii/dr-orchestrator/internal/concurrent"
	"github.com/kirychukyurii/dr-orchestrator/internal/config"
	"github.com/kirychukyurii/dr-orchestrator/internal/healthcheck"
	"github.com/kirychukyurii/dr-orchestrator/internal/history"
	"github.com/kirychukyurii/dr-orchestrator/internal/metrics"
	"github.com/kirychukyurii/dr-orchestrator/internal/model"
	"github.com/kirychukyurii/dr-orchestrator/internal/repository"
)

// LinkService defines the interface for network link monitoring
type LinkService interface {
	CreateLink(ctx context.Context, link *model.NetworkLink) (*model.NetworkLink, error)
	GetLink(ctx context.Context, id string) (*model.NetworkLink, error)
	UpdateLink(ctx context.Context, id string, link *model.NetworkLink) (*model.NetworkLink, error)
	DeleteLink(ctx context.Context, id string) error
	ListLinks(ctx context.Context) ([]model.NetworkLink, error)
	CheckLinkHealth(ctx context.Context, id string) (*model.LinkHealthRecord, error)
	HealthHistory(ctx context.Context, id string, limit int) ([]model.LinkHealthRecord, error)
	TestLinkBandwidth(ctx context.Context, id string) (*model.BandwidthTestResult, error)
	AlternativeRoutes(ctx context.Context, source, target string) ([]model.AlternativeRoute, error)
	ProbeAll(ctx context.Context) (*model.LinkSweepResult, error)
	Statistics(ctx context.Context) (*model.LinkStatistics, error)
	DatacenterReferences(ctx context.Context, datacenterID string) ([]string, error)
}

// linkService implements LinkService interface
type linkService struct {
	store       repository.Store[model.NetworkLink]
	dcService   DatacenterService
	probe       healthcheck.LinkProbe
	meter       healthcheck.BandwidthMeter
	limiter     *rate.Limiter
	concurrency int
	maxDepth    int
	history     *history.Ring[model.LinkHealthRecord]
	metrics     *metrics.Metrics
	logger      *slog.Logger
	mu          sync.Mutex
}

// NewLinkService creates a new link service
func NewLinkService(
	store repository.Store[model.NetworkLink],
	dcService DatacenterService,
	probe healthcheck.LinkProbe,
	meter healthcheck.BandwidthMeter,
	cfg config.NetworkConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) LinkService {
	limit := rate.Inf
	if cfg.ProbesPerSecond > 0 {
		limit = rate.Limit(cfg.ProbesPerSecond)
	}
	burst := cfg.ProbeConcurrency
	if burst < 1 {
		burst = 1
	}

	return &linkService{
		store:       store,
		dcService:   dcService,
		probe:       probe,
		meter:       meter,
		limiter:     rate.NewLimiter(limit, burst),
		concurrency: cfg.ProbeConcurrency,
		maxDepth:    cfg.MaxRouteDepth,
		history:     history.NewRing[model.LinkHealthRecord](cfg.HistorySize),
		metrics:     m,
		logger:      logger,
	}
}

// CreateLink validates and stores a link between two registered datacenters
func (s *linkService) CreateLink(ctx context.Context, link *model.NetworkLink) (*model.NetworkLink, error) {
	if link.Status == "" {
		link.Status = model.LinkStatusActive
	}
	if err := s.validateLink(ctx, link); err != nil {
		return nil, err
	}
	if link.ID == "" {
		link.ID = newID("link")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Get(ctx, link.ID); err == nil {
		return nil, conflictError("link %s already exists", link.ID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check link %s: %w", link.ID, err)
	}

	if err := s.store.Put(ctx, link.ID, *link); err != nil {
		return nil, fmt.Errorf("failed to store link %s: %w", link.ID, err)
	}

	s.logger.Info("network link created",
		slog.String("link_id", link.ID),
		slog.String("source", link.SourceDC),
		slog.String("target", link.TargetDC),
		slog.String("type", string(link.Type)),
	)

	return link, nil
}

// GetLink returns a link by id
func (s *linkService) GetLink(ctx context.Context, id string) (*model.NetworkLink, error) {
	link, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get link %s: %w", id, err)
	}
	return &link, nil
}

// UpdateLink replaces the attributes of a link, keeping its last check time
func (s *linkService) UpdateLink(ctx context.Context, id string, link *model.NetworkLink) (*model.NetworkLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get link %s: %w", id, err)
	}

	next := *link
	next.ID = id
	next.LastCheck = current.LastCheck
	if next.Status == "" {
		next.Status = current.Status
	}
	if err := s.validateLink(ctx, &next); err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, id, next); err != nil {
		return nil, fmt.Errorf("failed to store link %s: %w", id, err)
	}
	return &next, nil
}

// DeleteLink removes a link
func (s *linkService) DeleteLink(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete link %s: %w", id, err)
	}
	s.metrics.ForgetLink(id)

	s.logger.Info("network link deleted", slog.String("link_id", id))
	return nil
}

// ListLinks returns all links ordered by id
func (s *linkService) ListLinks(ctx context.Context) ([]model.NetworkLink, error) {
	links, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return links, nil
}

// CheckLinkHealth probes a link, persists its status and appends the observation
// to the network history
func (s *linkService) CheckLinkHealth(ctx context.Context, id string) (*model.LinkHealthRecord, error) {
	link, err := s.GetLink(ctx, id)
	if err != nil {
		return nil, err
	}

	res, probeErr := s.probe.Probe(ctx, link)
	now := time.Now().UTC()

	record := model.LinkHealthRecord{
		LinkID:    id,
		CheckedAt: now,
	}
	if probeErr != nil {
		record.Status = link.Status
		record.Error = probeErr.Error()
		s.history.Append(record)
		return nil, fmt.Errorf("failed to probe link %s: %w", id, probeErr)
	}
	record.Status = res.Status
	record.Latency = res.Latency
	record.Bandwidth = res.Bandwidth

	s.mu.Lock()
	current, err := s.store.Get(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to get link %s: %w", id, err)
	}
	previous := current.Status
	current.Status = res.Status
	current.LastCheck = now
	if err := s.store.Put(ctx, id, current); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to store link %s: %w", id, err)
	}
	s.history.Append(record)
	s.mu.Unlock()

	s.metrics.ObserveLinkProbe(id, string(res.Status))

	if previous != res.Status {
		s.logger.Warn("network link status changed",
			slog.String("link_id", id),
			slog.String("old_status", string(previous)),
			slog.String("new_status", string(res.Status)),
			slog.Float64("latency_ms", res.Latency),
		)
	}

	return &record, nil
}

// HealthHistory returns the most recent health records of a link, oldest first
func (s *linkService) HealthHistory(ctx context.Context, id string, limit int) ([]model.LinkHealthRecord, error) {
	if _, err := s.GetLink(ctx, id); err != nil {
		return nil, err
	}
	return s.history.Filter(func(r model.LinkHealthRecord) bool { return r.LinkID == id }, limit), nil
}

// TestLinkBandwidth compares measured with declared bandwidth
func (s *linkService) TestLinkBandwidth(ctx context.Context, id string) (*model.BandwidthTestResult, error) {
	link, err := s.GetLink(ctx, id)
	if err != nil {
		return nil, err
	}
	if link.Bandwidth <= 0 {
		return nil, validationError("link %s has no declared bandwidth", id)
	}

	measured, err := s.meter.Measure(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("failed to measure bandwidth of link %s: %w", id, err)
	}

	efficiency := measured / link.Bandwidth * 100
	return &model.BandwidthTestResult{
		LinkID:         id,
		Declared:       link.Bandwidth,
		Measured:       measured,
		Efficiency:     math.Round(efficiency*100) / 100,
		Classification: classifyBandwidth(efficiency),
		TestedAt:       time.Now().UTC(),
	}, nil
}

func classifyBandwidth(efficiency float64) model.BandwidthClass {
	switch {
	case efficiency >= 95:
		return model.BandwidthOptimal
	case efficiency >= 80:
		return model.BandwidthGood
	case efficiency >= 60:
		return model.BandwidthPoor
	default:
		return model.BandwidthCritical
	}
}

// AlternativeRoutes returns the usable paths between two datacenters. Direct links
// that are not down win; without them paths up to the configured depth are searched.
// Paths are ordered by hop count, then total latency.
func (s *linkService) AlternativeRoutes(ctx context.Context, source, target string) ([]model.AlternativeRoute, error) {
	if source == "" || target == "" {
		return nil, validationError("source and target datacenters are required")
	}
	if source == target {
		return nil, validationError("source and target datacenters must differ")
	}

	links, err := s.ListLinks(ctx)
	if err != nil {
		return nil, err
	}

	usable := make([]model.NetworkLink, 0, len(links))
	for _, l := range links {
		if l.Status != model.LinkStatusDown {
			usable = append(usable, l)
		}
	}

	var routes []model.AlternativeRoute
	for _, l := range usable {
		if l.SourceDC == source && l.TargetDC == target {
			routes = append(routes, model.AlternativeRoute{
				Datacenters:  []string{source, target},
				Links:        []string{l.ID},
				Hops:         1,
				TotalLatency: l.Latency,
				MinBandwidth: l.Bandwidth,
				Direct:       true,
			})
		}
	}
	if len(routes) == 0 {
		routes = findPaths(usable, source, target, s.maxDepth)
	}

	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].Hops != routes[j].Hops {
			return routes[i].Hops < routes[j].Hops
		}
		return routes[i].TotalLatency < routes[j].TotalLatency
	})
	return routes, nil
}

// findPaths enumerates simple paths from source to target with at most maxDepth links
func findPaths(links []model.NetworkLink, source, target string, maxDepth int) []model.AlternativeRoute {
	if maxDepth < 1 {
		maxDepth = 1
	}

	outgoing := make(map[string][]model.NetworkLink)
	for _, l := range links {
		outgoing[l.SourceDC] = append(outgoing[l.SourceDC], l)
	}

	type path struct {
		dcs   []string
		links []model.NetworkLink
	}

	var routes []model.AlternativeRoute
	queue := []path{{dcs: []string{source}}}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		last := p.dcs[len(p.dcs)-1]

		for _, l := range outgoing[last] {
			if containsString(p.dcs, l.TargetDC) {
				continue
			}

			next := path{
				dcs:   append(append([]string(nil), p.dcs...), l.TargetDC),
				links: append(append([]model.NetworkLink(nil), p.links...), l),
			}

			if l.TargetDC == target {
				routes = append(routes, buildRoute(next.dcs, next.links))
				continue
			}
			if len(next.links) < maxDepth {
				queue = append(queue, next)
			}
		}
	}
	return routes
}

func buildRoute(dcs []string, links []model.NetworkLink) model.AlternativeRoute {
	route := model.AlternativeRoute{
		Datacenters:  dcs,
		Links:        make([]string, 0, len(links)),
		Hops:         len(links),
		MinBandwidth: math.Inf(1),
		Direct:       len(links) == 1,
	}
	for _, l := range links {
		route.Links = append(route.Links, l.ID)
		route.TotalLatency += l.Latency
		route.MinBandwidth = math.Min(route.MinBandwidth, l.Bandwidth)
	}
	return route
}

func containsString(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}

// ProbeAll checks every link in parallel, bounded by the configured concurrency and
// probe rate. Failing probes are reported without stopping the sweep.
func (s *linkService) ProbeAll(ctx context.Context) (*model.LinkSweepResult, error) {
	links, err := s.ListLinks(ctx)
	if err != nil {
		return nil, err
	}

	outcomes := concurrent.Map(ctx, links, func(l model.NetworkLink) string { return l.ID }, func(ctx context.Context, link model.NetworkLink) (*model.LinkHealthRecord, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return s.CheckLinkHealth(ctx, link.ID)
	}, s.concurrency)

	sweep := &model.LinkSweepResult{Errors: concurrent.Errors(outcomes)}
	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		sweep.Checked++
		switch o.Value.Status {
		case model.LinkStatusActive:
			sweep.Active++
		case model.LinkStatusDegraded:
			sweep.Degraded++
		case model.LinkStatusDown:
			sweep.Down++
		}
	}

	s.logger.Info("network link sweep completed",
		slog.Int("checked", sweep.Checked),
		slog.Int("degraded", sweep.Degraded),
		slog.Int("down", sweep.Down),
		slog.Int("errors", len(sweep.Errors)),
	)

	return sweep, nil
}

// Statistics aggregates links and the network history
func (s *linkService) Statistics(ctx context.Context) (*model.LinkStatistics, error) {
	links, err := s.ListLinks(ctx)
	if err != nil {
		return nil, err
	}

	stats := &model.LinkStatistics{
		Total:       len(links),
		ByStatus:    make(map[string]int),
		ByType:      make(map[string]int),
		ByProvider:  make(map[string]int),
		HistorySize: s.history.Len(),
	}
	var latency float64
	for _, l := range links {
		stats.ByStatus[string(l.Status)]++
		stats.ByType[string(l.Type)]++
		stats.ByProvider[l.Provider]++
		stats.TotalBandwidth += l.Bandwidth
		latency += l.Latency
	}
	if len(links) > 0 {
		stats.AverageLatency = latency / float64(len(links))
	}

	return stats, nil
}

// DatacenterReferences lists the links touching the datacenter
func (s *linkService) DatacenterReferences(ctx context.Context, datacenterID string) ([]string, error) {
	links, err := s.ListLinks(ctx)
	if err != nil {
		return nil, err
	}

	var refs []string
	for _, l := range links {
		if l.SourceDC == datacenterID || l.TargetDC == datacenterID {
			refs = append(refs, "link "+l.ID)
		}
	}
	return refs, nil
}

func (s *linkService) validateLink(ctx context.Context, link *model.NetworkLink) error {
	if link.SourceDC == "" || link.TargetDC == "" {
		return validationError("source and target datacenters are required")
	}
	if link.SourceDC == link.TargetDC {
		return validationError("source and target datacenters must differ")
	}
	if link.Type == "" {
		link.Type = model.LinkTypePrimary
	}
	if !link.Type.Valid() {
		return validationError("unknown link type %q", link.Type)
	}
	if !link.Status.Valid() {
		return validationError("unknown link status %q", link.Status)
	}
	if link.Bandwidth < 0 || link.Latency < 0 {
		return validationError("bandwidth and latency must not be negative")
	}

	for _, id := range []string{link.SourceDC, link.TargetDC} {
		if _, err := s.dcService.GetDatacenter(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return validationError("unknown datacenter %s", id)
			}
			return err
		}
	}
	return nil
}
