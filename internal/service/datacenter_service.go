package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirychukyurii/dr-orchestrator/internal/cache"
	"github.com/kirychukyurii/dr-orchestrator/internal/geo"
	"github.com/kirychukyurii/dr-orchestrator/internal/healthcheck"
	"github.com/kirychukyurii/dr-orchestrator/internal/history"
	"github.com/kirychukyurii/dr-orchestrator/internal/model"
	"github.com/kirychukyurii/dr-orchestrator/internal/repository"
)

// DatacenterReferrer is implemented by services that keep references to datacenters
type DatacenterReferrer interface {
	// DatacenterReferences describes every entity referencing the datacenter
	DatacenterReferences(ctx context.Context, datacenterID string) ([]string, error)
}

// DatacenterService defines the interface for datacenter operations
type DatacenterService interface {
	CreateDatacenter(ctx context.Context, dc *model.Datacenter) (*model.Datacenter, error)
	GetDatacenter(ctx context.Context, id string) (*model.Datacenter, error)
	UpdateDatacenter(ctx context.Context, id string, dc *model.Datacenter) (*model.Datacenter, error)
	UpdateStatus(ctx context.Context, id string, status model.DatacenterStatus) (*model.Datacenter, error)
	DeleteDatacenter(ctx context.Context, id string, force bool) error
	ListDatacenters(ctx context.Context) ([]model.Datacenter, error)
	ListByRegion(ctx context.Context, region string) ([]model.Datacenter, error)
	ListByCountry(ctx context.Context, country string) ([]model.Datacenter, error)
	FindNearest(ctx context.Context, coords model.Coordinates) (*model.Datacenter, float64, error)
	CheckHealth(ctx context.Context, id string) (*model.DatacenterHealth, error)
	ProbeHealth(ctx context.Context, id string) (*model.DatacenterHealth, error)
	StatusOverview(ctx context.Context) (*model.DatacenterStatusOverview, error)
	Statistics(ctx context.Context) (*model.DatacenterStatistics, error)
	AddReferrer(r DatacenterReferrer)
	ProbeName() string
}

// datacenterService implements DatacenterService interface
type datacenterService struct {
	store      repository.Store[model.Datacenter]
	probe      healthcheck.Probe
	cache      cache.Cache[model.DatacenterHealth]
	probeLogs  int
	logger     *slog.Logger
	mu         sync.RWMutex
	referrers  []DatacenterReferrer
	probeMu    sync.Mutex
	probeStats map[string]*history.Ring[bool]
}

// NewDatacenterService creates a new datacenter service
func NewDatacenterService(
	store repository.Store[model.Datacenter],
	probe healthcheck.Probe,
	cache cache.Cache[model.DatacenterHealth],
	probeLogSize int,
	logger *slog.Logger,
) DatacenterService {
	return &datacenterService{
		store:      store,
		probe:      probe,
		cache:      cache,
		probeLogs:  probeLogSize,
		logger:     logger,
		probeStats: make(map[string]*history.Ring[bool]),
	}
}

// AddReferrer registers a service consulted before a safe delete
func (s *datacenterService) AddReferrer(r DatacenterReferrer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.referrers = append(s.referrers, r)
}

// ProbeName returns the name of the configured health probe
func (s *datacenterService) ProbeName() string {
	return s.probe.Name()
}

// CreateDatacenter validates and registers a datacenter
func (s *datacenterService) CreateDatacenter(ctx context.Context, dc *model.Datacenter) (*model.Datacenter, error) {
	if dc.Status == "" {
		dc.Status = model.DatacenterStatusActive
	}
	if err := validateDatacenter(dc); err != nil {
		return nil, err
	}
	if dc.ID == "" {
		dc.ID = newID("dc")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Get(ctx, dc.ID); err == nil {
		return nil, conflictError("datacenter %s already exists", dc.ID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check datacenter %s: %w", dc.ID, err)
	}

	now := time.Now().UTC()
	dc.CreatedAt = now
	dc.UpdatedAt = now

	if err := s.store.Put(ctx, dc.ID, *dc); err != nil {
		return nil, fmt.Errorf("failed to store datacenter %s: %w", dc.ID, err)
	}

	s.logger.Info("datacenter registered",
		slog.String("datacenter_id", dc.ID),
		slog.String("region", dc.Region),
		slog.String("status", string(dc.Status)),
	)

	return dc, nil
}

// GetDatacenter returns a datacenter by id
func (s *datacenterService) GetDatacenter(ctx context.Context, id string) (*model.Datacenter, error) {
	dc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get datacenter %s: %w", id, err)
	}
	return &dc, nil
}

// UpdateDatacenter replaces the mutable attributes of a datacenter
func (s *datacenterService) UpdateDatacenter(ctx context.Context, id string, update *model.Datacenter) (*model.Datacenter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get datacenter %s: %w", id, err)
	}

	next := *update
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	if next.Status == "" {
		next.Status = current.Status
	}
	if err := validateDatacenter(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()

	if err := s.store.Put(ctx, id, next); err != nil {
		return nil, fmt.Errorf("failed to store datacenter %s: %w", id, err)
	}
	s.cache.Invalidate(id)

	s.logger.Info("datacenter updated", slog.String("datacenter_id", id))

	return &next, nil
}

// UpdateStatus changes the operational status of a datacenter
func (s *datacenterService) UpdateStatus(ctx context.Context, id string, status model.DatacenterStatus) (*model.Datacenter, error) {
	if !status.Valid() {
		return nil, validationError("unknown datacenter status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get datacenter %s: %w", id, err)
	}

	previous := dc.Status
	dc.Status = status
	dc.UpdatedAt = time.Now().UTC()

	if err := s.store.Put(ctx, id, dc); err != nil {
		return nil, fmt.Errorf("failed to store datacenter %s: %w", id, err)
	}
	s.cache.Invalidate(id)

	if previous != status {
		s.logger.Info("datacenter status changed",
			slog.String("datacenter_id", id),
			slog.String("old_status", string(previous)),
			slog.String("new_status", string(status)),
		)
	}

	return &dc, nil
}

// DeleteDatacenter removes a datacenter. Without force the delete is refused while
// failover configs, links, routes or capacity plans still reference it.
func (s *datacenterService) DeleteDatacenter(ctx context.Context, id string, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Get(ctx, id); err != nil {
		return fmt.Errorf("failed to get datacenter %s: %w", id, err)
	}

	var refs []string
	for _, r := range s.referrers {
		found, err := r.DatacenterReferences(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to check references to datacenter %s: %w", id, err)
		}
		refs = append(refs, found...)
	}

	if len(refs) > 0 && !force {
		return conflictError("datacenter %s is referenced by %s", id, strings.Join(refs, ", "))
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete datacenter %s: %w", id, err)
	}
	s.cache.Invalidate(id)

	s.probeMu.Lock()
	delete(s.probeStats, id)
	s.probeMu.Unlock()

	if len(refs) > 0 {
		s.logger.Warn("datacenter force-deleted while still referenced",
			slog.String("datacenter_id", id),
			slog.Int("references", len(refs)),
		)
	} else {
		s.logger.Info("datacenter deleted", slog.String("datacenter_id", id))
	}

	return nil
}

// ListDatacenters returns all datacenters ordered by id
func (s *datacenterService) ListDatacenters(ctx context.Context) ([]model.Datacenter, error) {
	dcs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list datacenters: %w", err)
	}
	return dcs, nil
}

// ListByRegion returns the datacenters of a region
func (s *datacenterService) ListByRegion(ctx context.Context, region string) ([]model.Datacenter, error) {
	return s.filter(ctx, func(dc *model.Datacenter) bool { return dc.Region == region })
}

// ListByCountry returns the datacenters of a country
func (s *datacenterService) ListByCountry(ctx context.Context, country string) ([]model.Datacenter, error) {
	return s.filter(ctx, func(dc *model.Datacenter) bool { return strings.EqualFold(dc.Country, country) })
}

func (s *datacenterService) filter(ctx context.Context, keep func(*model.Datacenter) bool) ([]model.Datacenter, error) {
	dcs, err := s.ListDatacenters(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.Datacenter, 0, len(dcs))
	for i := range dcs {
		if keep(&dcs[i]) {
			out = append(out, dcs[i])
		}
	}
	return out, nil
}

// FindNearest returns the active datacenter closest to coords and its distance in km.
// Datacenters are scanned in id order so ties go to the lowest id.
func (s *datacenterService) FindNearest(ctx context.Context, coords model.Coordinates) (*model.Datacenter, float64, error) {
	if !coords.Valid() {
		return nil, 0, validationError("coordinates out of range")
	}

	dcs, err := s.ListDatacenters(ctx)
	if err != nil {
		return nil, 0, err
	}

	var nearest *model.Datacenter
	best := math.Inf(1)
	for i := range dcs {
		if dcs[i].Status != model.DatacenterStatusActive {
			continue
		}
		if d := geo.Distance(coords, dcs[i].Coordinates); d < best {
			best = d
			nearest = &dcs[i]
		}
	}

	if nearest == nil {
		return nil, 0, fmt.Errorf("no active datacenter: %w", repository.ErrNotFound)
	}
	return nearest, best, nil
}

// CheckHealth returns the health snapshot of a datacenter, served from cache while fresh.
// A failing probe yields an unhealthy snapshot rather than an error.
func (s *datacenterService) CheckHealth(ctx context.Context, id string) (*model.DatacenterHealth, error) {
	if health, ok := s.cache.Get(id); ok {
		return &health, nil
	}

	dc, err := s.GetDatacenter(ctx, id)
	if err != nil {
		return nil, err
	}

	health, err := s.probeDatacenter(ctx, dc)
	if err != nil {
		s.logger.Warn("datacenter health probe failed",
			slog.String("datacenter_id", id),
			slog.String("error", err.Error()),
		)
		health = &model.DatacenterHealth{
			DatacenterID: id,
			Status:       dc.Status,
			Healthy:      false,
			Uptime:       s.uptime(id),
			LastCheck:    time.Now().UTC(),
			Message:      err.Error(),
		}
	}

	s.cache.Set(id, *health)
	return health, nil
}

// ProbeHealth probes a datacenter bypassing the cache and returns probe errors
func (s *datacenterService) ProbeHealth(ctx context.Context, id string) (*model.DatacenterHealth, error) {
	dc, err := s.GetDatacenter(ctx, id)
	if err != nil {
		return nil, err
	}

	health, err := s.probeDatacenter(ctx, dc)
	if err != nil {
		return nil, err
	}

	s.cache.Set(id, *health)
	return health, nil
}

func (s *datacenterService) probeDatacenter(ctx context.Context, dc *model.Datacenter) (*model.DatacenterHealth, error) {
	res, err := s.probe.Check(ctx, dc)
	if err != nil {
		s.recordProbe(dc.ID, false)
		return nil, fmt.Errorf("failed to probe datacenter %s: %w", dc.ID, err)
	}

	s.recordProbe(dc.ID, res.Healthy)

	return &model.DatacenterHealth{
		DatacenterID: dc.ID,
		Status:       dc.Status,
		Healthy:      res.Healthy,
		Uptime:       s.uptime(dc.ID),
		LastCheck:    time.Now().UTC(),
		Message:      res.Message,
	}, nil
}

func (s *datacenterService) recordProbe(id string, healthy bool) {
	s.probeMu.Lock()
	defer s.probeMu.Unlock()

	log, ok := s.probeStats[id]
	if !ok {
		log = history.NewRing[bool](s.probeLogs)
		s.probeStats[id] = log
	}
	log.Append(healthy)
}

// uptime is the percentage of healthy probes in the retained window
func (s *datacenterService) uptime(id string) float64 {
	s.probeMu.Lock()
	log, ok := s.probeStats[id]
	s.probeMu.Unlock()
	if !ok || log.Len() == 0 {
		return 0
	}

	probes := log.Items()
	healthy := 0
	for _, ok := range probes {
		if ok {
			healthy++
		}
	}
	return math.Round(float64(healthy)/float64(len(probes))*10000) / 100
}

// StatusOverview counts datacenters per status, in total and per region
func (s *datacenterService) StatusOverview(ctx context.Context) (*model.DatacenterStatusOverview, error) {
	dcs, err := s.ListDatacenters(ctx)
	if err != nil {
		return nil, err
	}

	overview := &model.DatacenterStatusOverview{
		Total:    len(dcs),
		ByRegion: make(map[string]map[string]int),
	}
	for _, dc := range dcs {
		switch dc.Status {
		case model.DatacenterStatusActive:
			overview.Active++
		case model.DatacenterStatusMaintenance:
			overview.Maintenance++
		case model.DatacenterStatusOffline:
			overview.Offline++
		}

		byStatus, ok := overview.ByRegion[dc.Region]
		if !ok {
			byStatus = make(map[string]int)
			overview.ByRegion[dc.Region] = byStatus
		}
		byStatus[string(dc.Status)]++
	}

	return overview, nil
}

// Statistics aggregates datacenters by region and country with capacity totals
func (s *datacenterService) Statistics(ctx context.Context) (*model.DatacenterStatistics, error) {
	dcs, err := s.ListDatacenters(ctx)
	if err != nil {
		return nil, err
	}

	stats := &model.DatacenterStatistics{
		Total:     len(dcs),
		ByRegion:  make(map[string]int),
		ByCountry: make(map[string]int),
	}
	for _, dc := range dcs {
		stats.ByRegion[dc.Region]++
		stats.ByCountry[dc.Country]++
		stats.TotalCapacity = stats.TotalCapacity.Add(dc.Capacity)
	}
	if len(dcs) > 0 {
		stats.AverageCapacity = stats.TotalCapacity.Scale(1 / float64(len(dcs)))
	}

	return stats, nil
}

func validateDatacenter(dc *model.Datacenter) error {
	if strings.TrimSpace(dc.Name) == "" {
		return validationError("datacenter name is required")
	}
	if !dc.Status.Valid() {
		return validationError("unknown datacenter status %q", dc.Status)
	}
	if !dc.Coordinates.Valid() {
		return validationError("coordinates out of range")
	}
	for _, r := range model.AllResources {
		if dc.Capacity.Get(r) < 0 {
			return validationError("capacity %s must not be negative", r)
		}
	}
	return nil
}

func sortDatacenters(dcs []model.Datacenter) {
	sort.Slice(dcs, func(i, j int) bool { return dcs[i].ID < dcs[j].ID })
}
