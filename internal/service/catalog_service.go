package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirychukyurii/dr-orchestrator/internal/model"
	"github.com/kirychukyurii/dr-orchestrator/internal/repository"
)

// UnitRateSource provides hourly unit prices per resource
type UnitRateSource interface {
	UnitRate(ctx context.Context, r model.Resource) (float64, bool)
}

// CatalogService defines the interface for the service offering catalog
type CatalogService interface {
	UnitRateSource

	CreateOffering(ctx context.Context, o *model.ServiceOffering) (*model.ServiceOffering, error)
	GetOffering(ctx context.Context, id string) (*model.ServiceOffering, error)
	UpdateOffering(ctx context.Context, id string, o *model.ServiceOffering) (*model.ServiceOffering, error)
	DeleteOffering(ctx context.Context, id string) error
	ListOfferings(ctx context.Context) ([]model.ServiceOffering, error)
	CalculateCost(ctx context.Context, id string, usage model.Resources, hours float64) (*model.CostEstimate, error)
}

// catalogService implements CatalogService interface
type catalogService struct {
	store           repository.Store[model.ServiceOffering]
	defaultOffering string
	logger          *slog.Logger
	mu              sync.Mutex
}

// NewCatalogService creates a new catalog service. defaultOffering names the
// offering whose prices the capacity planner uses.
func NewCatalogService(store repository.Store[model.ServiceOffering], defaultOffering string, logger *slog.Logger) CatalogService {
	return &catalogService{
		store:           store,
		defaultOffering: defaultOffering,
		logger:          logger,
	}
}

func (s *catalogService) CreateOffering(ctx context.Context, o *model.ServiceOffering) (*model.ServiceOffering, error) {
	if err := validateOffering(o); err != nil {
		return nil, err
	}
	if o.ID == "" {
		o.ID = newID("offering")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Get(ctx, o.ID); err == nil {
		return nil, conflictError("offering %s already exists", o.ID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check offering %s: %w", o.ID, err)
	}

	now := time.Now().UTC()
	o.Active = true
	o.CreatedAt = now
	o.UpdatedAt = now

	if err := s.store.Put(ctx, o.ID, *o); err != nil {
		return nil, fmt.Errorf("failed to store offering %s: %w", o.ID, err)
	}

	s.logger.Info("offering created", slog.String("offering_id", o.ID), slog.String("tier", o.Tier))
	return o, nil
}

func (s *catalogService) GetOffering(ctx context.Context, id string) (*model.ServiceOffering, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get offering %s: %w", id, err)
	}
	return &o, nil
}

// UpdateOffering replaces an offering, keeping its creation time
func (s *catalogService) UpdateOffering(ctx context.Context, id string, o *model.ServiceOffering) (*model.ServiceOffering, error) {
	if err := validateOffering(o); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get offering %s: %w", id, err)
	}

	o.ID = id
	o.CreatedAt = existing.CreatedAt
	o.UpdatedAt = time.Now().UTC()

	if err := s.store.Put(ctx, id, *o); err != nil {
		return nil, fmt.Errorf("failed to store offering %s: %w", id, err)
	}
	return o, nil
}

func (s *catalogService) DeleteOffering(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete offering %s: %w", id, err)
	}
	return nil
}

func (s *catalogService) ListOfferings(ctx context.Context) ([]model.ServiceOffering, error) {
	out, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list offerings: %w", err)
	}
	return out, nil
}

// CalculateCost sums unit price × usage × hours over every resource
func (s *catalogService) CalculateCost(ctx context.Context, id string, usage model.Resources, hours float64) (*model.CostEstimate, error) {
	if hours <= 0 {
		return nil, validationError("hours must be positive")
	}
	for _, r := range model.AllResources {
		if usage.Get(r) < 0 {
			return nil, validationError("usage of %s must not be negative", r)
		}
	}

	o, err := s.GetOffering(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Active {
		return nil, conflictError("offering %s is not active", id)
	}

	est := &model.CostEstimate{
		OfferingID: id,
		Usage:      usage,
		Hours:      hours,
	}
	for _, r := range model.AllResources {
		cost := o.UnitPrices.Get(r) * usage.Get(r) * hours
		est.Breakdown.Set(r, cost)
		est.Total += cost
	}
	return est, nil
}

// UnitRate returns the price of one unit of r from the default offering
func (s *catalogService) UnitRate(ctx context.Context, r model.Resource) (float64, bool) {
	if s.defaultOffering == "" {
		return 0, false
	}
	o, err := s.store.Get(ctx, s.defaultOffering)
	if err != nil || !o.Active {
		return 0, false
	}
	rate := o.UnitPrices.Get(r)
	return rate, rate > 0
}

func validateOffering(o *model.ServiceOffering) error {
	if strings.TrimSpace(o.Name) == "" {
		return validationError("offering name is required")
	}
	for _, r := range model.AllResources {
		if o.UnitPrices.Get(r) < 0 {
			return validationError("unit price of %s must not be negative", r)
		}
	}
	if o.SLA < 0 || o.SLA > 100 {
		return validationError("sla must be between 0 and 100")
	}
	if o.RTO < 0 || o.RPO < 0 {
		return validationError("rto and rpo must not be negative")
	}
	return nil
}
