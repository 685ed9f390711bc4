package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sync/errgroup"

	"github.com/kirychukyurii/dr-orchestrator/internal/concurrent"
	"github.com/kirychukyurii/dr-orchestrator/internal/config"
	"github.com/kirychukyurii/dr-orchestrator/internal/history"
	"github.com/kirychukyurii/dr-orchestrator/internal/metrics"
	"github.com/kirychukyurii/dr-orchestrator/internal/model"
	"github.com/kirychukyurii/dr-orchestrator/internal/repository"
)

const defaultProbeTimeout = 10 * time.Second

var errUnhealthy = errors.New("datacenter unhealthy")

// FailoverService defines the interface for failover operations
type FailoverService interface {
	CreateConfig(ctx context.Context, cfg *model.FailoverConfig) (*model.FailoverConfig, error)
	GetConfig(ctx context.Context, id string) (*model.FailoverConfig, error)
	UpdateConfig(ctx context.Context, id string, cfg *model.FailoverConfig) (*model.FailoverConfig, error)
	DeleteConfig(ctx context.Context, id string) error
	ListConfigs(ctx context.Context) ([]model.FailoverConfig, error)
	PerformAutoFailover(ctx context.Context, id string) (*model.FailoverResult, error)
	ManualFailover(ctx context.Context, id, reason string) (*model.FailoverResult, error)
	ManualFailback(ctx context.Context, id, reason string) (*model.FailoverResult, error)
	EvaluateAll(ctx context.Context) error
	ActiveDatacenter(ctx context.Context, id string) (*model.ActiveDatacenter, error)
	History(limit int) []model.FailoverEvent
	Statistics(ctx context.Context) (*model.FailoverStatistics, error)
	DatacenterReferences(ctx context.Context, datacenterID string) ([]string, error)
}

// failoverService implements FailoverService interface
type failoverService struct {
	store      repository.Store[model.FailoverConfig]
	activeRepo repository.ActiveDatacenterRepository
	dcService  DatacenterService
	switcher   Switcher
	retryDelay time.Duration
	history    *history.Ring[model.FailoverEvent]
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu        sync.Mutex
	switching map[string]struct{} // configs with a switch in flight
}

// NewFailoverService creates a new failover service
func NewFailoverService(
	store repository.Store[model.FailoverConfig],
	activeRepo repository.ActiveDatacenterRepository,
	dcService DatacenterService,
	switcher Switcher,
	cfg config.FailoverConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) FailoverService {
	return &failoverService{
		store:      store,
		activeRepo: activeRepo,
		dcService:  dcService,
		switcher:   switcher,
		retryDelay: cfg.RetryDelay,
		history:    history.NewRing[model.FailoverEvent](cfg.HistorySize),
		metrics:    m,
		logger:     logger,
		switching:  make(map[string]struct{}),
	}
}

// CreateConfig validates and stores a failover pair, active on the primary
func (s *failoverService) CreateConfig(ctx context.Context, cfg *model.FailoverConfig) (*model.FailoverConfig, error) {
	if err := s.validateConfig(ctx, cfg); err != nil {
		return nil, err
	}
	if cfg.ID == "" {
		cfg.ID = newID("failover")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Get(ctx, cfg.ID); err == nil {
		return nil, conflictError("failover config %s already exists", cfg.ID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check failover config %s: %w", cfg.ID, err)
	}

	now := time.Now().UTC()
	cfg.ActiveSide = model.SidePrimary
	cfg.LastActionAt = nil
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	if err := s.store.Put(ctx, cfg.ID, *cfg); err != nil {
		return nil, fmt.Errorf("failed to store failover config %s: %w", cfg.ID, err)
	}

	s.logger.Info("failover config created",
		slog.String("failover_config", cfg.ID),
		slog.String("primary", cfg.PrimaryDC),
		slog.String("secondary", cfg.SecondaryDC),
		slog.Bool("auto_failover", cfg.AutoFailover),
	)

	return cfg, nil
}

// GetConfig returns a failover config by id
func (s *failoverService) GetConfig(ctx context.Context, id string) (*model.FailoverConfig, error) {
	cfg, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get failover config %s: %w", id, err)
	}
	return &cfg, nil
}

// UpdateConfig replaces the settings of a pair. The active side and the last action
// are owned by the controller and survive the update.
func (s *failoverService) UpdateConfig(ctx context.Context, id string, cfg *model.FailoverConfig) (*model.FailoverConfig, error) {
	if err := s.validateConfig(ctx, cfg); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get failover config %s: %w", id, err)
	}

	next := cfg.Clone()
	next.ID = id
	next.ActiveSide = current.ActiveSide
	next.LastActionAt = current.LastActionAt
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = time.Now().UTC()

	if err := s.store.Put(ctx, id, next); err != nil {
		return nil, fmt.Errorf("failed to store failover config %s: %w", id, err)
	}
	return &next, nil
}

// DeleteConfig removes a failover pair
func (s *failoverService) DeleteConfig(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.switching[id]; busy {
		return conflictError("failover config %s has a switch in progress", id)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete failover config %s: %w", id, err)
	}

	s.logger.Info("failover config deleted", slog.String("failover_config", id))
	return nil
}

// ListConfigs returns every failover pair ordered by id
func (s *failoverService) ListConfigs(ctx context.Context) ([]model.FailoverConfig, error) {
	cfgs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list failover configs: %w", err)
	}
	return cfgs, nil
}

// PerformAutoFailover evaluates a pair and fails over or back when health requires it
func (s *failoverService) PerformAutoFailover(ctx context.Context, id string) (*model.FailoverResult, error) {
	cfg, err := s.GetConfig(ctx, id)
	if err != nil {
		return nil, err
	}

	if !cfg.AutoFailover {
		return &model.FailoverResult{
			Success: false,
			Action:  model.FailoverActionNone,
			Reason:  "auto failover is disabled",
		}, nil
	}

	if cfg.InCooldown(time.Now().UTC()) {
		return noAction(cooldownReason(cfg)), nil
	}

	primaryHealthy, secondaryHealthy, err := s.probePair(ctx, cfg)
	if err != nil {
		s.logger.Warn("failover health check failed",
			slog.String("failover_config", id),
			slog.String("error", err.Error()),
		)
		return &model.FailoverResult{
			Success: false,
			Action:  model.FailoverActionNone,
			Reason:  err.Error(),
		}, nil
	}

	action := model.FailoverActionNone
	var reason string
	switch {
	case cfg.ActiveSide != model.SideSecondary && !primaryHealthy && secondaryHealthy:
		action = model.FailoverActionFailover
		reason = fmt.Sprintf("primary datacenter %s is unhealthy", cfg.PrimaryDC)
	case cfg.ActiveSide == model.SideSecondary && primaryHealthy && !secondaryHealthy:
		action = model.FailoverActionFailback
		reason = fmt.Sprintf("secondary datacenter %s is unhealthy and primary %s recovered", cfg.SecondaryDC, cfg.PrimaryDC)
	}

	if action == model.FailoverActionNone {
		return &model.FailoverResult{
			Success:          true,
			Action:           model.FailoverActionNone,
			Reason:           "no action required",
			PrimaryHealthy:   &primaryHealthy,
			SecondaryHealthy: &secondaryHealthy,
		}, nil
	}

	result, err := s.execute(ctx, id, action, model.TriggerAutomatic, reason)
	if err != nil {
		return nil, err
	}
	result.PrimaryHealthy = &primaryHealthy
	result.SecondaryHealthy = &secondaryHealthy
	return result, nil
}

// ManualFailover moves traffic to the secondary datacenter unconditionally
func (s *failoverService) ManualFailover(ctx context.Context, id, reason string) (*model.FailoverResult, error) {
	if reason == "" {
		reason = "manual failover"
	}
	return s.execute(ctx, id, model.FailoverActionFailover, model.TriggerManual, reason)
}

// ManualFailback moves traffic back to the primary datacenter unconditionally
func (s *failoverService) ManualFailback(ctx context.Context, id, reason string) (*model.FailoverResult, error) {
	if reason == "" {
		reason = "manual failback"
	}
	return s.execute(ctx, id, model.FailoverActionFailback, model.TriggerManual, reason)
}

// EvaluateAll runs the automatic evaluation of every auto-failover pair.
// A failing pair never stops the evaluation of the others.
func (s *failoverService) EvaluateAll(ctx context.Context) error {
	cfgs, err := s.ListConfigs(ctx)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.AutoFailover {
			ids = append(ids, cfg.ID)
		}
	}

	outcomes := concurrent.Map(ctx, ids, func(id string) string { return id }, func(ctx context.Context, id string) (*model.FailoverResult, error) {
		return s.PerformAutoFailover(ctx, id)
	}, 0)

	for _, o := range outcomes {
		if o.Err != nil || o.Value.Action == model.FailoverActionNone {
			continue
		}
		s.logger.Info("automatic failover evaluation acted",
			slog.String("failover_config", o.Key),
			slog.String("action", string(o.Value.Action)),
			slog.Bool("success", o.Value.Success),
		)
	}

	return concurrent.Err(outcomes)
}

// probePair checks both datacenters of the pair concurrently
func (s *failoverService) probePair(ctx context.Context, cfg *model.FailoverConfig) (bool, bool, error) {
	var primaryHealthy, secondaryHealthy bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		healthy, err := s.probe(gctx, cfg.PrimaryDC, cfg.HealthChecks)
		primaryHealthy = healthy
		return err
	})
	g.Go(func() error {
		healthy, err := s.probe(gctx, cfg.SecondaryDC, cfg.HealthChecks)
		secondaryHealthy = healthy
		return err
	})

	if err := g.Wait(); err != nil {
		return false, false, err
	}
	return primaryHealthy, secondaryHealthy, nil
}

// probe checks a datacenter, retrying while it looks unhealthy. Each attempt is
// bounded by the configured timeout.
func (s *failoverService) probe(ctx context.Context, datacenterID string, hc model.HealthCheckSettings) (bool, error) {
	timeout := time.Duration(hc.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	retries := hc.Retries
	if retries < 0 {
		retries = 0
	}

	var healthy bool
	var probeErr error
	attempt := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		health, err := s.dcService.ProbeHealth(attemptCtx, datacenterID)
		if err != nil {
			probeErr = err
			return err
		}
		probeErr = nil
		healthy = health.Healthy
		if !healthy {
			return errUnhealthy
		}
		return nil
	}

	if retries == 0 {
		// WithMaxRetries treats 0 as unlimited
		_ = attempt()
	} else {
		b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryDelay), uint64(retries)), ctx)
		_ = backoff.Retry(attempt, b)
	}

	if probeErr != nil {
		return false, fmt.Errorf("failed to check health of %s: %w", datacenterID, probeErr)
	}
	if err := ctx.Err(); err != nil && !healthy {
		return false, fmt.Errorf("health check of %s interrupted: %w", datacenterID, err)
	}
	return healthy, nil
}

func cooldownReason(cfg *model.FailoverConfig) string {
	return fmt.Sprintf("cooldown: last action less than %ds ago", cfg.FailoverThreshold)
}

func noAction(reason string) *model.FailoverResult {
	return &model.FailoverResult{
		Success: true,
		Action:  model.FailoverActionNone,
		Reason:  reason,
	}
}

// execute switches the pair. The switch runs outside the service lock, bounded by the
// RTO. The new active side, the last action and the history entry are committed
// together and only a successful switch changes the active side. Automatic actions
// re-check the cooldown and the active side under the lock before switching.
func (s *failoverService) execute(ctx context.Context, id string, action model.FailoverAction, trigger model.FailoverTrigger, reason string) (*model.FailoverResult, error) {
	s.mu.Lock()
	if _, busy := s.switching[id]; busy {
		s.mu.Unlock()
		if trigger == model.TriggerAutomatic {
			return noAction("another switch is in progress"), nil
		}
		return nil, conflictError("failover config %s has a switch in progress", id)
	}
	cfg, err := s.store.Get(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to get failover config %s: %w", id, err)
	}
	if trigger == model.TriggerAutomatic {
		// the evaluation ran unlocked; another action may have committed since
		if cfg.InCooldown(time.Now().UTC()) {
			s.mu.Unlock()
			return noAction(cooldownReason(&cfg)), nil
		}
		if (action == model.FailoverActionFailover) == (cfg.ActiveSide == model.SideSecondary) {
			s.mu.Unlock()
			return noAction(fmt.Sprintf("pair already serves from %s", cfg.ActiveDC())), nil
		}
	}
	s.switching[id] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.switching, id)
		s.mu.Unlock()
	}()

	to, from, toDC, fromDC := model.SideSecondary, model.SidePrimary, cfg.SecondaryDC, cfg.PrimaryDC
	if action == model.FailoverActionFailback {
		to, from, toDC, fromDC = model.SidePrimary, model.SideSecondary, cfg.PrimaryDC, cfg.SecondaryDC
	}

	s.logger.Info("starting datacenter switch",
		slog.String("failover_config", id),
		slog.String("action", string(action)),
		slog.String("trigger", string(trigger)),
		slog.String("from", fromDC),
		slog.String("to", toDC),
		slog.String("reason", reason),
	)

	switchCtx := ctx
	if rto := cfg.RTO(); rto > 0 {
		var cancel context.CancelFunc
		switchCtx, cancel = context.WithTimeout(ctx, rto)
		defer cancel()
	}

	start := time.Now()
	switchErr := s.switcher.Switch(switchCtx, &cfg, to, trigger, reason)
	elapsed := time.Since(start)
	now := time.Now().UTC()

	event := model.FailoverEvent{
		ID:        newID("event"),
		ConfigID:  id,
		Action:    action,
		Trigger:   trigger,
		FromDC:    fromDC,
		ToDC:      toDC,
		Reason:    reason,
		Success:   switchErr == nil,
		Duration:  elapsed.Milliseconds(),
		Timestamp: now,
	}
	if switchErr != nil {
		event.Error = switchErr.Error()
	}

	s.mu.Lock()
	if switchErr == nil {
		current, err := s.store.Get(ctx, id)
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to reload failover config %s: %w", id, err)
		}
		current.ActiveSide = to
		current.LastActionAt = &now
		current.UpdatedAt = now
		if err := s.store.Put(ctx, id, current); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to store failover config %s: %w", id, err)
		}
	}
	s.history.Append(event)
	s.mu.Unlock()

	s.metrics.ObserveFailover(string(action), string(trigger), switchErr == nil)

	if switchErr != nil {
		s.logger.Error("datacenter switch failed",
			slog.String("failover_config", id),
			slog.String("action", string(action)),
			slog.Duration("duration", elapsed),
			slog.String("error", switchErr.Error()),
		)
		return &model.FailoverResult{
			Success: false,
			Action:  action,
			Reason:  switchErr.Error(),
			Event:   &event,
		}, nil
	}

	s.logger.Info("datacenter switch completed",
		slog.String("failover_config", id),
		slog.String("action", string(action)),
		slog.String("from_side", string(from)),
		slog.String("to_side", string(to)),
		slog.Duration("duration", elapsed),
	)

	return &model.FailoverResult{
		Success: true,
		Action:  action,
		Reason:  reason,
		Event:   &event,
	}, nil
}

// ActiveDatacenter returns the last recorded switch of a pair
func (s *failoverService) ActiveDatacenter(ctx context.Context, id string) (*model.ActiveDatacenter, error) {
	cfg, err := s.GetConfig(ctx, id)
	if err != nil {
		return nil, err
	}

	info, err := s.activeRepo.ReadActiveDatacenter(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		// nothing switched yet, the pair serves from its configured side
		return &model.ActiveDatacenter{
			ConfigID:   id,
			Datacenter: cfg.ActiveDC(),
			Side:       cfg.ActiveSide,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read active datacenter of %s: %w", id, err)
	}
	return info, nil
}

// History returns the most recent failover events, oldest first
func (s *failoverService) History(limit int) []model.FailoverEvent {
	return s.history.Last(limit)
}

// Statistics aggregates failover pairs and the failover history
func (s *failoverService) Statistics(ctx context.Context) (*model.FailoverStatistics, error) {
	cfgs, err := s.ListConfigs(ctx)
	if err != nil {
		return nil, err
	}

	stats := &model.FailoverStatistics{TotalConfigs: len(cfgs)}
	for _, cfg := range cfgs {
		if cfg.AutoFailover {
			stats.AutoFailoverConfig++
		}
		if cfg.ActiveSide == model.SideSecondary {
			stats.FailedOverConfigs++
		}
	}

	events := s.history.Items()
	stats.TotalEvents = len(events)
	var succeeded int
	var totalDuration int64
	for _, e := range events {
		switch e.Action {
		case model.FailoverActionFailover:
			stats.Failovers++
		case model.FailoverActionFailback:
			stats.Failbacks++
		}
		if e.Trigger == model.TriggerAutomatic {
			stats.Automatic++
		} else {
			stats.Manual++
		}
		if e.Success {
			succeeded++
		} else {
			stats.Failed++
		}
		totalDuration += e.Duration
	}
	if len(events) > 0 {
		stats.SuccessRate = float64(succeeded) / float64(len(events)) * 100
		stats.AverageDuration = totalDuration / int64(len(events))
	}

	return stats, nil
}

// DatacenterReferences lists the failover pairs using the datacenter
func (s *failoverService) DatacenterReferences(ctx context.Context, datacenterID string) ([]string, error) {
	cfgs, err := s.ListConfigs(ctx)
	if err != nil {
		return nil, err
	}

	var refs []string
	for _, cfg := range cfgs {
		if cfg.PrimaryDC == datacenterID || cfg.SecondaryDC == datacenterID {
			refs = append(refs, "failover config "+cfg.ID)
		}
	}
	return refs, nil
}

func (s *failoverService) validateConfig(ctx context.Context, cfg *model.FailoverConfig) error {
	if cfg.PrimaryDC == "" || cfg.SecondaryDC == "" {
		return validationError("primary and secondary datacenters are required")
	}
	if cfg.PrimaryDC == cfg.SecondaryDC {
		return validationError("primary and secondary datacenters must differ")
	}
	if cfg.FailoverThreshold <= 0 {
		return validationError("failover threshold must be positive")
	}
	if cfg.RecoveryTimeObjective <= 0 {
		return validationError("recovery time objective must be positive")
	}
	if cfg.RecoveryPointObjective < 0 {
		return validationError("recovery point objective must not be negative")
	}
	if cfg.HealthChecks.Retries < 0 || cfg.HealthChecks.Timeout < 0 || cfg.HealthChecks.Interval < 0 {
		return validationError("health check settings must not be negative")
	}

	for _, id := range []string{cfg.PrimaryDC, cfg.SecondaryDC} {
		if _, err := s.dcService.GetDatacenter(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return validationError("unknown datacenter %s", id)
			}
			return err
		}
	}
	return nil
}
