package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirychukyurii/dr-orchestrator/internal/model"
	"github.com/kirychukyurii/dr-orchestrator/internal/repository"
)

// Switcher moves the traffic of a failover pair to one of its datacenters
type Switcher interface {
	Switch(ctx context.Context, cfg *model.FailoverConfig, to model.FailoverSide, trigger model.FailoverTrigger, reason string) error
}

// recordSwitcher publishes the active datacenter of a pair through the repository.
// With the etcd backend that record is what downstream routing watches.
type recordSwitcher struct {
	repo   repository.ActiveDatacenterRepository
	logger *slog.Logger
}

// NewSwitcher creates a switcher that records the active datacenter of every pair
func NewSwitcher(repo repository.ActiveDatacenterRepository, logger *slog.Logger) Switcher {
	return &recordSwitcher{
		repo:   repo,
		logger: logger,
	}
}

// Switch writes the new active datacenter of the pair
func (s *recordSwitcher) Switch(ctx context.Context, cfg *model.FailoverConfig, to model.FailoverSide, trigger model.FailoverTrigger, reason string) error {
	target := cfg.PrimaryDC
	if to == model.SideSecondary {
		target = cfg.SecondaryDC
	}

	info := &model.ActiveDatacenter{
		ConfigID:    cfg.ID,
		Datacenter:  target,
		Side:        to,
		ActivatedAt: time.Now().UTC(),
		ActivatedBy: string(trigger),
		Reason:      reason,
	}

	if err := s.repo.WriteActiveDatacenter(ctx, info); err != nil {
		return fmt.Errorf("failed to record active datacenter %s for %s: %w", target, cfg.ID, err)
	}

	s.logger.Info("switched active datacenter",
		slog.String("failover_config", cfg.ID),
		slog.String("datacenter", target),
		slog.String("side", string(to)),
		slog.String("trigger", string(trigger)),
		slog.String("reason", reason),
	)

	return nil
}
