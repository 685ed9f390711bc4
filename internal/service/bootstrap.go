package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirychukyurii/dr-orchestrator/internal/config"
	"github.com/kirychukyurii/dr-orchestrator/internal/model"
)

// Seeder registers the entities declared in the configuration file
type Seeder struct {
	Datacenters DatacenterService
	Links       LinkService
	Failover    FailoverService
	Catalog     CatalogService
	Logger      *slog.Logger
}

// Seed creates every configured datacenter, offering, link and failover pair in that
// order. Entities that already exist, e.g. in a persistent store, are left untouched.
func (s *Seeder) Seed(ctx context.Context, cfg *config.Config) error {
	var created, skipped int

	track := func(kind, id string, err error) error {
		switch {
		case err == nil:
			created++
			return nil
		case errors.Is(err, ErrConflict):
			skipped++
			s.Logger.Debug("seed entity already exists", slog.String("kind", kind), slog.String("id", id))
			return nil
		default:
			return fmt.Errorf("failed to seed %s %s: %w", kind, id, err)
		}
	}

	for _, d := range cfg.Datacenters {
		_, err := s.Datacenters.CreateDatacenter(ctx, &model.Datacenter{
			ID:      d.ID,
			Name:    d.Name,
			Country: d.Country,
			Region:  d.Region,
			City:    d.City,
			Coordinates: model.Coordinates{
				Latitude:  d.Latitude,
				Longitude: d.Longitude,
			},
			Status:   model.DatacenterStatus(d.Status),
			Capacity: resources(d.Capacity),
		})
		if err := track("datacenter", d.ID, err); err != nil {
			return err
		}
	}

	if s.Catalog != nil {
		for _, o := range cfg.Offerings {
			_, err := s.Catalog.CreateOffering(ctx, &model.ServiceOffering{
				ID:          o.ID,
				Name:        o.Name,
				Tier:        o.Tier,
				Description: o.Description,
				UnitPrices:  resources(o.UnitPrices),
				SLA:         o.SLA,
				RTO:         o.RTO,
				RPO:         o.RPO,
			})
			if err := track("offering", o.ID, err); err != nil {
				return err
			}
		}
	}

	for _, l := range cfg.Links {
		_, err := s.Links.CreateLink(ctx, &model.NetworkLink{
			ID:        l.ID,
			SourceDC:  l.SourceDC,
			TargetDC:  l.TargetDC,
			Type:      model.LinkType(l.Type),
			Bandwidth: l.Bandwidth,
			Latency:   l.Latency,
			Provider:  l.Provider,
		})
		if err := track("link", l.ID, err); err != nil {
			return err
		}
	}

	for _, f := range cfg.FailoverConfigs {
		_, err := s.Failover.CreateConfig(ctx, &model.FailoverConfig{
			ID:                     f.ID,
			Name:                   f.Name,
			PrimaryDC:              f.PrimaryDC,
			SecondaryDC:            f.SecondaryDC,
			AutoFailover:           f.AutoFailover,
			FailoverThreshold:      f.FailoverThreshold,
			RecoveryTimeObjective:  f.RecoveryTimeObjective,
			RecoveryPointObjective: f.RecoveryPointObjective,
			HealthChecks: model.HealthCheckSettings{
				Interval: f.HealthCheckInterval,
				Timeout:  f.HealthCheckTimeout,
				Retries:  f.HealthCheckRetries,
			},
		})
		if err := track("failover config", f.ID, err); err != nil {
			return err
		}
	}

	s.Logger.Info("configuration seeded", slog.Int("created", created), slog.Int("skipped", skipped))
	return nil
}

func resources(r config.ResourcesConfig) model.Resources {
	return model.Resources{
		CPU:     r.CPU,
		Memory:  r.Memory,
		Storage: r.Storage,
		Network: r.Network,
	}
}
