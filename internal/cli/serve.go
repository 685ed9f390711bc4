package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirychukyurii/dr-orchestrator/internal/api"
	"github.com/kirychukyurii/dr-orchestrator/internal/cache"
	"github.com/kirychukyurii/dr-orchestrator/internal/config"
	"github.com/kirychukyurii/dr-orchestrator/internal/healthcheck"
	"github.com/kirychukyurii/dr-orchestrator/internal/logger"
	"github.com/kirychukyurii/dr-orchestrator/internal/metrics"
	"github.com/kirychukyurii/dr-orchestrator/internal/model"
	"github.com/kirychukyurii/dr-orchestrator/internal/repository"
	"github.com/kirychukyurii/dr-orchestrator/internal/scheduler"
	"github.com/kirychukyurii/dr-orchestrator/internal/service"
	"github.com/kirychukyurii/dr-orchestrator/pkg/httpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestrator HTTP API and periodic sweeps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		log := logger.NewFromConfig(cfg.Log.Level, cfg.Log.Format)
		log.Info("configuration loaded",
			slog.String("storage", cfg.Storage.Backend),
			slog.String("probe", cfg.HealthCheck.Probe),
			slog.Int("datacenters", len(cfg.Datacenters)),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, log)
	},
}

// stores holds one repository per entity collection
type stores struct {
	datacenters repository.Store[model.Datacenter]
	failover    repository.Store[model.FailoverConfig]
	active      repository.ActiveDatacenterRepository
	links       repository.Store[model.NetworkLink]
	routes      repository.Store[model.GeographicRoute]
	incidents   repository.Store[model.Incident]
	plans       repository.Store[model.CapacityPlan]
	offerings   repository.Store[model.ServiceOffering]
}

// newStores creates the storage backend; the returned function releases it
func newStores(cfg *config.Config, log *slog.Logger) (*stores, func(), error) {
	if cfg.Storage.Backend != config.StorageEtcd {
		return &stores{
			datacenters: repository.NewMemoryStore[model.Datacenter](nil),
			failover:    repository.NewMemoryStore(func(c model.FailoverConfig) model.FailoverConfig { return c.Clone() }),
			active:      repository.NewMemoryActiveDatacenterRepository(),
			links:       repository.NewMemoryStore[model.NetworkLink](nil),
			routes:      repository.NewMemoryStore[model.GeographicRoute](nil),
			incidents:   repository.NewMemoryStore(func(i model.Incident) model.Incident { return i.Clone() }),
			plans:       repository.NewMemoryStore(func(p model.CapacityPlan) model.CapacityPlan { return p.Clone() }),
			offerings:   repository.NewMemoryStore[model.ServiceOffering](nil),
		}, func() {}, nil
	}

	client, err := repository.NewEtcdClient(cfg.Storage.Etcd, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	log.Info("etcd client initialized",
		slog.Any("endpoints", cfg.Storage.Etcd.Endpoints),
	)

	prefix := cfg.Storage.Etcd.Prefix
	return &stores{
		datacenters: repository.NewEtcdStore[model.Datacenter](client, prefix, "datacenters", log),
		failover:    repository.NewEtcdStore[model.FailoverConfig](client, prefix, "failover", log),
		active:      repository.NewEtcdActiveDatacenterRepository(client, prefix, log),
		links:       repository.NewEtcdStore[model.NetworkLink](client, prefix, "links", log),
		routes:      repository.NewEtcdStore[model.GeographicRoute](client, prefix, "routes", log),
		incidents:   repository.NewEtcdStore[model.Incident](client, prefix, "incidents", log),
		plans:       repository.NewEtcdStore[model.CapacityPlan](client, prefix, "capacity", log),
		offerings:   repository.NewEtcdStore[model.ServiceOffering](client, prefix, "offerings", log),
	}, func() {
		if err := client.Close(); err != nil {
			log.Error("failed to close etcd client", slog.String("error", err.Error()))
		}
	}, nil
}

// newProbe creates the datacenter health probe selected in the configuration
func newProbe(cfg *config.Config, log *slog.Logger) (healthcheck.Probe, error) {
	if cfg.HealthCheck.Probe != config.ProbeNomad {
		return healthcheck.NewStatusProbe(), nil
	}

	repo, err := repository.NewNomadRepository(cfg.HealthCheck.Clusters, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create nomad repository: %w", err)
	}

	log.Info("nomad clients initialized",
		slog.Int("clusters", len(repo.GetClusterNames())),
	)
	return healthcheck.NewNomadProbe(repo, cfg.HealthCheck.CircuitBreaker, log), nil
}

// serve wires every component and blocks until ctx is cancelled
func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	startedAt := time.Now()

	st, closeStores, err := newStores(cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	probe, err := newProbe(cfg, log)
	if err != nil {
		return err
	}

	m := metrics.New()

	dcService := service.NewDatacenterService(
		st.datacenters,
		probe,
		cache.New[model.DatacenterHealth]("health", cfg.Cache.TTL),
		cfg.HealthCheck.HistorySize,
		log,
	)
	failoverService := service.NewFailoverService(
		st.failover,
		st.active,
		dcService,
		service.NewSwitcher(st.active, log),
		cfg.Failover,
		m,
		log,
	)
	linkProbe := healthcheck.NewSimulated()
	linkService := service.NewLinkService(st.links, dcService, linkProbe, linkProbe, cfg.Network, m, log)
	routerService := service.NewRouterService(st.routes, dcService, cfg.Routing, m, log)
	catalogService := service.NewCatalogService(st.offerings, cfg.Catalog.DefaultOffering, log)
	capacityService := service.NewCapacityService(st.plans, dcService, catalogService, cfg.Capacity, m, log)
	incidentService := service.NewIncidentService(
		st.incidents,
		dcService,
		service.NewActionExecutor(dcService, failoverService, log),
		cfg.Incident,
		m,
		log,
	)

	// Safe deletes of a datacenter are refused while any of these still reference it
	dcService.AddReferrer(failoverService)
	dcService.AddReferrer(linkService)
	dcService.AddReferrer(routerService)
	dcService.AddReferrer(capacityService)

	seeder := &service.Seeder{
		Datacenters: dcService,
		Links:       linkService,
		Failover:    failoverService,
		Catalog:     catalogService,
		Logger:      log,
	}
	if err := seeder.Seed(ctx, cfg); err != nil {
		return err
	}

	sched := scheduler.New(m, log)
	if cfg.Failover.Enabled {
		if err := sched.Register(scheduler.Job{
			Name:     "failover-evaluation",
			Interval: cfg.Failover.Interval,
			Run:      failoverService.EvaluateAll,
		}); err != nil {
			return err
		}
	}
	if cfg.Network.Enabled {
		if err := sched.Register(scheduler.Job{
			Name:       "link-sweep",
			Interval:   cfg.Network.ProbeInterval,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := linkService.ProbeAll(ctx)
				return err
			},
		}); err != nil {
			return err
		}
	}
	if cfg.Incident.Enabled {
		if err := sched.Register(scheduler.Job{
			Name:     "incident-sweep",
			Interval: cfg.Incident.SweepInterval,
			Run:      incidentService.SweepActive,
		}); err != nil {
			return err
		}
	}

	log.Info("starting periodic jobs", slog.Any("jobs", sched.Jobs()))
	sched.Start(ctx)
	defer sched.Stop()

	handler := api.NewHandler(
		api.Services{
			Datacenters: dcService,
			Router:      routerService,
			Failover:    failoverService,
			Links:       linkService,
			Incidents:   incidentService,
			Capacity:    capacityService,
			Catalog:     catalogService,
		},
		api.StatusInfo{
			StorageBackend:    cfg.Storage.Backend,
			StartedAt:         startedAt,
			Jobs:              sched.Jobs,
			FailoverInterval:  cfg.Failover.Interval,
			LinkProbeInterval: cfg.Network.ProbeInterval,
			IncidentSweep:     cfg.Incident.SweepInterval,
		},
		m,
		cfg.Server.BasePath,
		log,
	)

	srv := httpserver.New(
		cfg.Server.Addr,
		handler.Router(),
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		cfg.Server.ShutdownTimeout,
		log,
	)

	log.Info("starting dr-orchestrator service")
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("http server failed: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
