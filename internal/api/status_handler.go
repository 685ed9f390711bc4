package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirychukyurii/dr-orchestrator/internal/model"
)

// GetStatus handles GET /api/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.serviceStatus(r.Context())
	if err != nil {
		h.logger.Error("failed to get service status",
			slog.String("error", err.Error()),
		)
		h.respondError(w, http.StatusInternalServerError, "failed to get service status")
		return
	}

	h.respondJSON(w, http.StatusOK, status)
}

// serviceStatus collects the counters of every service concurrently
func (h *Handler) serviceStatus(ctx context.Context) (*model.ServiceStatus, error) {
	status := &model.ServiceStatus{
		StorageBackend:     h.status.StorageBackend,
		HealthProbe:        h.datacenters.ProbeName(),
		StartedAt:          h.status.StartedAt,
		Uptime:             time.Since(h.status.StartedAt).Milliseconds(),
		SchedulerJobs:      []string{},
		FailoverInterval:   h.status.FailoverInterval.Milliseconds(),
		LinkProbeInterval:  h.status.LinkProbeInterval.Milliseconds(),
		IncidentSweepEvery: h.status.IncidentSweep.Milliseconds(),
	}
	if h.status.Jobs != nil {
		status.SchedulerJobs = h.status.Jobs()
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		overview, err := h.datacenters.StatusOverview(ctx)
		if err != nil {
			return err
		}
		status.Datacenters = overview.Total
		status.ActiveDatacenters = overview.Active
		return nil
	})

	g.Go(func() error {
		stats, err := h.failover.Statistics(ctx)
		if err != nil {
			return err
		}
		status.FailoverConfigs = stats.TotalConfigs
		status.FailedOverConfigs = stats.FailedOverConfigs
		return nil
	})

	g.Go(func() error {
		stats, err := h.links.Statistics(ctx)
		if err != nil {
			return err
		}
		status.NetworkLinks = stats.Total
		status.LinksDown = stats.ByStatus[string(model.LinkStatusDown)]
		return nil
	})

	g.Go(func() error {
		active, err := h.incidents.ActiveIncidents(ctx)
		if err != nil {
			return err
		}
		status.ActiveIncidents = len(active)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return status, nil
}
