// Package healthcheck provides the pluggable health signals for datacenters and
// network links.
package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sony/gobreaker"

	"github.com/kirychukyurii/dr-orchestrator/internal/config"
	"github.com/kirychukyurii/dr-orchestrator/internal/model"
	"github.com/kirychukyurii/dr-orchestrator/internal/repository"
)

// Result is the outcome of a single datacenter probe
type Result struct {
	Healthy bool
	Message string
}

// Probe reports whether a datacenter is able to serve traffic
type Probe interface {
	Name() string
	Check(ctx context.Context, dc *model.Datacenter) (*Result, error)
}

// StatusProbe treats the registry status as the health signal
type StatusProbe struct{}

// NewStatusProbe creates a probe that is healthy iff the datacenter is active
func NewStatusProbe() *StatusProbe {
	return &StatusProbe{}
}

// Name returns the probe name
func (p *StatusProbe) Name() string {
	return config.ProbeStatus
}

// Check reports the datacenter healthy when its status is active
func (p *StatusProbe) Check(_ context.Context, dc *model.Datacenter) (*Result, error) {
	if dc.Status == model.DatacenterStatusActive {
		return &Result{Healthy: true, Message: "datacenter is active"}, nil
	}
	return &Result{Healthy: false, Message: fmt.Sprintf("datacenter is %s", dc.Status)}, nil
}

// NomadProbe checks the Nomad cluster that runs a datacenter. Every cluster gets its
// own circuit breaker so an unreachable cluster is not hammered on every sweep.
type NomadProbe struct {
	repo     repository.NomadRepository
	settings config.CircuitBreakerConfig
	fallback Probe
	logger   *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewNomadProbe creates a probe backed by the configured Nomad clusters.
// Datacenters without a cluster fall back to the status probe.
func NewNomadProbe(repo repository.NomadRepository, settings config.CircuitBreakerConfig, logger *slog.Logger) *NomadProbe {
	return &NomadProbe{
		repo:     repo,
		settings: settings,
		fallback: NewStatusProbe(),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Name returns the probe name
func (p *NomadProbe) Name() string {
	return config.ProbeNomad
}

// Check reports the datacenter healthy when its cluster has a leader and a ready node
func (p *NomadProbe) Check(ctx context.Context, dc *model.Datacenter) (*Result, error) {
	if dc.Status != model.DatacenterStatusActive || !p.repo.HasCluster(dc.ID) {
		return p.fallback.Check(ctx, dc)
	}

	out, err := p.breaker(dc.ID).Execute(func() (interface{}, error) {
		return p.repo.ClusterHealth(ctx, dc.ID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &Result{Healthy: false, Message: "cluster circuit breaker is open"}, nil
		}
		return nil, fmt.Errorf("failed to check cluster health of %s: %w", dc.ID, err)
	}

	health := out.(*model.ClusterHealth)
	if !health.Healthy() {
		return &Result{
			Healthy: false,
			Message: fmt.Sprintf("cluster unhealthy: leader=%q ready=%d/%d", health.Leader, health.NodesReady, health.NodesTotal),
		}, nil
	}

	return &Result{
		Healthy: true,
		Message: fmt.Sprintf("cluster healthy: ready=%d/%d", health.NodesReady, health.NodesTotal),
	}, nil
}

func (p *NomadProbe) breaker(datacenter string) *gobreaker.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cb, ok := p.breakers[datacenter]; ok {
		return cb
	}

	threshold := p.settings.FailureThreshold
	if threshold == 0 {
		threshold = 3
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nomad-" + datacenter,
		MaxRequests: p.settings.MaxRequests,
		Interval:    p.settings.Interval,
		Timeout:     p.settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("nomad probe circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	p.breakers[datacenter] = cb
	return cb
}
