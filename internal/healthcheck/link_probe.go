package healthcheck

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kirychukyurii/dr-orchestrator/internal/model"
)

// LinkProbe measures the current state of a network link. Implementations must
// report one of active, degraded or down.
type LinkProbe interface {
	Probe(ctx context.Context, link *model.NetworkLink) (*model.LinkProbeResult, error)
}

// BandwidthMeter measures the bandwidth a link actually delivers, in Mbps
type BandwidthMeter interface {
	Measure(ctx context.Context, link *model.NetworkLink) (float64, error)
}

// Simulated draws link state from a fixed distribution: 80% active, 15% degraded
// and 5% down. It implements both LinkProbe and BandwidthMeter.
type Simulated struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulated creates a simulated link probe seeded from the clock
func NewSimulated() *Simulated {
	seed := uint64(time.Now().UnixNano())
	return NewSimulatedWithSeed(seed)
}

// NewSimulatedWithSeed creates a simulated link probe with a deterministic sequence
func NewSimulatedWithSeed(seed uint64) *Simulated {
	return &Simulated{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Probe draws a link state and the latency and bandwidth observed in it
func (s *Simulated) Probe(ctx context.Context, link *model.NetworkLink) (*model.LinkProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	roll := s.rnd.Float64()
	switch {
	case roll < 0.80:
		return &model.LinkProbeResult{
			Status:    model.LinkStatusActive,
			Latency:   link.Latency * (0.8 + 0.4*s.rnd.Float64()),
			Bandwidth: link.Bandwidth * (0.8 + 0.4*s.rnd.Float64()),
		}, nil
	case roll < 0.95:
		return &model.LinkProbeResult{
			Status:    model.LinkStatusDegraded,
			Latency:   link.Latency * (1 + 2*s.rnd.Float64()),
			Bandwidth: link.Bandwidth * (0.5 + 0.3*s.rnd.Float64()),
		}, nil
	default:
		return &model.LinkProbeResult{
			Status:    model.LinkStatusDown,
			Latency:   -1,
			Bandwidth: 0,
		}, nil
	}
}

// Measure reports between 50% and 100% of the declared bandwidth
func (s *Simulated) Measure(ctx context.Context, link *model.NetworkLink) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return link.Bandwidth * (0.5 + 0.5*s.rnd.Float64()), nil
}
