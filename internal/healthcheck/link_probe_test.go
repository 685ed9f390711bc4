package healthcheck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirychukyurii/dr-orchestrator/internal/model"
)

func TestSimulated_ProbeRanges(t *testing.T) {
	sim := NewSimulatedWithSeed(42)
	link := &model.NetworkLink{ID: "l-1", Bandwidth: 1000, Latency: 10}

	counts := map[model.LinkStatus]int{}
	for i := 0; i < 5000; i++ {
		res, err := sim.Probe(context.Background(), link)
		require.NoError(t, err)
		counts[res.Status]++

		switch res.Status {
		case model.LinkStatusActive:
			assert.InDelta(t, 10, res.Latency, 2.0001)
			assert.InDelta(t, 1000, res.Bandwidth, 200.0001)
		case model.LinkStatusDegraded:
			assert.GreaterOrEqual(t, res.Latency, 10.0)
			assert.LessOrEqual(t, res.Latency, 30.0)
			assert.GreaterOrEqual(t, res.Bandwidth, 500.0)
			assert.LessOrEqual(t, res.Bandwidth, 800.0)
		case model.LinkStatusDown:
			assert.Equal(t, -1.0, res.Latency)
			assert.Zero(t, res.Bandwidth)
		default:
			t.Fatalf("unexpected status %q", res.Status)
		}
	}

	// loose bounds around 80/15/5
	assert.InDelta(t, 4000, counts[model.LinkStatusActive], 250)
	assert.InDelta(t, 750, counts[model.LinkStatusDegraded], 200)
	assert.InDelta(t, 250, counts[model.LinkStatusDown], 120)
}

func TestSimulated_Deterministic(t *testing.T) {
	link := &model.NetworkLink{ID: "l-1", Bandwidth: 1000, Latency: 10}
	a := NewSimulatedWithSeed(7)
	b := NewSimulatedWithSeed(7)

	for i := 0; i < 20; i++ {
		ra, _ := a.Probe(context.Background(), link)
		rb, _ := b.Probe(context.Background(), link)
		assert.Equal(t, ra, rb)
	}
}

func TestSimulated_Measure(t *testing.T) {
	sim := NewSimulatedWithSeed(1)
	link := &model.NetworkLink{Bandwidth: 1000}

	for i := 0; i < 100; i++ {
		v, err := sim.Measure(context.Background(), link)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 500.0)
		assert.LessOrEqual(t, v, 1000.0)
	}
}

func TestSimulated_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSimulatedWithSeed(1).Probe(ctx, &model.NetworkLink{})
	assert.ErrorIs(t, err, context.Canceled)
}
