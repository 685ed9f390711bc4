package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirychukyurii/dr-orchestrator/internal/metrics"
)

func newTestScheduler() *Scheduler {
	return New(metrics.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestScheduler_Register(t *testing.T) {
	s := newTestScheduler()
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Register(Job{Name: "a", Interval: time.Second, Run: noop}))
	assert.Error(t, s.Register(Job{Name: "a", Interval: time.Second, Run: noop}))
	assert.Error(t, s.Register(Job{Name: "", Interval: time.Second, Run: noop}))
	assert.Error(t, s.Register(Job{Name: "b", Interval: 0, Run: noop}))
	assert.Error(t, s.Register(Job{Name: "c", Interval: time.Second}))
	assert.Equal(t, []string{"a"}, s.Jobs())
}

func TestScheduler_RunsUntilStopped(t *testing.T) {
	s := newTestScheduler()
	var fast, failing int32

	require.NoError(t, s.Register(Job{
		Name:       "fast",
		Interval:   5 * time.Millisecond,
		RunOnStart: true,
		Run: func(context.Context) error {
			atomic.AddInt32(&fast, 1)
			return nil
		},
	}))
	require.NoError(t, s.Register(Job{
		Name:     "failing",
		Interval: 5 * time.Millisecond,
		Run: func(context.Context) error {
			atomic.AddInt32(&failing, 1)
			return errors.New("sweep failed")
		},
	}))

	s.Start(context.Background())
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&fast) >= 3 && atomic.LoadInt32(&failing) >= 3
	}, time.Second, time.Millisecond)
	s.Stop()

	after := atomic.LoadInt32(&fast)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&fast))

	// a stopped scheduler can be stopped again
	s.Stop()
}

func TestScheduler_RunTimeout(t *testing.T) {
	s := newTestScheduler()
	done := make(chan error, 1)

	require.NoError(t, s.Register(Job{
		Name:       "stuck",
		Interval:   time.Hour,
		Timeout:    10 * time.Millisecond,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			select {
			case done <- ctx.Err():
			default:
			}
			return ctx.Err()
		},
	}))

	s.Start(context.Background())
	defer s.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("job was not cancelled by its timeout")
	}
}

func TestScheduler_RegisterAfterStart(t *testing.T) {
	s := newTestScheduler()
	s.Start(context.Background())
	defer s.Stop()

	err := s.Register(Job{Name: "late", Interval: time.Second, Run: func(context.Context) error { return nil }})
	assert.Error(t, err)
}
