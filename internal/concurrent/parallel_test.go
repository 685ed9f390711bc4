package concurrent

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itoa(n int) string { return strconv.Itoa(n) }

func TestMap_PreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	outcomes := Map(context.Background(), items, itoa, func(_ context.Context, n int) (int, error) {
		return n * n, nil
	}, 2)

	require.Len(t, outcomes, len(items))
	for i, o := range outcomes {
		assert.Equal(t, itoa(items[i]), o.Key)
		assert.Equal(t, items[i]*items[i], o.Value)
		assert.NoError(t, o.Err)
	}
	assert.NoError(t, Err(outcomes))
}

func TestMap_RespectsLimit(t *testing.T) {
	var running, peak int32
	items := make([]int, 10)

	Map(context.Background(), items, itoa, func(_ context.Context, _ int) (struct{}, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return struct{}{}, nil
	}, 3)

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestMap_ReportsKeyedErrors(t *testing.T) {
	boom := errors.New("boom")
	outcomes := Map(context.Background(), []int{1, 2, 3}, itoa, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	}, 0)

	assert.ErrorIs(t, outcomes[1].Err, boom)
	assert.Equal(t, []string{"2: boom"}, Errors(outcomes))
	assert.EqualError(t, Err(outcomes), "1 of 3 items failed: 2: boom")
}

func TestMap_SkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	outcomes := Map(ctx, []int{1, 2, 3}, itoa, func(_ context.Context, n int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return n, nil
	}, 1)

	require.Len(t, outcomes, 3)
	assert.Len(t, Errors(outcomes), int(3-atomic.LoadInt32(&calls)))
	for _, o := range outcomes {
		if o.Err != nil {
			assert.ErrorIs(t, o.Err, context.Canceled)
		}
	}
}

func TestMap_Empty(t *testing.T) {
	outcomes := Map(context.Background(), []int{}, itoa, func(_ context.Context, n int) (int, error) {
		return n, nil
	}, 4)
	assert.Empty(t, outcomes)
	assert.Empty(t, Errors(outcomes))
}
