package fanout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_FillsEverySlotInOrder(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i * 10
	}

	results := Run(context.Background(), items, 3, func(ctx context.Context, i int, v int) (int, error) {
		// finish in reverse order to prove slots are not arrival-ordered
		time.Sleep(time.Duration(len(items)-i) * time.Millisecond)
		return v + 1, nil
	})

	require.Len(t, results, len(items))
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.True(t, r.OK())
		assert.Equal(t, items[i]+1, r.Value)
	}
}

func TestRun_BoundsConcurrency(t *testing.T) {
	const workers = 4
	var inFlight, peak atomic.Int32

	items := make([]struct{}, 40)
	results := Run(context.Background(), items, workers, func(ctx context.Context, i int, _ struct{}) (int, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return i, nil
	})

	assert.Len(t, results, 40)
	assert.LessOrEqual(t, peak.Load(), int32(workers))
	assert.Greater(t, peak.Load(), int32(1), "work should overlap")
}

func TestRun_FailureIsIsolated(t *testing.T) {
	boom := errors.New("boom")
	items := []string{"a", "b", "c", "d", "e"}

	results := Run(context.Background(), items, 2, func(ctx context.Context, i int, s string) (string, error) {
		if s == "c" {
			return "", boom
		}
		return s + s, nil
	})

	require.Len(t, results, 5)
	assert.ErrorIs(t, results[2].Err, boom)
	assert.Equal(t, []string{"aa", "bb", "dd", "ee"}, Values(results))

	failed := Errors(results)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].Index)
}

func TestRun_PanicIsCaptured(t *testing.T) {
	results := Run(context.Background(), []int{1, 2, 3}, 2, func(ctx context.Context, i int, v int) (int, error) {
		if v == 2 {
			panic("bad item")
		}
		return v, nil
	})

	require.Error(t, results[1].Err)
	assert.Contains(t, results[1].Err.Error(), "bad item")
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[2].Err)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	results := Run(ctx, []int{1, 2, 3}, 2, func(ctx context.Context, i int, v int) (int, error) {
		calls.Add(1)
		return v, nil
	})

	assert.Equal(t, int32(0), calls.Load())
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestRun_CancelMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	items := make([]int, 20)
	results := Run(ctx, items, 1, func(ctx context.Context, i int, _ int) (int, error) {
		if i == 2 {
			cancel()
		}
		return i, nil
	})

	require.Len(t, results, 20)
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[2].Err, "a started item finishes")
	assert.ErrorIs(t, results[19].Err, context.Canceled)
}

func TestRun_Progress(t *testing.T) {
	var mu sync.Mutex
	var seen []int

	Run(context.Background(), make([]int, 6), 3, func(ctx context.Context, i int, _ int) (int, error) {
		return 0, nil
	}, WithProgress(func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 6, total)
		seen = append(seen, done)
	}))

	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6}, seen)
}

func TestRun_EmptyAndZeroWorkers(t *testing.T) {
	assert.Empty(t, Run(context.Background(), []int{}, 4, func(ctx context.Context, i int, v int) (int, error) {
		return v, nil
	}))

	results := Run(context.Background(), []int{7}, 0, func(ctx context.Context, i int, v int) (int, error) {
		return v, nil
	})
	require.Len(t, results, 1)
	assert.Equal(t, 7, results[0].Value)
}
