package repository

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottleRepository_EmptyState(t *testing.T) {
	repo := NewThrottleRepository(setupTestDB(t))
	ctx := t.Context()

	last, err := repo.LastAlertTime(ctx, "p-1")
	require.NoError(t, err)
	assert.Nil(t, last)

	count, err := repo.HourBucketCount(ctx, "p-1", time.Now().Truncate(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestThrottleRepository_IncrementAndRead(t *testing.T) {
	repo := NewThrottleRepository(setupTestDB(t))
	ctx := t.Context()

	hour := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	first := hour.Add(5 * time.Minute)
	second := hour.Add(20 * time.Minute)

	ok, err := repo.TryIncrementHourBucket(ctx, "p-1", hour, 0, nil, first)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.TryIncrementHourBucket(ctx, "p-1", hour, 0, nil, second)
	require.NoError(t, err)
	assert.True(t, ok)

	count, err := repo.HourBucketCount(ctx, "p-1", hour)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	last, err := repo.LastAlertTime(ctx, "p-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(second))

	// Other policies are isolated.
	count, err = repo.HourBucketCount(ctx, "p-2", hour)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestThrottleRepository_LastAlertAcrossBuckets(t *testing.T) {
	repo := NewThrottleRepository(setupTestDB(t))
	ctx := t.Context()

	h1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	h2 := h1.Add(time.Hour)
	_, err := repo.TryIncrementHourBucket(ctx, "p-1", h1, 0, nil, h1.Add(59*time.Minute))
	require.NoError(t, err)
	_, err = repo.TryIncrementHourBucket(ctx, "p-1", h2, 0, nil, h2.Add(time.Minute))
	require.NoError(t, err)

	last, err := repo.LastAlertTime(ctx, "p-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(h2.Add(time.Minute)))
}

func TestThrottleRepository_CapEnforced(t *testing.T) {
	repo := NewThrottleRepository(setupTestDB(t))
	ctx := t.Context()
	hour := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := range 3 {
		ok, err := repo.TryIncrementHourBucket(ctx, "p-1", hour, 3, nil, hour.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		assert.True(t, ok, "increment %d under cap", i)
	}
	ok, err := repo.TryIncrementHourBucket(ctx, "p-1", hour, 3, nil, hour.Add(10*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "cap reached")

	count, err := repo.HourBucketCount(ctx, "p-1", hour)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestThrottleRepository_CutoffEnforced(t *testing.T) {
	repo := NewThrottleRepository(setupTestDB(t))
	ctx := t.Context()
	hour := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	first := hour.Add(10 * time.Minute)

	ok, err := repo.TryIncrementHourBucket(ctx, "p-1", hour, 0, nil, first)
	require.NoError(t, err)
	require.True(t, ok)

	// Two minutes later with a five minute interval: cutoff is before first.
	now := first.Add(2 * time.Minute)
	cutoff := now.Add(-5 * time.Minute)
	ok, err = repo.TryIncrementHourBucket(ctx, "p-1", hour, 0, &cutoff, now)
	require.NoError(t, err)
	assert.False(t, ok)

	// Six minutes later the previous alert is old enough.
	now = first.Add(6 * time.Minute)
	cutoff = now.Add(-5 * time.Minute)
	ok, err = repo.TryIncrementHourBucket(ctx, "p-1", hour, 0, &cutoff, now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestThrottleRepository_ConcurrentCap(t *testing.T) {
	repo := NewThrottleRepository(setupTestDB(t))
	ctx := t.Context()
	hour := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	var acquired atomic.Int32
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			ok, err := repo.TryIncrementHourBucket(ctx, "p-1", hour, 5, nil, hour.Add(time.Duration(i)*time.Second))
			assert.NoError(t, err)
			if ok {
				acquired.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(5), acquired.Load())
}

func TestThrottleRepository_Decrement(t *testing.T) {
	repo := NewThrottleRepository(setupTestDB(t))
	ctx := t.Context()
	hour := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := repo.TryIncrementHourBucket(ctx, "p-1", hour, 0, nil, hour)
	require.NoError(t, err)
	require.NoError(t, repo.DecrementHourBucket(ctx, "p-1", hour))
	require.NoError(t, repo.DecrementHourBucket(ctx, "p-1", hour))

	count, err := repo.HourBucketCount(ctx, "p-1", hour)
	require.NoError(t, err)
	assert.Zero(t, count, "count never goes negative")
}
