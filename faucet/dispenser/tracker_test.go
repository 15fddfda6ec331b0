package dispenser

import (
	"fmt"
	"sync"
	"testing"

	"github.com/fuellabs/go-faucet/shared/clock"
	"github.com/fuellabs/go-faucet/testing/assert"
	"github.com/fuellabs/go-faucet/testing/require"
)

func TestTracker_CheckAndReserve(t *testing.T) {
	c := clock.NewFake(1000)
	tr := NewTracker(c)

	require.NoError(t, tr.CheckAndReserve("user:alice", 60))
	assert.Equal(t, true, tr.IsInProgress("user:alice"))

	// A second request for the same identity is rejected while the first is
	// still in flight.
	require.ErrorContains(t, ErrRateLimited.Error(), tr.CheckAndReserve("user:alice", 60))

	tr.Track("user:alice")
	assert.Equal(t, false, tr.IsInProgress("user:alice"))
	assert.Equal(t, true, tr.HasTracked("user:alice"))
	require.ErrorContains(t, ErrRateLimited.Error(), tr.CheckAndReserve("user:alice", 60))
}

func TestTracker_FailedDispenseCanRetry(t *testing.T) {
	c := clock.NewFake(1000)
	tr := NewTracker(c)

	require.NoError(t, tr.CheckAndReserve("addr:0xaa", 60))
	tr.RemoveInProgress("addr:0xaa")

	assert.Equal(t, false, tr.HasTracked("addr:0xaa"))
	require.NoError(t, tr.CheckAndReserve("addr:0xaa", 60))
}

func TestTracker_EvictsOutsideWindow(t *testing.T) {
	c := clock.NewFake(1000)
	tr := NewTracker(c)

	require.NoError(t, tr.CheckAndReserve("user:alice", 60))
	tr.Track("user:alice")

	// Still inside the window at exactly window seconds.
	c.Advance(60)
	require.ErrorContains(t, ErrRateLimited.Error(), tr.CheckAndReserve("user:alice", 60))

	c.Advance(1)
	require.NoError(t, tr.CheckAndReserve("user:alice", 60))
}

func TestTracker_ReinsertionSurvivesStaleEviction(t *testing.T) {
	c := clock.NewFake(1000)
	tr := NewTracker(c)

	require.NoError(t, tr.CheckAndReserve("user:alice", 60))
	tr.Track("user:alice")

	// Served again after the window; the stale queue entry from the first
	// serving must not evict the fresh record.
	c.Advance(61)
	require.NoError(t, tr.CheckAndReserve("user:alice", 60))
	tr.Track("user:alice")

	tr.EvictExpired(60)
	assert.Equal(t, true, tr.HasTracked("user:alice"))

	c.Advance(61)
	tr.EvictExpired(60)
	assert.Equal(t, false, tr.HasTracked("user:alice"))
}

func TestTracker_EvictionIsOrdered(t *testing.T) {
	c := clock.NewFake(1000)
	tr := NewTracker(c)

	for i := 0; i < 10; i++ {
		id := Identity(fmt.Sprintf("user:%d", i))
		require.NoError(t, tr.CheckAndReserve(id, 600))
		tr.Track(id)
		c.Advance(10)
	}

	// 100 seconds elapsed since user:0; a 95 second window drops exactly the
	// ten-seconds-apart entries older than that.
	tr.EvictExpired(95)
	assert.Equal(t, false, tr.HasTracked("user:0"))
	assert.Equal(t, true, tr.HasTracked("user:1"))
	assert.Equal(t, true, tr.HasTracked("user:9"))
}

func TestTracker_ConcurrentReserveAdmitsOne(t *testing.T) {
	c := clock.NewFake(1000)
	tr := NewTracker(c)

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tr.CheckAndReserve("user:alice", 60); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, admitted)
}
