package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/linkforge/credsync-server-go/internal/cache"
)

type countingSweeper struct {
	calls atomic.Int64
}

func (s *countingSweeper) Sweep(ctx context.Context) (int64, error) {
	s.calls.Add(1)
	return 3, nil
}

func TestSweepJob_RunsImmediatelyAndStops(t *testing.T) {
	sweeper := &countingSweeper{}
	job := NewSweepJob(sweeper, time.Hour)

	job.Start()

	assert.Eventually(t, func() bool {
		return sweeper.calls.Load() == 1
	}, time.Second, 10*time.Millisecond)

	job.Stop()
}

func TestSweepJob_EvictsExpiredEntries(t *testing.T) {
	store := cache.NewMemoryStore()
	ctx := context.Background()

	assert.NoError(t, store.Put(ctx, "live", []byte("a"), time.Hour))
	assert.NoError(t, store.Put(ctx, "stale", []byte("b"), -time.Second))

	job := NewSweepJob(store, time.Hour)
	job.sweep()

	assert.Equal(t, 1, store.Len())
}
