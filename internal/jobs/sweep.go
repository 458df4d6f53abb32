package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/linkforge/credsync-server-go/internal/cache"
)

// SweepJob periodically evicts expired entries from stores that do not expire
// keys on their own. Redis-backed stores do not register a Sweeper, so the
// job is only wired for the in-memory backend.
type SweepJob struct {
	sweeper  cache.Sweeper
	interval time.Duration
	done     chan struct{}
}

func NewSweepJob(sweeper cache.Sweeper, interval time.Duration) *SweepJob {
	return &SweepJob{
		sweeper:  sweeper,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *SweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("sweep job started")
}

func (j *SweepJob) Stop() {
	close(j.done)
	log.Info().Msg("sweep job stopped")
}

func (j *SweepJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *SweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := j.sweeper.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to sweep expired entries")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("swept expired entries")
	}
}
