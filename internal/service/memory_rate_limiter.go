package service

import (
	"context"
	"sync"
	"time"
)

const (
	limiterMaxEntries      = 10000
	limiterCleanupInterval = time.Minute
	limiterEntryTTL        = 5 * time.Minute
)

type limiterEntry struct {
	timestamps []time.Time
	lastAccess time.Time
}

// MemoryRateLimiter is the single-process Limiter used when the cache backend
// is in-memory and no Redis connection exists. Same sliding window semantics
// as the Redis limiter, scoped to one instance.
type MemoryRateLimiter struct {
	mu          sync.Mutex
	store       map[string]*limiterEntry
	lastCleanup time.Time
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		store:       make(map[string]*limiterEntry),
		lastCleanup: time.Now(),
	}
}

func (rl *MemoryRateLimiter) cleanup(now time.Time) {
	if now.Sub(rl.lastCleanup) < limiterCleanupInterval {
		return
	}
	rl.lastCleanup = now

	for key, entry := range rl.store {
		if now.Sub(entry.lastAccess) > limiterEntryTTL {
			delete(rl.store, key)
		}
	}

	// Hard cap so a scan of the code space cannot grow the map unbounded.
	if len(rl.store) > limiterMaxEntries {
		drop := len(rl.store) / 5
		for key := range rl.store {
			delete(rl.store, key)
			drop--
			if drop <= 0 {
				break
			}
		}
	}
}

func (rl *MemoryRateLimiter) CheckLimit(
	_ context.Context,
	key string,
	limit int,
	window time.Duration,
) (allowed bool, resetAt time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.cleanup(now)

	entry, exists := rl.store[key]
	if !exists {
		entry = &limiterEntry{}
		rl.store[key] = entry
	}
	entry.lastAccess = now

	windowStart := now.Add(-window)
	kept := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	entry.timestamps = kept

	if len(entry.timestamps) >= limit {
		return false, entry.timestamps[0].Add(window)
	}

	entry.timestamps = append(entry.timestamps, now)
	return true, now.Add(window)
}
