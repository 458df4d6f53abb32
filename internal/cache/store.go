// Package cache provides an expiring key-value store with atomic one-time
// claim semantics. Pairing codes and ephemeral tokens live here, never in
// Postgres: the memory implementation serves single-instance and test use,
// the redis implementation is the multi-instance deployment target.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for absent keys. Expired entries are treated
	// as absent regardless of whether they were physically deleted yet.
	ErrNotFound = errors.New("cache: entry not found")

	// ErrAlreadyClaimed is returned by Claim for an entry that was claimed
	// before. Exactly one of any number of concurrent claimers receives the
	// value; every other one receives this error.
	ErrAlreadyClaimed = errors.New("cache: entry already claimed")
)

// Entry is a read snapshot of a stored value. ClaimedAt doubles as the
// "consumed" marker: a successful Claim stamps it in the same atomic step
// that grants the value, so readers can never observe a claimed entry
// without its claim timestamp.
type Entry struct {
	Value     []byte
	ClaimedAt *time.Time
	ExpiresAt time.Time
}

type Store interface {
	// Put stores value under key for ttl, overwriting any previous entry
	// (including its claim marker).
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the entry for key. Claimed entries remain readable until
	// they expire; this is what lets status pollers observe completion.
	Get(ctx context.Context, key string) (*Entry, error)

	// Claim atomically reads the value and marks the entry consumed.
	Claim(ctx context.Context, key string) ([]byte, error)

	// Delete removes the entry immediately.
	Delete(ctx context.Context, key string) error
}

// Sweeper is implemented by stores that need periodic eviction of expired
// entries. Redis expires keys natively; the memory store relies on the
// background sweep job.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}
