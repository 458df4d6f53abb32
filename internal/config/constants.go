package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const SweepJobInterval = 1 * time.Minute

// How long a consumed pairing code stays visible to status pollers after its
// logical expiry. Claim retention gives the poller a window to observe
// completion before the record vanishes.
const PairingCompletedRetention = 10 * time.Minute

// Claim endpoint throttling (codes are credentials; slow down guessing)
const (
	ClaimRateLimit  = 10
	ClaimRateWindow = 1 * time.Minute
)

// Status polling is a supported loop that may run until the code expires, so
// it gets its own budget sized for one poll per second.
const (
	StatusRateLimit  = 60
	StatusRateWindow = 1 * time.Minute
)
