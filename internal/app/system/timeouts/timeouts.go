// Package timeouts centralizes the deadlines applied to outbound calls made
// while serving a request.
//
//   - Ping: health checks
//   - Store: single profile or state document reads and writes
//   - Identity: one round trip to the identity provider or an OAuth provider
package timeouts

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing     = 2 * time.Second
	DefaultStore    = 5 * time.Second
	DefaultIdentity = 10 * time.Second
)

var (
	mu       sync.RWMutex
	ping     = DefaultPing
	store    = DefaultStore
	identity = DefaultIdentity
)

// Ping returns the timeout for connectivity checks.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Store returns the timeout for document store operations.
func Store() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return store
}

// Identity returns the timeout for identity provider round trips.
func Identity() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return identity
}

// Config overrides the defaults. Zero fields keep the current value.
type Config struct {
	Ping     time.Duration
	Store    time.Duration
	Identity time.Duration
}

// Configure applies cfg and logs the effective values.
func Configure(cfg Config, logger *zap.Logger) {
	mu.Lock()
	if cfg.Ping > 0 {
		ping = cfg.Ping
	}
	if cfg.Store > 0 {
		store = cfg.Store
	}
	if cfg.Identity > 0 {
		identity = cfg.Identity
	}
	p, s, i := ping, store, identity
	mu.Unlock()

	if logger != nil {
		logger.Info("timeouts configured",
			zap.Duration("ping", p),
			zap.Duration("store", s),
			zap.Duration("identity", i))
	}
}
