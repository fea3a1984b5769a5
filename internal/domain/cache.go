package domain

import (
	"context"
	"time"
)

// RateLimiter throttles bet placement per user before any ledger work starts.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted under a sliding
	// window of limit requests per window, counting the request when allowed.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed mutual exclusion, used so overlapping cron
// invocations never run the same arena's cycle reset twice.
type LockManager interface {
	// Acquire obtains the lock for key with a TTL and returns an unlock
	// function, or ErrLockHeld when another holder owns it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// SignalBus is the fire-and-forget event fabric: domain events and price
// updates are published here for the notifier and the WebSocket hub. Bus
// failures never affect the ledger transaction that produced the event.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
