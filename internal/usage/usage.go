// Package usage implements the per-account monthly usage counters.
//
// Counters are keyed by (account, resource kind, calendar month) and live in
// durable storage. Increment is always a single atomic storage operation so
// concurrent requests for the same key never lose updates; nothing here reads
// a value and writes it back.
package usage

import (
	"context"

	"github.com/DukeRupert/dentalab/internal/domain"
)

// Counter reads and atomically increments usage counters.
type Counter interface {
	// Get returns the count for key, or 0 if the key has never been incremented.
	Get(ctx context.Context, key domain.UsageKey) (int64, error)

	// Increment adds one to the count for key and returns the new value.
	// The first increment of a key creates it at 1.
	Increment(ctx context.Context, key domain.UsageKey) (int64, error)
}

// Backend names accepted by configuration.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)
