package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/DukeRupert/dentalab/internal/repository"
)

// PostgresCounter stores counters in the usage_counters table.
// Increments use INSERT ... ON CONFLICT DO UPDATE so the add happens inside
// the database.
type PostgresCounter struct {
	queries *repository.Queries
}

// NewPostgresCounter creates a PostgresCounter.
func NewPostgresCounter(queries *repository.Queries) *PostgresCounter {
	return &PostgresCounter{queries: queries}
}

// Get returns the count for key, treating a missing row as zero.
func (c *PostgresCounter) Get(ctx context.Context, key domain.UsageKey) (int64, error) {
	count, err := c.queries.GetUsageCount(ctx, repository.GetUsageCountParams{
		AccountID:    key.AccountID,
		ResourceKind: string(key.Kind),
		Year:         int32(key.Month.Year),
		Month:        int32(key.Month.Month),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get usage %s/%s/%s: %w", key.AccountID, key.Kind, key.Month, err)
	}
	return count, nil
}

// Increment atomically adds one to the count for key.
func (c *PostgresCounter) Increment(ctx context.Context, key domain.UsageKey) (int64, error) {
	count, err := c.queries.IncrementUsageCount(ctx, repository.IncrementUsageCountParams{
		AccountID:    key.AccountID,
		ResourceKind: string(key.Kind),
		Year:         int32(key.Month.Year),
		Month:        int32(key.Month.Month),
	})
	if err != nil {
		return 0, fmt.Errorf("increment usage %s/%s/%s: %w", key.AccountID, key.Kind, key.Month, err)
	}
	return count, nil
}
