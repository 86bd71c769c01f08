package repository

import (
	"context"

	"github.com/google/uuid"
)

const getUsageCount = `-- name: GetUsageCount :one
SELECT count
FROM usage_counters
WHERE account_id = $1 AND resource_kind = $2 AND year = $3 AND month = $4
`

type GetUsageCountParams struct {
	AccountID    uuid.UUID
	ResourceKind string
	Year         int32
	Month        int32
}

func (q *Queries) GetUsageCount(ctx context.Context, arg GetUsageCountParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, getUsageCount,
		arg.AccountID,
		arg.ResourceKind,
		arg.Year,
		arg.Month,
	)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const incrementUsageCount = `-- name: IncrementUsageCount :one
INSERT INTO usage_counters (account_id, resource_kind, year, month, count)
VALUES ($1, $2, $3, $4, 1)
ON CONFLICT (account_id, resource_kind, year, month) DO UPDATE
SET count = usage_counters.count + 1,
    updated_at = NOW()
RETURNING count
`

type IncrementUsageCountParams struct {
	AccountID    uuid.UUID
	ResourceKind string
	Year         int32
	Month        int32
}

// IncrementUsageCount adds one to the counter in a single statement,
// creating the row at 1 if it does not exist yet.
func (q *Queries) IncrementUsageCount(ctx context.Context, arg IncrementUsageCountParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, incrementUsageCount,
		arg.AccountID,
		arg.ResourceKind,
		arg.Year,
		arg.Month,
	)
	var count int64
	err := row.Scan(&count)
	return count, err
}
