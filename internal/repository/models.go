package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID               uuid.UUID
	Email            string
	Name             string
	StripeCustomerID sql.NullString
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type UsageCounter struct {
	AccountID    uuid.UUID
	ResourceKind string
	Year         int32
	Month        int32
	Count        int64
	UpdatedAt    time.Time
}
