package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const upsertAccount = `-- name: UpsertAccount :one
INSERT INTO accounts (id, email, name)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE
SET email = EXCLUDED.email,
    updated_at = CASE WHEN accounts.email <> EXCLUDED.email THEN NOW() ELSE accounts.updated_at END
RETURNING id, email, name, stripe_customer_id, created_at, updated_at
`

type UpsertAccountParams struct {
	ID    uuid.UUID
	Email string
	Name  string
}

func (q *Queries) UpsertAccount(ctx context.Context, arg UpsertAccountParams) (Account, error) {
	row := q.db.QueryRowContext(ctx, upsertAccount, arg.ID, arg.Email, arg.Name)
	var i Account
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Name,
		&i.StripeCustomerID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getAccount = `-- name: GetAccount :one
SELECT id, email, name, stripe_customer_id, created_at, updated_at
FROM accounts
WHERE id = $1
`

func (q *Queries) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	row := q.db.QueryRowContext(ctx, getAccount, id)
	var i Account
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Name,
		&i.StripeCustomerID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getStripeCustomerID = `-- name: GetStripeCustomerID :one
SELECT stripe_customer_id
FROM accounts
WHERE id = $1
`

func (q *Queries) GetStripeCustomerID(ctx context.Context, id uuid.UUID) (sql.NullString, error) {
	row := q.db.QueryRowContext(ctx, getStripeCustomerID, id)
	var stripeCustomerID sql.NullString
	err := row.Scan(&stripeCustomerID)
	return stripeCustomerID, err
}

const setStripeCustomerID = `-- name: SetStripeCustomerID :exec
UPDATE accounts
SET stripe_customer_id = $2, updated_at = NOW()
WHERE id = $1
`

type SetStripeCustomerIDParams struct {
	ID               uuid.UUID
	StripeCustomerID sql.NullString
}

func (q *Queries) SetStripeCustomerID(ctx context.Context, arg SetStripeCustomerIDParams) error {
	_, err := q.db.ExecContext(ctx, setStripeCustomerID, arg.ID, arg.StripeCustomerID)
	return err
}

const getAccountByStripeCustomerID = `-- name: GetAccountByStripeCustomerID :one
SELECT id, email, name, stripe_customer_id, created_at, updated_at
FROM accounts
WHERE stripe_customer_id = $1
`

func (q *Queries) GetAccountByStripeCustomerID(ctx context.Context, stripeCustomerID sql.NullString) (Account, error) {
	row := q.db.QueryRowContext(ctx, getAccountByStripeCustomerID, stripeCustomerID)
	var i Account
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Name,
		&i.StripeCustomerID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
