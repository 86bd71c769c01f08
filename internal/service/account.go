// Package service contains the business logic layer.
//
// This file implements the account store used to map identities to payment
// provider customers.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/DukeRupert/dentalab/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// AccountService defines operations on account records.
type AccountService interface {
	// Ensure creates the account on first sight of a session and refreshes
	// the email on later visits.
	Ensure(ctx context.Context, params domain.EnsureAccountParams) (*domain.Account, error)

	// GetByID returns the account with the given ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	// GetCustomerID returns the payment provider customer ID, or "" when the
	// account has none (or does not exist).
	GetCustomerID(ctx context.Context, id uuid.UUID) (string, error)

	// SetCustomerID records the payment provider customer ID.
	SetCustomerID(ctx context.Context, id uuid.UUID, customerID string) error

	// GetByCustomerID looks an account up by payment provider customer ID.
	GetByCustomerID(ctx context.Context, customerID string) (*domain.Account, error)
}

// =============================================================================
// Implementation
// =============================================================================

type accountService struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(queries *repository.Queries, logger *slog.Logger) AccountService {
	return &accountService{
		queries: queries,
		logger:  logger,
	}
}

func (s *accountService) Ensure(ctx context.Context, params domain.EnsureAccountParams) (*domain.Account, error) {
	const op = "account.ensure"

	if params.ID == uuid.Nil {
		return nil, domain.Invalid(op, "account ID is required")
	}

	row, err := s.queries.UpsertAccount(ctx, repository.UpsertAccountParams{
		ID:    params.ID,
		Email: params.Email,
		Name:  params.Name,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to save account")
	}
	return toDomainAccount(row), nil
}

func (s *accountService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	const op = "account.get"

	row, err := s.queries.GetAccount(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "account", id.String())
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to get account")
	}
	return toDomainAccount(row), nil
}

func (s *accountService) GetCustomerID(ctx context.Context, id uuid.UUID) (string, error) {
	const op = "account.get_customer_id"

	customerID, err := s.queries.GetStripeCustomerID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", domain.Internal(err, op, "failed to get customer reference")
	}
	if !customerID.Valid {
		return "", nil
	}
	return customerID.String, nil
}

func (s *accountService) SetCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	const op = "account.set_customer_id"

	if customerID == "" {
		return domain.Invalid(op, "customer ID is required")
	}

	err := s.queries.SetStripeCustomerID(ctx, repository.SetStripeCustomerIDParams{
		ID:               id,
		StripeCustomerID: sql.NullString{String: customerID, Valid: true},
	})
	if err != nil {
		return domain.Internal(err, op, "failed to save customer reference")
	}

	s.logger.Info("customer reference recorded", "account_id", id, "customer_id", customerID)
	return nil
}

func (s *accountService) GetByCustomerID(ctx context.Context, customerID string) (*domain.Account, error) {
	const op = "account.get_by_customer_id"

	row, err := s.queries.GetAccountByStripeCustomerID(ctx, sql.NullString{String: customerID, Valid: true})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "account", customerID)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to get account")
	}
	return toDomainAccount(row), nil
}

func toDomainAccount(row repository.Account) *domain.Account {
	return &domain.Account{
		ID:               row.ID,
		Email:            row.Email,
		Name:             row.Name,
		StripeCustomerID: row.StripeCustomerID.String,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}
