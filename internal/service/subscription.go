// Package service contains the business logic layer.
//
// This file implements subscription status resolution. The payment provider
// is the source of truth; nothing about the subscription is cached locally.
// Any failure to reach it degrades the account to the free plan instead of
// failing the request.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/dentalab/internal/billing"
	"github.com/DukeRupert/dentalab/internal/catalog"
	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/DukeRupert/dentalab/internal/metrics"
	"github.com/google/uuid"
)

// DefaultLookupTimeout bounds a single payment provider lookup.
const DefaultLookupTimeout = 5 * time.Second

// Subscription resolution results reported to metrics.
const (
	resolutionSubscribed = "subscribed"
	resolutionFree       = "free"
	resolutionDegraded   = "degraded"
)

// SubscriptionService resolves the plan an account is entitled to.
type SubscriptionService interface {
	// GetSubscriptionStatus never fails. When the provider cannot be reached
	// the result is the free plan with Degraded set and Cause populated.
	GetSubscriptionStatus(ctx context.Context, accountID uuid.UUID) domain.SubscriptionResult
}

// SubscriptionServiceConfig configures the resolver.
type SubscriptionServiceConfig struct {
	LookupTimeout time.Duration
}

type subscriptionService struct {
	accounts AccountService
	billing  billing.Service // nil when billing is not configured
	catalog  *catalog.Catalog
	timeout  time.Duration
	logger   *slog.Logger
}

// NewSubscriptionService creates a new SubscriptionService. billingSvc may
// be nil, in which case every account is on the free plan.
func NewSubscriptionService(accounts AccountService, billingSvc billing.Service, plans *catalog.Catalog, cfg SubscriptionServiceConfig, logger *slog.Logger) SubscriptionService {
	timeout := cfg.LookupTimeout
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &subscriptionService{
		accounts: accounts,
		billing:  billingSvc,
		catalog:  plans,
		timeout:  timeout,
		logger:   logger,
	}
}

func (s *subscriptionService) GetSubscriptionStatus(ctx context.Context, accountID uuid.UUID) domain.SubscriptionResult {
	const op = "subscription.get_status"

	free := s.catalog.Free()
	notSubscribed := domain.Ok(domain.SubscriptionRecord{AccountID: accountID}, free)

	if accountID == uuid.Nil {
		return s.degrade(op, accountID, errors.New("no account for request"))
	}
	if s.billing == nil {
		metrics.SubscriptionResolved(resolutionFree)
		return notSubscribed
	}

	customerID, err := s.accounts.GetCustomerID(ctx, accountID)
	if err != nil {
		return s.degrade(op, accountID, err)
	}
	if customerID == "" {
		metrics.SubscriptionResolved(resolutionFree)
		return notSubscribed
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sub, err := s.billing.LookupSubscription(lookupCtx, customerID)
	if err != nil {
		return s.degrade(op, accountID, err)
	}
	if sub == nil {
		metrics.SubscriptionResolved(resolutionFree)
		return notSubscribed
	}

	plan := s.catalog.Resolve(sub.PriceID)
	if !s.catalog.HasPriceID(sub.PriceID) {
		s.logger.Warn("active subscription has unknown price, using free plan",
			"op", op,
			"account_id", accountID,
			"price_id", sub.PriceID,
		)
	}

	periodEnd := sub.PeriodEnd
	record := domain.SubscriptionRecord{
		AccountID:            accountID,
		Subscribed:           true,
		ActivePriceID:        sub.PriceID,
		PeriodEnd:            &periodEnd,
		ProviderSubscription: sub.ID,
	}

	metrics.SubscriptionResolved(resolutionSubscribed)
	return domain.Ok(record, plan)
}

func (s *subscriptionService) degrade(op string, accountID uuid.UUID, cause error) domain.SubscriptionResult {
	s.logger.Warn("subscription lookup failed, falling back to free plan",
		"op", op,
		"account_id", accountID,
		"error", cause,
	)
	metrics.SubscriptionResolved(resolutionDegraded)
	return domain.Degraded(accountID, s.catalog.Free(), cause)
}
