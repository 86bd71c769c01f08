// Package service contains the business logic layer.
//
// This file implements the metered action handler: gate, run, then charge.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/DukeRupert/dentalab/internal/metrics"
	"github.com/DukeRupert/dentalab/internal/usage"
	"github.com/google/uuid"
)

// Action is the external work a metered request performs. It is called at
// most once, and only after the gate allows it.
type Action func(ctx context.Context) error

// MeteringService wraps external actions with entitlement checks and usage
// accounting.
type MeteringService interface {
	// Perform runs action if the account is under its limit for kind and
	// charges one unit of usage if the action succeeds. A blocked request
	// returns a *domain.LimitError and action is never called. A failed
	// action returns an EEXTERNAL error and usage is not charged.
	Perform(ctx context.Context, accountID uuid.UUID, kind domain.ResourceKind, action Action) (*domain.MeteredResult, error)
}

// MeteringConfig configures the metering service.
type MeteringConfig struct {
	Now func() time.Time
}

type meteringService struct {
	gate    EntitlementService
	counter usage.Counter
	now     func() time.Time
	logger  *slog.Logger
}

// NewMeteringService creates a new MeteringService.
func NewMeteringService(gate EntitlementService, counter usage.Counter, cfg MeteringConfig, logger *slog.Logger) MeteringService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &meteringService{
		gate:    gate,
		counter: counter,
		now:     now,
		logger:  logger,
	}
}

func (s *meteringService) Perform(ctx context.Context, accountID uuid.UUID, kind domain.ResourceKind, action Action) (*domain.MeteredResult, error) {
	const op = "metering.perform"

	// Gate and increment must hit the same counter even across midnight
	// on the last day of a month.
	month := domain.YearMonthOf(s.now())

	decision, err := s.gate.CheckAndReserveAt(ctx, accountID, kind, month)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		metrics.ActionBlocked(string(kind))
		var limit int64
		if decision.Limit != nil {
			limit = *decision.Limit
		}
		return nil, domain.LimitReached(op, kind, decision.Plan, decision.CurrentUsage, limit)
	}

	start := time.Now()
	if err := action(ctx); err != nil {
		metrics.ActionFailed(string(kind), time.Since(start))
		return nil, asExternalFailure(err, op, kind)
	}
	metrics.ActionSucceeded(string(kind), time.Since(start))

	key := domain.UsageKey{AccountID: accountID, Kind: kind, Month: month}

	// The work is done; a client disconnect must not skip the charge.
	result := &domain.MeteredResult{
		Kind:        kind,
		UsageLimit:  decision.Limit,
		IsUnlimited: decision.IsUnlimited(),
	}

	count, err := s.counter.Increment(context.WithoutCancel(ctx), key)
	if err != nil {
		metrics.IncrementFailed(string(kind))
		s.logger.Error("usage increment failed after successful action",
			"op", op,
			"account_id", accountID,
			"kind", kind,
			"month", month.String(),
			"error", err,
		)
		count, err = s.fallbackCount(context.WithoutCancel(ctx), key, decision)
		if err != nil {
			result.UsageUnknown = true
		}
	}
	result.UsageCount = count

	return result, nil
}

// fallbackCount estimates the post-action count when the increment failed.
// The gate never reads the counter for unlimited plans, so the count is
// fetched here instead.
func (s *meteringService) fallbackCount(ctx context.Context, key domain.UsageKey, decision domain.GateDecision) (int64, error) {
	if !decision.IsUnlimited() {
		return decision.CurrentUsage + 1, nil
	}
	used, err := s.counter.Get(ctx, key)
	if err != nil {
		s.logger.Warn("usage count unavailable",
			"account_id", key.AccountID,
			"kind", key.Kind,
			"error", err,
		)
		return 0, err
	}
	return used + 1, nil
}

// asExternalFailure keeps validation and external errors as they are and
// wraps everything else as EEXTERNAL.
func asExternalFailure(err error, op string, kind domain.ResourceKind) error {
	switch domain.ErrorCode(err) {
	case domain.EINVALID, domain.EEXTERNAL:
		return err
	}

	msg := fmt.Sprintf("%s generation failed", kind)
	var de *domain.Error
	if errors.As(err, &de) && de.Code != domain.EINTERNAL && de.Message != "" {
		msg = de.Message
	}
	return domain.ExternalFailure(err, op, msg)
}
