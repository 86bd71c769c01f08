// Package service contains the business logic layer.
//
// This file implements the entitlement gate. The gate reads the current
// month's counter and compares it against the plan limit; it never writes.
// Two concurrent callers can both pass the gate at limit-1 and both be
// charged, so an account can end a month at most a few actions over its
// limit. This soft limit is intentional.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/DukeRupert/dentalab/internal/metrics"
	"github.com/DukeRupert/dentalab/internal/usage"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EntitlementService decides whether an account may perform a metered action.
type EntitlementService interface {
	// CheckAndReserve evaluates the gate for the current UTC month.
	// Despite the name nothing is reserved; usage is charged only after the
	// action succeeds.
	CheckAndReserve(ctx context.Context, accountID uuid.UUID, kind domain.ResourceKind) (domain.GateDecision, error)

	// CheckAndReserveAt evaluates the gate against a specific month.
	CheckAndReserveAt(ctx context.Context, accountID uuid.UUID, kind domain.ResourceKind, month domain.YearMonth) (domain.GateDecision, error)

	// Summary returns the account's plan and usage for every resource kind.
	Summary(ctx context.Context, accountID uuid.UUID) (*domain.UsageSummary, error)
}

// EntitlementConfig configures the gate.
type EntitlementConfig struct {
	// WarnPercent is the usage percentage reported as "approaching".
	WarnPercent int

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// =============================================================================
// Implementation
// =============================================================================

type entitlementService struct {
	subscriptions SubscriptionService
	counter       usage.Counter
	warnPercent   int
	now           func() time.Time
	logger        *slog.Logger
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(subscriptions SubscriptionService, counter usage.Counter, cfg EntitlementConfig, logger *slog.Logger) EntitlementService {
	warn := cfg.WarnPercent
	if warn <= 0 || warn > 100 {
		warn = domain.DefaultWarnPercent
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &entitlementService{
		subscriptions: subscriptions,
		counter:       counter,
		warnPercent:   warn,
		now:           now,
		logger:        logger,
	}
}

func (s *entitlementService) CheckAndReserve(ctx context.Context, accountID uuid.UUID, kind domain.ResourceKind) (domain.GateDecision, error) {
	return s.CheckAndReserveAt(ctx, accountID, kind, domain.YearMonthOf(s.now()))
}

func (s *entitlementService) CheckAndReserveAt(ctx context.Context, accountID uuid.UUID, kind domain.ResourceKind, month domain.YearMonth) (domain.GateDecision, error) {
	const op = "entitlement.check"

	if _, err := domain.ParseResourceKind(string(kind)); err != nil {
		return domain.GateDecision{}, domain.Invalid(op, err.Error())
	}

	sub := s.subscriptions.GetSubscriptionStatus(ctx, accountID)
	decision := domain.GateDecision{
		Kind:     kind,
		Plan:     sub.Plan.Key,
		Degraded: sub.Degraded,
	}

	limit := sub.Plan.Limit(kind)
	if limit == domain.Unlimited {
		decision.Allowed = true
		metrics.GateDecision(string(kind), true)
		return decision, nil
	}

	used, err := s.counter.Get(ctx, domain.UsageKey{AccountID: accountID, Kind: kind, Month: month})
	if err != nil {
		s.logger.Error("failed to read usage counter",
			"op", op,
			"account_id", accountID,
			"kind", kind,
			"month", month.String(),
			"error", err,
		)
		return domain.GateDecision{}, domain.Internal(err, op, "failed to read usage")
	}

	decision.CurrentUsage = used
	decision.Limit = &limit
	decision.Allowed = used < limit
	if !decision.Allowed {
		decision.Reason = domain.ReasonLimitReached
		s.logger.Info("metered action blocked",
			"account_id", accountID,
			"kind", kind,
			"plan", sub.Plan.Key,
			"used", used,
			"limit", limit,
		)
	}

	metrics.GateDecision(string(kind), decision.Allowed)
	return decision, nil
}

func (s *entitlementService) Summary(ctx context.Context, accountID uuid.UUID) (*domain.UsageSummary, error) {
	const op = "entitlement.summary"

	month := domain.YearMonthOf(s.now())
	sub := s.subscriptions.GetSubscriptionStatus(ctx, accountID)

	summary := &domain.UsageSummary{
		AccountID: accountID,
		Plan:      sub.Plan.Key,
		Month:     month,
		Degraded:  sub.Degraded,
		Resources: make([]domain.ResourceUsage, 0, len(domain.ResourceKinds)),
	}

	for _, kind := range domain.ResourceKinds {
		limit := sub.Plan.Limit(kind)
		if limit == domain.Unlimited {
			summary.Resources = append(summary.Resources, domain.ResourceUsage{
				Kind:        kind,
				IsUnlimited: true,
				Level:       domain.UsageLevelOK,
			})
			continue
		}

		used, err := s.counter.Get(ctx, domain.UsageKey{AccountID: accountID, Kind: kind, Month: month})
		if err != nil {
			s.logger.Error("failed to read usage counter",
				"op", op,
				"account_id", accountID,
				"kind", kind,
				"error", err,
			)
			summary.Degraded = true
			used = 0
		}

		l := limit
		summary.Resources = append(summary.Resources, domain.ResourceUsage{
			Kind:    kind,
			Used:    used,
			Limit:   &l,
			Percent: domain.UsagePercent(used, limit),
			Level:   domain.ClassifyUsage(used, limit, s.warnPercent),
		})
	}

	return summary, nil
}
