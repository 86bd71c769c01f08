package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionRecord mirrors the payment provider's view of an account's
// subscription. It is read per request and never persisted locally.
type SubscriptionRecord struct {
	AccountID            uuid.UUID
	Subscribed           bool
	ActivePriceID        string     // empty when not subscribed
	PeriodEnd            *time.Time // nil when not subscribed
	ProviderSubscription string     // provider subscription id, if any
}

// SubscriptionResult is the outcome of resolving an account's plan.
//
// When Degraded is true the resolver could not reach the payment provider
// (or the caller had no usable session) and fell back to the free plan;
// Cause holds the underlying error.
type SubscriptionResult struct {
	Record   SubscriptionRecord
	Plan     Plan
	Degraded bool
	Cause    error
}

// Ok builds a non-degraded SubscriptionResult.
func Ok(record SubscriptionRecord, plan Plan) SubscriptionResult {
	return SubscriptionResult{Record: record, Plan: plan}
}

// Degraded builds a SubscriptionResult that fell back to the free plan.
func Degraded(accountID uuid.UUID, free Plan, cause error) SubscriptionResult {
	return SubscriptionResult{
		Record:   SubscriptionRecord{AccountID: accountID},
		Plan:     free,
		Degraded: true,
		Cause:    cause,
	}
}
