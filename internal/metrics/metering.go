package metrics

import "time"

// Metered action outcomes.
const (
	StatusSucceeded = "succeeded"
	StatusBlocked   = "blocked"
	StatusFailed    = "failed"
)

// GateDecision records an entitlement gate outcome.
func GateDecision(kind string, allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "blocked"
	}
	GateDecisionsTotal.WithLabelValues(kind, decision).Inc()
}

// ActionSucceeded records a metered action whose external call succeeded.
func ActionSucceeded(kind string, duration time.Duration) {
	MeteredActionsTotal.WithLabelValues(kind, StatusSucceeded).Inc()
	MeteredActionDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ActionFailed records a metered action whose external call failed.
func ActionFailed(kind string, duration time.Duration) {
	MeteredActionsTotal.WithLabelValues(kind, StatusFailed).Inc()
	MeteredActionDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ActionBlocked records a metered action refused by the gate.
func ActionBlocked(kind string) {
	MeteredActionsTotal.WithLabelValues(kind, StatusBlocked).Inc()
}

// IncrementFailed records a usage increment lost after a successful action.
func IncrementFailed(kind string) {
	UsageIncrementFailuresTotal.WithLabelValues(kind).Inc()
}

// SubscriptionResolved records a subscription lookup result.
func SubscriptionResolved(result string) {
	SubscriptionResolutionsTotal.WithLabelValues(result).Inc()
}

// StorageUploaded records an object write; kind is "image", "thumbnail" or "pdf".
func StorageUploaded(kind string, err error) {
	status := StatusSucceeded
	if err != nil {
		status = StatusFailed
	}
	StorageUploadsTotal.WithLabelValues(kind, status).Inc()
}
