package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReasonLimitReached is reported to clients when the gate blocks an action.
const ReasonLimitReached = "limit_reached"

// DefaultWarnPercent is the usage percentage at which clients show an
// "approaching limit" banner.
const DefaultWarnPercent = 70

// YearMonth identifies a calendar month in UTC.
type YearMonth struct {
	Year  int
	Month time.Month
}

// YearMonthOf returns the UTC calendar month containing t.
func YearMonthOf(t time.Time) YearMonth {
	t = t.UTC()
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// String formats the month as YYYY-MM.
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Start returns the first instant of the month.
func (ym YearMonth) Start() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Valid reports whether the month is in range 1-12.
func (ym YearMonth) Valid() bool {
	return ym.Month >= time.January && ym.Month <= time.December
}

// UsageKey identifies a single usage counter row.
type UsageKey struct {
	AccountID uuid.UUID
	Kind      ResourceKind
	Month     YearMonth
}

// UsageCounter is the persisted tally for one (account, kind, month) key.
// Count never decreases within a key.
type UsageCounter struct {
	UsageKey
	Count     int64
	UpdatedAt time.Time
}

// GateDecision is the result of an entitlement check.
// Limit is nil when the plan is unlimited for the resource kind.
type GateDecision struct {
	Allowed      bool
	Kind         ResourceKind
	Plan         PlanKey
	CurrentUsage int64
	Limit        *int64
	Reason       string
	Degraded     bool
}

// IsUnlimited reports whether the decision was made against an unlimited plan.
func (d GateDecision) IsUnlimited() bool {
	return d.Limit == nil
}

// MeteredResult is returned after a metered action succeeds.
// UsageLimit is nil when the plan is unlimited for the resource kind.
// UsageUnknown is set when the charge failed and the counter could not be
// read either; UsageCount is then meaningless.
type MeteredResult struct {
	Kind         ResourceKind
	UsageCount   int64
	UsageLimit   *int64
	IsUnlimited  bool
	UsageUnknown bool
}

// UsageLevel classifies usage against a limit for client banners.
type UsageLevel string

const (
	UsageLevelOK          UsageLevel = "ok"
	UsageLevelApproaching UsageLevel = "approaching"
	UsageLevelReached     UsageLevel = "reached"
)

// ClassifyUsage returns the banner level for used against limit.
// Unlimited plans are always UsageLevelOK.
func ClassifyUsage(used, limit int64, warnPercent int) UsageLevel {
	if limit == Unlimited {
		return UsageLevelOK
	}
	if used >= limit {
		return UsageLevelReached
	}
	if used*100 >= limit*int64(warnPercent) {
		return UsageLevelApproaching
	}
	return UsageLevelOK
}

// UsagePercent returns used as a whole percentage of limit, capped at 100.
func UsagePercent(used, limit int64) int {
	if limit == Unlimited {
		return 0
	}
	pct := used * 100 / limit
	if pct > 100 {
		pct = 100
	}
	return int(pct)
}

// ResourceUsage summarises one resource kind for an account.
type ResourceUsage struct {
	Kind        ResourceKind
	Used        int64
	Limit       *int64
	IsUnlimited bool
	Percent     int
	Level       UsageLevel
}

// UsageSummary is the dashboard view of an account's metered usage.
type UsageSummary struct {
	AccountID uuid.UUID
	Plan      PlanKey
	Month     YearMonth
	Degraded  bool
	Resources []ResourceUsage
}
