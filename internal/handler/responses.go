package handler

import (
	"time"

	"github.com/DukeRupert/dentalab/internal/domain"
)

// SubscriptionResponse is the body of GET /api/subscription.
type SubscriptionResponse struct {
	Subscribed bool           `json:"subscribed"`
	Plan       domain.PlanKey `json:"plan"`
	PriceID    *string        `json:"priceId"`
	PeriodEnd  *time.Time     `json:"periodEnd"`
	Features   []string       `json:"features"`
	Degraded   bool           `json:"degraded"`
}

// ResourceUsageResponse describes one resource kind in a usage summary.
type ResourceUsageResponse struct {
	Kind        domain.ResourceKind `json:"kind"`
	Used        int64               `json:"used"`
	Limit       *int64              `json:"limit"`
	IsUnlimited bool                `json:"isUnlimited"`
	Percent     int                 `json:"percent"`
	Level       domain.UsageLevel   `json:"level"`
}

// UsageResponse is the body of GET /api/usage.
type UsageResponse struct {
	Plan      domain.PlanKey          `json:"plan"`
	Month     string                  `json:"month"`
	Degraded  bool                    `json:"degraded"`
	Resources []ResourceUsageResponse `json:"resources"`
}

// DecisionResponse is the body of GET /api/entitlements/{kind}.
type DecisionResponse struct {
	Allowed      bool                `json:"allowed"`
	Kind         domain.ResourceKind `json:"kind"`
	Plan         domain.PlanKey      `json:"plan"`
	CurrentUsage int64               `json:"currentUsage"`
	Limit        *int64              `json:"limit"`
	Reason       string              `json:"reason,omitempty"`
	Degraded     bool                `json:"degraded"`
}

// MeteredUsageResponse reports usage after a metered action.
// UsageCount is null when the count could not be determined.
type MeteredUsageResponse struct {
	Success     bool                `json:"success"`
	Kind        domain.ResourceKind `json:"kind"`
	UsageCount  *int64              `json:"usageCount"`
	UsageLimit  *int64              `json:"usageLimit"`
	IsUnlimited bool                `json:"isUnlimited"`
}

// ImageResponse is the body of POST /api/images.
type ImageResponse struct {
	ID            string               `json:"id"`
	URL           string               `json:"url"`
	ThumbnailURL  string               `json:"thumbnailUrl"`
	ContentType   string               `json:"contentType"`
	Width         int                  `json:"width"`
	Height        int                  `json:"height"`
	RevisedPrompt string               `json:"revisedPrompt,omitempty"`
	Usage         MeteredUsageResponse `json:"usage"`
}

// DocumentResponse is the body of POST /api/documents/invoice.
type DocumentResponse struct {
	ID          string               `json:"id"`
	URL         string               `json:"url"`
	ContentType string               `json:"contentType"`
	SizeBytes   int64                `json:"sizeBytes"`
	Usage       MeteredUsageResponse `json:"usage"`
}

// RedirectResponse carries a hosted page URL for the client to open.
type RedirectResponse struct {
	URL string `json:"url"`
}

func toSubscriptionResponse(res domain.SubscriptionResult) SubscriptionResponse {
	out := SubscriptionResponse{
		Subscribed: res.Record.Subscribed,
		Plan:       res.Plan.Key,
		PeriodEnd:  res.Record.PeriodEnd,
		Features:   res.Plan.Features,
		Degraded:   res.Degraded,
	}
	if res.Record.ActivePriceID != "" {
		id := res.Record.ActivePriceID
		out.PriceID = &id
	}
	if out.Features == nil {
		out.Features = []string{}
	}
	return out
}

func toUsageResponse(s *domain.UsageSummary) UsageResponse {
	out := UsageResponse{
		Plan:      s.Plan,
		Month:     s.Month.String(),
		Degraded:  s.Degraded,
		Resources: make([]ResourceUsageResponse, 0, len(s.Resources)),
	}
	for _, r := range s.Resources {
		out.Resources = append(out.Resources, ResourceUsageResponse{
			Kind:        r.Kind,
			Used:        r.Used,
			Limit:       r.Limit,
			IsUnlimited: r.IsUnlimited,
			Percent:     r.Percent,
			Level:       r.Level,
		})
	}
	return out
}

func toDecisionResponse(d domain.GateDecision) DecisionResponse {
	return DecisionResponse{
		Allowed:      d.Allowed,
		Kind:         d.Kind,
		Plan:         d.Plan,
		CurrentUsage: d.CurrentUsage,
		Limit:        d.Limit,
		Reason:       d.Reason,
		Degraded:     d.Degraded,
	}
}

func toMeteredUsage(m domain.MeteredResult) MeteredUsageResponse {
	resp := MeteredUsageResponse{
		Success:     true,
		Kind:        m.Kind,
		UsageLimit:  m.UsageLimit,
		IsUnlimited: m.IsUnlimited,
	}
	if !m.UsageUnknown {
		count := m.UsageCount
		resp.UsageCount = &count
	}
	return resp
}
