// Package domain contains core business types and interfaces.
//
// This file defines subscription plans and the resource kinds they meter.
package domain

import "fmt"

// PlanKey identifies a subscription tier.
type PlanKey string

const (
	PlanFree         PlanKey = "free"
	PlanBasic        PlanKey = "basic"
	PlanProfessional PlanKey = "professional"
	PlanPremium      PlanKey = "premium"
)

// PlanKeys lists every known tier in ascending order.
var PlanKeys = []PlanKey{PlanFree, PlanBasic, PlanProfessional, PlanPremium}

// Valid reports whether k is a known tier.
func (k PlanKey) Valid() bool {
	switch k {
	case PlanFree, PlanBasic, PlanProfessional, PlanPremium:
		return true
	default:
		return false
	}
}

// ResourceKind identifies a metered action category.
type ResourceKind string

const (
	ResourceImage ResourceKind = "image"
	ResourcePDF   ResourceKind = "pdf"
)

// ResourceKinds lists every metered resource kind.
var ResourceKinds = []ResourceKind{ResourceImage, ResourcePDF}

// ParseResourceKind converts a string into a ResourceKind.
func ParseResourceKind(s string) (ResourceKind, error) {
	switch ResourceKind(s) {
	case ResourceImage, ResourcePDF:
		return ResourceKind(s), nil
	default:
		return "", fmt.Errorf("unknown resource kind %q", s)
	}
}

// Unlimited is the plan limit sentinel meaning "no cap".
const Unlimited int64 = 0

// Plan is a named subscription tier with per-resource monthly limits.
// Plans are immutable once the catalog is loaded.
type Plan struct {
	Key               PlanKey
	MonthlyImageLimit int64 // 0 = unlimited
	MonthlyPDFLimit   int64 // 0 = unlimited
	MonthlyPriceID    string   // sold at checkout for monthly billing
	YearlyPriceID     string   // sold at checkout for yearly billing
	PriceIDs          []string // other identifiers that resolve to this plan
	Features          []string
}

// Limit returns the monthly limit for kind. A return of Unlimited means no cap.
func (p Plan) Limit(kind ResourceKind) int64 {
	switch kind {
	case ResourceImage:
		return p.MonthlyImageLimit
	case ResourcePDF:
		return p.MonthlyPDFLimit
	default:
		return Unlimited
	}
}

// IsUnlimited reports whether kind has no cap on this plan.
func (p Plan) IsUnlimited(kind ResourceKind) bool {
	return p.Limit(kind) == Unlimited
}

// HasFeature reports whether the plan lists the named feature.
func (p Plan) HasFeature(feature string) bool {
	for _, f := range p.Features {
		if f == feature {
			return true
		}
	}
	return false
}
