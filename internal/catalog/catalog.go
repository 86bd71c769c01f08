// Package catalog holds the subscription plan table.
//
// The catalog is loaded once at startup, either from a YAML file or from the
// built-in defaults, and is read-only afterwards. Resolve maps a payment
// provider price identifier to exactly one plan, falling back to the free
// plan for unknown or empty identifiers.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"github.com/DukeRupert/dentalab/internal/domain"
	"gopkg.in/yaml.v3"
)

// Catalog is an immutable, validated set of plans.
type Catalog struct {
	plans     map[domain.PlanKey]domain.Plan
	byPriceID map[string]domain.PlanKey
}

// =============================================================================
// File Format
// =============================================================================

type fileFormat struct {
	Plans map[string]planEntry `yaml:"plans"`
}

type planEntry struct {
	MonthlyImageLimit int64    `yaml:"monthly_image_limit"`
	MonthlyPDFLimit   int64    `yaml:"monthly_pdf_limit"`
	MonthlyPriceID    string   `yaml:"monthly_price_id"`
	YearlyPriceID     string   `yaml:"yearly_price_id"`
	PriceIDs          []string `yaml:"price_ids"`
	Features          []string `yaml:"features"`
}

// =============================================================================
// Construction
// =============================================================================

// New validates plans and builds a Catalog.
//
// Validation rules:
//   - every plan key must be a known tier and appear once
//   - a free plan must exist and must not carry price identifiers
//   - limits must be >= 0 (0 means unlimited)
//   - a price identifier may belong to only one plan
//   - the monthly and yearly checkout prices resolve like any other id
func New(plans []domain.Plan) (*Catalog, error) {
	c := &Catalog{
		plans:     make(map[domain.PlanKey]domain.Plan, len(plans)),
		byPriceID: make(map[string]domain.PlanKey),
	}

	for _, p := range plans {
		if !p.Key.Valid() {
			return nil, fmt.Errorf("catalog: unknown plan key %q", p.Key)
		}
		if _, dup := c.plans[p.Key]; dup {
			return nil, fmt.Errorf("catalog: plan %q defined twice", p.Key)
		}
		if p.MonthlyImageLimit < 0 || p.MonthlyPDFLimit < 0 {
			return nil, fmt.Errorf("catalog: plan %q has a negative limit", p.Key)
		}
		if p.Key == domain.PlanFree && (len(p.PriceIDs) > 0 || p.MonthlyPriceID != "" || p.YearlyPriceID != "") {
			return nil, fmt.Errorf("catalog: free plan cannot have price identifiers")
		}
		for _, id := range resolvableIDs(p) {
			if id == "" {
				return nil, fmt.Errorf("catalog: plan %q has an empty price identifier", p.Key)
			}
			if owner, dup := c.byPriceID[id]; dup {
				return nil, fmt.Errorf("catalog: price identifier %q used by both %q and %q", id, owner, p.Key)
			}
			c.byPriceID[id] = p.Key
		}

		c.plans[p.Key] = clonePlan(p)
	}

	if _, ok := c.plans[domain.PlanFree]; !ok {
		return nil, fmt.Errorf("catalog: a %q plan is required", domain.PlanFree)
	}

	return c, nil
}

// Parse builds a Catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}
	if len(f.Plans) == 0 {
		return nil, fmt.Errorf("catalog: no plans defined")
	}

	plans := make([]domain.Plan, 0, len(f.Plans))
	for key, entry := range f.Plans {
		plans = append(plans, domain.Plan{
			Key:               domain.PlanKey(key),
			MonthlyImageLimit: entry.MonthlyImageLimit,
			MonthlyPDFLimit:   entry.MonthlyPDFLimit,
			MonthlyPriceID:    entry.MonthlyPriceID,
			YearlyPriceID:     entry.YearlyPriceID,
			PriceIDs:          entry.PriceIDs,
			Features:          entry.Features,
		})
	}
	// Map iteration order is random; sort so duplicate-id errors are stable.
	sort.Slice(plans, func(i, j int) bool { return rank(plans[i].Key) < rank(plans[j].Key) })

	return New(plans)
}

// Load reads and parses a YAML catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// =============================================================================
// Lookups
// =============================================================================

// Resolve returns the plan for a price identifier. Empty or unknown
// identifiers resolve to the free plan. Resolve never fails.
func (c *Catalog) Resolve(priceID string) domain.Plan {
	if priceID != "" {
		if key, ok := c.byPriceID[priceID]; ok {
			return clonePlan(c.plans[key])
		}
	}
	return clonePlan(c.plans[domain.PlanFree])
}

// Free returns the free plan.
func (c *Catalog) Free() domain.Plan {
	return clonePlan(c.plans[domain.PlanFree])
}

// Plan returns the plan for key and whether it exists.
func (c *Catalog) Plan(key domain.PlanKey) (domain.Plan, bool) {
	p, ok := c.plans[key]
	return clonePlan(p), ok
}

// Plans returns every plan ordered from free to premium.
func (c *Catalog) Plans() []domain.Plan {
	out := make([]domain.Plan, 0, len(c.plans))
	for _, key := range domain.PlanKeys {
		if p, ok := c.plans[key]; ok {
			out = append(out, clonePlan(p))
		}
	}
	return out
}

// HasPriceID reports whether id belongs to any paid plan.
func (c *Catalog) HasPriceID(id string) bool {
	_, ok := c.byPriceID[id]
	return ok
}

func rank(k domain.PlanKey) int {
	for i, key := range domain.PlanKeys {
		if key == k {
			return i
		}
	}
	return len(domain.PlanKeys)
}

// resolvableIDs lists every identifier that maps to p. Unset checkout
// slots are skipped.
func resolvableIDs(p domain.Plan) []string {
	ids := make([]string, 0, len(p.PriceIDs)+2)
	for _, id := range []string{p.MonthlyPriceID, p.YearlyPriceID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return append(ids, p.PriceIDs...)
}

// clonePlan copies the slices so callers can't mutate the catalog.
func clonePlan(p domain.Plan) domain.Plan {
	p.PriceIDs = append([]string(nil), p.PriceIDs...)
	p.Features = append([]string(nil), p.Features...)
	return p
}
