package catalog

import "github.com/DukeRupert/dentalab/internal/domain"

// DefaultPriceIDs holds the payment provider price identifiers for the
// built-in plans. An empty entry leaves that billing interval unsold.
type DefaultPriceIDs struct {
	BasicMonthly        string
	BasicYearly         string
	ProfessionalMonthly string
	ProfessionalYearly  string
	PremiumMonthly      string
	PremiumYearly       string
}

// Default builds the built-in catalog used when no plan file is configured.
func Default(prices DefaultPriceIDs) (*Catalog, error) {
	return New([]domain.Plan{
		{
			Key:               domain.PlanFree,
			MonthlyImageLimit: 5,
			MonthlyPDFLimit:   3,
			Features:          []string{"orders", "patients"},
		},
		{
			Key:               domain.PlanBasic,
			MonthlyImageLimit: 70,
			MonthlyPDFLimit:   30,
			MonthlyPriceID:    prices.BasicMonthly,
			YearlyPriceID:     prices.BasicYearly,
			Features:          []string{"orders", "patients", "invoices", "appointments"},
		},
		{
			Key:               domain.PlanProfessional,
			MonthlyImageLimit: 300,
			MonthlyPDFLimit:   150,
			MonthlyPriceID:    prices.ProfessionalMonthly,
			YearlyPriceID:     prices.ProfessionalYearly,
			Features:          []string{"orders", "patients", "invoices", "appointments", "campaigns", "ocr"},
		},
		{
			Key:               domain.PlanPremium,
			MonthlyImageLimit: domain.Unlimited,
			MonthlyPDFLimit:   domain.Unlimited,
			MonthlyPriceID:    prices.PremiumMonthly,
			YearlyPriceID:     prices.PremiumYearly,
			Features:          []string{"orders", "patients", "invoices", "appointments", "campaigns", "ocr", "assistant", "tts"},
		},
	})
}
