package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Invoice bounds. Together they keep every total well inside the range
// float64 represents exactly, so tax rounding stays correct.
const (
	MaxInvoiceLines       = 200
	MaxLineQuantity       = 10_000
	MaxUnitPriceCents     = 100_000_000_000
	MaxInvoiceAmountCents = 1_000_000_000_000_000 // subtotal plus delivery fee
)

// InvoiceLine is a single billed item on a lab order invoice.
type InvoiceLine struct {
	Description    string // e.g. "Zirconia crown #14"
	Quantity       int
	UnitPriceCents int64
}

// TotalCents returns quantity times unit price.
func (l InvoiceLine) TotalCents() int64 {
	return int64(l.Quantity) * l.UnitPriceCents
}

// InvoiceData contains everything needed to render a lab order invoice PDF.
type InvoiceData struct {
	AccountID     uuid.UUID
	Number        string
	LabName       string
	ClinicName    string
	ClinicAddress string
	PatientRef    string // clinic-side patient reference, never a full name
	DoctorName    string
	IssuedAt      time.Time
	DueAt         *time.Time
	Currency      string // ISO 4217, defaults to USD
	Lines         []InvoiceLine
	DeliveryFee   int64 // cents
	TaxPercent    float64
	Notes         string
}

// SubtotalCents sums every line total.
func (d *InvoiceData) SubtotalCents() int64 {
	var total int64
	for _, l := range d.Lines {
		total += l.TotalCents()
	}
	return total
}

// TaxCents returns tax on the subtotal plus delivery fee, rounded half up.
func (d *InvoiceData) TaxCents() int64 {
	base := float64(d.SubtotalCents() + d.DeliveryFee)
	return int64(base*d.TaxPercent/100 + 0.5)
}

// TotalCents returns subtotal, delivery fee and tax.
func (d *InvoiceData) TotalCents() int64 {
	return d.SubtotalCents() + d.DeliveryFee + d.TaxCents()
}

// Validate checks the invoice before any metering happens.
func (d *InvoiceData) Validate(op string) error {
	var ve *ValidationError
	add := func(field, msg string) {
		if ve == nil {
			ve = NewValidationError(op, field, msg)
			return
		}
		ve.Fields[field] = msg
	}

	if strings.TrimSpace(d.ClinicName) == "" {
		add("clinic_name", "Clinic name is required")
	}
	switch {
	case len(d.Lines) == 0:
		add("lines", "At least one line item is required")
	case len(d.Lines) > MaxInvoiceLines:
		add("lines", "An invoice can have at most 200 line items")
	}
	for _, l := range d.Lines {
		if strings.TrimSpace(l.Description) == "" || l.Quantity <= 0 || l.UnitPriceCents < 0 {
			add("lines", "Each line needs a description, a positive quantity and a non-negative price")
			break
		}
		if l.Quantity > MaxLineQuantity || l.UnitPriceCents > MaxUnitPriceCents {
			add("lines", "Line quantity or unit price is too large")
			break
		}
	}
	if d.DeliveryFee < 0 {
		add("delivery_fee", "Delivery fee cannot be negative")
	} else if d.DeliveryFee > MaxUnitPriceCents {
		add("delivery_fee", "Delivery fee is too large")
	}
	if ve == nil && !d.amountInRange() {
		add("lines", "Invoice total is too large")
	}
	if d.TaxPercent < 0 || d.TaxPercent > 100 {
		add("tax_percent", "Tax percent must be between 0 and 100")
	}

	if ve != nil {
		return ve
	}
	return nil
}

// amountInRange sums the lines with overflow checks and reports whether
// subtotal plus delivery fee stays within MaxInvoiceAmountCents.
func (d *InvoiceData) amountInRange() bool {
	sum := d.DeliveryFee
	for _, l := range d.Lines {
		if l.Quantity != 0 && l.UnitPriceCents > (MaxInvoiceAmountCents-sum)/int64(l.Quantity) {
			return false
		}
		sum += l.TotalCents()
	}
	return sum <= MaxInvoiceAmountCents
}
