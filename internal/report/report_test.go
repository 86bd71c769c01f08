package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCents(t *testing.T) {
	tests := []struct {
		cents int64
		code  string
		want  string
	}{
		{123450, "USD", "$1,234.50"},
		{500, "EUR", "€5.00"},
		{0, "GBP", "£0.00"},
		{-2599, "USD", "-$25.99"},
		{1000, "not-a-code", "$10.00"},
		{1000, "CHF", "CHF 10.00"},
		{1500, "JPY", "JPY 1,500"},
		{-1500, "JPY", "-JPY 1,500"},
		{1234, "KWD", "KWD 1.234"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCents(tt.cents, tt.code), "%d %s", tt.cents, tt.code)
	}
}

func TestHexToRGB(t *testing.T) {
	r, g, b := HexToRGB("#0F4C5C")
	assert.Equal(t, []int{15, 76, 92}, []int{r, g, b})

	r, g, b = HexToRGB("bad")
	assert.Equal(t, []int{0, 0, 0}, []int{r, g, b})
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "Zirconi...", TruncateText("Zirconia crown #14", 10))
	assert.Equal(t, "Zir", TruncateText("Zirconia", 3))
}

func testInvoice() *domain.InvoiceData {
	due := time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC)
	return &domain.InvoiceData{
		AccountID:     uuid.New(),
		Number:        "INV-0042",
		LabName:       "Acme Dental Lab",
		ClinicName:    "Bright Smiles Clinic",
		ClinicAddress: "12 Main St, Springfield",
		PatientRef:    "PT-889",
		DoctorName:    "Dr. Müller",
		IssuedAt:      time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
		DueAt:         &due,
		Currency:      "EUR",
		Lines: []domain.InvoiceLine{
			{Description: "Zirconia crown #14", Quantity: 1, UnitPriceCents: 18000},
			{Description: "Night guard", Quantity: 2, UnitPriceCents: 9500},
		},
		DeliveryFee: 1500,
		TaxPercent:  19,
		Notes:       "Shade A2. Please return the impression tray.",
	}
}

func TestPDFGenerator_Generate(t *testing.T) {
	g := NewPDFGenerator()
	var buf bytes.Buffer

	n, err := g.Generate(context.Background(), testInvoice(), &buf)
	require.NoError(t, err)

	assert.Equal(t, int64(buf.Len()), n)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Equal(t, "application/pdf", g.ContentType())
}

func TestPDFGenerator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPDFGenerator().Generate(ctx, testInvoice(), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}
