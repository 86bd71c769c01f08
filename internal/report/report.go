// Package report renders lab order invoices as PDF documents.
//
// This package defines a Generator interface implemented by PDFGenerator,
// along with helpers for formatting money, dates and brand colours.
package report

import (
	"context"
	"io"
	"math"
	"time"

	"github.com/DukeRupert/dentalab/internal/domain"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// =============================================================================
// Generator Interface
// =============================================================================

// Generator defines the interface for invoice renderers.
type Generator interface {
	// Generate renders the invoice and writes it to w.
	// Returns the number of bytes written and any error.
	Generate(ctx context.Context, data *domain.InvoiceData, w io.Writer) (int64, error)

	// ContentType returns the MIME type of the rendered output.
	ContentType() string
}

// =============================================================================
// Brand Colors
// =============================================================================

// BrandColors defines the color palette for documents.
var BrandColors = struct {
	Primary    string // Header bar and section titles
	Accent     string // Totals
	TextDark   string // Primary text
	TextMuted  string // Secondary text
	Border     string // Borders and dividers
	Background string // Table header fill
}{
	Primary:    "#0F4C5C",
	Accent:     "#E36414",
	TextDark:   "#1F2937",
	TextMuted:  "#6B7280",
	Border:     "#E5E7EB",
	Background: "#F3F4F6",
}

// HexToRGB converts a hex color string to RGB values.
// Input format: "#RRGGBB" or "RRGGBB"
func HexToRGB(hex string) (r, g, b int) {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return 0, 0, 0
	}
	return hexToDec(hex[0:2]), hexToDec(hex[2:4]), hexToDec(hex[4:6])
}

func hexToDec(hex string) int {
	val := 0
	for _, c := range hex {
		val *= 16
		switch {
		case c >= '0' && c <= '9':
			val += int(c - '0')
		case c >= 'a' && c <= 'f':
			val += int(c - 'a' + 10)
		case c >= 'A' && c <= 'F':
			val += int(c - 'A' + 10)
		}
	}
	return val
}

// =============================================================================
// Text Formatting Helpers
// =============================================================================

var symbols = map[string]string{
	"USD": "$",
	"CAD": "CA$",
	"AUD": "A$",
	"EUR": "€",
	"GBP": "£",
}

// FormatCents formats an amount in minor units for display, e.g.
// FormatCents(123450, "USD") == "$1,234.50" and FormatCents(1500, "JPY") ==
// "JPY 1,500". Unknown currency codes fall back to USD.
func FormatCents(cents int64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.USD
	}

	scale, _ := currency.Standard.Rounding(unit)
	value := float64(cents) / math.Pow10(scale)

	p := message.NewPrinter(language.AmericanEnglish)
	amount := p.Sprint(number.Decimal(abs(value), number.Scale(scale)))

	prefix, ok := symbols[unit.String()]
	if !ok {
		prefix = unit.String() + " "
	}
	if value < 0 {
		return "-" + prefix + amount
	}
	return prefix + amount
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// TruncateText truncates text to a maximum length in runes, adding an
// ellipsis if needed.
func TruncateText(text string, maxLen int) string {
	r := []rune(text)
	if len(r) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// FormatDate formats a date for display in documents.
func FormatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}
