package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/go-pdf/fpdf"
)

// PDFGenerator renders lab order invoices with fpdf.
type PDFGenerator struct {
	// Page dimensions (A4 in mm)
	pageWidth float64
	margin    float64

	contentWidth float64
}

// NewPDFGenerator creates a new PDF generator with default settings.
func NewPDFGenerator() *PDFGenerator {
	margin := 15.0
	pageWidth := 210.0
	return &PDFGenerator{
		pageWidth:    pageWidth,
		margin:       margin,
		contentWidth: pageWidth - (2 * margin),
	}
}

// ContentType returns the MIME type of the rendered output.
func (g *PDFGenerator) ContentType() string {
	return "application/pdf"
}

// Generate renders an invoice and writes it to w.
func (g *PDFGenerator) Generate(ctx context.Context, data *domain.InvoiceData, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	title := "Invoice"
	if data.Number != "" {
		title += " " + data.Number
	}
	pdf.SetTitle(title, true)
	pdf.SetAuthor(data.LabName, true)
	pdf.SetCreator("Dentalab", true)
	pdf.SetAutoPageBreak(true, 20)

	pdf.SetFooterFunc(func() {
		g.addFooter(pdf, data)
	})

	pdf.AddPage()
	g.addHeader(pdf, tr, data, title)
	g.addParties(pdf, tr, data)
	g.addLines(pdf, tr, data)
	g.addTotals(pdf, data)
	if data.Notes != "" {
		g.addNotes(pdf, tr, data.Notes)
	}

	if err := pdf.Error(); err != nil {
		return 0, fmt.Errorf("pdf generation error: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return 0, fmt.Errorf("pdf output error: %w", err)
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

func (g *PDFGenerator) addHeader(pdf *fpdf.Fpdf, tr func(string) string, data *domain.InvoiceData, title string) {
	r, gr, b := HexToRGB(BrandColors.Primary)
	pdf.SetFillColor(r, gr, b)
	pdf.Rect(0, 0, g.pageWidth, 40, "F")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetXY(g.margin, 12)
	pdf.Cell(0, 10, tr(title))

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetXY(g.margin, 24)
	issued := "Issued " + FormatDate(data.IssuedAt)
	if data.DueAt != nil {
		issued += "  |  Due " + FormatDate(*data.DueAt)
	}
	pdf.Cell(0, 8, issued)

	r, gr, b = HexToRGB(BrandColors.TextDark)
	pdf.SetTextColor(r, gr, b)
	pdf.SetY(50)
}

func (g *PDFGenerator) addParties(pdf *fpdf.Fpdf, tr func(string) string, data *domain.InvoiceData) {
	half := g.contentWidth / 2
	top := pdf.GetY()

	g.addBlock(pdf, tr, g.margin, top, half, "FROM", data.LabName)
	g.addBlock(pdf, tr, g.margin+half, top, half, "BILL TO", data.ClinicName, data.ClinicAddress)

	pdf.SetXY(g.margin, top+28)
	if data.DoctorName != "" {
		g.addLabelValue(pdf, tr, "Doctor", data.DoctorName)
	}
	if data.PatientRef != "" {
		g.addLabelValue(pdf, tr, "Patient ref", data.PatientRef)
	}
	pdf.Ln(6)
}

func (g *PDFGenerator) addBlock(pdf *fpdf.Fpdf, tr func(string) string, x, y, width float64, label string, lines ...string) {
	pdf.SetXY(x, y)
	pdf.SetFont("Helvetica", "B", 9)
	r, gr, b := HexToRGB(BrandColors.TextMuted)
	pdf.SetTextColor(r, gr, b)
	pdf.CellFormat(width, 6, label, "", 2, "L", false, 0, "")

	r, gr, b = HexToRGB(BrandColors.TextDark)
	pdf.SetTextColor(r, gr, b)
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range lines {
		if line == "" {
			continue
		}
		pdf.SetX(x)
		pdf.CellFormat(width, 6, tr(TruncateText(line, 45)), "", 2, "L", false, 0, "")
	}
}

func (g *PDFGenerator) addLines(pdf *fpdf.Fpdf, tr func(string) string, data *domain.InvoiceData) {
	cols := []float64{g.contentWidth - 75, 20, 27.5, 27.5}
	headers := []string{"Description", "Qty", "Unit", "Amount"}
	aligns := []string{"L", "R", "R", "R"}

	r, gr, b := HexToRGB(BrandColors.Background)
	pdf.SetFillColor(r, gr, b)
	r, gr, b = HexToRGB(BrandColors.Border)
	pdf.SetDrawColor(r, gr, b)

	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(cols[i], 8, h, "B", 0, aligns[i], true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range data.Lines {
		pdf.CellFormat(cols[0], 7, tr(TruncateText(line.Description, 70)), "B", 0, "L", false, 0, "")
		pdf.CellFormat(cols[1], 7, strconv.Itoa(line.Quantity), "B", 0, "R", false, 0, "")
		pdf.CellFormat(cols[2], 7, tr(FormatCents(line.UnitPriceCents, data.Currency)), "B", 0, "R", false, 0, "")
		pdf.CellFormat(cols[3], 7, tr(FormatCents(line.TotalCents(), data.Currency)), "B", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func (g *PDFGenerator) addTotals(pdf *fpdf.Fpdf, data *domain.InvoiceData) {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	labelX := g.margin + g.contentWidth - 80

	row := func(label string, cents int64, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetX(labelX)
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(45, 7, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, tr(FormatCents(cents, data.Currency)), "", 1, "R", false, 0, "")
	}

	row("Subtotal", data.SubtotalCents(), false)
	if data.DeliveryFee > 0 {
		row("Delivery", data.DeliveryFee, false)
	}
	if data.TaxPercent > 0 {
		row(fmt.Sprintf("Tax (%s%%)", strconv.FormatFloat(data.TaxPercent, 'f', -1, 64)), data.TaxCents(), false)
	}

	r, gr, b := HexToRGB(BrandColors.Accent)
	pdf.SetTextColor(r, gr, b)
	row("Total due", data.TotalCents(), true)
	r, gr, b = HexToRGB(BrandColors.TextDark)
	pdf.SetTextColor(r, gr, b)
}

func (g *PDFGenerator) addNotes(pdf *fpdf.Fpdf, tr func(string) string, notes string) {
	pdf.Ln(8)
	pdf.SetX(g.margin)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Cell(0, 6, "Notes")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(g.contentWidth, 5, tr(notes), "", "L", false)
}

func (g *PDFGenerator) addLabelValue(pdf *fpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.SetX(g.margin)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(30, 6, label+":", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(value), "", 1, "L", false, 0, "")
}

func (g *PDFGenerator) addFooter(pdf *fpdf.Fpdf, data *domain.InvoiceData) {
	pdf.SetY(-15)

	r, gr, b := HexToRGB(BrandColors.Border)
	pdf.SetDrawColor(r, gr, b)
	pdf.Line(g.margin, pdf.GetY()-3, g.pageWidth-g.margin, pdf.GetY()-3)

	r, gr, b = HexToRGB(BrandColors.TextMuted)
	pdf.SetTextColor(r, gr, b)
	pdf.SetFont("Helvetica", "", 8)

	pdf.Cell(0, 10, "Generated "+FormatDate(data.IssuedAt))

	pdf.SetX(-g.margin - 30)
	pdf.CellFormat(30, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
}
