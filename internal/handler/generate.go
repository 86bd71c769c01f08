// Package handler contains the HTTP handlers for the JSON API.
//
// This file implements the metered generation endpoints.
//
// Routes handled:
//   - POST /api/images            -> GenerateImage
//   - POST /api/documents/invoice -> GenerateInvoice
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/dentalab/internal/auth"
	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/DukeRupert/dentalab/internal/service"
)

// GenerateHandler serves metered image and document generation.
type GenerateHandler struct {
	images    service.ImageService
	documents service.DocumentService
	logger    *slog.Logger
}

// NewGenerateHandler creates a new GenerateHandler.
func NewGenerateHandler(images service.ImageService, documents service.DocumentService, logger *slog.Logger) *GenerateHandler {
	return &GenerateHandler{
		images:    images,
		documents: documents,
		logger:    logger,
	}
}

// RegisterRoutes registers generation routes on the provided mux.
func (h *GenerateHandler) RegisterRoutes(mux *http.ServeMux, requireAccount func(http.Handler) http.Handler) {
	mux.Handle("POST /api/images", requireAccount(http.HandlerFunc(h.GenerateImage)))
	mux.Handle("POST /api/documents/invoice", requireAccount(http.HandlerFunc(h.GenerateInvoice)))
}

type imageRequest struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
}

// GenerateImage generates one image from a prompt.
func (h *GenerateHandler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	const op = "handler.generate_image"

	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req imageRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	img, err := h.images.Generate(r.Context(), account.ID, domain.ImageRequest{Prompt: req.Prompt, Size: req.Size})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, ImageResponse{
		ID:            img.ID.String(),
		URL:           img.URL,
		ThumbnailURL:  img.ThumbnailURL,
		ContentType:   img.ContentType,
		Width:         img.Width,
		Height:        img.Height,
		RevisedPrompt: img.RevisedPrompt,
		Usage:         toMeteredUsage(img.Usage),
	})
}

type invoiceLineRequest struct {
	Description    string `json:"description"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

type invoiceRequest struct {
	Number           string               `json:"number"`
	LabName          string               `json:"labName"`
	ClinicName       string               `json:"clinicName"`
	ClinicAddress    string               `json:"clinicAddress"`
	PatientRef       string               `json:"patientRef"`
	DoctorName       string               `json:"doctorName"`
	IssuedAt         *time.Time           `json:"issuedAt"`
	DueAt            *time.Time           `json:"dueAt"`
	Currency         string               `json:"currency"`
	Lines            []invoiceLineRequest `json:"lines"`
	DeliveryFeeCents int64                `json:"deliveryFeeCents"`
	TaxPercent       float64              `json:"taxPercent"`
	Notes            string               `json:"notes"`
}

func (req invoiceRequest) toDomain() *domain.InvoiceData {
	data := &domain.InvoiceData{
		Number:        req.Number,
		LabName:       req.LabName,
		ClinicName:    req.ClinicName,
		ClinicAddress: req.ClinicAddress,
		PatientRef:    req.PatientRef,
		DoctorName:    req.DoctorName,
		DueAt:         req.DueAt,
		Currency:      req.Currency,
		DeliveryFee:   req.DeliveryFeeCents,
		TaxPercent:    req.TaxPercent,
		Notes:         req.Notes,
	}
	if req.IssuedAt != nil {
		data.IssuedAt = *req.IssuedAt
	}
	for _, l := range req.Lines {
		data.Lines = append(data.Lines, domain.InvoiceLine{
			Description:    l.Description,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
		})
	}
	return data
}

// GenerateInvoice renders a lab order invoice PDF.
func (h *GenerateHandler) GenerateInvoice(w http.ResponseWriter, r *http.Request) {
	const op = "handler.generate_invoice"

	account := auth.GetAccount(r.Context())
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req invoiceRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	doc, err := h.documents.GenerateInvoice(r.Context(), account.ID, req.toDomain())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, DocumentResponse{
		ID:          doc.ID.String(),
		URL:         doc.URL,
		ContentType: doc.ContentType,
		SizeBytes:   doc.SizeBytes,
		Usage:       toMeteredUsage(doc.Usage),
	})
}
