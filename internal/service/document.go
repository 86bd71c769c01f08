// Package service contains the business logic layer.
//
// This file implements metered PDF generation for lab order invoices.
package service

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/DukeRupert/dentalab/internal/metrics"
	"github.com/DukeRupert/dentalab/internal/report"
	"github.com/DukeRupert/dentalab/internal/storage"
	"github.com/google/uuid"
)

// DocumentService renders documents on behalf of an account.
type DocumentService interface {
	// GenerateInvoice validates data, then renders and stores the invoice
	// as a metered PDF action.
	GenerateInvoice(ctx context.Context, accountID uuid.UUID, data *domain.InvoiceData) (*domain.GeneratedDocument, error)
}

type documentService struct {
	metering  MeteringService
	generator report.Generator
	storage   storage.Storage
	now       func() time.Time
	logger    *slog.Logger
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(metering MeteringService, generator report.Generator, store storage.Storage, logger *slog.Logger) DocumentService {
	return &documentService{
		metering:  metering,
		generator: generator,
		storage:   store,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *documentService) GenerateInvoice(ctx context.Context, accountID uuid.UUID, data *domain.InvoiceData) (*domain.GeneratedDocument, error) {
	const op = "document.generate_invoice"

	if data == nil {
		return nil, domain.Invalid(op, "invoice data is required")
	}
	if err := data.Validate(op); err != nil {
		return nil, err
	}

	data.AccountID = accountID
	data.Currency = strings.ToUpper(strings.TrimSpace(data.Currency))
	if data.Currency == "" {
		data.Currency = "USD"
	}
	if data.IssuedAt.IsZero() {
		data.IssuedAt = s.now().UTC()
	}

	out := &domain.GeneratedDocument{
		ID:          uuid.New(),
		ContentType: s.generator.ContentType(),
	}

	result, err := s.metering.Perform(ctx, accountID, domain.ResourcePDF, func(ctx context.Context) error {
		var buf bytes.Buffer
		n, err := s.generator.Generate(ctx, data, &buf)
		if err != nil {
			return domain.ExternalFailure(err, op, "Failed to render the invoice")
		}

		key := storage.DocumentKey(accountID, out.ID)
		err = s.storage.Put(ctx, key, buf.Bytes(), out.ContentType)
		metrics.StorageUploaded("pdf", err)
		if err != nil {
			return domain.ExternalFailure(err, op, "Failed to store the invoice")
		}

		url, err := s.storage.URL(ctx, key, 0)
		if err != nil {
			if delErr := s.storage.Delete(context.Background(), key); delErr != nil {
				s.logger.Warn("failed to remove orphaned object", "key", key, "error", delErr)
			}
			return domain.ExternalFailure(err, op, "Failed to link the invoice")
		}

		out.URL = url
		out.SizeBytes = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	out.Usage = *result
	s.logger.Info("invoice generated",
		"account_id", accountID,
		"document_id", out.ID,
		"bytes", out.SizeBytes,
		"usage", result.UsageCount,
	)
	return out, nil
}
