// Package service contains the business logic layer.
//
// This file implements metered image generation: prompt validation, the
// provider call, storage of the original and its thumbnail.
package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/DukeRupert/dentalab/internal/ai"
	"github.com/DukeRupert/dentalab/internal/domain"
	"github.com/DukeRupert/dentalab/internal/metrics"
	"github.com/DukeRupert/dentalab/internal/storage"
	"github.com/google/uuid"
)

// ImageService generates images on behalf of an account.
type ImageService interface {
	// Generate validates req, then runs the provider call as a metered
	// action. Validation errors are returned before the gate is consulted.
	Generate(ctx context.Context, accountID uuid.UUID, req domain.ImageRequest) (*domain.GeneratedImage, error)
}

type imageService struct {
	metering   MeteringService
	generator  ai.ImageGenerator
	storage    storage.Storage
	thumbnails ThumbnailProcessor
	logger     *slog.Logger
}

// NewImageService creates a new ImageService.
func NewImageService(metering MeteringService, generator ai.ImageGenerator, store storage.Storage, thumbnails ThumbnailProcessor, logger *slog.Logger) ImageService {
	return &imageService{
		metering:   metering,
		generator:  generator,
		storage:    store,
		thumbnails: thumbnails,
		logger:     logger,
	}
}

func (s *imageService) Generate(ctx context.Context, accountID uuid.UUID, req domain.ImageRequest) (*domain.GeneratedImage, error) {
	const op = "image.generate"

	if err := req.Validate(op); err != nil {
		return nil, err
	}
	size := req.Size
	if size == "" {
		size = ai.SizeSquare
	}
	if !ai.ValidSize(size) {
		return nil, domain.NewValidationError(op, "size", "Size must be 1024x1024, 1024x1536 or 1536x1024")
	}

	out := &domain.GeneratedImage{ID: uuid.New()}

	result, err := s.metering.Perform(ctx, accountID, domain.ResourceImage, func(ctx context.Context) error {
		img, err := s.generator.GenerateImage(ctx, ai.ImageParams{
			Prompt:    strings.TrimSpace(req.Prompt),
			Size:      size,
			AccountID: accountID,
		})
		if err != nil {
			return domain.ExternalFailure(err, op, providerMessage(err))
		}

		return s.store(ctx, accountID, img, out)
	})
	if err != nil {
		return nil, err
	}

	out.Usage = *result
	s.logger.Info("image generated",
		"account_id", accountID,
		"image_id", out.ID,
		"model", out.Model,
		"usage", result.UsageCount,
	)
	return out, nil
}

// store uploads the image and its thumbnail and fills in out. Any failure
// removes what was already written.
func (s *imageService) store(ctx context.Context, accountID uuid.UUID, img *ai.ImageResult, out *domain.GeneratedImage) error {
	const op = "image.store"

	key := storage.ImageKey(accountID, out.ID, storage.ExtensionFor(img.ContentType))
	thumbKey := storage.ThumbnailKey(accountID, out.ID)

	thumb, width, height, err := s.thumbnails.GenerateThumbnail(bytes.NewReader(img.Data), domain.ThumbnailMaxWidth, domain.ThumbnailMaxHeight)
	if err != nil {
		return domain.ExternalFailure(err, op, "The generated image could not be processed")
	}

	err = s.storage.Put(ctx, key, img.Data, img.ContentType)
	metrics.StorageUploaded("image", err)
	if err != nil {
		return domain.ExternalFailure(err, op, "Failed to store the generated image")
	}
	err = s.storage.Put(ctx, thumbKey, thumb, "image/jpeg")
	metrics.StorageUploaded("thumbnail", err)
	if err != nil {
		s.cleanup(key)
		return domain.ExternalFailure(err, op, "Failed to store the image thumbnail")
	}

	url, err := s.storage.URL(ctx, key, 0)
	if err == nil {
		out.ThumbnailURL, err = s.storage.URL(ctx, thumbKey, 0)
	}
	if err != nil {
		s.cleanup(key, thumbKey)
		return domain.ExternalFailure(err, op, "Failed to link the generated image")
	}

	out.URL = url
	out.ContentType = img.ContentType
	out.Width = width
	out.Height = height
	out.RevisedPrompt = img.RevisedPrompt
	out.Model = img.Model
	return nil
}

func (s *imageService) cleanup(keys ...string) {
	ctx := context.Background()
	for _, key := range keys {
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to remove orphaned object", "key", key, "error", err)
		}
	}
}

func providerMessage(err error) string {
	switch {
	case errors.Is(err, ai.EAIContentPolicy):
		return "The prompt was rejected by the image provider's content policy"
	case errors.Is(err, ai.EAIRateLimit):
		return "The image provider is busy. Please try again shortly"
	case errors.Is(err, ai.EAITimeout):
		return "The image provider timed out"
	case ai.IsTransient(err):
		return "The image provider is temporarily unavailable. Please try again"
	default:
		return "Image generation failed"
	}
}
