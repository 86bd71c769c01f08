package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Thumbnail settings for generated images.
const (
	ThumbnailMaxWidth    = 256
	ThumbnailMaxHeight   = 256
	ThumbnailJPEGQuality = 85
)

// MaxPromptLength bounds image prompts in runes.
const MaxPromptLength = 4000

// ImageRequest is a request to generate one image.
type ImageRequest struct {
	Prompt string
	Size   string // empty means the provider default
}

// Validate checks the prompt. Size is checked by the image service, which
// knows what the provider accepts.
func (r ImageRequest) Validate(op string) error {
	prompt := strings.TrimSpace(r.Prompt)
	if prompt == "" {
		return NewValidationError(op, "prompt", "Prompt is required")
	}
	if len([]rune(prompt)) > MaxPromptLength {
		return NewValidationError(op, "prompt", "Prompt is too long")
	}
	return nil
}

// GeneratedImage is the outcome of a successful metered image generation.
type GeneratedImage struct {
	ID            uuid.UUID
	URL           string
	ThumbnailURL  string
	ContentType   string
	Width         int
	Height        int
	RevisedPrompt string
	Model         string
	Usage         MeteredResult
}

// GeneratedDocument is the outcome of a successful metered PDF generation.
type GeneratedDocument struct {
	ID          uuid.UUID
	URL         string
	ContentType string
	SizeBytes   int64
	Usage       MeteredResult
}
