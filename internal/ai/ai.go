package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ImageGenerator defines the interface for AI image generation providers.
type ImageGenerator interface {
	// GenerateImage renders a single image from a text prompt.
	// Providers make exactly one upstream attempt; callers decide whether to retry.
	GenerateImage(ctx context.Context, params ImageParams) (*ImageResult, error)
}

// ImageParams contains parameters for image generation
type ImageParams struct {
	Prompt    string    // What to draw
	Size      string    // "1024x1024", "1024x1536" or "1536x1024"
	AccountID uuid.UUID // Account ID for upstream abuse tracking
}

// ImageResult contains a generated image
type ImageResult struct {
	Data          []byte        // Encoded image bytes
	ContentType   string        // MIME type (e.g., "image/png")
	RevisedPrompt string        // Prompt as rewritten by the provider, if any
	Model         string        // Model that produced the image
	Duration      time.Duration // Request duration
}

// Image sizes accepted by every provider.
const (
	SizeSquare    = "1024x1024"
	SizePortrait  = "1024x1536"
	SizeLandscape = "1536x1024"
)

// ValidSize reports whether size is supported.
func ValidSize(size string) bool {
	switch size {
	case SizeSquare, SizePortrait, SizeLandscape:
		return true
	default:
		return false
	}
}

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIContentPolicy indicates the prompt violates content policy
	EAIContentPolicy = errors.New("prompt violates content policy")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")
)

// IsTransient returns true if the error is one a caller could reasonably retry
func IsTransient(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
