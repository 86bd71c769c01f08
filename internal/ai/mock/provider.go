package mock

import (
	"bytes"
	"context"
	"hash/fnv"
	"image/color"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/dentalab/internal/ai"
	"github.com/disintegration/imaging"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	GenerateImageResponse *ai.ImageResult
	GenerateImageError    error

	// Call tracking for testing
	GenerateImageCalls int
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// GenerateImage returns a solid-colour PNG whose colour is derived from the
// prompt, so the same prompt always yields the same bytes.
func (p *Provider) GenerateImage(ctx context.Context, params ai.ImageParams) (*ai.ImageResult, error) {
	p.mu.Lock()
	p.GenerateImageCalls++
	resp, respErr := p.GenerateImageResponse, p.GenerateImageError
	p.mu.Unlock()

	if respErr != nil {
		return nil, respErr
	}
	if resp != nil {
		return resp, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, h := parseSize(params.Size)
	img := imaging.New(w, h, promptColor(params.Prompt))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, ai.WrapError("encode mock image", err)
	}

	p.logger.Debug("Mock image generated", "size", params.Size, "bytes", buf.Len())

	return &ai.ImageResult{
		Data:          buf.Bytes(),
		ContentType:   "image/png",
		RevisedPrompt: params.Prompt,
		Model:         "mock-image-v1",
		Duration:      5 * time.Millisecond,
	}, nil
}

// Calls returns the number of GenerateImage calls so far.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.GenerateImageCalls
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateImageCalls = 0
	p.GenerateImageResponse = nil
	p.GenerateImageError = nil
}

// parseSize reads "WxH", scaled down 16x to keep mock images small.
func parseSize(size string) (int, int) {
	if size == "" {
		size = ai.SizeSquare
	}
	parts := strings.SplitN(size, "x", 2)
	if len(parts) != 2 {
		return 64, 64
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 64, 64
	}
	return w / 16, h / 16
}

func promptColor(prompt string) color.NRGBA {
	f := fnv.New32a()
	_, _ = f.Write([]byte(prompt))
	sum := f.Sum32()
	return color.NRGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 255}
}
