package mock

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/png"
	"io"
	"log/slog"
	"testing"

	"github.com/DukeRupert/dentalab/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateImage_ProducesDecodablePNG(t *testing.T) {
	p := New(slog.New(slog.NewTextHandler(io.Discard, nil)))

	res, err := p.GenerateImage(context.Background(), ai.ImageParams{Prompt: "crown", Size: ai.SizePortrait})
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 96, img.Bounds().Dy())
	assert.Equal(t, 1, p.Calls())

	again, err := p.GenerateImage(context.Background(), ai.ImageParams{Prompt: "crown", Size: ai.SizePortrait})
	require.NoError(t, err)
	assert.Equal(t, res.Data, again.Data)
}

func TestGenerateImage_ConfiguredError(t *testing.T) {
	p := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.GenerateImageError = errors.New("provider down")

	_, err := p.GenerateImage(context.Background(), ai.ImageParams{Prompt: "crown"})
	assert.Error(t, err)
	assert.Equal(t, 1, p.Calls())

	p.Reset()
	assert.Equal(t, 0, p.Calls())
	_, err = p.GenerateImage(context.Background(), ai.ImageParams{Prompt: "crown"})
	assert.NoError(t, err)
}
