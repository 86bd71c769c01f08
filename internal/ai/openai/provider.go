package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/dentalab/internal/ai"
	"github.com/DukeRupert/dentalab/internal/metrics"
	"github.com/google/uuid"
)

const (
	// APIBaseURL is the base URL for the OpenAI API
	APIBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the default image model to use
	DefaultModel = "gpt-image-1"

	// maxResponseSize caps the decoded response body (base64 images are large)
	maxResponseSize = 32 * 1024 * 1024
)

// Config contains configuration for the OpenAI provider
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string // Overridden in tests
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.ImageGenerator using the OpenAI images API
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new OpenAI image provider
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = 120 * time.Second
	}

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// GenerateImage generates one image. There is no retry loop: a failed
// generation is reported to the caller and never charged.
func (p *Provider) GenerateImage(ctx context.Context, params ai.ImageParams) (*ai.ImageResult, error) {
	startTime := time.Now()

	if strings.TrimSpace(params.Prompt) == "" {
		return nil, ai.WrapError("generate image", errors.New("prompt is required"))
	}

	req, err := p.buildRequest(ctx, params)
	if err != nil {
		return nil, ai.WrapError("build request", err)
	}

	resp, err := p.executeRequest(req)
	if err != nil {
		metrics.AIAPICalls.WithLabelValues("error").Inc()
		return nil, ai.WrapError("execute request", err)
	}

	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		metrics.AIAPICalls.WithLabelValues("error").Inc()
		return nil, ai.WrapError("parse response", errors.New("no image in response"))
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		metrics.AIAPICalls.WithLabelValues("error").Inc()
		return nil, ai.WrapError("decode image", err)
	}

	metrics.AIAPICalls.WithLabelValues("success").Inc()
	duration := time.Since(startTime)
	p.logger.Debug("Image generated",
		"model", p.config.Model,
		"bytes", len(data),
		"duration", duration,
	)

	return &ai.ImageResult{
		Data:          data,
		ContentType:   http.DetectContentType(data),
		RevisedPrompt: resp.Data[0].RevisedPrompt,
		Model:         p.config.Model,
		Duration:      duration,
	}, nil
}

// buildRequest builds the HTTP request for image generation
func (p *Provider) buildRequest(ctx context.Context, params ai.ImageParams) (*http.Request, error) {
	size := params.Size
	if size == "" {
		size = ai.SizeSquare
	}

	reqBody := apiRequest{
		Model:  p.config.Model,
		Prompt: params.Prompt,
		N:      1,
		Size:   size,
	}
	if params.AccountID != uuid.Nil {
		reqBody.User = params.AccountID.String()
	}
	// gpt-image models always return base64; dall-e models must be asked.
	if strings.HasPrefix(p.config.Model, "dall-e") {
		reqBody.ResponseFormat = "b64_json"
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/images/generations", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	return req, nil
}

// executeRequest executes a single HTTP request
func (p *Provider) executeRequest(req *http.Request) (*apiResponse, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		var timeout interface{ Timeout() bool }
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &timeout) && timeout.Timeout()) {
			return nil, ai.EAITimeout
		}
		return nil, fmt.Errorf("%w: %v", ai.EAIUnavailable, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(resp.StatusCode, bodyBytes)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &apiResp, nil
}

// mapHTTPError maps HTTP status codes to provider errors
func mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch statusCode {
	case http.StatusUnauthorized:
		return ai.EAIUnauthorized
	case http.StatusTooManyRequests:
		return ai.EAIRateLimit
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ai.EAITimeout
	case http.StatusBadRequest:
		if errResp.Error.Code == "content_policy_violation" || errResp.Error.Code == "moderation_blocked" {
			return ai.EAIContentPolicy
		}
		return fmt.Errorf("bad request: %s", errResp.Error.Message)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusInternalServerError:
		return ai.EAIUnavailable
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, errResp.Error.Message)
	}
}

// API request/response types

type apiRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format,omitempty"`
	User           string `json:"user,omitempty"`
}

type apiResponse struct {
	Created int64          `json:"created"`
	Data    []apiImageData `json:"data"`
}

type apiImageData struct {
	B64JSON       string `json:"b64_json"`
	RevisedPrompt string `json:"revised_prompt"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
