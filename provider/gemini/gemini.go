// Package gemini provides a ProviderClient implementation using Google's
// Gemini API via the official Go SDK:
// https://github.com/googleapis/go-genai
//
// For Vertex AI or other Google Cloud backends, a separate provider could be
// created using the same SDK with a different backend configuration.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/mhpenta/imagebroker"
)

// Client implements imagebroker.ProviderClient against one Gemini image
// model.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

var _ imagebroker.ProviderClient = (*Client)(nil)

// New creates a Gemini-backed client for the given model. If apiKey is empty
// the SDK falls back to the GOOGLE_API_KEY or GEMINI_API_KEY env vars.
// timeout bounds each GenerateContent call; zero means no per-call bound.
func New(ctx context.Context, apiKey, model string, timeout time.Duration) (*Client, error) {
	if model == "" {
		return nil, imagebroker.NewConfigurationError("model ID is required",
			imagebroker.CodeConfigMissingRequired)
	}

	clientCfg := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
	}
	if apiKey != "" {
		clientCfg.APIKey = apiKey
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

// Model returns the model ID this client targets.
func (c *Client) Model() string {
	return c.model
}

// CreateImageParts converts input images into ordered content parts.
func (c *Client) CreateImageParts(images []imagebroker.InputImage) ([]imagebroker.ContentPart, error) {
	parts := make([]imagebroker.ContentPart, 0, len(images))
	for i, img := range images {
		if len(img.Data) == 0 {
			return nil, fmt.Errorf("input image %d has no data", i)
		}
		parts = append(parts, imagebroker.ImagePart(img.Data, img.MIMEType))
	}
	return parts, nil
}

// GenerateContent performs one generation call against the configured model.
func (c *Client) GenerateContent(ctx context.Context, contents []imagebroker.ContentPart, cfg *imagebroker.GenerationConfig, opts imagebroker.CallOptions) (imagebroker.ProviderResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	parts := make([]*genai.Part, 0, len(contents))
	for _, p := range contents {
		if p.IsText() {
			parts = append(parts, &genai.Part{Text: p.Text})
			continue
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				Data:     p.Data,
				MIMEType: p.MIMEType,
			},
		})
	}

	genaiContents := []*genai.Content{
		{Parts: parts},
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, genaiContents, c.buildConfig(cfg, opts))
	if err != nil {
		return nil, classifyError(err, c.model)
	}

	return parseResponse(result), nil
}

// buildConfig converts tier tunables and call options to Gemini's
// GenerateContentConfig.
func (c *Client) buildConfig(cfg *imagebroker.GenerationConfig, opts imagebroker.CallOptions) *genai.GenerateContentConfig {
	genConfig := &genai.GenerateContentConfig{
		// Image models require both modalities.
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	imageConfig := &genai.ImageConfig{}
	if opts.ImageSize != "" {
		imageConfig.ImageSize = imageSizeFor(opts.ImageSize)
	}
	if opts.AspectRatio != "" {
		imageConfig.AspectRatio = string(opts.AspectRatio)
	}
	genConfig.ImageConfig = imageConfig

	if cfg == nil {
		return genConfig
	}

	if cfg.ThinkingLevel != "" {
		genConfig.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingLevel:   thinkingLevelFor(cfg.ThinkingLevel),
		}
	}
	if cfg.MediaResolution != "" {
		genConfig.MediaResolution = mediaResolutionFor(cfg.MediaResolution)
	}
	if cfg.EnableGrounding {
		genConfig.Tools = []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		}
	}

	return genConfig
}

// imageSizeFor maps a resolution class to the API's image size string. The
// "high" class renders at 2K.
func imageSizeFor(r imagebroker.Resolution) string {
	switch r {
	case imagebroker.Resolution1K:
		return "1K"
	case imagebroker.Resolution2K:
		return "2K"
	case imagebroker.Resolution4K:
		return "4K"
	case imagebroker.ResolutionHigh:
		return "2K"
	default:
		return ""
	}
}

func thinkingLevelFor(l imagebroker.ThinkingLevel) genai.ThinkingLevel {
	if l == imagebroker.ThinkingLevelLow {
		return genai.ThinkingLevelLow
	}
	return genai.ThinkingLevelHigh
}

func mediaResolutionFor(r imagebroker.MediaResolution) genai.MediaResolution {
	switch r {
	case imagebroker.MediaResolutionLow:
		return genai.MediaResolutionLow
	case imagebroker.MediaResolutionMedium:
		return genai.MediaResolutionMedium
	default:
		return genai.MediaResolutionHigh
	}
}

// response adapts a Gemini result to imagebroker.ProviderResponse.
type response struct {
	images [][]byte
	text   string
}

func (r *response) Images() [][]byte { return r.images }
func (r *response) Text() string     { return r.text }

// parseResponse flattens candidates into image bytes and text, skipping
// thought parts. An empty or image-free result yields an empty response, not
// an error; the caller decides how to report zero images.
func parseResponse(result *genai.GenerateContentResponse) *response {
	resp := &response{}
	if result == nil {
		return resp
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Thought {
				continue
			}
			if part.Text != "" {
				resp.text += part.Text
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				resp.images = append(resp.images, part.InlineData.Data)
			}
		}
	}
	return resp
}

// classifyError maps Gemini API failures onto broker error codes so callers
// can distinguish throttling and quota exhaustion from transport failures.
func classifyError(err error, model string) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch {
	case apiErr.Code == 429, apiErr.Status == "RESOURCE_EXHAUSTED":
		return imagebroker.NewAPIError("model rate limit exceeded",
			imagebroker.CodeAPIRateLimited, err).
			WithContext("model", model).
			WithContext("retry_after", "60s")
	case apiErr.Code == 401, apiErr.Code == 403:
		return imagebroker.NewAPIError("API authentication failed",
			imagebroker.CodeAPIAuthFailed, err).
			WithContext("model", model)
	default:
		return err
	}
}
