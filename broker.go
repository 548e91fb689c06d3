package imagebroker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mhpenta/imagebroker/ratelimiter"
)

// Operation modes accepted at the broker boundary.
const (
	ModeAuto     = "auto"
	ModeGenerate = "generate"
	ModeEdit     = "edit"
)

// tokenBuffer pads token estimates to cover non-prompt request overhead.
const tokenBuffer = 100

// Request is the tool-level request handled by the broker.
type Request struct {
	// Prompt is the generation prompt, or the edit instruction in edit mode.
	Prompt string

	// Count is the requested image count (1-4). Zero means 1.
	Count int

	NegativePrompt    string
	SystemInstruction string

	// InputImagePaths are local paths to up to MaxInputImages source images.
	InputImagePaths []string

	// Mode is "auto", "generate", or "edit". Auto detects edit when exactly
	// one input image path is given.
	Mode string

	// ModelTier is "flash", "pro", or "auto". Unknown values are treated as
	// auto with a warning.
	ModelTier string

	// Resolution is the output resolution class ("1k", "2k", "4k", "high").
	Resolution string

	// ThinkingLevel is the pro-tier reasoning depth ("low", "high").
	// Unknown values fall back to the tier default with a warning.
	ThinkingLevel string

	// EnableGrounding toggles Google Search grounding on the pro tier.
	// Nil means the tier default.
	EnableGrounding *bool

	// AspectRatio pins the output canvas shape when set.
	AspectRatio string

	// UseStorage selects the store-then-thumbnail output path.
	UseStorage bool
}

// Response is the normalized broker result.
type Response struct {
	Mode     string
	Tier     ModelTier
	Model    TierInfo
	Images   []Image
	Metadata []ImageMetadata

	// Summary is a human-readable result description.
	Summary string

	// Structured is the machine-readable result content.
	Structured map[string]any
}

// Empty reports whether the request produced no images (a soft failure for
// batch generation).
func (r *Response) Empty() bool {
	return len(r.Metadata) == 0
}

// Broker is the orchestration entry point: it validates the request, selects
// a tier, enforces rate limits, dispatches to the generation service, and
// assembles the response.
type Broker struct {
	selector        *ModelSelector
	limiters        ratelimiter.Registry
	estimator       TokenEstimator
	logger          *slog.Logger
	waitOnRateLimit bool
	maxWait         time.Duration
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBrokerLogger sets a structured logger for the broker.
func WithBrokerLogger(logger *slog.Logger) BrokerOption {
	return func(b *Broker) {
		b.logger = logger
	}
}

// WithTokenEstimator overrides the token estimation strategy used for rate
// limiting.
func WithTokenEstimator(estimator TokenEstimator) BrokerOption {
	return func(b *Broker) {
		b.estimator = estimator
	}
}

// WithWaitOnRateLimit makes the broker wait for capacity instead of failing
// immediately. maxWait of zero means no limit.
func WithWaitOnRateLimit(maxWait time.Duration) BrokerOption {
	return func(b *Broker) {
		b.waitOnRateLimit = true
		b.maxWait = maxWait
	}
}

// NewBroker creates a broker over the given selector.
func NewBroker(selector *ModelSelector, opts ...BrokerOption) *Broker {
	b := &Broker{
		selector:  selector,
		limiters:  ratelimiter.NewRegistry(),
		estimator: NewSimpleTokenEstimator(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetRateLimiter installs a rate limiter for a model identifier. Requests
// resolved to that model consume estimated tokens before dispatch.
func (b *Broker) SetRateLimiter(modelID string, limiter ratelimiter.Limiter) *Broker {
	b.limiters.Set(modelID, limiter)
	return b
}

// Handle processes one request end to end.
//
// Validation and file errors abort before any provider call. Batch generation
// returns whatever succeeded; callers must check Response.Empty for the
// "no images produced" soft failure. Edit failures propagate as errors.
func (b *Broker) Handle(ctx context.Context, req Request) (*Response, error) {
	if err := b.validate(&req); err != nil {
		b.logger.Error("request validation failed", "error", err)
		return nil, err
	}

	mode := detectMode(req.Mode, req.InputImagePaths)

	tier, ok := ParseModelTier(req.ModelTier)
	if !ok {
		b.logger.Warn("invalid model tier, defaulting to auto", "model_tier", req.ModelTier)
	}
	thinking, ok := ParseThinkingLevel(req.ThinkingLevel)
	if !ok {
		b.logger.Warn("invalid thinking level, defaulting to high", "thinking_level", req.ThinkingLevel)
		thinking = ThinkingLevelHigh
	}

	service, selectedTier := b.selector.SelectModel(SelectionRequest{
		Prompt:          req.Prompt,
		RequestedTier:   tier,
		Count:           req.Count,
		Resolution:      Resolution(req.Resolution),
		InputImageCount: len(req.InputImagePaths),
		ThinkingLevel:   thinking,
		EnableGrounding: req.EnableGrounding != nil && *req.EnableGrounding,
	})
	info := b.selector.ModelInfo(selectedTier)
	if thinking == "" {
		// The service applies the same default; resolve it here so the
		// response reports the level actually used.
		thinking = service.Config().DefaultThinkingLevel
	}

	b.logger.Info("selected model",
		"tier", selectedTier.String(),
		"model", info.ModelID,
		"mode", mode,
		"requested_tier", req.ModelTier,
	)

	if err := b.checkRateLimit(ctx, info.ModelID, req.Prompt); err != nil {
		b.logger.Warn("rate limit hit", "model", info.ModelID, "error", err)
		return nil, err
	}

	var (
		images   []Image
		metadata []ImageMetadata
		err      error
	)
	switch mode {
	case ModeEdit:
		images, metadata, err = b.edit(ctx, service, req, thinking)
	default:
		images, metadata, err = b.generate(ctx, service, req, thinking)
	}
	if err != nil {
		return nil, err
	}

	resp := b.buildResponse(mode, req, tier, selectedTier, info, thinking, images, metadata)
	b.logger.Info("request completed",
		"mode", mode,
		"tier", selectedTier.String(),
		"requested", req.Count,
		"returned", len(images),
	)
	return resp, nil
}

func (b *Broker) validate(req *Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return NewValidationError("prompt must not be empty", CodeValidationEmptyInput, "prompt", req.Prompt)
	}
	if req.Count == 0 {
		req.Count = 1
	}
	if req.Count < 1 || req.Count > MaxRequestImages {
		return NewValidationError(
			fmt.Sprintf("image count must be between 1 and %d", MaxRequestImages),
			CodeValidationSizeExceeded, "n", req.Count)
	}

	if req.Mode == "" {
		req.Mode = ModeAuto
	}
	switch req.Mode {
	case ModeAuto, ModeGenerate, ModeEdit:
	default:
		return NewValidationError("mode must be 'auto', 'generate', or 'edit'",
			CodeValidationInvalidMode, "mode", req.Mode)
	}

	if len(req.InputImagePaths) > MaxInputImages {
		return NewValidationError(
			fmt.Sprintf("maximum %d input images allowed", MaxInputImages),
			CodeValidationFileCount, "input_image_paths", len(req.InputImagePaths))
	}
	for i, path := range req.InputImagePaths {
		field := fmt.Sprintf("input_image_path_%d", i+1)
		fi, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return NewValidationError(
				fmt.Sprintf("input image %d not found: %s", i+1, path),
				CodeFileNotFound, field, path)
		case err != nil:
			return NewFileError(
				fmt.Sprintf("input image %d is not accessible", i+1),
				CodeFileAccessDenied, path, err)
		case fi.IsDir():
			return NewValidationError(
				fmt.Sprintf("input image %d is not a file: %s", i+1, path),
				CodeValidationInvalidPath, field, path)
		}
	}

	if !ValidAspectRatio(AspectRatio(req.AspectRatio)) {
		return NewValidationError("unsupported aspect ratio",
			CodeValidationInvalidFormat, "aspect_ratio", req.AspectRatio)
	}

	if req.Mode == ModeEdit && len(req.InputImagePaths) != 1 {
		return NewValidationError("edit mode requires exactly one input image path",
			CodeValidationInvalidMode, "input_image_paths", len(req.InputImagePaths))
	}
	return nil
}

// detectMode resolves "auto" from the inputs: a single input image means an
// edit, anything else is generation.
func detectMode(mode string, inputPaths []string) string {
	if mode != ModeAuto {
		return mode
	}
	if len(inputPaths) == 1 {
		return ModeEdit
	}
	return ModeGenerate
}

func (b *Broker) generate(ctx context.Context, service *Service, req Request, thinking ThinkingLevel) ([]Image, []ImageMetadata, error) {
	inputImages, err := b.loadInputImages(req.InputImagePaths)
	if err != nil {
		return nil, nil, err
	}

	return service.GenerateImages(ctx, GenerateRequest{
		Prompt:            req.Prompt,
		Count:             req.Count,
		NegativePrompt:    req.NegativePrompt,
		SystemInstruction: req.SystemInstruction,
		InputImages:       inputImages,
		AspectRatio:       AspectRatio(req.AspectRatio),
		UseStorage:        req.UseStorage,
		Resolution:        Resolution(req.Resolution),
		ThinkingLevel:     thinking,
		EnableGrounding:   req.EnableGrounding,
	})
}

func (b *Broker) edit(ctx context.Context, service *Service, req Request, thinking ThinkingLevel) ([]Image, []ImageMetadata, error) {
	source, err := b.loadInputImage(req.InputImagePaths[0])
	if err != nil {
		return nil, nil, err
	}

	return service.EditImage(ctx, EditRequest{
		Instruction:     req.Prompt,
		Image:           source,
		UseStorage:      req.UseStorage,
		Resolution:      Resolution(req.Resolution),
		ThinkingLevel:   thinking,
		EnableGrounding: req.EnableGrounding,
	})
}

func (b *Broker) loadInputImages(paths []string) ([]InputImage, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	images := make([]InputImage, 0, len(paths))
	for _, path := range paths {
		img, err := b.loadInputImage(path)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	b.logger.Debug("loaded input images", "count", len(images))
	return images, nil
}

func (b *Broker) loadInputImage(path string) (InputImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return InputImage{}, NewFileError(
			fmt.Sprintf("failed to read input image %s", path),
			CodeFileReadFailed, path, err)
	}
	return InputImage{Data: data, MIMEType: mimeTypeForPath(path)}, nil
}

// mimeTypeForPath guesses the MIME type from the file extension, defaulting
// to PNG for unknown extensions.
func mimeTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}

func (b *Broker) checkRateLimit(ctx context.Context, modelID, prompt string) error {
	limiter, ok := b.limiters.Get(modelID)
	if !ok {
		return nil
	}

	tokens := b.estimator.EstimateTokens(prompt) + tokenBuffer

	if b.waitOnRateLimit {
		if err := limiter.WaitAndConsume(ctx, tokens, b.maxWait); err != nil {
			return NewAPIError(
				fmt.Sprintf("rate limit exceeded for %s", modelID),
				CodeAPIRateLimited, err)
		}
		return nil
	}

	if !limiter.TryConsume(tokens) {
		return NewAPIError(
			fmt.Sprintf("rate limit exceeded for %s", modelID),
			CodeAPIRateLimited, nil).
			WithContext("retry_after", limiter.TimeUntilAvailable(tokens).String())
	}
	return nil
}

func (b *Broker) buildResponse(
	mode string,
	req Request,
	requestedTier, selectedTier ModelTier,
	info TierInfo,
	thinking ThinkingLevel,
	images []Image,
	metadata []ImageMetadata,
) *Response {
	resp := &Response{
		Mode:     mode,
		Tier:     selectedTier,
		Model:    info,
		Images:   images,
		Metadata: metadata,
	}

	if len(metadata) == 0 {
		resp.Summary = fmt.Sprintf("❌ No images were produced for this %s request.", mode)
		resp.Structured = map[string]any{
			"error":      "no_images_produced",
			"mode":       mode,
			"model_tier": selectedTier.String(),
			"requested":  req.Count,
			"returned":   0,
		}
		return resp
	}

	resp.Summary = b.buildSummary(mode, req, selectedTier, info, thinking, metadata)
	resp.Structured = map[string]any{
		"mode":                    mode,
		"model_tier":              selectedTier.String(),
		"model_name":              info.Name,
		"model_id":                info.ModelID,
		"requested_tier":          req.ModelTier,
		"auto_selected":           requestedTier == TierAuto,
		"resolution":              req.Resolution,
		"requested":               req.Count,
		"returned":                len(images),
		"negative_prompt_applied": req.NegativePrompt != "",
		"used_input_images":       len(req.InputImagePaths) > 0,
		"input_image_count":       len(req.InputImagePaths),
		"aspect_ratio":            req.AspectRatio,
		"images":                  metadata,
	}
	if selectedTier == TierPro {
		resp.Structured["thinking_level"] = string(thinking)
		resp.Structured["grounding_enabled"] = req.EnableGrounding == nil || *req.EnableGrounding
	} else {
		resp.Structured["thinking_level"] = nil
		resp.Structured["grounding_enabled"] = false
	}
	return resp
}

func (b *Broker) buildSummary(
	mode string,
	req Request,
	tier ModelTier,
	info TierInfo,
	thinking ThinkingLevel,
	metadata []ImageMetadata,
) string {
	verb := "Generated"
	if mode == ModeEdit {
		verb = "Edited"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ %s %d image(s) with %s %s.\n", verb, len(metadata), info.Emoji, info.Name)
	fmt.Fprintf(&sb, "Model: %s tier (%s)\n", strings.ToUpper(tier.String()), info.ModelID)

	if tier == TierPro {
		fmt.Fprintf(&sb, "Thinking level: %s\n", thinking)
		if req.Resolution != "" {
			fmt.Fprintf(&sb, "Resolution: %s\n", req.Resolution)
		}
		if req.EnableGrounding == nil || *req.EnableGrounding {
			sb.WriteString("Grounding: enabled (Google Search)\n")
		}
	}

	if mode == ModeEdit {
		fmt.Fprintf(&sb, "Edit source: %s\n", req.InputImagePaths[0])
	} else if len(req.InputImagePaths) > 0 {
		fmt.Fprintf(&sb, "Conditioned on %d input image(s)\n", len(req.InputImagePaths))
	}
	if req.AspectRatio != "" && mode != ModeEdit {
		fmt.Fprintf(&sb, "Aspect ratio: %s\n", req.AspectRatio)
	}

	for i, meta := range metadata {
		if path, ok := meta["stored_path"].(string); ok {
			size, _ := meta["size_bytes"].(int)
			fmt.Fprintf(&sb, "  %d. %s (%.1f MB)\n", i+1, path, float64(size)/(1024*1024))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
