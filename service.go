package imagebroker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mhpenta/imagebroker/imgutil"
)

// negativePromptMarker prefixes the appended constraint suffix.
const negativePromptMarker = "Constraints (avoid)"

// GenerateRequest describes one multi-image generation call.
type GenerateRequest struct {
	// Prompt is the main generation prompt.
	Prompt string

	// Count is the requested image count. The broker boundary enforces
	// 1..MaxRequestImages; values below 1 are treated as 1.
	Count int

	// NegativePrompt lists things to avoid; appended as a constraint suffix.
	NegativePrompt string

	// SystemInstruction is optional system-level guidance, placed before
	// the prompt.
	SystemInstruction string

	// InputImages condition the generation; they precede all text parts.
	InputImages []InputImage

	// AspectRatio pins the output canvas shape when set.
	AspectRatio AspectRatio

	// UseStorage selects the store-then-thumbnail output path when an
	// ImageStore is configured.
	UseStorage bool

	// Quality-tier knobs; ignored by the fast tier.
	Resolution      Resolution
	ThinkingLevel   ThinkingLevel
	MediaResolution MediaResolution
	EnableGrounding *bool
}

// EditRequest describes one single-shot image edit call.
type EditRequest struct {
	// Instruction is the natural-language edit instruction.
	Instruction string

	// Image is the source image to edit.
	Image InputImage

	// UseStorage selects the store-then-thumbnail output path.
	UseStorage bool

	// Quality-tier knobs; ignored by the fast tier.
	Resolution      Resolution
	ThinkingLevel   ThinkingLevel
	MediaResolution MediaResolution
	EnableGrounding *bool
}

// tierParams carries the tier-specific request knobs into the hook funcs.
type tierParams struct {
	resolution        Resolution
	thinkingLevel     ThinkingLevel
	mediaResolution   MediaResolution
	enableGrounding   *bool
	negativePrompt    string
	systemInstruction string
	aspectRatio       AspectRatio

	// edit-only fields
	instruction string
	sourceMIME  string
	editIndex   int
}

func paramsFromGenerate(req GenerateRequest) tierParams {
	return tierParams{
		resolution:        req.Resolution,
		thinkingLevel:     req.ThinkingLevel,
		mediaResolution:   req.MediaResolution,
		enableGrounding:   req.EnableGrounding,
		negativePrompt:    req.NegativePrompt,
		systemInstruction: req.SystemInstruction,
		aspectRatio:       req.AspectRatio,
	}
}

func paramsFromEdit(req EditRequest) tierParams {
	return tierParams{
		resolution:      req.Resolution,
		thinkingLevel:   req.ThinkingLevel,
		mediaResolution: req.MediaResolution,
		enableGrounding: req.EnableGrounding,
		instruction:     req.Instruction,
		sourceMIME:      req.Image.MIMEType,
	}
}

// tierHooks is the capability record that parameterizes the shared
// generation loop with tier-specific behavior.
type tierHooks struct {
	// operation names the progress scope (e.g., "flash_image_generation").
	operation string

	// enhance applies tier-specific prompt enhancement.
	enhance func(prompt string, p tierParams) string

	// generationConfig builds tier tunables; nil means "no tunables".
	generationConfig func(p tierParams) *GenerationConfig

	// metadata builds the per-image metadata record with 1-based indices.
	metadata func(prompt string, responseIndex, imageIndex int, p tierParams) ImageMetadata
}

// Service runs the generation and editing loops for one model tier against a
// provider client. Instances are read-only after construction and safe to
// share across requests.
type Service struct {
	client  ProviderClient
	storage ImageStore
	config  ModelConfig
	hooks   tierHooks
	logger  *slog.Logger
	sink    ProgressSink
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets a structured logger for the service.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithImageStore sets the storage backend used for the store-then-thumbnail
// output path.
func WithImageStore(store ImageStore) ServiceOption {
	return func(s *Service) {
		s.storage = store
	}
}

// WithProgressSink sets the sink that receives progress updates.
func WithProgressSink(sink ProgressSink) ServiceOption {
	return func(s *Service) {
		s.sink = sink
	}
}

func newService(client ProviderClient, config ModelConfig, hooks tierHooks, opts ...ServiceOption) *Service {
	s := &Service{
		client: client,
		config: config,
		hooks:  hooks,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the service's tier configuration.
func (s *Service) Config() ModelConfig {
	return s.config
}

// Tier returns the tier this service handles.
func (s *Service) Tier() ModelTier {
	return s.config.Tier
}

// BuildContents builds the ordered provider request contents:
// input-image parts first, then the optional system instruction, then the
// enhanced prompt with the negative-prompt suffix when present.
func (s *Service) BuildContents(req GenerateRequest) ([]ContentPart, error) {
	p := paramsFromGenerate(req)

	var contents []ContentPart
	if req.SystemInstruction != "" {
		contents = append(contents, TextPart(req.SystemInstruction))
	}

	enhanced := s.hooks.enhance(req.Prompt, p)
	if req.NegativePrompt != "" {
		enhanced += fmt.Sprintf("\n\n%s: %s", negativePromptMarker, req.NegativePrompt)
	}
	contents = append(contents, TextPart(enhanced))

	if len(req.InputImages) > 0 {
		imageParts, err := s.client.CreateImageParts(req.InputImages)
		if err != nil {
			return nil, NewProcessingError("failed to build image parts", CodeProcessingEncodingFailed, err)
		}
		// Images precede text so they give context to the prompt.
		contents = append(imageParts, contents...)
	}

	return contents, nil
}

// GenerateImages runs the generation loop for req.Count provider calls.
//
// A failure in one iteration is logged and skipped so the remaining requests
// still run; the result may hold fewer images than requested, including none.
// Callers must treat an empty result as a soft failure. The returned error is
// non-nil only for failures before the loop starts.
func (s *Service) GenerateImages(ctx context.Context, req GenerateRequest) ([]Image, []ImageMetadata, error) {
	if req.Count < 1 {
		req.Count = 1
	}
	p := paramsFromGenerate(req)

	scope := newProgressScope(s.logger, s.sink, s.hooks.operation,
		fmt.Sprintf("Generating %d image(s)...", req.Count),
		map[string]any{
			"prompt": truncateValue(req.Prompt),
			"count":  req.Count,
		})
	defer scope.End()

	scope.Update(10, "Preparing generation request...")

	contents, err := s.BuildContents(req)
	if err != nil {
		return nil, nil, err
	}
	genConfig := s.hooks.generationConfig(p)

	scope.Update(20, "Sending requests to the model...")

	var (
		images   []Image
		metadata []ImageMetadata
	)
	for i := 0; i < req.Count; i++ {
		if err := s.generateOne(ctx, scope, i, req, p, contents, genConfig, &images, &metadata); err != nil {
			s.logger.Error("image generation iteration failed",
				"operation", s.hooks.operation,
				"response_index", i+1,
				"error", err,
			)
			continue
		}
	}

	scope.Update(100, fmt.Sprintf("Generated %d image(s)", len(images)))
	return images, metadata, nil
}

// generateOne performs provider call i of n and processes every image the
// response yields. Any failure aborts only this iteration.
func (s *Service) generateOne(
	ctx context.Context,
	scope *progressScope,
	i int,
	req GenerateRequest,
	p tierParams,
	contents []ContentPart,
	genConfig *GenerationConfig,
	images *[]Image,
	metadata *[]ImageMetadata,
) error {
	n := req.Count
	scope.Update(20+i*60/n, fmt.Sprintf("Generating image %d/%d...", i+1, n))

	resolution := p.resolution
	if resolution == "" {
		resolution = ResolutionHigh
	}

	resp, err := s.client.GenerateContent(ctx, contents, genConfig, CallOptions{
		AspectRatio: req.AspectRatio,
		ImageSize:   resolution,
	})
	if err != nil {
		return providerError("content generation failed", err)
	}

	raw := resp.Images()
	for j, data := range raw {
		scope.Update(20+(i*60+j*60/max(len(raw), 1))/n,
			fmt.Sprintf("Processing image %d.%d...", i+1, j+1))

		meta := s.hooks.metadata(req.Prompt, i+1, j+1, p)
		img, err := s.processImageOutput(ctx, data, meta, req.UseStorage)
		if err != nil {
			return err
		}

		*images = append(*images, img)
		*metadata = append(*metadata, meta)

		s.logger.Info("generated image",
			"operation", s.hooks.operation,
			"response_index", i+1,
			"image_index", j+1,
			"bytes", len(data),
		)
	}
	return nil
}

// EditImage performs a single-shot edit. Unlike the batch loop there is no
// partial result to salvage, so failures are logged and returned.
func (s *Service) EditImage(ctx context.Context, req EditRequest) ([]Image, []ImageMetadata, error) {
	operation := strings.Replace(s.hooks.operation, "generation", "editing", 1)
	p := paramsFromEdit(req)

	scope := newProgressScope(s.logger, s.sink, operation,
		"Editing image...",
		map[string]any{"instruction": truncateValue(req.Instruction)})
	defer scope.End()

	scope.Update(10, "Validating input image...")
	if err := imgutil.ValidateImageFormat(req.Image.MIMEType); err != nil {
		err := NewValidationError("unsupported source image format",
			CodeValidationInvalidFormat, "mime_type", req.Image.MIMEType)
		s.logger.Error("image edit failed", "operation", operation, "error", err)
		return nil, nil, err
	}

	scope.Update(20, "Preparing edit request...")

	enhanced := s.hooks.enhance(req.Instruction, p)
	imageParts, err := s.client.CreateImageParts([]InputImage{req.Image})
	if err != nil {
		err := NewProcessingError("failed to build image parts", CodeProcessingEncodingFailed, err)
		s.logger.Error("image edit failed", "operation", operation, "error", err)
		return nil, nil, err
	}
	contents := append(imageParts, TextPart(enhanced))

	scope.Update(40, "Sending edit request to the model...")

	genConfig := s.hooks.generationConfig(p)
	resp, err := s.client.GenerateContent(ctx, contents, genConfig, CallOptions{})
	if err != nil {
		err := providerError("image edit failed", err)
		s.logger.Error("image edit failed", "operation", operation, "error", err)
		return nil, nil, err
	}

	raw := resp.Images()
	scope.Update(70, "Processing edited image(s)...")

	var (
		images   []Image
		metadata []ImageMetadata
	)
	for i, data := range raw {
		scope.Update(70+i*20/max(len(raw), 1),
			fmt.Sprintf("Processing result %d/%d...", i+1, len(raw)))

		ep := p
		ep.editIndex = i + 1
		meta := s.hooks.metadata(req.Instruction, 1, i+1, ep)

		img, err := s.processImageOutput(ctx, data, meta, req.UseStorage)
		if err != nil {
			s.logger.Error("image edit failed", "operation", operation, "error", err)
			return nil, nil, err
		}

		images = append(images, img)
		metadata = append(metadata, meta)

		s.logger.Info("edited image",
			"operation", operation,
			"image_index", i+1,
			"bytes", len(data),
		)
	}

	scope.Update(100, fmt.Sprintf("Edited image, produced %d result(s)", len(images)))
	return images, metadata, nil
}

// processImageOutput converts raw provider bytes into the deliverable
// representation: store-then-thumbnail when storage is requested and
// available, otherwise inline bytes optimized down to the tier's ceiling.
func (s *Service) processImageOutput(ctx context.Context, data []byte, meta ImageMetadata, useStorage bool) (Image, error) {
	mimeType := "image/" + s.config.DefaultImageFormat

	if useStorage && s.storage != nil {
		stored, err := s.storage.StoreImage(ctx, data, mimeType, meta)
		if err != nil {
			return Image{}, NewProcessingError("failed to store image", CodeProcessingStorageFailed, err)
		}
		meta["stored_id"] = stored.ID
		meta["stored_path"] = stored.Path
		meta["size_bytes"] = len(data)

		thumbB64, err := s.storage.ThumbnailBase64(ctx, stored.ID)
		if err != nil {
			return Image{}, NewProcessingError("failed to load thumbnail", CodeProcessingThumbnailFailed, err)
		}
		if thumbB64 != "" {
			thumb, err := base64.StdEncoding.DecodeString(thumbB64)
			if err != nil {
				return Image{}, NewProcessingError("failed to decode thumbnail", CodeProcessingEncodingFailed, err)
			}
			return Image{Data: thumb, Format: "jpeg"}, nil
		}
	}

	// Fallback: optimize and return the bytes directly.
	maxBytes := s.config.MaxInlineBytes
	if maxBytes <= 0 {
		maxBytes = MaxInlineImageBytes
	}
	optimizedB64, err := imgutil.OptimizeImageSize(base64.StdEncoding.EncodeToString(data), maxBytes)
	if err != nil {
		return Image{}, NewProcessingError("failed to optimize image", CodeProcessingImageFailed, err)
	}
	optimized, err := base64.StdEncoding.DecodeString(optimizedB64)
	if err != nil {
		return Image{}, NewProcessingError("failed to decode optimized image", CodeProcessingEncodingFailed, err)
	}
	meta["size_bytes"] = len(data)
	return Image{Data: optimized, Format: s.config.DefaultImageFormat}, nil
}

// providerError normalizes a provider failure. Errors the provider already
// classified (rate limits, quota) pass through with their code intact.
func providerError(message string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return NewAPIError(message, CodeAPIConnectionFailed, err)
}

// baseMetadata builds the fields shared by both tiers.
func baseMetadata(cfg ModelConfig, prompt string, responseIndex, imageIndex int, p tierParams) ImageMetadata {
	meta := ImageMetadata{
		"model":              cfg.ModelID,
		"model_tier":         string(cfg.Tier),
		"response_index":     responseIndex,
		"image_index":        imageIndex,
		"prompt":             prompt,
		"negative_prompt":    p.negativePrompt,
		"system_instruction": p.systemInstruction,
		"aspect_ratio":       string(p.aspectRatio),
		"mime_type":          "image/" + cfg.DefaultImageFormat,
		"synthid_watermark":  true,
	}
	if p.instruction != "" {
		meta["instruction"] = p.instruction
		meta["source_mime_type"] = p.sourceMIME
		meta["edit_index"] = p.editIndex
	}
	return meta
}
