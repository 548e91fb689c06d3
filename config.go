package imagebroker

import "time"

// Model identifier constants for the two backing models.
const (
	// ModelFlashImage is the API model name for the fast tier.
	ModelFlashImage = "gemini-2.5-flash-image"

	// ModelProImage is the API model name for the quality tier.
	ModelProImage = "gemini-3-pro-image-preview"
)

// Request boundary limits.
const (
	// MaxInputImages is the maximum number of input images per request.
	MaxInputImages = 3

	// MaxRequestImages is the maximum requested image count per call.
	MaxRequestImages = 4

	// MaxInlineImageBytes is the size ceiling for inline image payloads
	// returned without a storage backend (2 MiB).
	MaxInlineImageBytes = 2 * 1024 * 1024
)

// ModelConfig describes one model tier's capabilities and defaults. Configs
// are created once at process configuration time and are read-only afterward.
type ModelConfig struct {
	// ModelID is the provider model identifier.
	ModelID string

	// Tier this configuration belongs to.
	Tier ModelTier

	// MaxImages is the maximum images per request for this tier.
	MaxImages int

	// MaxInlineBytes is the inline payload size ceiling.
	MaxInlineBytes int

	// DefaultImageFormat is the output format when not stored ("png", "jpeg").
	DefaultImageFormat string

	// RequestTimeout bounds a single provider call.
	RequestTimeout time.Duration

	// MaxResolution is the highest resolution class this tier supports.
	MaxResolution Resolution

	// Capability flags.
	SupportsThinking        bool
	SupportsGrounding       bool
	SupportsMediaResolution bool

	// Tier-specific defaults, applied when a request leaves them unset.
	DefaultThinkingLevel   ThinkingLevel
	DefaultMediaResolution MediaResolution
	EnableSearchGrounding  bool
}

// FlashModelConfig returns the default configuration for the fast tier.
func FlashModelConfig() ModelConfig {
	return ModelConfig{
		ModelID:            ModelFlashImage,
		Tier:               TierFlash,
		MaxImages:          MaxRequestImages,
		MaxInlineBytes:     MaxInlineImageBytes,
		DefaultImageFormat: "png",
		RequestTimeout:     60 * time.Second,
		MaxResolution:      Resolution1K,
	}
}

// ProModelConfig returns the default configuration for the quality tier.
func ProModelConfig() ModelConfig {
	return ModelConfig{
		ModelID:                 ModelProImage,
		Tier:                    TierPro,
		MaxImages:               MaxRequestImages,
		MaxInlineBytes:          MaxInlineImageBytes,
		DefaultImageFormat:      "png",
		RequestTimeout:          180 * time.Second,
		MaxResolution:           Resolution4K,
		SupportsThinking:        true,
		SupportsGrounding:       true,
		SupportsMediaResolution: true,
		DefaultThinkingLevel:    ThinkingLevelHigh,
		DefaultMediaResolution:  MediaResolutionHigh,
		EnableSearchGrounding:   true,
	}
}

// SelectionConfig drives the AUTO tier heuristic.
type SelectionConfig struct {
	// DefaultTier is used when no heuristic rule matches.
	DefaultTier ModelTier

	// QualityKeywords force the quality tier on a case-insensitive
	// substring match against the prompt.
	QualityKeywords []string

	// SpeedKeywords select the fast tier when no quality keyword matched.
	SpeedKeywords []string
}

// DefaultSelectionConfig returns the standard keyword heuristic.
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{
		DefaultTier: TierPro,
		QualityKeywords: []string{
			"professional", "high-quality", "detailed", "photorealistic", "4k",
		},
		SpeedKeywords: []string{
			"quick", "fast", "draft", "prototype", "sketch",
		},
	}
}
