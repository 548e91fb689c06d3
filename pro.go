package imagebroker

import "strings"

// narrativePromptThreshold is the prompt length below which the quality tier
// wraps the prompt in a narrative template.
const narrativePromptThreshold = 50

// NewProService builds the quality-tier generation service. The pro model
// benefits from narrative prompts and exposes thinking-level, media-resolution,
// and grounding tunables.
func NewProService(client ProviderClient, config ModelConfig, opts ...ServiceOption) *Service {
	return newService(client, config, proHooks(config), opts...)
}

func proHooks(cfg ModelConfig) tierHooks {
	return tierHooks{
		operation: "pro_image_generation",

		enhance: func(prompt string, p tierParams) string {
			return enhanceProPrompt(prompt, p.resolution)
		},

		generationConfig: func(p tierParams) *GenerationConfig {
			level := p.thinkingLevel
			if level == "" {
				level = cfg.DefaultThinkingLevel
			}
			gc := &GenerationConfig{
				ThinkingLevel:   level,
				EnableGrounding: resolveGrounding(cfg, p),
			}
			if cfg.SupportsMediaResolution {
				mr := p.mediaResolution
				if mr == "" {
					mr = cfg.DefaultMediaResolution
				}
				gc.MediaResolution = mr
			}
			return gc
		},

		metadata: func(prompt string, responseIndex, imageIndex int, p tierParams) ImageMetadata {
			level := p.thinkingLevel
			if level == "" {
				level = cfg.DefaultThinkingLevel
			}
			mr := p.mediaResolution
			if mr == "" {
				mr = cfg.DefaultMediaResolution
			}
			resolution := p.resolution
			if resolution == "" {
				resolution = ResolutionHigh
			}

			meta := baseMetadata(cfg, prompt, responseIndex, imageIndex, p)
			meta["resolution"] = string(resolution)
			meta["thinking_level"] = string(level)
			meta["media_resolution"] = string(mr)
			meta["grounding_enabled"] = resolveGrounding(cfg, p)
			return meta
		},
	}
}

func resolveGrounding(cfg ModelConfig, p tierParams) bool {
	if p.enableGrounding != nil {
		return *p.enableGrounding
	}
	return cfg.EnableSearchGrounding
}

// enhanceProPrompt rewrites short prompts into a narrative template and
// appends resolution hints. The two augmentations are independent and may
// both apply.
func enhanceProPrompt(prompt string, resolution Resolution) string {
	enhanced := prompt

	if len(prompt) < narrativePromptThreshold {
		enhanced = "Create a high-quality, detailed image: " + prompt +
			". Pay attention to composition, lighting, and fine details."
	}

	if resolution == "" {
		resolution = ResolutionHigh
	}
	if highResolutions[resolution] {
		lower := strings.ToLower(prompt)
		if strings.Contains(lower, "text") || strings.Contains(lower, "diagram") {
			enhanced += " Ensure text is sharp and clearly readable at high resolution."
		}
		if resolution == Resolution4K {
			enhanced += " Render at maximum 4K quality with exceptional detail."
		}
	}

	return enhanced
}
