package imagebroker

// NewFlashService builds the fast-tier generation service. The flash model
// takes prompts as-is and needs no generation tunables.
func NewFlashService(client ProviderClient, config ModelConfig, opts ...ServiceOption) *Service {
	return newService(client, config, flashHooks(config), opts...)
}

func flashHooks(cfg ModelConfig) tierHooks {
	return tierHooks{
		operation: "flash_image_generation",

		enhance: func(prompt string, _ tierParams) string {
			return prompt
		},

		generationConfig: func(_ tierParams) *GenerationConfig {
			return nil
		},

		metadata: func(prompt string, responseIndex, imageIndex int, p tierParams) ImageMetadata {
			return baseMetadata(cfg, prompt, responseIndex, imageIndex, p)
		},
	}
}
