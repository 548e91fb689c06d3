package imagebroker

// Image is the final deliverable representation of one generated image:
// either a stored image's thumbnail or directly-optimized inline bytes.
type Image struct {
	// Data contains the deliverable image bytes.
	Data []byte

	// Format is the image format of Data ("png", "jpeg", ...).
	Format string
}

// ImageMetadata describes one generated image. Keys vary by tier: both tiers
// emit model/model_tier/indices/prompt fields, the quality tier adds
// resolution, thinking_level, media_resolution, and grounding_enabled.
type ImageMetadata map[string]any

// Tier returns the model_tier value, or "" when absent.
func (m ImageMetadata) Tier() string {
	s, _ := m["model_tier"].(string)
	return s
}

// Model returns the model identifier, or "" when absent.
func (m ImageMetadata) Model() string {
	s, _ := m["model"].(string)
	return s
}
