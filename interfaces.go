package imagebroker

import (
	"context"
	"time"
)

// InputImage is a source image supplied with a request.
type InputImage struct {
	// Data is the raw image bytes
	Data []byte

	// MIMEType of the image (e.g., "image/jpeg", "image/png")
	MIMEType string
}

// ContentPart is one element of an ordered provider request. A part holds
// either text or image bytes, never both.
type ContentPart struct {
	Text     string
	Data     []byte
	MIMEType string
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Text: text}
}

// ImagePart builds an image content part.
func ImagePart(data []byte, mimeType string) ContentPart {
	return ContentPart{Data: data, MIMEType: mimeType}
}

// IsText reports whether the part carries text rather than image bytes.
func (p ContentPart) IsText() bool {
	return len(p.Data) == 0
}

// GenerationConfig holds tier-specific provider tunables. The fast tier uses
// no tunables and passes nil instead.
type GenerationConfig struct {
	ThinkingLevel   ThinkingLevel
	MediaResolution MediaResolution
	EnableGrounding bool
}

// CallOptions carries per-call rendering hints for the provider.
type CallOptions struct {
	AspectRatio AspectRatio
	ImageSize   Resolution
}

// ProviderResponse is an opaque provider result. An empty Images slice is
// valid and means the call produced no image.
type ProviderResponse interface {
	// Images returns the raw bytes of every image in the response.
	Images() [][]byte

	// Text returns any text the model produced alongside the images.
	Text() string
}

// ProviderClient is the generative-model client contract consumed by the
// generation services. Implement this to add a new backend.
type ProviderClient interface {
	// CreateImageParts converts input images into ordered content parts.
	CreateImageParts(images []InputImage) ([]ContentPart, error)

	// GenerateContent performs one generation call. cfg may be nil when the
	// tier has no tunables.
	GenerateContent(ctx context.Context, contents []ContentPart, cfg *GenerationConfig, opts CallOptions) (ProviderResponse, error)
}

// StoredImage describes an image persisted by an ImageStore.
type StoredImage struct {
	ID        string
	Path      string
	MIMEType  string
	Size      int
	CreatedAt time.Time
}

// ImageStore persists generated images and serves preview thumbnails.
type ImageStore interface {
	// StoreImage persists data with its metadata and returns a descriptor.
	StoreImage(ctx context.Context, data []byte, mimeType string, meta ImageMetadata) (*StoredImage, error)

	// ThumbnailBase64 returns a base64-encoded JPEG thumbnail for a stored
	// image, or "" when no thumbnail is available.
	ThumbnailBase64(ctx context.Context, id string) (string, error)
}

// ProgressSink receives ordered progress updates for one logical operation.
type ProgressSink interface {
	Report(operation string, percent int, message string)
}

// ProgressSinkFunc adapts a function to the ProgressSink interface.
type ProgressSinkFunc func(operation string, percent int, message string)

func (f ProgressSinkFunc) Report(operation string, percent int, message string) {
	f(operation, percent, message)
}
