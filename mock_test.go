package imagebroker

import (
	"context"
	"sync"
)

// MockProviderClient is a mock implementation of ProviderClient.
type MockProviderClient struct {
	CreateImagePartsFunc func(images []InputImage) ([]ContentPart, error)
	GenerateContentFunc  func(ctx context.Context, contents []ContentPart, cfg *GenerationConfig, opts CallOptions) (ProviderResponse, error)
}

func (m *MockProviderClient) CreateImageParts(images []InputImage) ([]ContentPart, error) {
	if m.CreateImagePartsFunc != nil {
		return m.CreateImagePartsFunc(images)
	}
	parts := make([]ContentPart, 0, len(images))
	for _, img := range images {
		parts = append(parts, ImagePart(img.Data, img.MIMEType))
	}
	return parts, nil
}

func (m *MockProviderClient) GenerateContent(ctx context.Context, contents []ContentPart, cfg *GenerationConfig, opts CallOptions) (ProviderResponse, error) {
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, contents, cfg, opts)
	}
	return &MockResponse{ImageData: [][]byte{[]byte("image-bytes")}}, nil
}

// MockResponse is a canned ProviderResponse.
type MockResponse struct {
	ImageData [][]byte
	TextData  string
}

func (r *MockResponse) Images() [][]byte { return r.ImageData }
func (r *MockResponse) Text() string     { return r.TextData }

// MockImageStore is a mock implementation of ImageStore.
type MockImageStore struct {
	StoreImageFunc      func(ctx context.Context, data []byte, mimeType string, meta ImageMetadata) (*StoredImage, error)
	ThumbnailBase64Func func(ctx context.Context, id string) (string, error)
}

func (m *MockImageStore) StoreImage(ctx context.Context, data []byte, mimeType string, meta ImageMetadata) (*StoredImage, error) {
	if m.StoreImageFunc != nil {
		return m.StoreImageFunc(ctx, data, mimeType, meta)
	}
	return &StoredImage{ID: "stored", Path: "/tmp/stored.png", MIMEType: mimeType, Size: len(data)}, nil
}

func (m *MockImageStore) ThumbnailBase64(ctx context.Context, id string) (string, error) {
	if m.ThumbnailBase64Func != nil {
		return m.ThumbnailBase64Func(ctx, id)
	}
	return "", nil
}

// progressUpdate is one recorded progress report.
type progressUpdate struct {
	Operation string
	Percent   int
	Message   string
}

// progressRecorder captures progress reports for assertions.
type progressRecorder struct {
	mu      sync.Mutex
	updates []progressUpdate
}

func (r *progressRecorder) Report(operation string, percent int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, progressUpdate{operation, percent, message})
}

func (r *progressRecorder) Updates() []progressUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progressUpdate, len(r.updates))
	copy(out, r.updates)
	return out
}
