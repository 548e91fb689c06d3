// Package storage provides a filesystem-backed image store with JPEG
// thumbnail previews and JSON metadata sidecars.
package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mhpenta/imagebroker"
	"github.com/mhpenta/imagebroker/imgutil"
)

const thumbMaxDim = 256

var extByMIME = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// FileStore persists images under a single directory. Each stored image gets
// a UUID filename, a _thumb.jpg preview, and a .json metadata sidecar.
type FileStore struct {
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	index map[string]*imagebroker.StoredImage
}

var _ imagebroker.ImageStore = (*FileStore)(nil)

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithLogger sets the logger used by the store.
func WithLogger(logger *slog.Logger) FileStoreOption {
	return func(s *FileStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFileStore creates the directory if needed and returns a store rooted
// there.
func NewFileStore(dir string, opts ...FileStoreOption) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	s := &FileStore{
		dir:    dir,
		logger: slog.Default(),
		index:  make(map[string]*imagebroker.StoredImage),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// StoreImage writes the image, its thumbnail, and a metadata sidecar to disk.
func (s *FileStore) StoreImage(ctx context.Context, data []byte, mimeType string, meta imagebroker.ImageMetadata) (*imagebroker.StoredImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}

	ext, ok := extByMIME[mimeType]
	if !ok {
		ext = ".png"
	}

	id := uuid.NewString()
	path := filepath.Join(s.dir, id+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}

	// A failed thumbnail or sidecar does not fail the store; the primary
	// image is already on disk.
	if thumb, err := imgutil.Thumbnail(data, thumbMaxDim); err != nil {
		s.logger.Warn("thumbnail generation failed", "id", id, "error", err)
	} else if err := os.WriteFile(s.thumbPath(id), thumb, 0o644); err != nil {
		s.logger.Warn("thumbnail write failed", "id", id, "error", err)
	}

	stored := &imagebroker.StoredImage{
		ID:        id,
		Path:      path,
		MIMEType:  mimeType,
		Size:      len(data),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.writeSidecar(stored, meta); err != nil {
		s.logger.Warn("metadata sidecar write failed", "id", id, "error", err)
	}

	s.mu.Lock()
	s.index[id] = stored
	s.mu.Unlock()

	s.logger.Debug("image stored", "id", id, "path", path, "size", len(data))
	return stored, nil
}

// ThumbnailBase64 returns the stored thumbnail as base64, or "" when the
// image has no thumbnail.
func (s *FileStore) ThumbnailBase64(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(s.thumbPath(id))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read thumbnail: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Lookup returns the descriptor for a stored image, if known to this store.
func (s *FileStore) Lookup(id string) (*imagebroker.StoredImage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.index[id]
	return stored, ok
}

func (s *FileStore) thumbPath(id string) string {
	return filepath.Join(s.dir, id+"_thumb.jpg")
}

func (s *FileStore) writeSidecar(stored *imagebroker.StoredImage, meta imagebroker.ImageMetadata) error {
	sidecar := struct {
		ID        string                  `json:"id"`
		MIMEType  string                  `json:"mime_type"`
		Size      int                     `json:"size"`
		CreatedAt time.Time               `json:"created_at"`
		Metadata  imagebroker.ImageMetadata `json:"metadata,omitempty"`
	}{
		ID:        stored.ID,
		MIMEType:  stored.MIMEType,
		Size:      stored.Size,
		CreatedAt: stored.CreatedAt,
		Metadata:  meta,
	}

	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, stored.ID+".json"), data, 0o644)
}
