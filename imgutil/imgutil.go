// Package imgutil provides pure image helpers: format validation, size
// optimization toward a byte ceiling, and thumbnail generation.
package imgutil

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for MIME types outside the accepted set.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// validMIMETypes is the accepted input image MIME set.
var validMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// jpegQualitySteps are tried in order when re-encoding toward a size ceiling.
var jpegQualitySteps = []int{85, 75, 65, 50, 40}

// minOptimizeDim stops the downscale loop from shrinking images into noise.
const minOptimizeDim = 64

// ValidateImageFormat checks that mimeType is an accepted image type.
func ValidateImageFormat(mimeType string) error {
	if !validMIMETypes[mimeType] {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}
	return nil
}

// CompressToJPEG re-encodes image data (PNG, GIF, WEBP, JPEG) as JPEG at the
// given quality.
func CompressToJPEG(data []byte, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return encodeJPEG(img, quality)
}

// OptimizeImageSize reduces a base64-encoded image until it fits under
// maxBytes (decoded size). Input already under the ceiling is returned
// unchanged. Oversized input is re-encoded as JPEG at decreasing quality,
// then progressively downscaled; the smallest rendition is returned even if
// the ceiling was not reached.
func OptimizeImageSize(imageB64 string, maxBytes int) (string, error) {
	data, err := base64.StdEncoding.DecodeString(imageB64)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	if len(data) <= maxBytes {
		return imageB64, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	best := data
	for _, q := range jpegQualitySteps {
		encoded, err := encodeJPEG(img, q)
		if err != nil {
			return "", err
		}
		if len(encoded) < len(best) {
			best = encoded
		}
		if len(encoded) <= maxBytes {
			return base64.StdEncoding.EncodeToString(encoded), nil
		}
	}

	// Quality alone was not enough; halve dimensions until the image fits.
	for {
		b := img.Bounds()
		w, h := b.Dx()/2, b.Dy()/2
		if w < minOptimizeDim || h < minOptimizeDim {
			break
		}
		img = scale(img, w, h)

		encoded, err := encodeJPEG(img, jpegQualitySteps[len(jpegQualitySteps)-1])
		if err != nil {
			return "", err
		}
		if len(encoded) < len(best) {
			best = encoded
		}
		if len(encoded) <= maxBytes {
			return base64.StdEncoding.EncodeToString(encoded), nil
		}
	}

	return base64.StdEncoding.EncodeToString(best), nil
}

// Thumbnail produces a JPEG preview whose longest side is maxDim pixels.
// Smaller images are re-encoded without scaling.
func Thumbnail(data []byte, maxDim int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxDim || h > maxDim {
		if w >= h {
			h = h * maxDim / w
			w = maxDim
		} else {
			w = w * maxDim / h
			h = maxDim
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		img = scale(img, w, h)
	}

	return encodeJPEG(img, 85)
}

func scale(img image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
