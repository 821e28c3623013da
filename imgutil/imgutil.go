// Package imgutil prepares user-supplied images for the diffusion backends
// and encodes generated output.
package imgutil

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp" // Keep for decoding webp

	"sdstudio/params"
)

// DecodeImage decodes png, jpeg or webp bytes.
func DecodeImage(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// PrepareInitImage readies an uploaded image for image-to-image generation:
// it is downscaled to fit the maximum resolution while keeping its aspect
// ratio, snapped to dimensions the pipeline accepts (multiples of 8 within
// bounds) and re-encoded as PNG. The resulting bytes and final dimensions
// are returned.
func PrepareInitImage(data []byte, maxSize int) ([]byte, int, int, error) {
	img, format, err := DecodeImage(data)
	if err != nil {
		return nil, 0, 0, err
	}
	log.Printf("Decoded init image format: %s", format)

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width > maxSize || height > maxSize {
		log.Printf("Init image original size: %dx%d. Resizing to max %d.", width, height, maxSize)
		img = resize.Thumbnail(uint(maxSize), uint(maxSize), img, resize.Lanczos3)
		bounds = img.Bounds()
		width = bounds.Dx()
		height = bounds.Dy()
	}

	// The pipeline wants dimensions inside the configured range and divisible
	// by 8; resize exactly when snapping changed them.
	targetW, targetH := params.SnapDimensions(width, height)
	if targetW != width || targetH != height {
		img = imaging.Resize(img, targetW, targetH, imaging.Lanczos)
	}

	out, err := EncodePNG(img)
	if err != nil {
		return nil, 0, 0, err
	}
	return out, targetW, targetH, nil
}

// EncodePNG encodes an image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image to png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJPEG encodes an image as JPEG bytes with the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image to jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail downscales an image to fit within size x size and encodes it as
// webp for the history gallery.
func Thumbnail(img image.Image, size int) ([]byte, error) {
	small := imaging.Fit(img, size, size, imaging.Lanczos)
	var buf bytes.Buffer
	if err := webp.Encode(&buf, small, &webp.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail to webp: %w", err)
	}
	return buf.Bytes(), nil
}
