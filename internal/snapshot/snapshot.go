// Package snapshot encodes frames as JPEG for alert attachments and the
// live preview.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
)

// DefaultQuality is the JPEG quality used when Options.Quality is zero.
const DefaultQuality = 90

// Options controls snapshot encoding.
type Options struct {
	MaxWidth int // 0 keeps the original size
	Quality  int // 1..100
}

// Encode converts a BGR frame to JPEG, downscaling it to MaxWidth if needed.
func Encode(frame gocv.Mat, opts Options) ([]byte, error) {
	if frame.Empty() {
		return nil, errors.New("snapshot: empty frame")
	}

	img, err := frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("snapshot: convert frame: %w", err)
	}

	return EncodeImage(img, opts)
}

// EncodeImage encodes img to JPEG, downscaling it to MaxWidth if needed.
func EncodeImage(img image.Image, opts Options) ([]byte, error) {
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	img = Fit(img, opts.MaxWidth)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("snapshot: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Fit scales img down to maxWidth, preserving aspect ratio. Images already
// narrow enough, or maxWidth <= 0, are returned unchanged.
func Fit(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}

	height := b.Dy() * maxWidth / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
