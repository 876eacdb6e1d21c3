package imageutil

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // Register PNG decoder

	"golang.org/x/image/draw"
)

const (
	maxWidth    = 1920
	maxHeight   = 1080
	jpegQuality = 85
)

// PrepareForLLM decodes an uploaded or captured image, scales it to fit
// within 1920x1080, and returns JPEG bytes ready for inline submission.
func PrepareForLLM(data []byte) (out []byte, mimeType string, err error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	scaled := scaleToFit(src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", fmt.Errorf("failed to encode JPEG: %w", err)
	}

	return buf.Bytes(), "image/jpeg", nil
}

// CropCenter returns the center portion of the image with the given
// margin (0..0.4) removed from each edge. Camera captures use a small
// margin to cut off viewfinder chrome; uploads are not cropped.
func CropCenter(img image.Image, margin float64) image.Image {
	if margin <= 0 {
		return img
	}
	if margin > 0.4 {
		margin = 0.4
	}

	b := img.Bounds()
	w := b.Dx()
	h := b.Dy()

	marginX := int(float64(w) * margin)
	marginY := int(float64(h) * margin)

	cropRect := image.Rect(
		b.Min.X+marginX,
		b.Min.Y+marginY,
		b.Max.X-marginX,
		b.Max.Y-marginY,
	)

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}

	if si, ok := img.(subImager); ok {
		return si.SubImage(cropRect)
	}

	// Fallback: copy pixels (shouldn't happen with standard decoders)
	dst := image.NewRGBA(image.Rect(0, 0, cropRect.Dx(), cropRect.Dy()))
	draw.Copy(dst, image.Point{}, img, cropRect, draw.Src, nil)
	return dst
}

// scaleToFit scales the image to fit within maxWidth x maxHeight, preserving aspect ratio.
// Does not upscale.
func scaleToFit(img image.Image) image.Image {
	b := img.Bounds()
	w := b.Dx()
	h := b.Dy()

	if w <= maxWidth && h <= maxHeight {
		return img
	}

	ratio := float64(maxWidth) / float64(w)
	if rh := float64(maxHeight) / float64(h); rh < ratio {
		ratio = rh
	}

	newW := int(float64(w) * ratio)
	newH := int(float64(h) * ratio)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
