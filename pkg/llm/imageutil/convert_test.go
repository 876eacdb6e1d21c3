package imageutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestPrepareForLLM_ReencodesAsJPEG(t *testing.T) {
	data, mime, err := PrepareForLLM(encodePNG(t, 640, 480))
	if err != nil {
		t.Fatalf("PrepareForLLM: %v", err)
	}
	if mime != "image/jpeg" {
		t.Errorf("mime: got %q", mime)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not valid JPEG: %v", err)
	}
	// Small input is not scaled
	if b := decoded.Bounds(); b.Dx() != 640 || b.Dy() != 480 {
		t.Errorf("bounds changed: %v", b)
	}
}

func TestPrepareForLLM_DownscalesLargeImages(t *testing.T) {
	data, _, err := PrepareForLLM(encodePNG(t, 4000, 3000))
	if err != nil {
		t.Fatalf("PrepareForLLM: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b := decoded.Bounds()
	if b.Dx() > 1920 || b.Dy() > 1080 {
		t.Errorf("not scaled to fit: %dx%d", b.Dx(), b.Dy())
	}
	// Aspect ratio preserved (4:3)
	if b.Dx()*3 != b.Dy()*4 {
		t.Errorf("aspect ratio lost: %dx%d", b.Dx(), b.Dy())
	}
}

func TestPrepareForLLM_RejectsGarbage(t *testing.T) {
	if _, _, err := PrepareForLLM([]byte("not an image")); err == nil {
		t.Error("expected decode error")
	}
}

func TestCropCenter(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))

	cropped := CropCenter(img, 0.2)
	if b := cropped.Bounds(); b.Dx() != 60 || b.Dy() != 60 {
		t.Errorf("20%% margin: got %dx%d, want 60x60", b.Dx(), b.Dy())
	}

	if got := CropCenter(img, 0); got != image.Image(img) {
		t.Error("zero margin must return the image unchanged")
	}

	// Margin is capped so the crop can never collapse to nothing
	capped := CropCenter(img, 0.9)
	if b := capped.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		t.Errorf("capped margin produced empty image: %v", b)
	}
}
