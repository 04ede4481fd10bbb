package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// CropResult contains an encoded image.
type CropResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Crop extracts the region b from a page and encodes it.
func Crop(img image.Image, b shape.Bounds, scale float64) (*CropResult, error) {
	bounds := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("invalid crop region %v: x1 must be < x2, y1 must be < y2", b)
	}
	if !shape.FromRect(bounds).Contains(b) {
		return nil, fmt.Errorf("crop region %v outside image bounds (%d,%d)-(%d,%d)",
			b, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	return Encode(imaging.Crop(img, b.Rect()), scale)
}

// RenderShape encodes the pixel grid of s.
func RenderShape(s *shape.Shape, scale float64) (*CropResult, error) {
	if s.Pixels == nil || s.Pixels.Bounds().Empty() {
		return nil, fmt.Errorf("shape %d has no pixels", s.ID)
	}
	return Encode(s.Pixels, scale)
}

// Encode resizes img by scale and encodes it as base64 PNG. Non-positive
// scales are ignored.
func Encode(img image.Image, scale float64) (*CropResult, error) {
	if scale != 1.0 && scale > 0 {
		w := max(int(float64(img.Bounds().Dx())*scale), 1)
		h := max(int(float64(img.Bounds().Dy())*scale), 1)
		img = imaging.Resize(img, w, h, imaging.NearestNeighbor)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &CropResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
