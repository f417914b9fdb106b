package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
)

// CropResult contains a cropped region encoded for transport.
type CropResult struct {
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// CropRegion extracts the w x h region at (x, y), optionally rescales it and
// returns it as a base64 PNG. A scale of 1 or less than or equal to 0 keeps
// the native size.
func CropRegion(r *Raster, x, y, w, h int, scale float64) (*CropResult, error) {
	cropped, err := r.Crop(x, y, w, h)
	if err != nil {
		return nil, err
	}

	if scale != 1.0 && scale > 0 {
		newWidth := max(1, int(float64(w)*scale))
		newHeight := max(1, int(float64(h)*scale))
		filter := FilterLanczos
		if scale < 1 {
			filter = FilterArea
		}
		cropped, err = cropped.Resize(newWidth, newHeight, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to scale crop: %w", err)
		}
	}

	encoded, err := EncodePNG(cropped)
	if err != nil {
		return nil, err
	}

	return &CropResult{
		X:           x,
		Y:           y,
		Width:       cropped.Width(),
		Height:      cropped.Height(),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// EncodePNG returns the raster as a base64 encoded PNG.
func EncodePNG(r *Raster) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, r.Image()); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
