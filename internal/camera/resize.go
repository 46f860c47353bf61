package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

const previewQuality = 80

// Downscale returns f resized so that its width does not exceed maxWidth,
// keeping the aspect ratio. Frames already small enough are returned as is.
func Downscale(f domain.Frame, maxWidth int) (domain.Frame, error) {
	if maxWidth <= 0 || (f.Width > 0 && f.Width <= maxWidth) {
		return f, nil
	}

	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return domain.Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= maxWidth {
		return f, nil
	}

	newWidth := maxWidth
	newHeight := int(float64(height) * float64(maxWidth) / float64(width))
	if newHeight < 1 {
		newHeight = 1
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: previewQuality}); err != nil {
		return domain.Frame{}, fmt.Errorf("failed to encode frame: %w", err)
	}

	out := f
	out.Data = buf.Bytes()
	out.Width = newWidth
	out.Height = newHeight
	return out, nil
}
