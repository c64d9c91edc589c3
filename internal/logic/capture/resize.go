package capture

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// PreviewQuality is the JPEG quality of downscaled frames.
const PreviewQuality = 85

// Downscale re-encodes a JPEG frame at the given width, keeping the aspect
// ratio. Frames already at most that wide are returned unchanged.
func Downscale(frame []byte, width int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if width <= 0 || img.Bounds().Dx() <= width {
		return frame, nil
	}
	small := imaging.Resize(img, width, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, small, imaging.JPEG, imaging.JPEGQuality(PreviewQuality)); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
