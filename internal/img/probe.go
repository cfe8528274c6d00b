package img

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Prober reads the intrinsic size of a source image.
type Prober interface {
	Probe(data []byte) (Dimensions, error)
}

// DecodeProber decodes the full bitmap so that EXIF orientation is applied
// before the size is reported. When MaxPixels is set, the header is checked
// first and larger sources are rejected without decoding.
type DecodeProber struct {
	MaxPixels int
}

func (p DecodeProber) Probe(data []byte) (Dimensions, error) {
	if p.MaxPixels > 0 {
		if err := CheckPixels(data, p.MaxPixels); err != nil {
			return Dimensions{}, err
		}
	}
	return ProbeDimensions(data)
}

// CheckPixels reads only the image header and fails with ErrTooManyPixels
// when width*height exceeds maxPixels.
func CheckPixels(data []byte, maxPixels int) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return &DimensionProbeError{Err: err}
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return &DimensionProbeError{Err: fmt.Errorf("%w: %dx%d over %d", ErrTooManyPixels, cfg.Width, cfg.Height, maxPixels)}
	}
	return nil
}

// ProbeDimensions returns the display dimensions of data or a
// *DimensionProbeError.
func ProbeDimensions(data []byte) (Dimensions, error) {
	if len(data) == 0 {
		return Dimensions{}, &DimensionProbeError{Err: errors.New("empty image data")}
	}

	decoded, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Dimensions{}, &DimensionProbeError{Err: err}
	}

	b := decoded.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return Dimensions{}, &DimensionProbeError{Err: errors.New("image has no pixels")}
	}
	return Dimensions{Width: b.Dx(), Height: b.Dy()}, nil
}
