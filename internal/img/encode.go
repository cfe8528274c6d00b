package img

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
)

// Encoder turns a surface into bytes of a given format.
type Encoder struct {
	// WebP encodes WebP output. When nil, WebP requests are written as PNG,
	// which is what a canvas does for types it cannot encode.
	WebP WebPEncoder
}

// Encode writes m as f at quality (0..1, ignored by lossless formats). The
// returned Format is the one actually produced.
func (e Encoder) Encode(m image.Image, f Format, quality float64) ([]byte, Format, error) {
	var buf bytes.Buffer

	if f.webp {
		if e.WebP != nil {
			if err := e.WebP.EncodeWebP(&buf, m, quality); err == nil && buf.Len() > 0 {
				return buf.Bytes(), FormatWebP, nil
			}
			buf.Reset()
		}
		f = FormatPNG
	}

	var opts []imaging.EncodeOption
	switch f.imaging {
	case imaging.JPEG:
		opts = append(opts, imaging.JPEGQuality(jpegQuality(quality)))
	case imaging.PNG:
		opts = append(opts, imaging.PNGCompressionLevel(png.DefaultCompression))
	}

	if err := imaging.Encode(&buf, m, f.imaging, opts...); err != nil {
		return nil, f, fmt.Errorf("encode %s: %w", f.MIMEType, err)
	}
	return buf.Bytes(), f, nil
}

// jpegQuality maps a 0..1 quality onto the 1..100 JPEG scale.
func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}
