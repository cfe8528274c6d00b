package img

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// WebPEncoder encodes an image as WebP at quality 0..1.
type WebPEncoder interface {
	EncodeWebP(w io.Writer, m image.Image, quality float64) error
}

// DefaultWebPEncoder returns the encoder compiled into this build, or nil when
// the build has none.
func DefaultWebPEncoder() WebPEncoder {
	return nativeWebPEncoder()
}

// WebPConverter re-encodes candidates as WebP, falling back to JPEG when the
// WebP path produces nothing.
type WebPConverter struct {
	Encoder  WebPEncoder
	Surfaces SurfaceProvider

	once      sync.Once
	supported bool
}

// NewWebPConverter returns a converter drawing on surfaces.
func NewWebPConverter(enc WebPEncoder, surfaces SurfaceProvider) *WebPConverter {
	if surfaces == nil {
		surfaces = RGBASurfaces{}
	}
	return &WebPConverter{Encoder: enc, Surfaces: surfaces}
}

// Supported reports whether WebP output actually works in this process. The
// check runs once by encoding a single pixel and inspecting the container.
func (c *WebPConverter) Supported() bool {
	c.once.Do(func() {
		if c.Encoder == nil {
			return
		}
		pixel := image.NewNRGBA(image.Rect(0, 0, 1, 1))
		var buf bytes.Buffer
		if err := c.Encoder.EncodeWebP(&buf, pixel, 1.0); err != nil {
			return
		}
		c.supported = isWebPContainer(buf.Bytes())
	})
	return c.supported
}

// ToWebP converts cand at quality. The returned candidate is WebP, or JPEG when
// the WebP encoder yielded no bytes. Failures are *ConversionError.
func (c *WebPConverter) ToWebP(ctx context.Context, cand *Candidate, quality float64) (*Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ConversionError{Err: err}
	}

	decoded, err := imaging.Decode(bytes.NewReader(cand.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &ConversionError{Err: err}
	}

	b := decoded.Bounds()
	canvas, err := newCanvas(c.Surfaces, b.Dx(), b.Dy(), false)
	if err != nil {
		return nil, &ConversionError{Err: err}
	}
	draw.Draw(canvas, canvas.Bounds(), decoded, b.Min, draw.Over)

	var buf bytes.Buffer
	if c.Encoder != nil {
		if err := c.Encoder.EncodeWebP(&buf, canvas, quality); err != nil {
			buf.Reset()
		}
	}
	if buf.Len() > 0 {
		return &Candidate{
			Name:     ReplaceExt(cand.Name, FormatWebP.Extension),
			MIMEType: MIMEWebP,
			Data:     buf.Bytes(),
			Width:    b.Dx(),
			Height:   b.Dy(),
		}, nil
	}

	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(jpegQuality(quality))); err != nil {
		return nil, &ConversionError{Err: err}
	}
	if buf.Len() == 0 {
		return nil, &ConversionError{Err: errors.New("failed to convert image to any compressed format")}
	}
	return &Candidate{
		Name:     ReplaceExt(cand.Name, FormatJPEG.Extension),
		MIMEType: MIMEJPEG,
		Data:     buf.Bytes(),
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}

func isWebPContainer(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}
