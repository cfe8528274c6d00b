//go:build cgo

package img

import (
	"fmt"
	"image"
	"io"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// libwebpEncoder encodes through libwebp.
type libwebpEncoder struct{}

func (libwebpEncoder) EncodeWebP(w io.Writer, m image.Image, quality float64) error {
	opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(jpegQuality(quality)))
	if err != nil {
		return fmt.Errorf("webp options: %w", err)
	}
	if err := webp.Encode(w, m, opts); err != nil {
		return fmt.Errorf("webp encode: %w", err)
	}
	return nil
}

func nativeWebPEncoder() WebPEncoder { return libwebpEncoder{} }
