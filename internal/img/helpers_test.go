package img

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math/rand"
	"testing"

	"golang.org/x/image/draw"
)

func solidImage(w, h int, c color.Color) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			m.Set(x, y, c)
		}
	}
	return m
}

func noiseImage(w, h int, seed int64) *image.NRGBA {
	rnd := rand.New(rand.NewSource(seed))
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(m.Pix); i += 4 {
		m.Pix[i] = uint8(rnd.Intn(256))
		m.Pix[i+1] = uint8(rnd.Intn(256))
		m.Pix[i+2] = uint8(rnd.Intn(256))
		m.Pix[i+3] = 255
	}
	return m
}

func encodePNG(t *testing.T, m image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, m image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, m, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) Dimensions {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}
}

// failingSurfaces never allocates.
type failingSurfaces struct{}

func (failingSurfaces) NewSurface(int, int) (draw.Image, error) {
	return nil, ErrSurfaceUnavailable
}

// fakeWebP writes a minimal RIFF/WEBP container followed by payload bytes.
type fakeWebP struct {
	payload int
	err     error
	calls   int
}

func (f *fakeWebP) EncodeWebP(w io.Writer, _ image.Image, _ float64) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.payload < 0 {
		return nil
	}
	header := []byte("RIFF\x00\x00\x00\x00WEBP")
	_, err := w.Write(append(header, make([]byte, f.payload)...))
	return err
}
