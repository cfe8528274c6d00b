package optimize

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"golang.org/x/image/draw"

	"github.com/tendant/simple-image-optimizer/internal/img"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noise(w, h int, seed int64) *image.NRGBA {
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

func jpegSource(t *testing.T, name string, w, h int) *img.SourceImage {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, noise(w, h, int64(w*h)), &jpeg.Options{Quality: 92}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return &img.SourceImage{Name: name, MIMEType: img.MIMEJPEG, Data: buf.Bytes()}
}

func pngSource(t *testing.T, name string, m image.Image) *img.SourceImage {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return &img.SourceImage{Name: name, MIMEType: img.MIMEPNG, Data: buf.Bytes()}
}

func decodedSize(t *testing.T, data []byte) img.Dimensions {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	return img.Dimensions{Width: cfg.Width, Height: cfg.Height}
}

// recorder collects progress values.
type recorder struct{ values []int }

func (r *recorder) record(v int) { r.values = append(r.values, v) }

func (r *recorder) last() int {
	if len(r.values) == 0 {
		return -1
	}
	return r.values[len(r.values)-1]
}

type noSurfaces struct{}

func (noSurfaces) NewSurface(int, int) (draw.Image, error) {
	return nil, img.ErrSurfaceUnavailable
}

type fakeProber struct {
	dims img.Dimensions
	err  error
}

func (f fakeProber) Probe([]byte) (img.Dimensions, error) { return f.dims, f.err }

type fakeResizer struct {
	err   error
	calls int
}

func (f *fakeResizer) Resize(context.Context, img.SourceImage, img.Dimensions) (*img.Candidate, img.Strategy, error) {
	f.calls++
	return nil, "", f.err
}

// blockingResizer ignores cancellation, like a hung decoder.
type blockingResizer struct{ release chan struct{} }

func (b blockingResizer) Resize(_ context.Context, src img.SourceImage, target img.Dimensions) (*img.Candidate, img.Strategy, error) {
	<-b.release
	return img.CandidateFromSource(src, target), img.StrategySingleStep, nil
}

type fakeCompressor struct {
	out    *img.Candidate
	err    error
	steps  []float64
	bounds img.CompressBounds
}

func (f *fakeCompressor) Compress(_ context.Context, _ img.SourceImage, b img.CompressBounds, progress func(float64)) (*img.Candidate, error) {
	f.bounds = b
	for _, s := range f.steps {
		progress(s)
	}
	return f.out, f.err
}

type fakeConverter struct {
	supported bool
	size      int
	err       error
	calls     int
	quality   float64
}

func (f *fakeConverter) Supported() bool { return f.supported }

func (f *fakeConverter) ToWebP(_ context.Context, c *img.Candidate, quality float64) (*img.Candidate, error) {
	f.calls++
	f.quality = quality
	if f.err != nil {
		return nil, f.err
	}
	return &img.Candidate{
		Name:     img.ReplaceExt(c.Name, ".webp"),
		MIMEType: img.MIMEWebP,
		Data:     make([]byte, f.size),
		Width:    c.Width,
		Height:   c.Height,
	}, nil
}
