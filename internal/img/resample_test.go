package img

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"golang.org/x/image/draw"
)

func newTestResampler(surfaces SurfaceProvider) *Resampler {
	return NewResampler(surfaces, Encoder{}, DefaultTuning())
}

func TestResizeDoesNotUpscale(t *testing.T) {
	data := encodePNG(t, solidImage(150, 100, color.NRGBA{R: 10, G: 20, B: 30, A: 255}))
	src := SourceImage{Name: "small.png", MIMEType: MIMEPNG, Data: data}

	out, strategy, err := newTestResampler(nil).Resize(context.Background(), src, Dimensions{200, 200})
	if err != nil {
		t.Fatalf("Resize returned error: %v", err)
	}
	if strategy != StrategyNone {
		t.Fatalf("strategy = %s, want %s", strategy, StrategyNone)
	}
	if !bytes.Equal(out.Data, data) {
		t.Fatal("source bytes were re-encoded")
	}
}

func TestResizeAtTargetIsUnchanged(t *testing.T) {
	data := encodePNG(t, solidImage(200, 200, color.White))
	src := SourceImage{Name: "done.png", MIMEType: MIMEPNG, Data: data}

	out, strategy, err := newTestResampler(nil).Resize(context.Background(), src, Dimensions{200, 200})
	if err != nil {
		t.Fatalf("Resize returned error: %v", err)
	}
	if strategy != StrategyNone || !bytes.Equal(out.Data, data) {
		t.Fatalf("expected untouched source, got strategy %s", strategy)
	}
}

func TestResizeScaleAtThresholdIsSingleStep(t *testing.T) {
	data := encodePNG(t, noiseImage(400, 200, 1))
	src := SourceImage{Name: "half.png", MIMEType: MIMEPNG, Data: data}

	out, strategy, err := newTestResampler(nil).Resize(context.Background(), src, Dimensions{200, 100})
	if err != nil {
		t.Fatalf("Resize returned error: %v", err)
	}
	if strategy != StrategySingleStep {
		t.Fatalf("strategy = %s, want %s", strategy, StrategySingleStep)
	}
	if got := decodeSize(t, out.Data); got != (Dimensions{200, 100}) {
		t.Fatalf("output size = %s, want 200x100", got)
	}
}

func TestResizeLargeReductionIsProgressive(t *testing.T) {
	data := encodeJPEG(t, noiseImage(1600, 800, 2), 90)
	src := SourceImage{Name: "wide.jpg", MIMEType: MIMEJPEG, Data: data}

	out, strategy, err := newTestResampler(nil).Resize(context.Background(), src, Dimensions{400, 200})
	if err != nil {
		t.Fatalf("Resize returned error: %v", err)
	}
	if strategy != StrategyProgressive {
		t.Fatalf("strategy = %s, want %s", strategy, StrategyProgressive)
	}
	if out.MIMEType != MIMEJPEG || out.Name != "wide.jpg" {
		t.Fatalf("unexpected output identity: %s %s", out.Name, out.MIMEType)
	}
	if got := decodeSize(t, out.Data); got != (Dimensions{400, 200}) {
		t.Fatalf("output size = %s, want 400x200", got)
	}
}

func TestResizeKeepsAlphaForPNG(t *testing.T) {
	m := image.NewNRGBA(image.Rect(0, 0, 400, 400))
	for x := 100; x < 300; x++ {
		for y := 100; y < 300; y++ {
			m.Set(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	src := SourceImage{Name: "logo.png", MIMEType: MIMEPNG, Data: encodePNG(t, m)}

	out, _, err := newTestResampler(nil).Resize(context.Background(), src, Dimensions{200, 200})
	if err != nil {
		t.Fatalf("Resize returned error: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if _, _, _, a := decoded.At(0, 0).RGBA(); a != 0 {
		t.Fatalf("corner alpha = %d, want transparent", a)
	}
}

func TestNewCanvasFillsWhiteWithoutAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	flat, err := flatten(RGBASurfaces{}, src, false)
	if err != nil {
		t.Fatalf("flatten returned error: %v", err)
	}
	r, g, b, a := flat.At(2, 2).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
		t.Fatalf("pixel = %d,%d,%d,%d, want opaque white", r, g, b, a)
	}

	kept, err := flatten(RGBASurfaces{}, src, true)
	if err != nil {
		t.Fatalf("flatten returned error: %v", err)
	}
	if _, _, _, a := kept.At(2, 2).RGBA(); a != 0 {
		t.Fatalf("alpha = %d, want transparent", a)
	}
}

func TestResizeSurfaceUnavailable(t *testing.T) {
	data := encodeJPEG(t, noiseImage(1600, 800, 3), 90)
	src := SourceImage{Name: "wide.jpg", MIMEType: MIMEJPEG, Data: data}

	_, _, err := newTestResampler(failingSurfaces{}).Resize(context.Background(), src, Dimensions{400, 200})
	if !errors.Is(err, ErrSurfaceUnavailable) {
		t.Fatalf("expected ErrSurfaceUnavailable, got %v", err)
	}
}

func TestRGBASurfacesMaxPixels(t *testing.T) {
	_, err := RGBASurfaces{MaxPixels: 100}.NewSurface(20, 20)
	if !errors.Is(err, ErrSurfaceUnavailable) {
		t.Fatalf("expected ErrSurfaceUnavailable, got %v", err)
	}
}

// tempFailingSurfaces refuses only the sharpen micro-step surfaces, which are
// requested right after their step surface at 98% of its size.
type tempFailingSurfaces struct {
	last    image.Point
	refused int
}

func (s *tempFailingSurfaces) NewSurface(w, h int) (draw.Image, error) {
	if w == int(float64(s.last.X)*0.98) && h == int(float64(s.last.Y)*0.98) {
		s.refused++
		return nil, errors.New("no context")
	}
	s.last = image.Point{X: w, Y: h}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

func TestResizeProgressiveWithoutSharpenSurface(t *testing.T) {
	data := encodeJPEG(t, noiseImage(2000, 1000, 4), 90)
	src := SourceImage{Name: "wide.jpg", MIMEType: MIMEJPEG, Data: data}
	surfaces := &tempFailingSurfaces{}

	out, strategy, err := newTestResampler(surfaces).Resize(context.Background(), src, Dimensions{400, 200})
	if err != nil {
		t.Fatalf("Resize returned error: %v", err)
	}
	if strategy != StrategyProgressive {
		t.Fatalf("strategy = %s, want progressive", strategy)
	}
	if surfaces.refused == 0 {
		t.Fatal("expected sharpen surfaces to be requested")
	}
	if got := decodeSize(t, out.Data); got != (Dimensions{400, 200}) {
		t.Fatalf("output size = %s, want 400x200", got)
	}
}

func TestResizeHonoursCancellation(t *testing.T) {
	data := encodeJPEG(t, noiseImage(1600, 800, 5), 90)
	src := SourceImage{Name: "wide.jpg", MIMEType: MIMEJPEG, Data: data}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newTestResampler(nil).Resize(ctx, src, Dimensions{400, 200})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
