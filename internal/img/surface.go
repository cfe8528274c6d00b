package img

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// SurfaceProvider allocates 2D drawing surfaces.
type SurfaceProvider interface {
	NewSurface(width, height int) (draw.Image, error)
}

// RGBASurfaces allocates in-memory RGBA surfaces. MaxPixels caps the area of a
// single surface; zero means no cap.
type RGBASurfaces struct {
	MaxPixels int
}

func (p RGBASurfaces) NewSurface(width, height int) (draw.Image, error) {
	if p.MaxPixels > 0 && width*height > p.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrSurfaceUnavailable, width, height, p.MaxPixels)
	}
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

// newCanvas allocates a surface and, unless alpha is kept, fills it with
// opaque white so that transparent sources composite cleanly.
func newCanvas(p SurfaceProvider, width, height int, alpha bool) (draw.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", ErrSurfaceUnavailable, width, height)
	}

	s, err := p.NewSurface(width, height)
	if err != nil {
		if !errors.Is(err, ErrSurfaceUnavailable) {
			err = fmt.Errorf("%w: %v", ErrSurfaceUnavailable, err)
		}
		return nil, err
	}
	if s == nil {
		return nil, ErrSurfaceUnavailable
	}

	if !alpha {
		draw.Draw(s, s.Bounds(), image.White, image.Point{}, draw.Src)
	}
	return s, nil
}

// scaleInto draws src onto the whole of dst with high-quality smoothing.
func scaleInto(dst draw.Image, src image.Image) {
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
}

// flatten draws src onto a fresh canvas without resampling.
func flatten(p SurfaceProvider, src image.Image, alpha bool) (draw.Image, error) {
	b := src.Bounds()
	dst, err := newCanvas(p, b.Dx(), b.Dy(), alpha)
	if err != nil {
		return nil, err
	}
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst, nil
}
