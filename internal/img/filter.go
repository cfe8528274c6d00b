package img

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Filter is a chain of CSS filter functions applied in the order contrast,
// saturate, brightness. A zero field is treated as the identity 1.
type Filter struct {
	Contrast   float64
	Saturate   float64
	Brightness float64
}

var (
	// progressiveFinish is drawn on the exact-dimension pass of a progressive downscale.
	progressiveFinish = Filter{Contrast: 1.02, Saturate: 1.01}
	// singleStepFinish is drawn on the only pass of a single-step resize.
	singleStepFinish = Filter{Contrast: 1.01, Saturate: 1.005, Brightness: 1.002}
)

func (f Filter) normalized() Filter {
	if f.Contrast == 0 {
		f.Contrast = 1
	}
	if f.Saturate == 0 {
		f.Saturate = 1
	}
	if f.Brightness == 0 {
		f.Brightness = 1
	}
	return f
}

// Identity reports whether the filter leaves pixels unchanged.
func (f Filter) Identity() bool {
	n := f.normalized()
	return n.Contrast == 1 && n.Saturate == 1 && n.Brightness == 1
}

// Apply returns a filtered copy of src.
func (f Filter) Apply(src image.Image) *image.NRGBA {
	n := f.normalized()
	if n.Identity() {
		return imaging.Clone(src)
	}

	s := n.Saturate
	// Saturation matrix used by the CSS saturate() filter.
	m := [3][3]float64{
		{0.213 + 0.787*s, 0.715 - 0.715*s, 0.072 - 0.072*s},
		{0.213 - 0.213*s, 0.715 + 0.285*s, 0.072 - 0.072*s},
		{0.213 - 0.213*s, 0.715 - 0.715*s, 0.072 + 0.928*s},
	}

	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		r := contrast(float64(c.R)/255, n.Contrast)
		g := contrast(float64(c.G)/255, n.Contrast)
		b := contrast(float64(c.B)/255, n.Contrast)

		r, g, b =
			unit(m[0][0]*r+m[0][1]*g+m[0][2]*b),
			unit(m[1][0]*r+m[1][1]*g+m[1][2]*b),
			unit(m[2][0]*r+m[2][1]*g+m[2][2]*b)

		return color.NRGBA{
			R: to8(r * n.Brightness),
			G: to8(g * n.Brightness),
			B: to8(b * n.Brightness),
			A: c.A,
		}
	})
}

func contrast(v, k float64) float64 {
	return unit((v-0.5)*k + 0.5)
}

func unit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func to8(v float64) uint8 {
	return uint8(math.Round(unit(v) * 255))
}
