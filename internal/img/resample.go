package img

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Strategy names the resampling path taken by a resize.
type Strategy string

const (
	StrategyNone        Strategy = "none"
	StrategySingleStep  Strategy = "single-step"
	StrategyProgressive Strategy = "progressive"
)

// Resampler shrinks images on drawing surfaces, choosing between a single
// draw and a multi-step progressive downscale by scale factor.
type Resampler struct {
	Surfaces SurfaceProvider
	Encoder  Encoder
	Tuning   Tuning
}

// NewResampler returns a resampler over the given surfaces.
func NewResampler(surfaces SurfaceProvider, enc Encoder, t Tuning) *Resampler {
	if surfaces == nil {
		surfaces = RGBASurfaces{}
	}
	return &Resampler{Surfaces: surfaces, Encoder: enc, Tuning: t}
}

// Resize resamples src to exactly target. A source already within target on
// both axes is returned unchanged; the resampler never upscales.
func (r *Resampler) Resize(ctx context.Context, src SourceImage, target Dimensions) (*Candidate, Strategy, error) {
	decoded, err := imaging.Decode(bytes.NewReader(src.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("decode source: %w", err)
	}

	b := decoded.Bounds()
	size := Dimensions{Width: b.Dx(), Height: b.Dy()}
	if size.Fits(target) {
		return CandidateFromSource(src, size), StrategyNone, nil
	}

	format, err := FormatForMIME(src.MIMEType)
	if err != nil {
		format = FormatJPEG
	}
	alpha := IsPNG(src.MIMEType)

	scale := math.Min(
		float64(target.Width)/float64(size.Width),
		float64(target.Height)/float64(size.Height),
	)

	var (
		out      image.Image
		strategy Strategy
	)
	if scale < r.Tuning.ProgressiveThreshold {
		strategy = StrategyProgressive
		out, err = r.progressive(ctx, decoded, target, alpha)
	} else {
		strategy = StrategySingleStep
		out, err = r.singleStep(decoded, target, alpha)
	}
	if err != nil {
		return nil, strategy, err
	}

	data, produced, err := r.Encoder.Encode(out, format, 1.0)
	if err != nil {
		return nil, strategy, fmt.Errorf("encode resized: %w", err)
	}

	name := src.Name
	if produced.MIMEType != format.MIMEType {
		name = ReplaceExt(name, produced.Extension)
	}

	return &Candidate{
		Name:     name,
		MIMEType: produced.MIMEType,
		Data:     data,
		Width:    target.Width,
		Height:   target.Height,
	}, strategy, nil
}

func (r *Resampler) singleStep(src image.Image, target Dimensions, alpha bool) (image.Image, error) {
	dst, err := newCanvas(r.Surfaces, target.Width, target.Height, alpha)
	if err != nil {
		return nil, err
	}
	scaleInto(dst, src)
	return singleStepFinish.Apply(dst), nil
}

func (r *Resampler) progressive(ctx context.Context, src image.Image, target Dimensions, alpha bool) (image.Image, error) {
	t := r.Tuning

	current, err := flatten(r.Surfaces, src, alpha)
	if err != nil {
		return nil, err
	}
	cw, ch := current.Bounds().Dx(), current.Bounds().Dy()

	for float64(cw) > float64(target.Width)*t.StepStopRatio || float64(ch) > float64(target.Height)*t.StepStopRatio {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		nw := max(int(math.Floor(float64(cw)*t.StepFactor)), target.Width)
		nh := max(int(math.Floor(float64(ch)*t.StepFactor)), target.Height)
		if nw == cw && nh == ch {
			break
		}

		next, err := newCanvas(r.Surfaces, nw, nh, alpha)
		if err != nil {
			return nil, err
		}

		tw := int(math.Floor(float64(nw) * t.SharpenFactor))
		th := int(math.Floor(float64(nh) * t.SharpenFactor))
		if tw > 0 && th > 0 && float64(cw)/float64(tw) > t.SharpenMinRatio {
			r.sharpenStep(next, current, tw, th)
		} else {
			scaleInto(next, current)
		}

		current, cw, ch = next, nw, nh
	}

	if cw == target.Width && ch == target.Height {
		return current, nil
	}

	final, err := newCanvas(r.Surfaces, target.Width, target.Height, alpha)
	if err != nil {
		return nil, err
	}
	scaleInto(final, current)
	return progressiveFinish.Apply(final), nil
}

// sharpenStep overshoots the step slightly and scales back up. Without a
// temporary surface it degrades to a direct draw.
func (r *Resampler) sharpenStep(next draw.Image, current image.Image, tw, th int) {
	temp, err := r.Surfaces.NewSurface(tw, th)
	if err != nil || temp == nil {
		scaleInto(next, current)
		return
	}
	scaleInto(temp, current)
	scaleInto(next, temp)
}
