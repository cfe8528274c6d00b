package img

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// CompressBounds bounds the output of a Compressor.
type CompressBounds struct {
	MaxSizeMB        float64
	MaxWidthOrHeight int
	InitialQuality   float64
}

// Compressor is the size/quality-bounded delegate used when no smart resize
// happened. progress receives the delegate's own 0..100 percentage.
type Compressor interface {
	Compress(ctx context.Context, src SourceImage, b CompressBounds, progress func(float64)) (*Candidate, error)
}

const (
	qualityStep   = 0.05
	minQuality    = 0.1
	shrinkFactor  = 0.95
	maxIterations = 10
)

// BoundedCompressor fits the image into MaxWidthOrHeight and then trades
// quality, and finally dimensions, until the encoding fits MaxSizeMB or the
// iteration budget runs out.
type BoundedCompressor struct {
	Surfaces      SurfaceProvider
	Encoder       Encoder
	MaxIterations int
}

// NewBoundedCompressor returns a compressor with the default iteration budget.
func NewBoundedCompressor(surfaces SurfaceProvider, enc Encoder) *BoundedCompressor {
	if surfaces == nil {
		surfaces = RGBASurfaces{}
	}
	return &BoundedCompressor{Surfaces: surfaces, Encoder: enc, MaxIterations: maxIterations}
}

func (c *BoundedCompressor) Compress(ctx context.Context, src SourceImage, b CompressBounds, progress func(float64)) (*Candidate, error) {
	report := func(p float64) {
		if progress != nil {
			progress(p)
		}
	}
	report(0)

	decoded, err := imaging.Decode(bytes.NewReader(src.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}
	report(10)

	format, err := FormatForMIME(src.MIMEType)
	if err != nil {
		format = FormatJPEG
	}

	var working image.Image = decoded
	if m := b.MaxWidthOrHeight; m > 0 {
		bounds := decoded.Bounds()
		if bounds.Dx() > m || bounds.Dy() > m {
			working = imaging.Fit(decoded, m, m, imaging.Lanczos)
		}
	}

	canvas, err := flatten(c.Surfaces, working, format.Alpha)
	if err != nil {
		return nil, err
	}
	var current image.Image = canvas
	report(20)

	quality := b.InitialQuality
	if quality <= 0 || quality > 1 {
		quality = 1
	}

	data, produced, err := c.Encoder.Encode(current, format, quality)
	if err != nil {
		return nil, err
	}

	limit := int64(b.MaxSizeMB * 1024 * 1024)
	iterations := c.MaxIterations
	if iterations <= 0 {
		iterations = maxIterations
	}

	for i := 0; limit > 0 && int64(len(data)) > limit && i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !produced.Lossless && quality > minQuality {
			quality = math.Max(minQuality, quality-qualityStep)
		} else {
			cb := current.Bounds()
			w := int(math.Round(float64(cb.Dx()) * shrinkFactor))
			h := int(math.Round(float64(cb.Dy()) * shrinkFactor))
			if w < 1 || h < 1 {
				break
			}
			current = imaging.Resize(current, w, h, imaging.Lanczos)
		}

		data, produced, err = c.Encoder.Encode(current, format, quality)
		if err != nil {
			return nil, err
		}
		report(20 + 80*float64(i+1)/float64(iterations))
	}
	report(100)

	name := src.Name
	if produced.MIMEType != format.MIMEType {
		name = ReplaceExt(name, produced.Extension)
	}

	cb := current.Bounds()
	return &Candidate{
		Name:     name,
		MIMEType: produced.MIMEType,
		Data:     data,
		Width:    cb.Dx(),
		Height:   cb.Dy(),
	}, nil
}
