package optimize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tendant/simple-image-optimizer/internal/img"
)

// ErrInvalidInput is the only error Optimize returns. Every other failure
// degrades to the best candidate obtained so far or the original.
var ErrInvalidInput = errors.New("invalid image file provided")

// Outcome records which path produced an OptimizedImage.
type Outcome string

const (
	OutcomeSkipped    Outcome = "skipped"
	OutcomeResized    Outcome = "resized"
	OutcomeCompressed Outcome = "compressed"
	OutcomeConverted  Outcome = "converted"
	OutcomeOriginal   Outcome = "original"
	OutcomeFallback   Outcome = "fallback"
)

// OptimizedImage is the result of one call. Data aliases the source payload
// when the source was returned unchanged.
type OptimizedImage struct {
	Name         string
	MIMEType     string
	Data         []byte
	Width        int
	Height       int
	OriginalSize int64
	Outcome      Outcome
	Strategy     img.Strategy
}

// Size returns the payload size in bytes.
func (o *OptimizedImage) Size() int64 { return int64(len(o.Data)) }

// Reduction returns the size saving against the source in percent.
func (o *OptimizedImage) Reduction() float64 {
	if o.OriginalSize == 0 {
		return 0
	}
	return (1 - float64(o.Size())/float64(o.OriginalSize)) * 100
}

// Resizer resamples a source to exact target dimensions.
type Resizer interface {
	Resize(ctx context.Context, src img.SourceImage, target img.Dimensions) (*img.Candidate, img.Strategy, error)
}

// Converter re-encodes a candidate as WebP.
type Converter interface {
	Supported() bool
	ToWebP(ctx context.Context, c *img.Candidate, quality float64) (*img.Candidate, error)
}

// Optimizer sequences probe, plan, resample or compress, and conversion. It is
// safe for concurrent use.
type Optimizer struct {
	Prober     img.Prober
	Resizer    Resizer
	Compressor img.Compressor
	Converter  Converter
	Tuning     img.Tuning
	Logger     *slog.Logger

	surfaces    img.SurfaceProvider
	maxPixels   int
	noConverter bool
}

// Dependency replaces one collaborator of an Optimizer.
type Dependency func(*Optimizer)

func UseProber(p img.Prober) Dependency         { return func(o *Optimizer) { o.Prober = p } }
func UseResizer(r Resizer) Dependency           { return func(o *Optimizer) { o.Resizer = r } }
func UseCompressor(c img.Compressor) Dependency { return func(o *Optimizer) { o.Compressor = c } }
func UseConverter(c Converter) Dependency       { return func(o *Optimizer) { o.Converter = c } }
func UseLogger(l *slog.Logger) Dependency       { return func(o *Optimizer) { o.Logger = l } }

// UseTuning sets the planner constants and, unless a Resizer is supplied, the
// resampling constants.
func UseTuning(t img.Tuning) Dependency { return func(o *Optimizer) { o.Tuning = t } }

// UsePixelLimit rejects sources larger than maxPixels before they are decoded
// and caps every default drawing surface at the same area.
func UsePixelLimit(maxPixels int) Dependency {
	return func(o *Optimizer) { o.maxPixels = maxPixels }
}

// UseSurfaces builds the default resampler, compressor and converter on p.
func UseSurfaces(p img.SurfaceProvider) Dependency {
	return func(o *Optimizer) { o.surfaces = p }
}

// New returns an optimizer backed by in-memory surfaces, the bounded
// compressor and the WebP encoder compiled into this build.
func New(deps ...Dependency) *Optimizer {
	o := &Optimizer{Tuning: img.DefaultTuning()}
	for _, dep := range deps {
		if dep != nil {
			dep(o)
		}
	}

	var surfaces img.SurfaceProvider = img.RGBASurfaces{MaxPixels: o.maxPixels}
	if o.surfaces != nil {
		surfaces = o.surfaces
	}
	webp := img.DefaultWebPEncoder()
	enc := img.Encoder{WebP: webp}

	if o.Prober == nil {
		o.Prober = img.DecodeProber{MaxPixels: o.maxPixels}
	}
	if o.Resizer == nil {
		o.Resizer = img.NewResampler(surfaces, enc, o.Tuning)
	}
	if o.Compressor == nil {
		o.Compressor = img.NewBoundedCompressor(surfaces, enc)
	}
	if o.Converter == nil && !o.noConverter {
		o.Converter = img.NewWebPConverter(webp, surfaces)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// DisableConversion disables WebP conversion regardless of Options.UseWebP.
func DisableConversion() Dependency {
	return func(o *Optimizer) { o.noConverter = true }
}

var defaultOptimizer = sync.OnceValue(func() *Optimizer { return New() })

// OptimizeImage runs src through a shared default Optimizer.
func OptimizeImage(ctx context.Context, src *img.SourceImage, opts ...Option) (*OptimizedImage, error) {
	return defaultOptimizer().Optimize(ctx, src, opts...)
}

// Optimize returns the smallest successfully produced candidate for src, or
// src itself. A nil src is the only error.
func (o *Optimizer) Optimize(ctx context.Context, src *img.SourceImage, opts ...Option) (*OptimizedImage, error) {
	if src == nil {
		return nil, ErrInvalidInput
	}
	options := buildOptions(opts)

	progress := NewProgress(options.OnProgress)
	defer progress.Close()

	logger := o.Logger.With("file", src.Name)

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}
	if ctx.Done() == nil {
		return o.run(ctx, *src, options, progress, logger), nil
	}

	done := make(chan *OptimizedImage, 1)
	go func() {
		done <- o.run(ctx, *src, options, progress, logger)
	}()

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		logger.Warn("optimization abandoned", "err", ctx.Err())
		progress.Done()
		logOptimized(logger, *src, nil)
		return original(*src, img.Dimensions{}, OutcomeFallback), nil
	}
}

func (o *Optimizer) run(ctx context.Context, src img.SourceImage, opts Options, progress *Progress, logger *slog.Logger) *OptimizedImage {
	progress.Report(5)
	logger.Info("original", "size_kb", kb(src.Size()))

	if src.Size() <= opts.SkipBelowBytes {
		o.debug(opts, logger, "image is very small, skipping optimization")
		logger.Info("optimized", "size_kb", kb(src.Size()), "skipped", true)
		progress.Done()
		return original(src, img.Dimensions{}, OutcomeSkipped)
	}

	res, err := o.pipeline(ctx, src, opts, progress, logger)
	if err != nil {
		logger.Error("optimization failed, using original", "err", err, "size_kb", kb(src.Size()))
		progress.Done()
		return original(src, img.Dimensions{}, OutcomeFallback)
	}

	logOptimized(logger, src, res)
	if opts.Debug {
		o.debug(opts, logger, "formats", "original", src.MIMEType, "final", res.MIMEType)
		if d, err := o.Prober.Probe(src.Data); err == nil {
			o.debug(opts, logger, "original dimensions", "dimensions", d.String())
		}
		o.debug(opts, logger, "final dimensions", "dimensions", fmt.Sprintf("%dx%d", res.Width, res.Height))
	}
	progress.Done()
	return res
}

func (o *Optimizer) pipeline(ctx context.Context, src img.SourceImage, opts Options, progress *Progress, logger *slog.Logger) (*OptimizedImage, error) {
	dims, probeErr := o.Prober.Probe(src.Data)
	if errors.Is(probeErr, img.ErrTooManyPixels) {
		return nil, probeErr
	}
	if probeErr != nil {
		logger.Warn("could not get image dimensions, proceeding without smart resize", "err", probeErr)
	} else {
		progress.Advance(StageProbe, 1)
	}

	if opts.EnableSmartResize && probeErr == nil {
		if target, ok := img.PlanSmartResize(dims, true, opts.ResizeThreshold, o.Tuning); ok {
			progress.Advance(StageDetect, 0.5)
			logger.Info("smart resizing", "from", dims.String(), "to", target.String())
			if opts.MaxSmartDimension > 0 && opts.MaxSmartDimension != o.Tuning.SmartMinorDimension {
				o.debug(opts, logger, "max smart dimension ignored", "configured", opts.MaxSmartDimension, "applied", o.Tuning.SmartMinorDimension)
			}

			resized, strategy, err := o.Resizer.Resize(ctx, src, target)
			switch {
			case err == nil:
				progress.Advance(StageDetect, 1)
				logger.Info("after smart resize", "size_kb", kb(resized.Size()), "strategy", strategy)
				logger.Info("skipping compression for resized image to preserve quality")
				outcome := OutcomeResized
				if strategy == img.StrategyNone {
					outcome = OutcomeOriginal
				}
				return fromCandidate(src, resized, outcome, strategy), nil
			case errors.Is(err, img.ErrSurfaceUnavailable) || ctx.Err() != nil:
				return nil, fmt.Errorf("smart resize: %w", err)
			default:
				logger.Warn("smart resize failed, using original image", "err", err)
			}
		}
	}

	progress.Advance(StageCompress, 0)
	compressed, err := o.Compressor.Compress(ctx, src, img.CompressBounds{
		MaxSizeMB:        opts.MaxSizeMB,
		MaxWidthOrHeight: opts.MaxWidthOrHeight,
		InitialQuality:   opts.Quality,
	}, func(pct float64) {
		progress.Advance(StageCompress, pct/100)
	})
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	progress.Advance(StageConvert, 0)

	current, outcome := compressed, OutcomeCompressed
	if compressed.Size() > src.Size() && probeErr == nil && withinBound(dims, opts.MaxWidthOrHeight) {
		o.debug(opts, logger, "compression grew the file, keeping original", "compressed_kb", kb(compressed.Size()))
		current, outcome = img.CandidateFromSource(src, dims), OutcomeOriginal
	}

	if opts.UseWebP && o.Converter != nil && !img.IsWebP(fileType(src)) && o.Converter.Supported() {
		progress.Advance(StageConvert, 0.25)
		converted, err := o.Converter.ToWebP(ctx, current, 1.0)
		if err != nil {
			logger.Warn("webp conversion failed, using standard compression", "err", err)
		} else {
			progress.Advance(StageConvert, 0.75)
			if converted.Size() < current.Size() {
				current, outcome = converted, OutcomeConverted
			} else {
				o.debug(opts, logger, "webp not smaller, discarded", "webp_kb", kb(converted.Size()))
			}
			progress.Advance(StageConvert, 1)
		}
	}

	return fromCandidate(src, current, outcome, img.StrategyNone), nil
}

func (o *Optimizer) debug(opts Options, logger *slog.Logger, msg string, args ...any) {
	if opts.Debug {
		logger.Info(msg, args...)
		return
	}
	logger.Debug(msg, args...)
}

func withinBound(d img.Dimensions, max int) bool {
	return max <= 0 || d.Longest() <= max
}

func fileType(src img.SourceImage) string {
	if src.MIMEType == "" {
		return img.MIMEJPEG
	}
	return src.MIMEType
}

func original(src img.SourceImage, d img.Dimensions, outcome Outcome) *OptimizedImage {
	return &OptimizedImage{
		Name:         src.Name,
		MIMEType:     src.MIMEType,
		Data:         src.Data,
		Width:        d.Width,
		Height:       d.Height,
		OriginalSize: src.Size(),
		Outcome:      outcome,
		Strategy:     img.StrategyNone,
	}
}

func fromCandidate(src img.SourceImage, c *img.Candidate, outcome Outcome, strategy img.Strategy) *OptimizedImage {
	return &OptimizedImage{
		Name:         c.Name,
		MIMEType:     c.MIMEType,
		Data:         c.Data,
		Width:        c.Width,
		Height:       c.Height,
		OriginalSize: src.Size(),
		Outcome:      outcome,
		Strategy:     strategy,
	}
}

func logOptimized(logger *slog.Logger, src img.SourceImage, res *OptimizedImage) {
	if res == nil {
		logger.Info("optimization failed, using original", "size_kb", kb(src.Size()))
		return
	}
	logger.Info("optimized",
		"size_kb", kb(res.Size()),
		"reduction_pct", fmt.Sprintf("%.1f", res.Reduction()),
		"outcome", res.Outcome,
	)
}

func kb(n int64) string {
	return fmt.Sprintf("%.2f", float64(n)/1024)
}
