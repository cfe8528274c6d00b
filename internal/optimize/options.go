package optimize

import "time"

// Options configures one optimization call. Build it with DefaultOptions and
// override fields through Option values.
type Options struct {
	// MaxWidthOrHeight bounds the longer side on the compression path.
	MaxWidthOrHeight int
	// MaxSizeMB is the byte budget handed to the compressor.
	MaxSizeMB float64
	// Quality (0..1) is used only when no smart resize happened.
	Quality float64
	// UseWebP attempts a WebP re-encode when the runtime supports it.
	UseWebP bool
	// EnableSmartResize pins the minor dimension of large sources.
	EnableSmartResize bool
	// MaxSmartDimension is accepted for compatibility; the planner pins the
	// minor dimension to the optimizer's Tuning instead.
	MaxSmartDimension int
	// ResizeThreshold is the longest side above which smart resize applies.
	ResizeThreshold int
	// OnProgress receives strictly increasing percentages ending at 100.
	OnProgress func(int)
	// Debug raises format and dimension diagnostics to info level.
	Debug bool
	// Timeout bounds the whole call. Zero means no bound beyond ctx.
	Timeout time.Duration
	// SkipBelowBytes is the size at or under which sources are returned as-is.
	SkipBelowBytes int64
}

// DefaultOptions returns the defaults used by OptimizeImage.
func DefaultOptions() Options {
	return Options{
		MaxWidthOrHeight:  1920,
		MaxSizeMB:         1,
		Quality:           0.8,
		UseWebP:           true,
		EnableSmartResize: true,
		MaxSmartDimension: 400,
		ResizeThreshold:   800,
		SkipBelowBytes:    50 * 1024,
	}
}

// Option overrides part of Options.
type Option func(*Options)

func WithMaxWidthOrHeight(px int) Option { return func(o *Options) { o.MaxWidthOrHeight = px } }
func WithMaxSizeMB(mb float64) Option    { return func(o *Options) { o.MaxSizeMB = mb } }

// WithQuality sets the initial encoder quality. Values outside (0, 1] fall
// back to the default quality.
func WithQuality(q float64) Option { return func(o *Options) { o.Quality = q } }

func WithWebP(enabled bool) Option       { return func(o *Options) { o.UseWebP = enabled } }
func WithSmartResize(enabled bool) Option {
	return func(o *Options) { o.EnableSmartResize = enabled }
}
func WithMaxSmartDimension(px int) Option { return func(o *Options) { o.MaxSmartDimension = px } }
func WithResizeThreshold(px int) Option   { return func(o *Options) { o.ResizeThreshold = px } }
func WithProgress(fn func(int)) Option    { return func(o *Options) { o.OnProgress = fn } }
func WithDebug(enabled bool) Option       { return func(o *Options) { o.Debug = enabled } }
func WithTimeout(d time.Duration) Option  { return func(o *Options) { o.Timeout = d } }
func WithSkipBelow(bytes int64) Option    { return func(o *Options) { o.SkipBelowBytes = bytes } }

// WithOptions replaces the whole option set, e.g. one loaded from config.
func WithOptions(opts Options) Option {
	return func(o *Options) {
		progress := o.OnProgress
		*o = opts
		if o.OnProgress == nil {
			o.OnProgress = progress
		}
	}
}

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.Quality <= 0 || o.Quality > 1 {
		o.Quality = DefaultOptions().Quality
	}
	return o
}
