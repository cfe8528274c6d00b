package img

import "math"

// Tuning holds the empirical constants of the resize policy.
type Tuning struct {
	// SquareTolerance classifies |w/h - 1| below it as square.
	SquareTolerance float64
	// SmartMinorDimension is the pinned size of the shorter axis.
	SmartMinorDimension int
	// ProgressiveThreshold is the scale below which downscaling is progressive.
	ProgressiveThreshold float64
	// StepFactor shrinks each progressive step.
	StepFactor float64
	// StepStopRatio ends the progressive loop once within this multiple of target.
	StepStopRatio float64
	// SharpenFactor is the overshoot of the downscale-then-upscale micro-step.
	SharpenFactor float64
	// SharpenMinRatio is the per-step ratio above which the micro-step runs.
	SharpenMinRatio float64
}

// DefaultTuning returns the constants the policy was calibrated with.
func DefaultTuning() Tuning {
	return Tuning{
		SquareTolerance:      0.1,
		SmartMinorDimension:  200,
		ProgressiveThreshold: 0.5,
		StepFactor:           0.67,
		StepStopRatio:        1.5,
		SharpenFactor:        0.98,
		SharpenMinRatio:      1.1,
	}
}

// PlanSmartResize decides the smart resize target for d. The second result is
// false when no smart resize applies.
func PlanSmartResize(d Dimensions, enabled bool, threshold int, t Tuning) (Dimensions, bool) {
	if !enabled || d.Width <= 0 || d.Height <= 0 {
		return Dimensions{}, false
	}
	if d.Longest() <= threshold {
		return Dimensions{}, false
	}

	minor := t.SmartMinorDimension
	ratio := float64(d.Width) / float64(d.Height)

	if math.Abs(ratio-1) < t.SquareTolerance {
		return Dimensions{Width: minor, Height: minor}, true
	}

	if d.Width > d.Height {
		return Dimensions{Width: int(math.Round(float64(minor) * ratio)), Height: minor}, true
	}
	return Dimensions{Width: minor, Height: int(math.Round(float64(minor) / ratio))}, true
}
