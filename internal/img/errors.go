package img

import (
	"errors"
	"fmt"
)

// ErrSurfaceUnavailable is returned when a drawing surface cannot be
// allocated. There is no recovery path inside a resize or conversion attempt.
var ErrSurfaceUnavailable = errors.New("drawing surface unavailable")

// ErrTooManyPixels is returned when a source's declared size exceeds the
// configured pixel limit. The bitmap is never decoded.
var ErrTooManyPixels = errors.New("image exceeds pixel limit")

// DimensionProbeError reports a source whose intrinsic size could not be read.
type DimensionProbeError struct {
	Err error
}

func (e *DimensionProbeError) Error() string {
	return fmt.Sprintf("probe dimensions: %v", e.Err)
}

func (e *DimensionProbeError) Unwrap() error { return e.Err }

// ConversionError reports a failed WebP conversion. Callers keep their prior
// candidate.
type ConversionError struct {
	Err error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert to webp: %v", e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }
