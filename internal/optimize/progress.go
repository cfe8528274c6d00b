package optimize

import (
	"math"
	"sync"
)

// Stage is a step of the pipeline that owns a slice of the 0..100 scale.
type Stage string

const (
	StageProbe    Stage = "probe"
	StageDetect   Stage = "detect"
	StageCompress Stage = "compress"
	StageConvert  Stage = "convert"
	StageFinalize Stage = "finalize"
)

type segment struct{ start, end float64 }

var segments = map[Stage]segment{
	StageProbe:    {0, 10},
	StageDetect:   {10, 14},
	StageCompress: {15, 65},
	StageConvert:  {70, 90},
	StageFinalize: {90, 100},
}

// Progress merges stage-local progress into one percentage. Values reaching
// the sink are rounded, clamped to 0..100 and strictly increasing; anything
// reported after Close is dropped.
type Progress struct {
	mu     sync.Mutex
	sink   func(int)
	last   int
	closed bool
}

// NewProgress returns a tracker writing to sink, which may be nil.
func NewProgress(sink func(int)) *Progress {
	return &Progress{sink: sink, last: -1}
}

// Report publishes an absolute percentage.
func (p *Progress) Report(pct float64) {
	v := int(math.Round(math.Max(0, math.Min(100, pct))))

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || v <= p.last {
		return
	}
	p.last = v
	if p.sink != nil {
		p.sink(v)
	}
}

// Advance reports fraction (0..1) of the way through stage.
func (p *Progress) Advance(stage Stage, fraction float64) {
	s, ok := segments[stage]
	if !ok {
		return
	}
	fraction = math.Max(0, math.Min(1, fraction))
	p.Report(s.start + (s.end-s.start)*fraction)
}

// Done reports 100.
func (p *Progress) Done() { p.Report(100) }

// Close stops further reports from reaching the sink.
func (p *Progress) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Last returns the most recent published value, -1 before the first.
func (p *Progress) Last() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
