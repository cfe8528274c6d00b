// pkg/schema/events.go
package schema

// OptimizeRequested asks a worker to optimize one image. Exactly one of
// SourceKey (object in the configured store) or Path (file visible to the
// worker) is expected.
type OptimizeRequested struct {
	ID         string           `json:"id"`
	Filename   string           `json:"filename,omitempty"`
	MimeType   string           `json:"mime_type,omitempty"`
	SourceKey  string           `json:"source_key,omitempty"`
	Path       string           `json:"path,omitempty"`
	Options    *OptimizeOptions `json:"options,omitempty"`
	HappenedAt int64            `json:"happened_at"`
}

// OptimizeOptions overrides the worker defaults for one request. Nil fields
// keep the default.
type OptimizeOptions struct {
	MaxWidthOrHeight  *int     `json:"max_width_or_height,omitempty"`
	MaxSizeMB         *float64 `json:"max_size_mb,omitempty"`
	Quality           *float64 `json:"quality,omitempty"`
	UseWebP           *bool    `json:"use_webp,omitempty"`
	EnableSmartResize *bool    `json:"enable_smart_resize,omitempty"`
	ResizeThreshold   *int     `json:"resize_threshold,omitempty"`
}

type ProcessingStage string

const (
	StageValidation ProcessingStage = "validation"
	StageFetch      ProcessingStage = "fetch"
	StageProcessing ProcessingStage = "processing"
	StageUpload     ProcessingStage = "upload"
	StageCompleted  ProcessingStage = "completed"
	StageFailed     ProcessingStage = "failed"
)

type FailureType string

const (
	FailureTypeRetryable  FailureType = "retryable"
	FailureTypePermanent  FailureType = "permanent"
	FailureTypeValidation FailureType = "validation"
)

// OptimizeProgress carries the optimizer's 0..100 percentage for a job.
type OptimizeProgress struct {
	JobID      string `json:"job_id"`
	Percent    int    `json:"percent"`
	HappenedAt int64  `json:"happened_at"`
}

type OptimizationParams struct {
	SourceWidth    int     `json:"source_width,omitempty"`
	SourceHeight   int     `json:"source_height,omitempty"`
	TargetWidth    int     `json:"target_width,omitempty"`
	TargetHeight   int     `json:"target_height,omitempty"`
	Strategy       string  `json:"strategy,omitempty"`
	Quality        float64 `json:"quality,omitempty"`
	ProcessingTime int64   `json:"processing_time_ms"`
	GeneratedAt    int64   `json:"generated_at"`
}

type OptimizeResult struct {
	Key          string              `json:"key,omitempty"`
	URL          string              `json:"url,omitempty"`
	Filename     string              `json:"filename"`
	MimeType     string              `json:"mime_type"`
	Size         int64               `json:"size"`
	OriginalSize int64               `json:"original_size"`
	ReductionPct float64             `json:"reduction_pct"`
	Width        int                 `json:"width,omitempty"`
	Height       int                 `json:"height,omitempty"`
	Outcome      string              `json:"outcome"`
	Cached       bool                `json:"cached,omitempty"`
	Params       *OptimizationParams `json:"params,omitempty"`
}

type OptimizeLifecycleEvent struct {
	JobID           string          `json:"job_id"`
	Stage           ProcessingStage `json:"stage"`
	ProcessingStart int64           `json:"processing_start,omitempty"`
	ProcessingEnd   int64           `json:"processing_end,omitempty"`
	Error           string          `json:"error,omitempty"`
	FailureType     FailureType     `json:"failure_type,omitempty"`
	HappenedAt      int64           `json:"happened_at"`
}

type OptimizeDone struct {
	ID               string                   `json:"id"`
	SourceKey        string                   `json:"source_key,omitempty"`
	SourcePath       string                   `json:"source_path,omitempty"`
	ProcessingTimeMs int64                    `json:"processing_time_ms"`
	Result           *OptimizeResult          `json:"result,omitempty"`
	Lifecycle        []OptimizeLifecycleEvent `json:"lifecycle,omitempty"`
	Error            string                   `json:"error,omitempty"`
	FailureType      FailureType              `json:"failure_type,omitempty"`
	HappenedAt       int64                    `json:"happened_at"`
}
