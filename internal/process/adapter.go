// internal/process/adapter.go
package process

import (
	"time"

	"github.com/tendant/simple-image-optimizer/pkg/schema"
)

// JobStatus represents the lifecycle state of a processing job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job captures what the worker tracks for one optimization request.
type Job struct {
	ID        string
	Kind      string
	Input     any
	Status    JobStatus
	Error     string
	Stage     schema.ProcessingStage
	StartTime time.Time
	Lifecycle []schema.OptimizeLifecycleEvent
}

func NewJob(kind, id string, input any) *Job {
	return &Job{
		ID:     id,
		Kind:   kind,
		Input:  input,
		Status: JobStatusPending,
	}
}

func MarkRunning(j *Job) {
	j.Status = JobStatusRunning
	if j.StartTime.IsZero() {
		j.StartTime = time.Now()
	}
}

func MarkSucceeded(j *Job) { j.Status = JobStatusSucceeded }

func MarkFailed(j *Job, err error) {
	j.Status = JobStatusFailed
	if err != nil {
		j.Error = err.Error()
	}
}

// Enter moves the job to stage and records a lifecycle event, which is
// returned for publishing.
func (j *Job) Enter(stage schema.ProcessingStage, err error, failureType schema.FailureType) schema.OptimizeLifecycleEvent {
	j.Stage = stage
	event := schema.OptimizeLifecycleEvent{
		JobID:      j.ID,
		Stage:      stage,
		HappenedAt: time.Now().Unix(),
	}

	switch stage {
	case schema.StageProcessing:
		event.ProcessingStart = j.StartTime.UnixMilli()
	case schema.StageCompleted, schema.StageFailed:
		event.ProcessingStart = j.StartTime.UnixMilli()
		event.ProcessingEnd = time.Now().UnixMilli()
	}

	if err != nil {
		event.Error = err.Error()
		event.FailureType = failureType
	}

	j.Lifecycle = append(j.Lifecycle, event)
	return event
}

// Duration returns the time since MarkRunning in milliseconds.
func (j *Job) Duration() int64 {
	if j.StartTime.IsZero() {
		return 0
	}
	return time.Since(j.StartTime).Milliseconds()
}
