// internal/worker/handler.go
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-image-optimizer/internal/bus"
	"github.com/tendant/simple-image-optimizer/internal/cache"
	"github.com/tendant/simple-image-optimizer/internal/img"
	"github.com/tendant/simple-image-optimizer/internal/metrics"
	"github.com/tendant/simple-image-optimizer/internal/optimize"
	"github.com/tendant/simple-image-optimizer/internal/process"
	"github.com/tendant/simple-image-optimizer/internal/upload"
	"github.com/tendant/simple-image-optimizer/pkg/schema"
)

// Optimizer is the part of optimize.Optimizer the handler uses.
type Optimizer interface {
	Optimize(ctx context.Context, src *img.SourceImage, opts ...optimize.Option) (*optimize.OptimizedImage, error)
}

// ResultCache remembers uploaded results by source content.
type ResultCache interface {
	Get(ctx context.Context, key string) (*cache.Entry, error)
	Set(ctx context.Context, key string, entry *cache.Entry) error
}

// Handler turns OptimizeRequested messages into uploaded, optimized images and
// reports progress, lifecycle and completion events.
type Handler struct {
	Optimizer     Optimizer
	Uploader      *upload.Client
	Cache         ResultCache
	Publisher     bus.Publisher
	ResultSubject string
	Defaults      optimize.Options
	Logger        *slog.Logger

	// SourceRoot is the only directory path requests may read from. Empty
	// rejects every path request.
	SourceRoot string
}

// ValidationError marks a request that can never succeed as sent.
type ValidationError struct {
	Type    schema.FailureType
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// HandleMessage decodes a bus payload and handles it. Errors are reported on
// the result subject, so the return value only feeds logging.
func (h *Handler) HandleMessage(ctx context.Context, data []byte) {
	var req schema.OptimizeRequested
	if err := json.Unmarshal(data, &req); err != nil {
		h.logger().Warn("invalid request payload", "err", err)
		job := process.NewJob("optimize", uuid.NewString(), nil)
		process.MarkRunning(job)
		verr := ValidationError{Type: schema.FailureTypeValidation, Message: fmt.Sprintf("decode request: %v", err)}
		h.fail(job, req, verr)
		return
	}
	if err := h.Handle(ctx, req); err != nil {
		h.logger().Warn("job failed", "job_id", req.ID, "err", err)
	}
}

// Handle processes one request end to end.
func (h *Handler) Handle(ctx context.Context, req schema.OptimizeRequested) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	job := process.NewJob("optimize", req.ID, req)
	process.MarkRunning(job)
	logger := h.logger().With("job_id", job.ID)
	logger.Info("received job", "source_key", req.SourceKey, "path", req.Path)

	// Step 1: validate
	if err := validateRequest(req); err != nil {
		logger.Warn("invalid request", "err", err)
		return h.fail(job, req, err)
	}
	h.publishLifecycle(job.Enter(schema.StageValidation, nil, ""))

	// Step 2: fetch source
	h.publishLifecycle(job.Enter(schema.StageFetch, nil, ""))
	src, err := h.fetchSource(ctx, req)
	if err != nil {
		logger.Error("fetch source failed", "err", err)
		return h.fail(job, req, fmt.Errorf("fetch source: %w", err))
	}
	if sniffed := img.DetectMIME(src.Data); !img.Supports(sniffed) || !img.Supports(src.MIMEType) {
		err := ValidationError{
			Type:    schema.FailureTypeValidation,
			Message: fmt.Sprintf("source is not a supported image (detected %s)", sniffed),
		}
		logger.Warn("rejected source", "err", err)
		return h.fail(job, req, err)
	}
	logger = logger.With("file", src.Name, "mime_type", src.MIMEType)

	opts := h.optionsFor(req)
	cacheKey := cache.Key(src.Data, fingerprint(opts))

	// Step 3: reuse a previous result for identical input
	if entry := h.lookup(ctx, cacheKey, logger); entry != nil {
		logger.Info("cache hit", "url", entry.URL)
		result := &schema.OptimizeResult{
			URL:          entry.URL,
			Filename:     entry.Name,
			MimeType:     entry.MIMEType,
			Size:         entry.Size,
			OriginalSize: entry.OriginalSize,
			ReductionPct: reduction(entry.OriginalSize, entry.Size),
			Width:        entry.Width,
			Height:       entry.Height,
			Outcome:      entry.Outcome,
			Cached:       true,
		}
		return h.complete(job, req, result)
	}

	// Step 4: optimize
	h.publishLifecycle(job.Enter(schema.StageProcessing, nil, ""))
	start := time.Now()
	res, err := h.Optimizer.Optimize(ctx, src,
		optimize.WithOptions(opts),
		optimize.WithProgress(func(pct int) { h.publishProgress(job.ID, pct) }),
	)
	if err != nil {
		logger.Error("optimize failed", "err", err)
		return h.fail(job, req, err)
	}
	elapsed := time.Since(start)
	metrics.RecordOptimization(string(res.Outcome), res.OriginalSize, res.Size(), elapsed.Seconds())
	logger.Info("optimized", "outcome", res.Outcome, "size", res.Size(), "original_size", res.OriginalSize, "duration_ms", elapsed.Milliseconds())

	// Step 5: upload
	h.publishLifecycle(job.Enter(schema.StageUpload, nil, ""))
	uploaded, err := h.Uploader.UploadOptimized(ctx, res.Data, upload.UploadOptions{
		ID:       job.ID,
		FileName: res.Name,
		MimeType: res.MIMEType,
	})
	if err != nil {
		logger.Error("upload failed", "err", err)
		return h.fail(job, req, err)
	}
	logger.Info("uploaded", "key", uploaded.Key, "url", uploaded.URL)

	result := &schema.OptimizeResult{
		Key:          uploaded.Key,
		URL:          uploaded.URL,
		Filename:     res.Name,
		MimeType:     res.MIMEType,
		Size:         res.Size(),
		OriginalSize: res.OriginalSize,
		ReductionPct: reduction(res.OriginalSize, res.Size()),
		Width:        res.Width,
		Height:       res.Height,
		Outcome:      string(res.Outcome),
		Params: &schema.OptimizationParams{
			TargetWidth:    res.Width,
			TargetHeight:   res.Height,
			Strategy:       string(res.Strategy),
			Quality:        opts.Quality,
			ProcessingTime: elapsed.Milliseconds(),
			GeneratedAt:    time.Now().Unix(),
		},
	}

	h.store(ctx, cacheKey, result, logger)
	return h.complete(job, req, result)
}

func validateRequest(req schema.OptimizeRequested) error {
	if req.SourceKey == "" && req.Path == "" {
		return ValidationError{
			Type:    schema.FailureTypeValidation,
			Message: fmt.Sprintf("job %s has neither source_key nor path", req.ID),
		}
	}
	if req.MimeType != "" && !img.Supports(req.MimeType) {
		return ValidationError{
			Type:    schema.FailureTypeValidation,
			Message: fmt.Sprintf("unsupported MIME type: %s", req.MimeType),
		}
	}
	if o := req.Options; o != nil && o.Quality != nil && (*o.Quality <= 0 || *o.Quality > 1) {
		return ValidationError{
			Type:    schema.FailureTypeValidation,
			Message: fmt.Sprintf("quality must be within (0, 1], got %g", *o.Quality),
		}
	}
	return nil
}

func (h *Handler) fetchSource(ctx context.Context, req schema.OptimizeRequested) (*img.SourceImage, error) {
	if req.SourceKey != "" {
		src, err := h.Uploader.FetchSource(ctx, req.SourceKey, req.Filename)
		if err != nil {
			return nil, err
		}
		if req.MimeType != "" {
			src.MIMEType = req.MimeType
		}
		return src, nil
	}

	data, err := h.readLocal(req.Path)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(req.Path)
	if req.Filename != "" {
		name = filepath.Base(req.Filename)
	}
	return img.NewSource(name, req.MimeType, data), nil
}

// readLocal reads path through an os.Root opened on SourceRoot, so neither
// ".." nor symlinks can reach outside it.
func (h *Handler) readLocal(path string) ([]byte, error) {
	if h.SourceRoot == "" {
		return nil, ValidationError{Type: schema.FailureTypeValidation, Message: "local path requests are disabled"}
	}
	rootDir, err := filepath.Abs(h.SourceRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve source root: %w", err)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(rootDir, path)
	}
	rel, err := filepath.Rel(rootDir, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, ValidationError{Type: schema.FailureTypeValidation, Message: fmt.Sprintf("path %s is outside the source root", path)}
	}

	root, err := os.OpenRoot(rootDir)
	if err != nil {
		return nil, fmt.Errorf("open source root: %w", err)
	}
	defer root.Close()

	f, err := root.Open(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read source: %w", err)
		}
		return nil, ValidationError{Type: schema.FailureTypeValidation, Message: fmt.Sprintf("read source %s: %v", rel, err)}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return data, nil
}

func (h *Handler) optionsFor(req schema.OptimizeRequested) optimize.Options {
	opts := h.Defaults
	opts.OnProgress = nil
	o := req.Options
	if o == nil {
		return opts
	}
	if o.MaxWidthOrHeight != nil {
		opts.MaxWidthOrHeight = *o.MaxWidthOrHeight
	}
	if o.MaxSizeMB != nil {
		opts.MaxSizeMB = *o.MaxSizeMB
	}
	if o.Quality != nil {
		opts.Quality = *o.Quality
	}
	if o.UseWebP != nil {
		opts.UseWebP = *o.UseWebP
	}
	if o.EnableSmartResize != nil {
		opts.EnableSmartResize = *o.EnableSmartResize
	}
	if o.ResizeThreshold != nil {
		opts.ResizeThreshold = *o.ResizeThreshold
	}
	return opts
}

// fingerprint identifies the settings that shape the output bytes.
func fingerprint(o optimize.Options) string {
	return fmt.Sprintf("w%d-s%g-q%g-webp%t-smart%t-t%d-skip%d",
		o.MaxWidthOrHeight, o.MaxSizeMB, o.Quality, o.UseWebP, o.EnableSmartResize, o.ResizeThreshold, o.SkipBelowBytes)
}

func (h *Handler) lookup(ctx context.Context, key string, logger *slog.Logger) *cache.Entry {
	if h.Cache == nil {
		return nil
	}
	entry, err := h.Cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.RecordCacheLookup("error")
		logger.Warn("cache lookup failed", "err", err)
		return nil
	case entry == nil:
		metrics.RecordCacheLookup("miss")
		return nil
	default:
		metrics.RecordCacheLookup("hit")
		return entry
	}
}

func (h *Handler) store(ctx context.Context, key string, r *schema.OptimizeResult, logger *slog.Logger) {
	if h.Cache == nil {
		return
	}
	err := h.Cache.Set(ctx, key, &cache.Entry{
		URL:          r.URL,
		Name:         r.Filename,
		MIMEType:     r.MimeType,
		Size:         r.Size,
		OriginalSize: r.OriginalSize,
		Width:        r.Width,
		Height:       r.Height,
		Outcome:      r.Outcome,
	})
	if err != nil {
		logger.Warn("cache store failed", "err", err)
	}
}

func (h *Handler) complete(job *process.Job, req schema.OptimizeRequested, result *schema.OptimizeResult) error {
	process.MarkSucceeded(job)
	h.publishLifecycle(job.Enter(schema.StageCompleted, nil, ""))
	h.publishDone(job, req, result, nil, "")
	metrics.RecordJob(string(process.JobStatusSucceeded))
	h.logger().Info("completed job", "job_id", job.ID, "processing_time_ms", job.Duration())
	return nil
}

func (h *Handler) fail(job *process.Job, req schema.OptimizeRequested, cause error) error {
	failureType := ClassifyError(cause)
	stage := job.Stage
	if stage == "" {
		stage = schema.StageValidation
	}
	process.MarkFailed(job, cause)
	h.publishLifecycle(job.Enter(schema.StageFailed, cause, failureType))
	h.publishDone(job, req, nil, cause, failureType)
	metrics.RecordJob(string(process.JobStatusFailed))
	metrics.RecordError(string(stage), string(failureType))
	return cause
}

func (h *Handler) publishLifecycle(event schema.OptimizeLifecycleEvent) {
	if h.Publisher == nil {
		return
	}
	if err := h.Publisher.PublishJSON(h.ResultSubject+".lifecycle", event); err != nil {
		h.logger().Error("publish lifecycle event failed", "subject", h.ResultSubject, "stage", event.Stage, "err", err)
	}
}

func (h *Handler) publishProgress(jobID string, pct int) {
	if h.Publisher == nil {
		return
	}
	event := schema.OptimizeProgress{JobID: jobID, Percent: pct, HappenedAt: time.Now().Unix()}
	if err := h.Publisher.PublishJSON(h.ResultSubject+".progress", event); err != nil {
		h.logger().Warn("publish progress failed", "job_id", jobID, "err", err)
	}
}

func (h *Handler) publishDone(job *process.Job, req schema.OptimizeRequested, result *schema.OptimizeResult, cause error, failureType schema.FailureType) {
	if h.Publisher == nil {
		return
	}
	done := schema.OptimizeDone{
		ID:               job.ID,
		SourceKey:        req.SourceKey,
		SourcePath:       req.Path,
		ProcessingTimeMs: job.Duration(),
		Result:           result,
		Lifecycle:        job.Lifecycle,
		HappenedAt:       time.Now().Unix(),
	}
	if cause != nil {
		done.Error = cause.Error()
		done.FailureType = failureType
	}
	if err := h.Publisher.PublishJSON(h.ResultSubject, done); err != nil {
		h.logger().Error("publish result failed", "subject", h.ResultSubject, "id", job.ID, "err", err)
	}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// ClassifyError maps a job failure onto a FailureType.
func ClassifyError(err error) schema.FailureType {
	if err == nil {
		return ""
	}

	var validationErr ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Type
	}
	if errors.Is(err, optimize.ErrInvalidInput) {
		return schema.FailureTypeValidation
	}
	if errors.Is(err, upload.ErrNotFound) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return schema.FailureTypePermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return schema.FailureTypeRetryable
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "temporary failure") {
		return schema.FailureTypeRetryable
	}
	if strings.Contains(errStr, "NoSuchKey") ||
		strings.Contains(errStr, "AccessDenied") ||
		strings.Contains(errStr, "unsupported") {
		return schema.FailureTypePermanent
	}

	return schema.FailureTypeRetryable
}

func reduction(original, size int64) float64 {
	if original == 0 {
		return 0
	}
	return (1 - float64(size)/float64(original)) * 100
}
