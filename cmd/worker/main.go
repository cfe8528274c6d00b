// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-image-optimizer/internal/bus"
	"github.com/tendant/simple-image-optimizer/internal/cache"
	"github.com/tendant/simple-image-optimizer/internal/config"
	"github.com/tendant/simple-image-optimizer/internal/metrics"
	"github.com/tendant/simple-image-optimizer/internal/optimize"
	"github.com/tendant/simple-image-optimizer/internal/upload"
	"github.com/tendant/simple-image-optimizer/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		fatal(logger, "load config", err)
	}
	logger.Info("worker starting",
		"nats_url", cfg.NATSURL,
		"job_subject", cfg.JobSubject,
		"queue", cfg.WorkerQueue,
		"result_subject", cfg.ResultSubject,
		"storage_backend", cfg.StorageBackend,
		"max_dimension", cfg.Optimize.MaxWidthOrHeight,
		"use_webp", cfg.Optimize.UseWebP,
		"smart_resize", cfg.Optimize.EnableSmartResize,
		"max_pixels", cfg.MaxPixels,
		"local_source_root", cfg.LocalSourceRoot,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg)
	if err != nil {
		fatal(logger, "build storage backend", err, "backend", cfg.StorageBackend)
	}
	logger.Info("storage backend ready", "backend", cfg.StorageBackend, "bucket", cfg.S3Bucket)

	handler := &worker.Handler{
		Optimizer:     optimize.New(optimize.UseLogger(logger), optimize.UsePixelLimit(cfg.MaxPixels)),
		Uploader:      upload.NewClient(store, cfg.UploadPrefix),
		ResultSubject: cfg.ResultSubject,
		Defaults:      cfg.Optimize,
		Logger:        logger,
		SourceRoot:    cfg.LocalSourceRoot,
	}

	if cfg.CacheEnabled() {
		c := cache.New(cache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB, TTL: cfg.CacheTTL})
		if err := c.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, result cache disabled", "addr", cfg.RedisAddr, "err", err)
			_ = c.Close()
		} else {
			defer c.Close()
			handler.Cache = c
			logger.Info("result cache ready", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		}
	}

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "addr", cfg.MetricsAddr, "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", cfg.MetricsAddr)

	nc, err := bus.Connect(cfg.NATSURL)
	if err != nil {
		fatal(logger, "connect to NATS", err, "nats_url", cfg.NATSURL)
	}
	logger.Info("connected to NATS", "nats_url", cfg.NATSURL)
	defer nc.Close()

	nc.SetHandlerTimeout(handlerTimeout(cfg.Optimize))
	handler.Publisher = nc

	if _, err := nc.QueueSubscribeJSON(cfg.JobSubject, cfg.WorkerQueue, handler.HandleMessage); err != nil {
		fatal(logger, "subscribe worker", err, "job_subject", cfg.JobSubject, "queue", cfg.WorkerQueue)
	}
	logger.Info("listening for jobs", "subject", cfg.JobSubject, "queue", cfg.WorkerQueue)

	<-ctx.Done()
	logger.Info("worker shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func newStore(ctx context.Context, cfg config.Config) (upload.Store, error) {
	switch cfg.StorageBackend {
	case "memory":
		return upload.NewMemoryStore(cfg.PublicBaseURL), nil
	case "s3":
		return upload.NewS3Store(ctx, upload.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Endpoint:        cfg.S3Endpoint,
			UsePathStyle:    cfg.S3UsePathStyle,
			PublicBaseURL:   cfg.PublicBaseURL,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}

// handlerTimeout leaves room for fetch and upload around the optimizer's own
// deadline.
func handlerTimeout(o optimize.Options) time.Duration {
	if o.Timeout <= 0 {
		return 2 * time.Minute
	}
	return o.Timeout + 30*time.Second
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
