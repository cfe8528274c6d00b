// cmd/backfill/main.go
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-image-optimizer/internal/bus"
)

type config struct {
	NATSURL    string
	JobSubject string
	Dir        string
	Limit      int
	MinSizeKB  int
	DryRun     bool
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()
	logger.Info("backfill starting",
		"nats_url", cfg.NATSURL,
		"job_subject", cfg.JobSubject,
		"dir", cfg.Dir,
		"limit", cfg.Limit,
		"min_size_kb", cfg.MinSizeKB,
		"dry_run", cfg.DryRun,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b := &Backfill{
		Subject:  cfg.JobSubject,
		Limit:    cfg.Limit,
		MinBytes: int64(cfg.MinSizeKB) * 1024,
		DryRun:   cfg.DryRun,
		Logger:   logger,
	}

	if !cfg.DryRun {
		nc, err := bus.Connect(cfg.NATSURL)
		if err != nil {
			fatal(logger, "connect to NATS", err, "nats_url", cfg.NATSURL)
		}
		defer nc.Close()
		logger.Info("connected to NATS", "nats_url", cfg.NATSURL)
		b.Publisher = nc
	}

	stats, err := b.Run(ctx, cfg.Dir)
	if err != nil {
		fatal(logger, "backfill failed", err, "dir", cfg.Dir)
	}

	logger.Info("backfill complete",
		"scanned", stats.Scanned,
		"published", stats.Published,
		"skipped_non_image", stats.SkippedNonImage,
		"skipped_small", stats.SkippedSmall,
		"dry_run", cfg.DryRun,
	)
}

func loadConfig() config {
	cfg := config{
		NATSURL:    getenv("NATS_URL", "nats://127.0.0.1:4222"),
		JobSubject: getenv("OPTIMIZE_SUBJECT", "images.optimize.requested"),
	}

	flag.StringVar(&cfg.Dir, "dir", getenv("BACKFILL_DIR", "."), "Directory to scan for images")
	flag.IntVar(&cfg.Limit, "limit", 0, "Maximum number of jobs to publish (0 = unlimited)")
	flag.IntVar(&cfg.MinSizeKB, "min-size-kb", 0, "Skip files at or below this size")
	flag.BoolVar(&cfg.DryRun, "dry-run", true, "Show what would be processed without publishing jobs")

	var execute bool
	flag.BoolVar(&execute, "execute", false, "Actually publish jobs (disables dry-run)")
	flag.Parse()

	if execute {
		cfg.DryRun = false
	}
	return cfg
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
