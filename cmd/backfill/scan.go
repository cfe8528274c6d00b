package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/tendant/simple-image-optimizer/internal/bus"
	"github.com/tendant/simple-image-optimizer/internal/img"
	"github.com/tendant/simple-image-optimizer/pkg/schema"
)

// Backfill publishes an OptimizeRequested job for every supported image below
// a directory.
type Backfill struct {
	Publisher bus.Publisher
	Subject   string
	Limit     int
	MinBytes  int64
	DryRun    bool
	Logger    *slog.Logger
}

type Stats struct {
	Scanned         int
	Published       int
	SkippedNonImage int
	SkippedSmall    int
}

func (b *Backfill) Run(ctx context.Context, dir string) (Stats, error) {
	var stats Stats
	if !b.DryRun && b.Publisher == nil {
		return stats, fmt.Errorf("publisher is required unless dry-run is set")
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return stats, fmt.Errorf("resolve %s: %w", dir, err)
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if b.Limit > 0 && stats.Published >= b.Limit {
			return filepath.SkipAll
		}

		stats.Scanned++
		return b.visit(path, d, &stats)
	})
	if err != nil {
		return stats, fmt.Errorf("walk %s: %w", root, err)
	}
	return stats, nil
}

func (b *Backfill) visit(path string, d fs.DirEntry, stats *Stats) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	if info.Size() <= b.MinBytes {
		stats.SkippedSmall++
		return nil
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("detect %s: %w", path, err)
	}
	mimeType := mt.String()
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !img.Supports(mimeType) {
		stats.SkippedNonImage++
		return nil
	}

	event := schema.OptimizeRequested{
		ID:         uuid.NewString(),
		Filename:   d.Name(),
		MimeType:   mimeType,
		Path:       path,
		HappenedAt: time.Now().Unix(),
	}

	if b.DryRun {
		stats.Published++
		b.logger().Info("[DRY RUN] would publish job", "path", path, "mime_type", mimeType, "size", info.Size())
		return nil
	}

	if err := b.Publisher.PublishJSON(b.Subject, event); err != nil {
		return fmt.Errorf("publish job for %s: %w", path, err)
	}
	stats.Published++
	b.logger().Info("published optimize job", "id", event.ID, "path", path, "jobs_published", stats.Published)
	return nil
}

func (b *Backfill) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
