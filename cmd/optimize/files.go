package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-image-optimizer/internal/img"
	"github.com/tendant/simple-image-optimizer/internal/optimize"
)

type fileResult struct {
	Input    string
	Output   string
	Image    *optimize.OptimizedImage
	Duration time.Duration
	Err      error
}

// optimizeFiles optimizes files with at most concurrency in flight and writes
// each result into outDir. Per-file failures are recorded in the result; the
// returned error reports setup problems and the first failure.
func optimizeFiles(ctx context.Context, opt *optimize.Optimizer, files []string, outDir string, concurrency int, opts ...optimize.Option) ([]fileResult, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure output directory: %w", err)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	// Failures do not cancel sibling files.
	results := make([]fileResult, len(files))
	names := &outputNames{used: make(map[string]bool)}
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, path := range files {
		g.Go(func() error {
			results[i] = optimizeFile(ctx, opt, path, outDir, names, opts)
			if results[i].Err != nil {
				return fmt.Errorf("%s: %w", path, results[i].Err)
			}
			return nil
		})
	}

	return results, g.Wait()
}

// outputNames hands out each output file name once per run. Later claims of a
// taken name get a numeric suffix: photo.webp, photo-2.webp, ...
type outputNames struct {
	mu   sync.Mutex
	used map[string]bool
}

func (n *outputNames) claim(name string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 2; n.used[strings.ToLower(candidate)]; i++ {
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
	n.used[strings.ToLower(candidate)] = true
	return candidate
}

func optimizeFile(ctx context.Context, opt *optimize.Optimizer, path, outDir string, names *outputNames, opts []optimize.Option) fileResult {
	res := fileResult{Input: path}
	start := time.Now()

	src, err := img.ReadSource(path, "")
	if err != nil {
		res.Err = err
		return res
	}
	if !img.Supports(src.MIMEType) {
		res.Err = fmt.Errorf("unsupported MIME type: %s", src.MIMEType)
		return res
	}

	opts = append(opts[:len(opts):len(opts)], optimize.WithProgress(func(pct int) {
		slog.Debug("progress", "file", src.Name, "percent", pct)
	}))
	out, err := opt.Optimize(ctx, src, opts...)
	if err != nil {
		res.Err = err
		return res
	}

	res.Output = filepath.Join(outDir, names.claim(out.Name))
	if err := os.WriteFile(res.Output, out.Data, 0o644); err != nil {
		res.Err = fmt.Errorf("write output: %w", err)
		return res
	}
	res.Image = out
	res.Duration = time.Since(start)
	return res
}
