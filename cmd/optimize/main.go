// cmd/optimize is a standalone CLI that runs the optimizer over local files
// without the worker infrastructure.
//
// Usage:
//
//	./optimize -out ./optimized photo.jpg banner.png
//	./optimize -max-dimension 1024 -webp=false -concurrency 4 *.jpg
//	./optimize -v -smart=false large.png
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/tendant/simple-image-optimizer/internal/optimize"
)

func main() {
	defaults := optimize.DefaultOptions()

	outDir := flag.String("out", "./optimized", "Directory for optimized files")
	maxDimension := flag.Int("max-dimension", defaults.MaxWidthOrHeight, "Longest edge bound for compression")
	maxSizeMB := flag.Float64("max-size-mb", defaults.MaxSizeMB, "Size budget in MB")
	quality := flag.Float64("quality", defaults.Quality, "Initial quality in (0, 1]")
	useWebP := flag.Bool("webp", defaults.UseWebP, "Try WebP conversion")
	smart := flag.Bool("smart", defaults.EnableSmartResize, "Enable smart resize")
	threshold := flag.Int("threshold", defaults.ResizeThreshold, "Smart resize threshold in pixels")
	timeout := flag.Duration("timeout", 60*time.Second, "Per-file timeout")
	concurrency := flag.Int("concurrency", 2, "Files optimized in parallel")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] FILE...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.Kitchen}))
	slog.SetDefault(logger)

	files := flag.Args()
	if len(files) == 0 {
		fmt.Println("Error: at least one input file is required")
		flag.Usage()
		os.Exit(1)
	}
	if *quality <= 0 || *quality > 1 {
		fmt.Printf("Error: -quality must be within (0, 1], got %g\n", *quality)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opt := optimize.New(optimize.UseLogger(logger))
	opts := []optimize.Option{
		optimize.WithMaxWidthOrHeight(*maxDimension),
		optimize.WithMaxSizeMB(*maxSizeMB),
		optimize.WithQuality(*quality),
		optimize.WithWebP(*useWebP),
		optimize.WithSmartResize(*smart),
		optimize.WithResizeThreshold(*threshold),
		optimize.WithTimeout(*timeout),
		optimize.WithDebug(*verbose),
	}

	fmt.Printf("\n🎨 Optimizing %d file(s)...\n", len(files))
	start := time.Now()

	results, err := optimizeFiles(ctx, opt, files, *outDir, *concurrency, opts...)
	printResults(results)
	if err != nil {
		fmt.Printf("\n❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("⏱️  Total: %v\n\n", time.Since(start).Round(time.Millisecond))
}

func printResults(results []fileResult) {
	fmt.Println(strings.Repeat("-", 60))
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("❌ %s: %v\n", r.Input, r.Err)
			continue
		}
		fmt.Printf("✅ %s -> %s\n", r.Input, r.Output)
		fmt.Printf("   %s -> %s (%.1f%% smaller), %dx%d, %s in %v\n",
			formatBytes(r.Image.OriginalSize), formatBytes(r.Image.Size()), r.Image.Reduction(),
			r.Image.Width, r.Image.Height, r.Image.Outcome, r.Duration.Round(time.Millisecond))
	}
}

// formatBytes formats bytes into human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
