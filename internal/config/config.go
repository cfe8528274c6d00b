// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/simple-image-optimizer/internal/optimize"
)

type Config struct {
	NATSURL       string
	JobSubject    string
	WorkerQueue   string
	ResultSubject string

	StorageBackend string
	S3Bucket       string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Endpoint     string
	S3UsePathStyle bool
	PublicBaseURL  string
	UploadPrefix   string

	// LocalSourceRoot confines requests that name a local path. Empty
	// disables path requests.
	LocalSourceRoot string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	MetricsAddr string

	// MaxPixels rejects sources whose header declares a larger area.
	MaxPixels int
	Optimize  optimize.Options
}

// Load reads the configuration from the environment. Callers load .env first.
func Load() (Config, error) {
	cfg := Config{
		NATSURL:        getenv("NATS_URL", "nats://127.0.0.1:4222"),
		JobSubject:     getenv("OPTIMIZE_SUBJECT", "images.optimize.requested"),
		WorkerQueue:    getenv("OPTIMIZE_QUEUE", "optimizer-workers"),
		ResultSubject:  getenv("OPTIMIZE_DONE_SUBJECT", "images.optimize.done"),
		StorageBackend: strings.ToLower(getenv("STORAGE_BACKEND", "s3")),
		S3Bucket:       getenv("AWS_S3_BUCKET", ""),
		S3Region:       getenv("AWS_S3_REGION", "us-east-1"),
		S3AccessKey:    getenv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:    getenv("AWS_SECRET_ACCESS_KEY", ""),
		S3Endpoint:     getenv("AWS_S3_ENDPOINT", ""),
		S3UsePathStyle: getenvBool("AWS_S3_USE_PATH_STYLE", true),
		PublicBaseURL:  getenv("PUBLIC_BASE_URL", ""),
		UploadPrefix:   getenv("UPLOAD_PREFIX", "optimized"),
		RedisAddr:      getenv("REDIS_ADDR", ""),
		RedisPassword:  getenv("REDIS_PASSWORD", ""),
		MetricsAddr:    getenv("METRICS_ADDR", ":9090"),

		LocalSourceRoot: getenv("LOCAL_SOURCE_ROOT", ""),
	}

	switch cfg.StorageBackend {
	case "s3":
		if cfg.S3Bucket == "" {
			return Config{}, fmt.Errorf("AWS_S3_BUCKET is required for the s3 storage backend")
		}
	case "memory":
	default:
		return Config{}, fmt.Errorf("invalid STORAGE_BACKEND %q (expected s3 or memory)", cfg.StorageBackend)
	}

	db, err := strconv.Atoi(getenv("REDIS_DB", "0"))
	if err != nil || db < 0 {
		return Config{}, fmt.Errorf("invalid REDIS_DB: %q", os.Getenv("REDIS_DB"))
	}
	cfg.RedisDB = db

	if cfg.CacheTTL, err = parseDuration(getenv("CACHE_TTL", "24h"), "CACHE_TTL"); err != nil {
		return Config{}, err
	}

	if cfg.MaxPixels, err = parsePositiveInt(getenv("OPTIMIZE_MAX_PIXELS", "50000000"), "OPTIMIZE_MAX_PIXELS"); err != nil {
		return Config{}, err
	}

	opts := optimize.DefaultOptions()

	if opts.MaxWidthOrHeight, err = parsePositiveInt(getenv("OPTIMIZE_MAX_DIMENSION", "1920"), "OPTIMIZE_MAX_DIMENSION"); err != nil {
		return Config{}, err
	}
	if opts.ResizeThreshold, err = parsePositiveInt(getenv("OPTIMIZE_RESIZE_THRESHOLD", "800"), "OPTIMIZE_RESIZE_THRESHOLD"); err != nil {
		return Config{}, err
	}
	if opts.MaxSizeMB, err = parsePositiveFloat(getenv("OPTIMIZE_MAX_SIZE_MB", "1"), "OPTIMIZE_MAX_SIZE_MB"); err != nil {
		return Config{}, err
	}
	if opts.Quality, err = parsePositiveFloat(getenv("OPTIMIZE_QUALITY", "0.8"), "OPTIMIZE_QUALITY"); err != nil {
		return Config{}, err
	}
	if opts.Quality > 1 {
		return Config{}, fmt.Errorf("OPTIMIZE_QUALITY must be within (0, 1] (got %g)", opts.Quality)
	}
	skipKB, err := parsePositiveInt(getenv("OPTIMIZE_SKIP_BELOW_KB", "50"), "OPTIMIZE_SKIP_BELOW_KB")
	if err != nil {
		return Config{}, err
	}
	opts.SkipBelowBytes = int64(skipKB) * 1024
	if opts.Timeout, err = parseDuration(getenv("OPTIMIZE_TIMEOUT", "60s"), "OPTIMIZE_TIMEOUT"); err != nil {
		return Config{}, err
	}
	opts.UseWebP = getenvBool("OPTIMIZE_USE_WEBP", true)
	opts.EnableSmartResize = getenvBool("OPTIMIZE_SMART_RESIZE", true)
	opts.Debug = getenvBool("OPTIMIZE_DEBUG", false)
	cfg.Optimize = opts

	return cfg, nil
}

// CacheEnabled reports whether a Redis address is configured.
func (c Config) CacheEnabled() bool { return c.RedisAddr != "" }

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvBool(key string, defaultValue bool) bool {
	val := getenv(key, "")
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

func parsePositiveInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %d)", name, v)
	}
	return v, nil
}

func parsePositiveFloat(value string, name string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %g)", name, v)
	}
	return v, nil
}

func parseDuration(value string, name string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative (got %s)", name, d)
	}
	return d, nil
}
