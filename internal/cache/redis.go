// internal/cache/redis.go
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "optimized:"

// Entry is a previously uploaded optimization result.
type Entry struct {
	URL          string `json:"url"`
	Name         string `json:"name"`
	MIMEType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	OriginalSize int64  `json:"original_size"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Outcome      string `json:"outcome"`
	StoredAt     int64  `json:"stored_at"`
}

// Cache stores results keyed by source content and option fingerprint.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func New(cfg Config) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Cache{client: client, ttl: cfg.TTL}
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the cached entry, or nil on a miss.
func (c *Cache) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cache entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &entry, nil
}

func (c *Cache) Set(ctx context.Context, key string, entry *Entry) error {
	if entry.StoredAt == 0 {
		entry.StoredAt = time.Now().Unix()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Key derives a cache key from the source bytes and a fingerprint of the
// settings that produced the result.
func Key(data []byte, fingerprint string) string {
	sum := md5.Sum(data)
	key := hex.EncodeToString(sum[:])
	if fingerprint != "" {
		key += ":" + fingerprint
	}
	return key
}
