package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	c := New(Config{Addr: mr.Addr(), TTL: ttl})
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	key := Key([]byte("source"), "q80")
	entry := &Entry{URL: "http://cdn/a.webp", Name: "a.webp", MIMEType: "image/webp", Size: 10, OriginalSize: 100, Outcome: "converted"}
	require.NoError(t, c.Set(ctx, key, entry))

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "http://cdn/a.webp", got.URL)
	assert.Equal(t, int64(100), got.OriginalSize)
	assert.NotZero(t, got.StoredAt)

	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+key))
}

func TestCacheMiss(t *testing.T) {
	c, _ := newTestCache(t, 0)

	got, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheExpiry(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", &Entry{URL: "u"}))
	mr.FastForward(2 * time.Minute)

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheCorruptEntry(t *testing.T) {
	c, mr := newTestCache(t, 0)
	require.NoError(t, mr.Set(keyPrefix+"bad", "{not json"))

	_, err := c.Get(context.Background(), "bad")
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", Key([]byte("hello"), ""))
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592:w1920", Key([]byte("hello"), "w1920"))
	assert.NotEqual(t, Key([]byte("a"), "x"), Key([]byte("b"), "x"))
}
