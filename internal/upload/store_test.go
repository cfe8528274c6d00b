package upload

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type s3Request struct {
	method      string
	path        string
	contentType string
}

func newFakeS3(t *testing.T, body []byte) (*httptest.Server, func() []s3Request) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []s3Request
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqs = append(reqs, s3Request{method: r.Method, path: r.URL.Path, contentType: r.Header.Get("Content-Type")})
		mu.Unlock()

		if r.Method == http.MethodGet && strings.Contains(r.URL.Path, "missing") {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
			return
		}
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(body)
			return
		}
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []s3Request {
		mu.Lock()
		defer mu.Unlock()
		return append([]s3Request(nil), reqs...)
	}
}

func newTestS3Store(endpoint string) *S3Store {
	awsCfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
	}
	return NewS3StoreFromConfig(awsCfg, S3Config{
		Bucket:       "images",
		Region:       "us-east-1",
		Endpoint:     endpoint,
		UsePathStyle: true,
	})
}

func TestS3StorePut(t *testing.T) {
	srv, requests := newFakeS3(t, nil)
	store := newTestS3Store(srv.URL)

	err := store.Put(context.Background(), "optimized/id/photo.webp", []byte("webp-bytes"), "image/webp")
	require.NoError(t, err)

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].method)
	assert.Equal(t, "/images/optimized/id/photo.webp", reqs[0].path)
	assert.Equal(t, "image/webp", reqs[0].contentType)
}

func TestS3StoreGet(t *testing.T) {
	srv, requests := newFakeS3(t, []byte("jpeg-bytes"))
	store := newTestS3Store(srv.URL)

	data, ct, err := store.Get(context.Background(), "uploads/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Equal(t, "image/jpeg", ct)
	assert.Equal(t, "/images/uploads/a.jpg", requests()[0].path)
}

func TestS3StoreGetMissing(t *testing.T) {
	srv, _ := newFakeS3(t, nil)
	store := newTestS3Store(srv.URL)

	_, _, err := store.Get(context.Background(), "uploads/missing.jpg")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestS3StoreURL(t *testing.T) {
	assert.Equal(t, "http://minio:9000/images/k.webp", newTestS3Store("http://minio:9000/").URL("k.webp"))

	public := &S3Store{cfg: S3Config{Bucket: "images", PublicBaseURL: "https://cdn.example.com/"}}
	assert.Equal(t, "https://cdn.example.com/k.webp", public.URL("k.webp"))

	hosted := &S3Store{cfg: S3Config{Bucket: "images", Region: "eu-west-1"}}
	assert.Equal(t, "https://images.s3.eu-west-1.amazonaws.com/k.webp", hosted.URL("k.webp"))
}
