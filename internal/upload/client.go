// internal/upload/client.go
package upload

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tendant/simple-image-optimizer/internal/img"
)

// Client moves sources and optimized results through a Store.
type Client struct {
	store  Store
	prefix string
}

// NewClient wraps store; results are written under prefix.
func NewClient(store Store, prefix string) *Client {
	return &Client{store: store, prefix: strings.Trim(prefix, "/")}
}

// FetchSource downloads key into memory. The MIME type is sniffed when the
// store does not report an image type.
func (c *Client) FetchSource(ctx context.Context, key, filename string) (*img.SourceImage, error) {
	data, contentType, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("download source: %w", err)
	}

	mimeType := strings.ToLower(contentType)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = img.DetectMIME(data)
	}
	if filename == "" {
		filename = path.Base(key)
	}

	return &img.SourceImage{Name: filename, MIMEType: mimeType, Data: data}, nil
}

// UploadOptions customises result persistence.
type UploadOptions struct {
	// ID groups the object under <prefix>/<id>/. A random UUID is used when
	// empty or not a UUID.
	ID       string
	FileName string
	MimeType string
}

// UploadResult describes a stored object.
type UploadResult struct {
	Key      string
	URL      string
	Size     int64
	MimeType string
}

// UploadOptimized stores data as <prefix>/<uuid>/<file name>.
func (c *Client) UploadOptimized(ctx context.Context, data []byte, opts UploadOptions) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("upload optimized: empty payload")
	}

	fileName := filepath.Base(opts.FileName)
	if fileName == "" || fileName == "." || fileName == "/" {
		fileName = "image"
	}

	mimeType := opts.MimeType
	if mimeType == "" {
		mimeType = img.DetectMIME(data)
	}

	key := c.ObjectKey(opts.ID, fileName)
	if err := c.store.Put(ctx, key, data, mimeType); err != nil {
		return nil, fmt.Errorf("upload optimized: %w", err)
	}

	return &UploadResult{
		Key:      key,
		URL:      c.store.URL(key),
		Size:     int64(len(data)),
		MimeType: mimeType,
	}, nil
}

// ObjectKey builds the storage key for a result.
func (c *Client) ObjectKey(id, fileName string) string {
	parsed, err := uuid.Parse(id)
	if err != nil {
		parsed = uuid.New()
	}
	if c.prefix == "" {
		return parsed.String() + "/" + fileName
	}
	return c.prefix + "/" + parsed.String() + "/" + fileName
}
