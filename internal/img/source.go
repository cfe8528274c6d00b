package img

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// SourceImage is the caller-owned input of an optimization call.
// Nothing in this package writes to Data.
type SourceImage struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Size returns the payload size in bytes.
func (s *SourceImage) Size() int64 { return int64(len(s.Data)) }

// Dimensions is an intrinsic pixel size.
type Dimensions struct {
	Width  int
	Height int
}

// Longest returns the larger of the two axes.
func (d Dimensions) Longest() int {
	if d.Width > d.Height {
		return d.Width
	}
	return d.Height
}

// Fits reports whether d is no larger than o on both axes.
func (d Dimensions) Fits(o Dimensions) bool {
	return d.Width <= o.Width && d.Height <= o.Height
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Candidate is an encoded image produced by one of the pipeline stages.
type Candidate struct {
	Name     string
	MIMEType string
	Data     []byte
	Width    int
	Height   int
}

// Size returns the encoded size in bytes.
func (c *Candidate) Size() int64 { return int64(len(c.Data)) }

// Dimensions returns the pixel size of the candidate, zero when unknown.
func (c *Candidate) Dimensions() Dimensions {
	return Dimensions{Width: c.Width, Height: c.Height}
}

// CandidateFromSource wraps the untouched source bytes as a candidate.
func CandidateFromSource(src SourceImage, d Dimensions) *Candidate {
	return &Candidate{
		Name:     src.Name,
		MIMEType: src.MIMEType,
		Data:     src.Data,
		Width:    d.Width,
		Height:   d.Height,
	}
}

// ReadSource loads a file from disk. When declared is empty or not an image
// type the MIME type is sniffed from the content.
func ReadSource(path, declared string) (*SourceImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return NewSource(filepath.Base(path), declared, data), nil
}

// NewSource wraps data already in memory, sniffing the MIME type the same way
// ReadSource does.
func NewSource(name, declared string, data []byte) *SourceImage {
	mimeType := strings.ToLower(strings.TrimSpace(declared))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = DetectMIME(data)
	}
	return &SourceImage{Name: name, MIMEType: mimeType, Data: data}
}

// DetectMIME sniffs the content type without parameters.
func DetectMIME(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

// ReplaceExt swaps the extension of name, appending one when missing.
func ReplaceExt(name, ext string) string {
	if name == "" {
		return "image" + ext
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}
