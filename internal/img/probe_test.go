package img

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func TestProbeDimensions(t *testing.T) {
	data := encodePNG(t, solidImage(320, 240, color.Black))

	d, err := ProbeDimensions(data)
	if err != nil {
		t.Fatalf("ProbeDimensions returned error: %v", err)
	}
	if d != (Dimensions{320, 240}) {
		t.Fatalf("dimensions = %s, want 320x240", d)
	}
	if d.Longest() != 320 {
		t.Fatalf("Longest = %d, want 320", d.Longest())
	}
}

func TestProbeDimensionsMalformed(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("definitely not an image"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeProber{}.Probe(data)
			var probeErr *DimensionProbeError
			if !errors.As(err, &probeErr) {
				t.Fatalf("expected DimensionProbeError, got %v", err)
			}
		})
	}
}

func TestReadSourceSniffsMIME(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "upload.bin")
	if err := os.WriteFile(path, encodePNG(t, solidImage(4, 4, color.White)), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	src, err := ReadSource(path, "application/octet-stream")
	if err != nil {
		t.Fatalf("ReadSource returned error: %v", err)
	}
	if src.MIMEType != MIMEPNG {
		t.Fatalf("mime = %s, want %s", src.MIMEType, MIMEPNG)
	}
	if src.Name != "upload.bin" {
		t.Fatalf("name = %s", src.Name)
	}

	declared, err := ReadSource(path, "image/jpeg")
	if err != nil {
		t.Fatalf("ReadSource returned error: %v", err)
	}
	if declared.MIMEType != MIMEJPEG {
		t.Fatalf("declared image type was overridden: %s", declared.MIMEType)
	}
}

func TestReadSourceMissingFile(t *testing.T) {
	if _, err := ReadSource(filepath.Join(t.TempDir(), "missing.png"), ""); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestFormatForMIME(t *testing.T) {
	tests := []struct {
		mimeType    string
		want        string
		shouldError bool
	}{
		{"image/jpeg", MIMEJPEG, false},
		{"IMAGE/PNG", MIMEPNG, false},
		{"", MIMEJPEG, false},
		{"image/webp", MIMEWebP, false},
		{"image/gif", MIMEGIF, false},
		{"application/pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.mimeType, func(t *testing.T) {
			f, err := FormatForMIME(tt.mimeType)
			if tt.shouldError {
				if err == nil {
					t.Fatalf("expected error for %q", tt.mimeType)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.MIMEType != tt.want {
				t.Fatalf("FormatForMIME(%q) = %s, want %s", tt.mimeType, f.MIMEType, tt.want)
			}
		})
	}
}

func TestReplaceExt(t *testing.T) {
	if got := ReplaceExt("holiday.photo.jpeg", ".webp"); got != "holiday.photo.webp" {
		t.Fatalf("got %s", got)
	}
	if got := ReplaceExt("noext", ".webp"); got != "noext.webp" {
		t.Fatalf("got %s", got)
	}
	if got := ReplaceExt("", ".png"); got != "image.png" {
		t.Fatalf("got %s", got)
	}
}

func TestPixelLimitRejectsLargeHeaders(t *testing.T) {
	data := encodePNG(t, solidImage(320, 240, color.Black))

	if _, err := (DecodeProber{MaxPixels: 320 * 240}).Probe(data); err != nil {
		t.Fatalf("Probe at the limit returned error: %v", err)
	}

	_, err := DecodeProber{MaxPixels: 320*240 - 1}.Probe(data)
	if !errors.Is(err, ErrTooManyPixels) {
		t.Fatalf("expected ErrTooManyPixels, got %v", err)
	}
	var probeErr *DimensionProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected *DimensionProbeError, got %T", err)
	}
}

func TestCheckPixelsGarbage(t *testing.T) {
	err := CheckPixels([]byte("not an image"), 10)
	var probeErr *DimensionProbeError
	if !errors.As(err, &probeErr) || errors.Is(err, ErrTooManyPixels) {
		t.Fatalf("unexpected error: %v", err)
	}
}
