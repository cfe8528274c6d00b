package img

import (
	"fmt"
	"strings"

	"github.com/disintegration/imaging"

	// Register the WebP decoder with image.Decode; imaging registers the rest.
	_ "golang.org/x/image/webp"
)

const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEGIF  = "image/gif"
	MIMEWebP = "image/webp"
	MIMEBMP  = "image/bmp"
	MIMETIFF = "image/tiff"
)

// Format identifies how a surface is encoded.
type Format struct {
	MIMEType  string
	Extension string
	Lossless  bool
	Alpha     bool

	imaging imaging.Format
	webp    bool
}

var (
	FormatJPEG = Format{MIMEType: MIMEJPEG, Extension: ".jpg", imaging: imaging.JPEG}
	FormatPNG  = Format{MIMEType: MIMEPNG, Extension: ".png", Lossless: true, Alpha: true, imaging: imaging.PNG}
	FormatGIF  = Format{MIMEType: MIMEGIF, Extension: ".gif", Lossless: true, imaging: imaging.GIF}
	FormatBMP  = Format{MIMEType: MIMEBMP, Extension: ".bmp", Lossless: true, imaging: imaging.BMP}
	FormatTIFF = Format{MIMEType: MIMETIFF, Extension: ".tiff", Lossless: true, imaging: imaging.TIFF}
	FormatWebP = Format{MIMEType: MIMEWebP, Extension: ".webp", webp: true}
)

// FormatForMIME returns the output format used for a source MIME type.
// An empty type is treated as JPEG.
func FormatForMIME(mimeType string) (Format, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))

	switch {
	case mimeType == "":
		return FormatJPEG, nil
	case mimeType == MIMEJPEG || mimeType == "image/jpg" || mimeType == "image/pjpeg":
		return FormatJPEG, nil
	case strings.Contains(mimeType, "png"):
		return FormatPNG, nil
	case mimeType == MIMEGIF:
		return FormatGIF, nil
	case mimeType == MIMEWebP:
		return FormatWebP, nil
	case mimeType == MIMEBMP || mimeType == "image/x-ms-bmp":
		return FormatBMP, nil
	case mimeType == MIMETIFF:
		return FormatTIFF, nil
	default:
		return Format{}, fmt.Errorf("unsupported MIME type: %s (supported: %s)", mimeType, strings.Join(SupportedMimeTypes(), ", "))
	}
}

// IsPNG reports whether the MIME type keeps an alpha channel on resize.
func IsPNG(mimeType string) bool {
	return strings.Contains(strings.ToLower(mimeType), "png")
}

// IsWebP reports whether the MIME type is already WebP.
func IsWebP(mimeType string) bool {
	return strings.Contains(strings.ToLower(mimeType), "webp")
}

// SupportedMimeTypes returns the source types the pipeline can decode.
func SupportedMimeTypes() []string {
	return []string{
		MIMEJPEG,
		MIMEPNG,
		MIMEGIF,
		MIMEWebP,
		MIMEBMP,
		MIMETIFF,
	}
}

// Supports reports whether mimeType is a decodable source type.
func Supports(mimeType string) bool {
	_, err := FormatForMIME(mimeType)
	return err == nil && strings.TrimSpace(mimeType) != ""
}
