//go:build !cgo

package img

// Pure Go builds have no WebP encoder; conversion reports itself unsupported.
func nativeWebPEncoder() WebPEncoder { return nil }
