package trellis

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/draw"
)

// WritePNG encodes img as a PNG file at path, creating missing parent
// directories.
func WritePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("trellis: mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("trellis: create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("trellis: encode %s: %w", path, err)
	}
	return f.Close()
}

// ScaleImage resamples img to w x h with Catmull-Rom filtering. A
// non-positive size returns nil.
func ScaleImage(img image.Image, w, h int) *image.RGBA {
	if w <= 0 || h <= 0 {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// CapturePath returns the file a capture labeled label is written to in
// dir: a timestamp followed by the sanitized label.
func CapturePath(dir, label string, ts time.Time) string {
	return filepath.Join(dir, ts.Format("20060102_150405")+"_"+SanitizeLabel(label)+".png")
}

// SanitizeLabel replaces characters that are unsafe in file names with
// underscores. An empty label becomes "unlabeled".
func SanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
