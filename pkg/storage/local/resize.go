package local

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// Resizable reports whether Resize supports the content type.
func Resizable(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/gif":
		return true
	}
	return false
}

// Resize scales an image to fit within width x height, keeping its aspect ratio.
// A zero dimension is derived from the other. Images are never upscaled.
func Resize(data []byte, contentType string, width, height int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := fitWithin(bounds.Dx(), bounds.Dy(), width, height)
	if w == bounds.Dx() && h == bounds.Dy() {
		return data, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	switch contentType {
	case "image/png":
		err = png.Encode(&buf, dst)
	case "image/gif":
		err = gif.Encode(&buf, dst, nil)
	default:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func fitWithin(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return srcW, srcH
	}
	if maxW <= 0 && maxH <= 0 {
		return srcW, srcH
	}
	scale := 1.0
	if maxW > 0 {
		scale = min(scale, float64(maxW)/float64(srcW))
	}
	if maxH > 0 {
		scale = min(scale, float64(maxH)/float64(srcH))
	}
	w := max(1, int(float64(srcW)*scale))
	h := max(1, int(float64(srcH)*scale))
	return w, h
}
