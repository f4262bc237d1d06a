// Package darkness decides whether a captured frame is too dark to keep.
//
// A frame is dark when the integer average of its BT.601 luma values is
// below a threshold. The computation uses integers only: per-pixel luma is
// (299R + 587G + 114B) / 1000 truncated, and the average is truncated too.
package darkness

import (
	"errors"
	"fmt"
	"math"
)

// PixelBuffer holds packed ARGB pixels in row-major order: bits 24-31 alpha,
// 16-23 red, 8-15 green, 0-7 blue. Functions in this package only read it.
type PixelBuffer []uint32

var (
	// ErrInvalidInput is wrapped by every classification input error.
	ErrInvalidInput      = errors.New("invalid classification input")
	ErrNoPixels          = fmt.Errorf("%w: no pixel buffer", ErrInvalidInput)
	ErrInvalidDimensions = fmt.Errorf("%w: invalid dimensions", ErrInvalidInput)
	ErrBufferTooShort    = fmt.Errorf("%w: buffer shorter than width*height", ErrInvalidInput)
)

// Luminance returns the truncated BT.601 luma of a packed ARGB pixel.
// Alpha does not contribute.
func Luminance(p uint32) int {
	r := int(p>>16) & 0xFF
	g := int(p>>8) & 0xFF
	b := int(p) & 0xFF
	return (299*r + 587*g + 114*b) / 1000
}

// AverageLuminance returns the truncated mean luma of the first width*height
// pixels.
func AverageLuminance(pixels PixelBuffer, width, height int) (int, error) {
	total, err := pixelCount(pixels, width, height)
	if err != nil {
		return 0, err
	}

	var sum uint64
	for _, p := range pixels[:total] {
		sum += uint64(Luminance(p))
	}
	return int(sum / uint64(total)), nil
}

// IsDark reports whether the average luminance is strictly below threshold.
func IsDark(pixels PixelBuffer, width, height, threshold int) (bool, error) {
	avg, err := AverageLuminance(pixels, width, height)
	if err != nil {
		return false, err
	}
	return avg < threshold, nil
}

// pixelCount validates the dimensions against the buffer and returns the
// number of pixels to read.
func pixelCount(pixels PixelBuffer, width, height int) (int, error) {
	if pixels == nil {
		return 0, ErrNoPixels
	}
	if width <= 0 || height <= 0 || width > math.MaxInt/height {
		return 0, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	total := width * height
	if len(pixels) < total {
		return 0, fmt.Errorf("%w: have %d, need %d", ErrBufferTooShort, len(pixels), total)
	}
	return total, nil
}
