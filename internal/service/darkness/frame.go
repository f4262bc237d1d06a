package darkness

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when a frame decodes to an empty Mat.
var ErrEmptyFrame = errors.New("decoded frame is empty")

// DecodeFrame decodes an encoded camera frame (JPEG, PNG) into packed ARGB
// pixels and returns them with the frame's width and height.
func DecodeFrame(data []byte) (PixelBuffer, int, int, error) {
	if len(data) == 0 {
		return nil, 0, 0, ErrEmptyFrame
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode frame: %w", err)
	}
	defer mat.Close()

	return PixelsFromMat(mat)
}

// PixelsFromMat unpacks an 8-bit GRAY, BGR or BGRA Mat into packed ARGB
// pixels. Pixels without an alpha channel are fully opaque.
func PixelsFromMat(mat gocv.Mat) (PixelBuffer, int, int, error) {
	if mat.Empty() {
		return nil, 0, 0, ErrEmptyFrame
	}

	switch mat.Type() {
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC3, gocv.MatTypeCV8UC4:
	default:
		return nil, 0, 0, fmt.Errorf("unsupported mat type %v", mat.Type())
	}

	src := mat
	if !mat.IsContinuous() {
		src = mat.Clone()
		defer src.Close()
	}

	rows, cols, channels := src.Rows(), src.Cols(), src.Channels()
	data := src.ToBytes()
	if len(data) < rows*cols*channels {
		return nil, 0, 0, fmt.Errorf("mat data too short: %d bytes for %dx%dx%d", len(data), cols, rows, channels)
	}

	pixels := make(PixelBuffer, rows*cols)
	for i := range pixels {
		o := i * channels
		a, r, g, b := uint32(0xFF), uint32(0), uint32(0), uint32(0)
		switch channels {
		case 1:
			r, g, b = uint32(data[o]), uint32(data[o]), uint32(data[o])
		case 3:
			b, g, r = uint32(data[o]), uint32(data[o+1]), uint32(data[o+2])
		case 4:
			b, g, r, a = uint32(data[o]), uint32(data[o+1]), uint32(data[o+2]), uint32(data[o+3])
		}
		pixels[i] = a<<24 | r<<16 | g<<8 | b
	}
	return pixels, cols, rows, nil
}
