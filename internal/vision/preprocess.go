// Package vision turns raw camera frames into a motion decision: grayscale
// smoothing, background differencing, thresholding and region extraction.
//
// Every function returns a new Mat; the caller owns it and must Close it.
package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Blur parameters. A large kernel suppresses sensor noise and small lighting
// flicker so only macroscopic intensity changes register as motion.
const (
	BlurKernelSize = 21
	BlurSigma      = 0 // derived from the kernel size
)

var (
	// ErrInvalidFrame is returned for empty or malformed frames.
	ErrInvalidFrame = errors.New("invalid frame")
	// ErrDimensionMismatch is returned when two frames that must be compared differ in size.
	ErrDimensionMismatch = errors.New("frame dimension mismatch")
	// ErrInvalidThreshold is returned for thresholds outside 0..255.
	ErrInvalidThreshold = errors.New("threshold out of range")
)

// Preprocess converts a color frame to a blurred single-channel frame of the
// same size. Single-channel input is treated as already gray.
func Preprocess(frame gocv.Mat) (gocv.Mat, error) {
	if frame.Empty() || frame.Rows() <= 0 || frame.Cols() <= 0 {
		return gocv.NewMat(), fmt.Errorf("preprocess: %w: empty", ErrInvalidFrame)
	}

	gray := gocv.NewMat()
	switch frame.Channels() {
	case 1:
		frame.CopyTo(&gray)
	case 3:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRAToGray)
	default:
		gray.Close()
		return gocv.NewMat(), fmt.Errorf("preprocess: %w: %d channels", ErrInvalidFrame, frame.Channels())
	}
	defer gray.Close()

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Pt(BlurKernelSize, BlurKernelSize), BlurSigma, BlurSigma, gocv.BorderDefault)
	return blurred, nil
}

// SameSize reports whether two frames have identical width, height and channel count.
func SameSize(a, b gocv.Mat) bool {
	return a.Rows() == b.Rows() && a.Cols() == b.Cols() && a.Channels() == b.Channels()
}
