package vision

import (
	"fmt"

	"gocv.io/x/gocv"
)

// MaskOn is the value of a set cell in a motion mask.
const MaskOn = 255

// Score differences current against background and returns a binary mask in
// which a cell is set iff |background-current| > threshold.
func Score(background, current gocv.Mat, threshold int) (gocv.Mat, error) {
	if threshold < 0 || threshold > 255 {
		return gocv.NewMat(), fmt.Errorf("score: %w: %d", ErrInvalidThreshold, threshold)
	}
	if background.Empty() || current.Empty() {
		return gocv.NewMat(), fmt.Errorf("score: %w: empty input", ErrInvalidFrame)
	}
	if !SameSize(background, current) {
		return gocv.NewMat(), fmt.Errorf("score: %w: background %dx%dx%d, current %dx%dx%d",
			ErrDimensionMismatch,
			background.Cols(), background.Rows(), background.Channels(),
			current.Cols(), current.Rows(), current.Channels())
	}

	delta := gocv.NewMat()
	defer delta.Close()
	gocv.AbsDiff(background, current, &delta)

	mask := gocv.NewMat()
	gocv.Threshold(delta, &mask, float32(threshold), MaskOn, gocv.ThresholdBinary)
	return mask, nil
}

// MotionPixels returns the number of set cells in the mask.
func MotionPixels(mask gocv.Mat) int {
	if mask.Empty() {
		return 0
	}
	return gocv.CountNonZero(mask)
}

// HasMotion reports whether any cell of the mask is set.
func HasMotion(mask gocv.Mat) bool {
	return MotionPixels(mask) > 0
}
