package vision

import (
	"image/color"

	"gocv.io/x/gocv"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/pkg/types"
)

// Envelope drawing style (BGR green, 3px).
var (
	EnvelopeColor     = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	EnvelopeThickness = 3
)

// Regions returns the bounding rectangles of the external contours in mask
// whose enclosed area is strictly greater than minArea.
func Regions(mask gocv.Mat, minArea int) []types.Region {
	if mask.Empty() {
		return nil
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var regions []types.Region
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if gocv.ContourArea(c) <= float64(minArea) {
			continue
		}
		regions = append(regions, types.RegionFromRect(gocv.BoundingRect(c)))
	}
	return regions
}

// Aggregate merges the surviving regions of mask into one envelope.
// The second result is false when no region survives.
func Aggregate(mask gocv.Mat, minArea int) (types.Region, bool) {
	return Envelope(Regions(mask, minArea))
}

// Envelope combines boxes into a single rectangle.
//
// The origin is the minimum x/y over all boxes, but the far corner is the
// maximum x/y over all boxes plus the maximum width/height over all boxes,
// not each box's own far corner. With heterogeneous box sizes this can
// overshoot the tight union; it is kept as an accepted approximation for
// display purposes.
func Envelope(boxes []types.Region) (types.Region, bool) {
	if len(boxes) == 0 {
		return types.Region{}, false
	}

	minX, minY := boxes[0].X, boxes[0].Y
	maxX, maxY := boxes[0].X, boxes[0].Y
	maxW, maxH := boxes[0].W, boxes[0].H
	for _, b := range boxes[1:] {
		minX = min(minX, b.X)
		minY = min(minY, b.Y)
		maxX = max(maxX, b.X)
		maxY = max(maxY, b.Y)
		maxW = max(maxW, b.W)
		maxH = max(maxH, b.H)
	}

	return types.Region{
		X: minX,
		Y: minY,
		W: maxX + maxW - minX,
		H: maxY + maxH - minY,
	}, true
}

// DrawEnvelope draws r onto img.
func DrawEnvelope(img *gocv.Mat, r types.Region) {
	gocv.Rectangle(img, r.Rect(), EnvelopeColor, EnvelopeThickness)
}
