package types

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// Region is an axis-aligned rectangle in frame coordinates.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// RegionFromRect converts an image.Rectangle into a Region.
func RegionFromRect(r image.Rectangle) Region {
	return Region{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Area returns W*H.
func (r Region) Area() int {
	return r.W * r.H
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.W, r.H)
}

// AlertEvent is emitted at most once per debounce cycle.
//
// Frame is a private clone of the original, unannotated color frame. The last
// holder of the event releases it with Close.
type AlertEvent struct {
	ID          string    // Unique event ID (UUID)
	Timestamp   time.Time // Tick time at which the dwell expired
	Frame       gocv.Mat  // Snapshot (BGR, CV_8UC3)
	Envelope    Region    // Motion envelope for this frame, if any
	HasEnvelope bool      // False when no region survived min-area filtering
	MotionArea  int       // Set pixels in the motion mask
}

// Close releases the snapshot.
func (e *AlertEvent) Close() error {
	return e.Frame.Close()
}

// FrameStats summarizes one processed tick for monitoring.
type FrameStats struct {
	FrameNumber  uint64    `json:"frame_number"`
	Timestamp    time.Time `json:"timestamp"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Motion       bool      `json:"motion"`
	MotionPixels int       `json:"motion_pixels"`
	Regions      []Region  `json:"regions"`
	Envelope     *Region   `json:"envelope"`
	Pending      bool      `json:"pending"`
	FPS          float64   `json:"fps"`
}
