package webmonitor

import (
	"gocv.io/x/gocv"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/snapshot"
)

// Preview is a display that publishes frames to MJPEG clients. Frames are
// only encoded while at least one client is connected.
type Preview struct {
	frames *FrameBroadcaster
	opts   snapshot.Options
	errors int
}

// NewPreview returns a preview publishing to frames.
func NewPreview(frames *FrameBroadcaster, opts snapshot.Options) *Preview {
	return &Preview{frames: frames, opts: opts}
}

// Show encodes frame and broadcasts it.
func (p *Preview) Show(frame gocv.Mat) {
	if p.frames.ClientCount() == 0 {
		return
	}

	data, err := snapshot.Encode(frame, p.opts)
	if err != nil {
		p.errors++
		if p.errors == 1 {
			logger.Warn("Preview", "Encode preview frame: %v", err)
		}
		return
	}
	p.errors = 0
	p.frames.Publish(data)
}

// StopRequested always reports false; the web monitor cannot stop the loop.
func (p *Preview) StopRequested() bool { return false }

func (p *Preview) Close() error { return nil }
