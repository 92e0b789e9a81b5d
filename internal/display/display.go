// Package display presents per-tick frames and reports stop requests.
package display

import (
	"errors"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// Display receives the per-tick frame. Show must not retain frame after it
// returns. StopRequested is a non-blocking poll.
type Display interface {
	Show(frame gocv.Mat)
	StopRequested() bool
	Close() error
}

const (
	// QuitKey stops the loop when pressed in the preview window.
	QuitKey = 'q'
	// DefaultTitle names the preview window.
	DefaultTitle = "Live Stream"
)

// Window shows frames in a native OpenCV window.
type Window struct {
	win  *gocv.Window
	stop atomic.Bool
}

// NewWindow opens a preview window titled title.
func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

// Show renders frame and polls the keyboard for QuitKey.
func (w *Window) Show(frame gocv.Mat) {
	if frame.Empty() {
		return
	}
	w.win.IMShow(frame)
	if key := w.win.WaitKey(1); key&0xFF == QuitKey {
		w.stop.Store(true)
	}
}

// StopRequested reports whether QuitKey was pressed.
func (w *Window) StopRequested() bool {
	return w.stop.Load()
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}

// Multi fans frames out to several displays. A stop request from any of them stops the loop.
type Multi []Display

// Show forwards frame to every display.
func (m Multi) Show(frame gocv.Mat) {
	for _, d := range m {
		d.Show(frame)
	}
}

// StopRequested reports whether any display requested a stop.
func (m Multi) StopRequested() bool {
	for _, d := range m {
		if d.StopRequested() {
			return true
		}
	}
	return false
}

// Close closes every display.
func (m Multi) Close() error {
	var errs []error
	for _, d := range m {
		errs = append(errs, d.Close())
	}
	return errors.Join(errs...)
}

// Nop discards frames and never requests a stop.
type Nop struct{}

func (Nop) Show(gocv.Mat)       {}
func (Nop) StopRequested() bool { return false }
func (Nop) Close() error        { return nil }
