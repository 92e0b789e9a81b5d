// Package camera acquires raw color frames.
package camera

import (
	"fmt"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// Source produces raw BGR frames. Read returns false on a transient capture
// failure; the returned Mat is owned by the caller.
type Source interface {
	Read() (gocv.Mat, bool)
	Close() error
}

// Device reads frames from a local camera index, a stream URL or a video file.
type Device struct {
	mu      sync.Mutex
	name    string
	capture *gocv.VideoCapture
}

// Open opens a capture device. A numeric name is treated as a device index.
func Open(name string) (*Device, error) {
	var target interface{} = name
	if idx, err := strconv.Atoi(name); err == nil {
		target = idx
	}

	capture, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, fmt.Errorf("open camera %q: %w", name, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open camera %q: device not opened", name)
	}

	return &Device{name: name, capture: capture}, nil
}

// Name returns the device name passed to Open.
func (d *Device) Name() string {
	return d.name
}

// Size returns the negotiated frame size reported by the driver.
func (d *Device) Size() (width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.capture.Get(gocv.VideoCaptureFrameWidth)), int(d.capture.Get(gocv.VideoCaptureFrameHeight))
}

// Read captures one frame.
func (d *Device) Read() (gocv.Mat, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	frame := gocv.NewMat()
	if ok := d.capture.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return gocv.NewMat(), false
	}
	return frame, true
}

// Close releases the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capture.Close()
}
