// Package detector runs the motion detection loop: it captures a background
// frame once, then on every tick compares the current frame against it,
// debounces the result and hands alerts to the delivery path.
package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/alert"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/camera"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/debounce"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/display"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/metrics"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/timeutil"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/vision"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/pkg/types"
)

var log = logger.For("Detector")

// ErrNoBackgroundFrame is returned when no usable frame could be read for
// the background reference.
var ErrNoBackgroundFrame = errors.New("no usable background frame")

// readFailureLogEvery rate-limits warnings for consecutive failed reads.
const readFailureLogEvery = 30

// Config holds the detection parameters.
type Config struct {
	Threshold          int
	MinArea            int
	DwellSeconds       float64
	DrawBoundingBox    bool
	LogFPS             bool
	TickInterval       time.Duration
	BackgroundAttempts int
}

// StatusSink receives a summary of every processed tick.
type StatusSink interface {
	UpdateStatus(stats types.FrameStats)
}

// Option configures optional collaborators.
type Option func(*Detector)

// WithClock replaces the real clock.
func WithClock(c timeutil.Clock) Option {
	return func(d *Detector) { d.clock = c }
}

// WithMetrics records loop metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Detector) { d.metrics = m }
}

// WithStatus publishes per-tick status to s.
func WithStatus(s StatusSink) Option {
	return func(d *Detector) { d.status = s }
}

// WithIDGenerator replaces the UUID generator used for alert IDs.
func WithIDGenerator(fn func() string) Option {
	return func(d *Detector) { d.newID = fn }
}

// Detector is the loop driver. It is not safe for concurrent use; Run owns it.
type Detector struct {
	cfg     Config
	source  camera.Source
	display display.Display
	alerts  alert.Sink
	clock   timeutil.Clock
	metrics *metrics.Metrics
	status  StatusSink
	newID   func() string

	timer         debounce.Timer
	state         debounce.State
	background    gocv.Mat
	hasBackground bool

	frameNumber  uint64
	readFailures int
	fps          float64
}

// New creates a detector reading from source, showing frames on disp and
// submitting alerts to sink.
func New(cfg Config, source camera.Source, disp display.Display, sink alert.Sink, opts ...Option) *Detector {
	if disp == nil {
		disp = display.Nop{}
	}
	if cfg.BackgroundAttempts < 1 {
		cfg.BackgroundAttempts = 1
	}

	d := &Detector{
		cfg:     cfg,
		source:  source,
		display: disp,
		alerts:  sink,
		clock:   timeutil.RealClock{},
		metrics: metrics.New(),
		newID:   uuid.NewString,
		timer:   debounce.NewTimer(cfg.DwellSeconds),
		state:   debounce.Idle(),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// State returns the current debounce state.
func (d *Detector) State() debounce.State {
	return d.state
}

// CaptureBackground reads up to BackgroundAttempts frames and keeps the first
// usable one, preprocessed, as the background reference.
func (d *Detector) CaptureBackground(ctx context.Context) error {
	for attempt := 1; attempt <= d.cfg.BackgroundAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, ok := d.source.Read()
		if !ok || frame.Empty() {
			frame.Close()
			continue
		}
		d.metrics.FramesRead.Add(1)

		gray, err := vision.Preprocess(frame)
		frame.Close()
		if err != nil {
			return fmt.Errorf("preprocess background: %w", err)
		}

		d.releaseBackground()
		d.background = gray
		d.hasBackground = true
		log.Info("Background captured (%dx%d) after %d read(s)", gray.Cols(), gray.Rows(), attempt)
		return nil
	}

	return fmt.Errorf("%w after %d reads", ErrNoBackgroundFrame, d.cfg.BackgroundAttempts)
}

func (d *Detector) releaseBackground() {
	if d.hasBackground {
		d.background.Close()
		d.hasBackground = false
	}
}

// Run captures the background if needed and ticks until ctx is cancelled or
// the display requests a stop. It returns nil on a clean stop.
func (d *Detector) Run(ctx context.Context) error {
	if !d.hasBackground {
		if err := d.CaptureBackground(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	defer d.releaseBackground()

	log.Info("Detection loop started (threshold=%d, min_area=%d, dwell=%.2fs, tick=%s)",
		d.cfg.Threshold, d.cfg.MinArea, d.cfg.DwellSeconds, d.cfg.TickInterval)

	for {
		if ctx.Err() != nil {
			log.Info("Detection loop stopped: %v", context.Cause(ctx))
			return nil
		}
		if d.display.StopRequested() {
			log.Info("Detection loop stopped by display")
			return nil
		}

		start := d.clock.Now()
		if err := d.Tick(ctx, start); err != nil {
			return err
		}
		elapsed := d.clock.Since(start)
		d.metrics.ObserveTick(elapsed)

		if err := timeutil.Wait(ctx, d.clock, d.cfg.TickInterval-elapsed); err != nil {
			continue
		}

		if total := d.clock.Since(start); total > 0 {
			d.fps = 1 / total.Seconds()
			d.metrics.SetFPS(d.fps)
			if d.cfg.LogFPS {
				log.Debug("FPS: %.2f", d.fps)
			}
		}
	}
}

// Tick performs one acquire, score, debounce and notify cycle at time now.
// An unavailable frame skips the tick without touching the debounce state.
// A frame whose size differs from the background is a fatal error.
func (d *Detector) Tick(ctx context.Context, now time.Time) error {
	if !d.hasBackground {
		return ErrNoBackgroundFrame
	}

	frame, ok := d.source.Read()
	if !ok || frame.Empty() {
		frame.Close()
		d.skip()
		return nil
	}
	defer frame.Close()
	d.metrics.FramesRead.Add(1)

	if d.readFailures > 0 {
		log.Info("Camera recovered after %d failed read(s)", d.readFailures)
		d.readFailures = 0
	}
	d.frameNumber++

	gray, err := vision.Preprocess(frame)
	if err != nil {
		return fmt.Errorf("frame %d: %w", d.frameNumber, err)
	}
	defer gray.Close()

	mask, err := vision.Score(d.background, gray, d.cfg.Threshold)
	if err != nil {
		return fmt.Errorf("frame %d: %w", d.frameNumber, err)
	}
	defer mask.Close()

	motionPixels := vision.MotionPixels(mask)
	motion := motionPixels > 0

	var regions []types.Region
	var envelope types.Region
	var hasEnvelope bool
	if motion {
		regions = vision.Regions(mask, d.cfg.MinArea)
		envelope, hasEnvelope = vision.Envelope(regions)
	}

	shown := frame
	if d.cfg.DrawBoundingBox && hasEnvelope {
		shown = frame.Clone()
		defer shown.Close()
		vision.DrawEnvelope(&shown, envelope)
	}

	var fire bool
	d.state, fire = d.timer.Next(d.state, motion, now)

	if fire {
		event := types.AlertEvent{
			ID:          d.newID(),
			Timestamp:   now,
			Frame:       frame.Clone(),
			Envelope:    envelope,
			HasEnvelope: hasEnvelope,
			MotionArea:  motionPixels,
		}
		d.metrics.AlertsFired.Add(1)
		log.Info("Motion persisted past %.2fs dwell, alert %s", d.cfg.DwellSeconds, event.ID)
		d.alerts.Submit(ctx, event)
	}

	d.display.Show(shown)

	d.metrics.FramesProcessed.Add(1)
	if motion {
		d.metrics.MotionFrames.Add(1)
	}
	d.metrics.MotionPixels.Store(uint64(motionPixels))
	d.metrics.SetPending(d.state.IsPending())

	if d.status != nil {
		stats := types.FrameStats{
			FrameNumber:  d.frameNumber,
			Timestamp:    now,
			Width:        frame.Cols(),
			Height:       frame.Rows(),
			Motion:       motion,
			MotionPixels: motionPixels,
			Regions:      regions,
			Pending:      d.state.IsPending(),
			FPS:          d.fps,
		}
		if hasEnvelope {
			stats.Envelope = &envelope
		}
		d.status.UpdateStatus(stats)
	}

	return nil
}

func (d *Detector) skip() {
	d.metrics.FramesSkipped.Add(1)
	d.readFailures++
	if d.readFailures == 1 || d.readFailures%readFailureLogEvery == 0 {
		log.Warn("No frame from camera, skipping tick (%d consecutive)", d.readFailures)
	}
}
