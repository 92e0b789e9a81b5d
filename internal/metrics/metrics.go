package metrics

import (
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all detector metrics
type Metrics struct {
	// Frame counters
	FramesRead      atomic.Uint64
	FramesProcessed atomic.Uint64
	FramesSkipped   atomic.Uint64 // absent/empty frames during the main loop
	MotionFrames    atomic.Uint64

	// Alert counters
	AlertsFired     atomic.Uint64
	AlertsDelivered atomic.Uint64
	AlertsFailed    atomic.Uint64
	AlertsDropped   atomic.Uint64 // async queue full

	// Current state
	MotionPixels    atomic.Uint64
	DebouncePending atomic.Uint64 // 0 = idle, 1 = pending
	TickLatencyUs   atomic.Uint64
	fpsBits         atomic.Uint64 // float64 bits

	// Prometheus collectors
	registry     *prometheus.Registry
	tickDuration prometheus.Histogram
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "motion_tick_duration_seconds",
			Help:    "Processing time per tick, excluding pacing",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) gauge(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	m.gauge("motion_frames_read_total", "Total frames read from the camera", &m.FramesRead)
	m.gauge("motion_frames_processed_total", "Total frames scored against the background", &m.FramesProcessed)
	m.gauge("motion_frames_skipped_total", "Total ticks skipped because no frame was available", &m.FramesSkipped)
	m.gauge("motion_frames_with_motion_total", "Total frames whose motion mask had set pixels", &m.MotionFrames)

	m.gauge("motion_alerts_fired_total", "Total alerts emitted by the debounce timer", &m.AlertsFired)
	m.gauge("motion_alerts_delivered_total", "Total alerts delivered successfully", &m.AlertsDelivered)
	m.gauge("motion_alerts_failed_total", "Total alert deliveries that failed", &m.AlertsFailed)
	m.gauge("motion_alerts_dropped_total", "Total alerts dropped because the delivery queue was full", &m.AlertsDropped)

	m.gauge("motion_pixels", "Set pixels in the most recent motion mask", &m.MotionPixels)
	m.gauge("motion_debounce_pending", "Debounce state (0=idle, 1=pending)", &m.DebouncePending)
	m.gauge("motion_tick_latency_us", "Processing time of the most recent tick in microseconds", &m.TickLatencyUs)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "motion_fps",
			Help: "Effective ticks per second including pacing",
		},
		m.FPS,
	))

	m.registry.MustRegister(m.tickDuration)
}

// ObserveTick records the processing time of one tick.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.TickLatencyUs.Store(uint64(d.Microseconds()))
	m.tickDuration.Observe(d.Seconds())
}

// SetFPS stores the effective tick rate.
func (m *Metrics) SetFPS(fps float64) {
	m.fpsBits.Store(math.Float64bits(fps))
}

// FPS returns the effective tick rate.
func (m *Metrics) FPS() float64 {
	return math.Float64frombits(m.fpsBits.Load())
}

// SetPending records the debounce state.
func (m *Metrics) SetPending(pending bool) {
	if pending {
		m.DebouncePending.Store(1)
		return
	}
	m.DebouncePending.Store(0)
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// NewServer returns an HTTP server exposing /metrics on addr.
func (m *Metrics) NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
