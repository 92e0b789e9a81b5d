package webmonitor

import (
	"context"
	"sync"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/snapshot"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/pkg/types"
)

// Monitor keeps the latest detection status and a short in-memory alert
// history. The detection loop writes to it; HTTP handlers read snapshots.
type Monitor struct {
	startTime time.Time
	history   int
	snapshot  snapshot.Options
	onAlert   func(AlertRecord)

	mu              sync.Mutex
	latest          *types.FrameStats
	framesProcessed uint64
	motionFrames    uint64
	alertsFired     uint64
	alerts          []AlertRecord // newest first
	snapshots       map[string][]byte
}

// NewMonitor creates a Monitor keeping up to history alerts.
func NewMonitor(history int, opts snapshot.Options) *Monitor {
	if history <= 0 {
		history = DefaultConfig().AlertHistory
	}
	return &Monitor{
		startTime: time.Now(),
		history:   history,
		snapshot:  opts,
		snapshots: make(map[string][]byte),
	}
}

// UpdateStatus stores the summary of the most recent tick.
func (m *Monitor) UpdateStatus(stats types.FrameStats) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.framesProcessed++
	if stats.Motion {
		m.motionFrames++
	}
	m.latest = &stats
}

func (m *Monitor) Name() string { return "webmonitor" }

// Notify records an alert and its JPEG snapshot. The frame is encoded before
// returning and not retained.
func (m *Monitor) Notify(_ context.Context, event types.AlertEvent) error {
	var jpegData []byte
	if !event.Frame.Empty() {
		data, err := snapshot.Encode(event.Frame, m.snapshot)
		if err != nil {
			return err
		}
		jpegData = data
	}

	record := AlertRecord{
		ID:         event.ID,
		Timestamp:  unixSeconds(event.Timestamp),
		MotionArea: event.MotionArea,
	}
	if event.HasEnvelope {
		env := event.Envelope
		record.Envelope = &env
	}
	if jpegData != nil {
		record.SnapshotURL = "/api/alerts/" + event.ID + "/snapshot.jpg"
	}

	m.mu.Lock()
	m.alertsFired++
	m.alerts = append([]AlertRecord{record}, m.alerts...)
	if jpegData != nil {
		m.snapshots[event.ID] = jpegData
	}
	if len(m.alerts) > m.history {
		for _, old := range m.alerts[m.history:] {
			delete(m.snapshots, old.ID)
		}
		m.alerts = m.alerts[:m.history]
	}
	onAlert := m.onAlert
	m.mu.Unlock()

	logger.Debug("Monitor", "Recorded alert %s (%d bytes snapshot)", event.ID, len(jpegData))
	if onAlert != nil {
		onAlert(record)
	}
	return nil
}

// Snapshot returns the current status payload.
func (m *Monitor) Snapshot() StatusPayload {
	m.mu.Lock()
	defer m.mu.Unlock()

	payload := StatusPayload{
		Monitor: MonitorStats{
			FramesProcessed: m.framesProcessed,
			MotionFrames:    m.motionFrames,
			AlertsFired:     m.alertsFired,
			UptimeSeconds:   time.Since(m.startTime).Seconds(),
		},
		AlertHistory: m.alertsLocked(),
		Timestamp:    unixSeconds(time.Now()),
	}
	if m.latest != nil {
		latest := *m.latest
		payload.LatestFrame = &latest
		payload.Monitor.CurrentFPS = latest.FPS
		payload.Monitor.Pending = latest.Pending
	}
	return payload
}

// Alerts returns the alert history, newest first.
func (m *Monitor) Alerts() []AlertRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alertsLocked()
}

func (m *Monitor) alertsLocked() []AlertRecord {
	historyCopy := make([]AlertRecord, len(m.alerts))
	copy(historyCopy, m.alerts)
	return historyCopy
}

// AlertSnapshot returns the JPEG recorded for alert id.
func (m *Monitor) AlertSnapshot(id string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.snapshots[id]
	return data, ok
}
