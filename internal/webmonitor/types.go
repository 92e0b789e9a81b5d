package webmonitor

import (
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/pkg/types"
)

// AlertRecord is the JSON shape of one alert in /api/alerts and the alert stream.
type AlertRecord struct {
	ID          string        `json:"id"`
	Timestamp   float64       `json:"timestamp"`
	MotionArea  int           `json:"motion_area"`
	Envelope    *types.Region `json:"envelope"`
	SnapshotURL string        `json:"snapshot_url"`
}

// MonitorStats summarizes the detection loop since startup.
type MonitorStats struct {
	FramesProcessed uint64  `json:"frames_processed"`
	MotionFrames    uint64  `json:"motion_frames"`
	AlertsFired     uint64  `json:"alerts_fired"`
	CurrentFPS      float64 `json:"current_fps"`
	Pending         bool    `json:"pending"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// StatusPayload is the body of /api/status and each /api/status/stream event.
type StatusPayload struct {
	Monitor      MonitorStats      `json:"monitor"`
	LatestFrame  *types.FrameStats `json:"latest_frame"`
	AlertHistory []AlertRecord     `json:"alert_history"`
	Timestamp    float64           `json:"timestamp"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
