package webmonitor

import (
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/snapshot"
)

// Config defines the runtime configuration for the web monitor server.
type Config struct {
	Addr           string
	StatusInterval time.Duration
	AlertHistory   int              // alerts (and snapshots) kept in memory
	Preview        snapshot.Options // MJPEG preview encoding
	Snapshot       snapshot.Options // alert snapshot encoding
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		StatusInterval: 2 * time.Second,
		AlertHistory:   8,
		Preview:        snapshot.Options{Quality: 75},
		Snapshot:       snapshot.Options{Quality: snapshot.DefaultQuality},
	}
}
