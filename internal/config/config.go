// Package config resolves the detector configuration from defaults, an
// optional YAML file and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/logger"
)

// PasswordEnv is consulted when no SMTP password is configured.
const PasswordEnv = "MOTION_SENTRY_SMTP_PASSWORD"

// Config is the resolved runtime configuration.
type Config struct {
	Threshold           int     `yaml:"threshold"`
	MinArea             int     `yaml:"min_area"`
	DwellSeconds        float64 `yaml:"dwell_seconds"`
	MaxTickRate         float64 `yaml:"max_tick_rate"`
	DrawBoundingBox     bool    `yaml:"draw_bounding_box"`
	ShowPreview         bool    `yaml:"show_preview"`
	StartupPauseSeconds float64 `yaml:"startup_pause_seconds"`
	Camera              string  `yaml:"camera"`
	BackgroundAttempts  int     `yaml:"background_attempts"`

	AlertQueueSize   int           `yaml:"alert_queue_size"`
	AlertTimeout     time.Duration `yaml:"alert_timeout"`
	SnapshotMaxWidth int           `yaml:"snapshot_max_width"`
	SnapshotQuality  int           `yaml:"snapshot_quality"`

	HTTPAddr       string        `yaml:"http_addr"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	StatusInterval time.Duration `yaml:"status_interval"`

	LogLevel string `yaml:"log_level"`
	LogColor bool   `yaml:"log_color"`

	Email EmailConfig `yaml:"email"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
}

// EmailConfig contains SMTP settings. E-mail is enabled when Host, From and
// To are all set.
type EmailConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	Subject  string   `yaml:"subject"`
}

// MQTTConfig contains broker settings. MQTT is enabled when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Threshold:           80,
		MinArea:             500,
		DwellSeconds:        1.5,
		MaxTickRate:         5,
		StartupPauseSeconds: 5,
		Camera:              "0",
		BackgroundAttempts:  120,
		AlertTimeout:        30 * time.Second,
		SnapshotQuality:     90,
		StatusInterval:      2 * time.Second,
		LogLevel:            "info",
		LogColor:            true,
		Email: EmailConfig{
			Host:    "smtp.gmail.com",
			Port:    465,
			Subject: "Motion detected",
		},
		MQTT: MQTTConfig{
			Topic:    "motion-sentry/alerts",
			ClientID: "motion-sentry",
		},
	}
}

// LoadFile decodes a YAML file over cfg. Keys absent from the file keep
// their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// listValue is a comma-separated string list flag.
type listValue struct {
	list *[]string
}

func (v listValue) String() string {
	if v.list == nil {
		return ""
	}
	return strings.Join(*v.list, ",")
}

func (v listValue) Set(s string) error {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*v.list = out
	return nil
}

// RegisterFlags binds every flag to the corresponding field of cfg.
func (cfg *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&cfg.Threshold, "threshold", cfg.Threshold, "Per-pixel difference threshold (0-255)")
	fs.IntVar(&cfg.MinArea, "min-area", cfg.MinArea, "Minimum contour area to count as a region (pixels)")
	fs.Float64Var(&cfg.DwellSeconds, "dwell", cfg.DwellSeconds, "Seconds motion must persist before alerting (negative disables alerts)")
	fs.Float64Var(&cfg.DwellSeconds, "email-timer", cfg.DwellSeconds, "Alias for -dwell")
	fs.Float64Var(&cfg.MaxTickRate, "max-fps", cfg.MaxTickRate, "Maximum ticks per second")
	fs.BoolVar(&cfg.DrawBoundingBox, "bounding-box", cfg.DrawBoundingBox, "Draw the motion envelope on displayed frames")
	fs.BoolVar(&cfg.DrawBoundingBox, "b", cfg.DrawBoundingBox, "Alias for -bounding-box")
	fs.BoolVar(&cfg.ShowPreview, "show", cfg.ShowPreview, "Show the live preview window")
	fs.BoolVar(&cfg.ShowPreview, "s", cfg.ShowPreview, "Alias for -show")
	fs.Float64Var(&cfg.StartupPauseSeconds, "pause", cfg.StartupPauseSeconds, "Seconds to wait before opening the camera")
	fs.StringVar(&cfg.Camera, "camera", cfg.Camera, "Camera device index, file or stream URL")
	fs.IntVar(&cfg.BackgroundAttempts, "background-attempts", cfg.BackgroundAttempts, "Reads attempted when capturing the background")

	fs.IntVar(&cfg.AlertQueueSize, "alert-queue", cfg.AlertQueueSize, "Async alert queue size (0 delivers synchronously)")
	fs.DurationVar(&cfg.AlertTimeout, "alert-timeout", cfg.AlertTimeout, "Timeout per alert delivery (0 disables)")
	fs.IntVar(&cfg.SnapshotMaxWidth, "snapshot-width", cfg.SnapshotMaxWidth, "Maximum snapshot width (0 keeps the frame size)")
	fs.IntVar(&cfg.SnapshotQuality, "snapshot-quality", cfg.SnapshotQuality, "Snapshot JPEG quality (1-100)")

	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "Web monitor address (empty disables)")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty disables)")

	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error, silent)")
	fs.BoolVar(&cfg.LogColor, "log-color", cfg.LogColor, "Enable colored log output")

	fs.StringVar(&cfg.Email.Host, "smtp-host", cfg.Email.Host, "SMTP server host")
	fs.IntVar(&cfg.Email.Port, "smtp-port", cfg.Email.Port, "SMTP server port (465 uses implicit TLS)")
	fs.StringVar(&cfg.Email.Username, "smtp-user", cfg.Email.Username, "SMTP username")
	fs.StringVar(&cfg.Email.Password, "smtp-password", cfg.Email.Password, "SMTP password (or $"+PasswordEnv+")")
	fs.StringVar(&cfg.Email.From, "email-from", cfg.Email.From, "Alert sender address")
	fs.Var(listValue{&cfg.Email.To}, "email-to", "Comma-separated alert recipients")

	fs.StringVar(&cfg.MQTT.Broker, "mqtt-broker", cfg.MQTT.Broker, "MQTT broker host:port or URL (empty disables)")
	fs.StringVar(&cfg.MQTT.Topic, "mqtt-topic", cfg.MQTT.Topic, "MQTT alert topic")
	fs.StringVar(&cfg.MQTT.ClientID, "mqtt-client-id", cfg.MQTT.ClientID, "MQTT client ID")
}

// Parse resolves the configuration from args. A -config file is applied
// first and flags given explicitly on the command line override it.
func Parse(name string, args []string, output io.Writer) (Config, error) {
	var path string

	newFlagSet := func(cfg *Config) *flag.FlagSet {
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		fs.SetOutput(output)
		fs.StringVar(&path, "config", path, "YAML configuration file")
		cfg.RegisterFlags(fs)
		return fs
	}

	cfg := Default()
	if err := newFlagSet(&cfg).Parse(args); err != nil {
		return cfg, err
	}

	if path != "" {
		cfg = Default()
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
		if err := newFlagSet(&cfg).Parse(args); err != nil {
			return cfg, err
		}
	}

	if cfg.Email.Password == "" {
		cfg.Email.Password = os.Getenv(PasswordEnv)
	}

	return cfg, cfg.Validate()
}

// Validate reports every invalid field.
func (cfg Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(cfg.Threshold >= 0 && cfg.Threshold <= 255, "threshold must be in 0..255, got %d", cfg.Threshold)
	check(cfg.MinArea >= 0, "min_area must be >= 0, got %d", cfg.MinArea)
	check(cfg.MaxTickRate > 0, "max_tick_rate must be > 0, got %g", cfg.MaxTickRate)
	check(cfg.StartupPauseSeconds >= 0, "startup_pause_seconds must be >= 0, got %g", cfg.StartupPauseSeconds)
	check(cfg.Camera != "", "camera must not be empty")
	check(cfg.BackgroundAttempts > 0, "background_attempts must be > 0, got %d", cfg.BackgroundAttempts)
	check(cfg.AlertQueueSize >= 0, "alert_queue_size must be >= 0, got %d", cfg.AlertQueueSize)
	check(cfg.AlertTimeout >= 0, "alert_timeout must be >= 0, got %s", cfg.AlertTimeout)
	check(cfg.SnapshotMaxWidth >= 0, "snapshot_max_width must be >= 0, got %d", cfg.SnapshotMaxWidth)
	check(cfg.SnapshotQuality >= 1 && cfg.SnapshotQuality <= 100, "snapshot_quality must be in 1..100, got %d", cfg.SnapshotQuality)
	check(cfg.StatusInterval > 0, "status_interval must be > 0, got %s", cfg.StatusInterval)
	if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if cfg.EmailEnabled() {
		check(cfg.Email.Port > 0 && cfg.Email.Port <= 65535, "email.port must be in 1..65535, got %d", cfg.Email.Port)
	}
	if cfg.MQTTEnabled() {
		check(cfg.MQTT.Topic != "", "mqtt.topic must not be empty")
		check(cfg.MQTT.QoS >= 0 && cfg.MQTT.QoS <= 2, "mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
	}

	return errors.Join(errs...)
}

// Level returns the parsed log level, INFO if it is invalid.
func (cfg Config) Level() logger.LogLevel {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return logger.INFO
	}
	return level
}

// TickInterval is the minimum duration of one tick.
func (cfg Config) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / cfg.MaxTickRate)
}

// StartupPause is the wait before the camera is opened.
func (cfg Config) StartupPause() time.Duration {
	return time.Duration(cfg.StartupPauseSeconds * float64(time.Second))
}

// EmailEnabled reports whether enough is configured to send e-mail.
func (cfg Config) EmailEnabled() bool {
	return cfg.Email.Host != "" && cfg.Email.From != "" && len(cfg.Email.To) > 0
}

// MQTTEnabled reports whether a broker is configured.
func (cfg Config) MQTTEnabled() bool {
	return cfg.MQTT.Broker != ""
}
