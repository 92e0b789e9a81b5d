package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/alert"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/camera"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/config"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/detector"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/display"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/metrics"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/snapshot"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/timeutil"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/webmonitor"
)

const (
	exitOK     = 0
	exitFatal  = 1
	exitConfig = 2

	shutdownTimeout = 5 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse("motion-sentry", os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		log.Printf("Invalid configuration: %v", err)
		return exitConfig
	}

	logger.Init(cfg.Level(), os.Stderr, cfg.LogColor)
	logger.Info("Main", "Motion sentry starting...")
	logger.Info("Main", "Log level: %s", cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if pause := cfg.StartupPause(); pause > 0 {
		logger.Info("Main", "Wait %s before starting...", pause)
		if err := timeutil.Wait(ctx, timeutil.RealClock{}, pause); err != nil {
			logger.Info("Main", "Interrupted during startup pause")
			return exitOK
		}
	}

	app, err := newApp(ctx, cfg)
	if err != nil {
		logger.Error("Main", "Startup failed: %v", err)
		return exitFatal
	}
	defer app.shutdown()

	app.start()

	if err := app.detector.Run(ctx); err != nil {
		logger.Error("Main", "Detection stopped: %v", err)
		return exitFatal
	}

	logger.Info("Main", "Shutting down...")
	return exitOK
}

// app wires the detector to its collaborators.
type app struct {
	cfg      config.Config
	metrics  *metrics.Metrics
	camera   *camera.Device
	display  display.Display
	detector *detector.Detector

	dispatcher *alert.Dispatcher
	mqtt       *alert.MQTT
	monitor    *webmonitor.Server
	servers    []*http.Server
}

func newApp(ctx context.Context, cfg config.Config) (a *app, err error) {
	a = &app{cfg: cfg, metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.shutdown()
		}
	}()

	snap := snapshot.Options{MaxWidth: cfg.SnapshotMaxWidth, Quality: cfg.SnapshotQuality}

	logger.Info("Main", "Opening camera %s", cfg.Camera)
	a.camera, err = camera.Open(cfg.Camera)
	if err != nil {
		return a, err
	}
	width, height := a.camera.Size()
	logger.Info("Main", "Camera %s opened (%dx%d)", a.camera.Name(), width, height)

	notifiers := alert.Multi{alert.Log{}}
	var displays display.Multi

	if cfg.HTTPAddr != "" {
		monCfg := webmonitor.DefaultConfig()
		monCfg.Addr = cfg.HTTPAddr
		monCfg.StatusInterval = cfg.StatusInterval
		monCfg.Snapshot = snap
		a.monitor = webmonitor.NewServer(monCfg)
		notifiers = append(notifiers, a.monitor.Monitor())
		displays = append(displays, a.monitor.Preview())
		a.servers = append(a.servers, &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           a.monitor.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	if cfg.MetricsAddr != "" {
		a.servers = append(a.servers, a.metrics.NewServer(cfg.MetricsAddr))
	}

	if cfg.EmailEnabled() {
		email, err := alert.NewEmail(alert.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			To:       cfg.Email.To,
			Subject:  cfg.Email.Subject,
			Snapshot: snap,
		})
		if err != nil {
			return a, err
		}
		notifiers = append(notifiers, email)
		logger.Info("Main", "E-mail alerts to %v via %s:%d", cfg.Email.To, cfg.Email.Host, cfg.Email.Port)
	}

	if cfg.MQTTEnabled() {
		a.mqtt, err = alert.ConnectMQTT(ctx, alert.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			QoS:      byte(cfg.MQTT.QoS),
			Snapshot: snap,
		})
		if err != nil {
			return a, err
		}
		notifiers = append(notifiers, a.mqtt)
		logger.Info("Main", "MQTT alerts to %s on %s", cfg.MQTT.Topic, cfg.MQTT.Broker)
	}

	var sink alert.Sink
	if cfg.AlertQueueSize > 0 {
		a.dispatcher = alert.NewDispatcher(notifiers, a.metrics, cfg.AlertQueueSize, cfg.AlertTimeout)
		sink = a.dispatcher
		logger.Info("Main", "Async alert delivery (queue=%d)", cfg.AlertQueueSize)
	} else {
		sink = alert.NewSync(notifiers, a.metrics, cfg.AlertTimeout)
	}

	if cfg.ShowPreview {
		displays = append(displays, display.NewWindow(display.DefaultTitle))
	}
	a.display = displays

	opts := []detector.Option{detector.WithMetrics(a.metrics)}
	if a.monitor != nil {
		opts = append(opts, detector.WithStatus(a.monitor.Monitor()))
	}
	a.detector = detector.New(detector.Config{
		Threshold:          cfg.Threshold,
		MinArea:            cfg.MinArea,
		DwellSeconds:       cfg.DwellSeconds,
		DrawBoundingBox:    cfg.DrawBoundingBox,
		LogFPS:             cfg.ShowPreview,
		TickInterval:       cfg.TickInterval(),
		BackgroundAttempts: cfg.BackgroundAttempts,
	}, a.camera, a.display, sink, opts...)

	return a, nil
}

func (a *app) start() {
	for _, srv := range a.servers {
		go func(srv *http.Server) {
			logger.Info("Main", "HTTP server listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Main", "HTTP server %s: %v", srv.Addr, err)
			}
		}(srv)
	}
}

// shutdown releases everything newApp acquired. Queued alerts are delivered
// before the notifiers are closed.
func (a *app) shutdown() {
	if a.display != nil {
		if err := a.display.Close(); err != nil {
			logger.Warn("Main", "Close display: %v", err)
		}
	}
	if a.dispatcher != nil {
		if pending := a.dispatcher.Pending(); pending > 0 {
			logger.Info("Main", "Delivering %d queued alert(s)...", pending)
		}
		_ = a.dispatcher.Close()
	}
	if a.mqtt != nil {
		_ = a.mqtt.Close()
	}

	if a.monitor != nil {
		a.monitor.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range a.servers {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Main", "HTTP server %s shutdown: %v", srv.Addr, err)
		}
	}
	a.servers = nil

	if a.camera != nil {
		if err := a.camera.Close(); err != nil {
			logger.Warn("Main", "Close camera: %v", err)
		}
		a.camera = nil
	}

	fmt.Fprintln(os.Stderr, "Motion sentry stopped")
}
