// Package webmonitor serves a read-only HTTP view of the detection loop:
// MJPEG live preview, status and alert streams, and recent alert snapshots.
package webmonitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/logger"
)

// Server serves the web monitor endpoints.
type Server struct {
	cfg     Config
	monitor *Monitor
	preview *Preview

	frames *FrameBroadcaster
	alerts *EventBroadcaster
	status *StatusBroadcaster
}

// NewServer returns a configured monitor server with its broadcasters running.
func NewServer(cfg Config) *Server {
	defaults := DefaultConfig()
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = defaults.StatusInterval
	}
	if cfg.AlertHistory <= 0 {
		cfg.AlertHistory = defaults.AlertHistory
	}

	monitor := NewMonitor(cfg.AlertHistory, cfg.Snapshot)
	frames := NewFrameBroadcaster()
	alerts := NewEventBroadcaster("AlertBroadcaster")

	monitor.onAlert = func(record AlertRecord) {
		event, err := serializeEvent(record)
		if err != nil {
			logger.Error("AlertBroadcaster", "Serialize alert %s: %v", record.ID, err)
			return
		}
		alerts.Publish(event)
	}

	status := NewStatusBroadcaster(monitor, cfg.StatusInterval)
	status.Start()

	return &Server{
		cfg:     cfg,
		monitor: monitor,
		preview: NewPreview(frames, cfg.Preview),
		frames:  frames,
		alerts:  alerts,
		status:  status,
	}
}

// Monitor returns the status and alert recorder fed by the detection loop.
func (s *Server) Monitor() *Monitor {
	return s.monitor
}

// Preview returns the MJPEG preview display.
func (s *Server) Preview() *Preview {
	return s.preview
}

// Close stops the broadcasters and disconnects streaming clients.
func (s *Server) Close() {
	s.status.Stop()
	s.alerts.Close()
	s.frames.Close()
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /stream", s.handleStream)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/status/stream", s.handleStatusStream)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/alerts/stream", s.handleAlertsStream)
	mux.HandleFunc("GET /api/alerts/{id}/snapshot.jpg", s.handleAlertSnapshot)

	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, frameCh := s.frames.Subscribe()
	defer s.frames.Unsubscribe(id)
	streamMJPEGFromChannel(w, r, frameCh)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.monitor.Snapshot())
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	id, eventCh := s.status.Subscribe()
	defer s.status.Unsubscribe(id)

	// Send the current status immediately rather than after one interval
	initial, err := serializeEvent(s.monitor.Snapshot())
	if err != nil {
		logger.Error("StatusBroadcaster", "Serialize status: %v", err)
	}
	streamEventsFromChannel(w, r, eventCh, wantsProtobuf(r), initial)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"alerts": s.monitor.Alerts(),
	})
}

func (s *Server) handleAlertsStream(w http.ResponseWriter, r *http.Request) {
	id, eventCh := s.alerts.Subscribe()
	defer s.alerts.Unsubscribe(id)
	streamEventsFromChannel(w, r, eventCh, wantsProtobuf(r), nil)
}

func (s *Server) handleAlertSnapshot(w http.ResponseWriter, r *http.Request) {
	data, ok := s.monitor.AlertSnapshot(r.PathValue("id"))
	if !ok {
		writeJSONWithStatus(w, map[string]any{"error": "snapshot not found"}, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(data)
}

// wantsProtobuf reports whether the client asked for protobuf payloads.
func wantsProtobuf(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/protobuf") ||
		strings.Contains(accept, "application/x-protobuf")
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
