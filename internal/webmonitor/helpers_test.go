package webmonitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/pkg/types"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.StatusInterval = 50 * time.Millisecond

	srv := NewServer(cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	// Runs before ts.Close so streaming handlers return first.
	t.Cleanup(srv.Close)
	return srv, ts
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, body
}

func greenEvent(id string, ts time.Time) types.AlertEvent {
	return types.AlertEvent{
		ID:          id,
		Timestamp:   ts,
		Frame:       gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 255, 0, 0), 48, 64, gocv.MatTypeCV8UC3),
		Envelope:    types.Region{X: 10, Y: 12, W: 20, H: 8},
		HasEnvelope: true,
		MotionArea:  160,
	}
}

// openSSE starts a streaming request and returns a function reading the
// next event.
func openSSE(t *testing.T, url, accept string) (http.Header, func() (string, error)) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var buf []byte
	tmp := make([]byte, 256)
	next := func() (string, error) {
		for {
			if idx := bytes.Index(buf, []byte("\n\n")); idx >= 0 {
				event := string(buf[:idx])
				buf = buf[idx+2:]
				return event, nil
			}
			n, readErr := resp.Body.Read(tmp)
			buf = append(buf, tmp[:n]...)
			if readErr != nil && n == 0 {
				return "", fmt.Errorf("read sse: %w", readErr)
			}
		}
	}
	return resp.Header, next
}

func sseData(t *testing.T, event string) string {
	t.Helper()
	for _, line := range strings.Split(event, "\n") {
		if strings.HasPrefix(line, "data:") {
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				t.Fatalf("empty sse data line")
			}
			return payload
		}
	}
	t.Fatalf("no data line in sse event: %q", event)
	return ""
}

func decodeJSONMap(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode json: %v\nbody=%s", err, string(body))
	}
	return payload
}

func requireString(t *testing.T, value any, field string) string {
	t.Helper()
	str, ok := value.(string)
	if !ok {
		t.Fatalf("expected %s to be string, got %T", field, value)
	}
	return str
}

func requireNumber(t *testing.T, value any, field string) float64 {
	t.Helper()
	num, ok := value.(float64)
	if !ok {
		t.Fatalf("expected %s to be number, got %T", field, value)
	}
	return num
}

func requireBool(t *testing.T, value any, field string) bool {
	t.Helper()
	b, ok := value.(bool)
	if !ok {
		t.Fatalf("expected %s to be bool, got %T", field, value)
	}
	return b
}

func requireMap(t *testing.T, value any, field string) map[string]any {
	t.Helper()
	m, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected %s to be object, got %T", field, value)
	}
	return m
}

func requireSlice(t *testing.T, value any, field string) []any {
	t.Helper()
	s, ok := value.([]any)
	if !ok {
		t.Fatalf("expected %s to be array, got %T", field, value)
	}
	return s
}

func assertRegion(t *testing.T, value any, field string) {
	t.Helper()
	r := requireMap(t, value, field)
	for _, k := range []string{"x", "y", "w", "h"} {
		requireNumber(t, r[k], field+"."+k)
	}
}

func assertAlertRecord(t *testing.T, payload map[string]any, field string) {
	t.Helper()
	requireString(t, payload["id"], field+".id")
	requireNumber(t, payload["timestamp"], field+".timestamp")
	requireNumber(t, payload["motion_area"], field+".motion_area")
	requireString(t, payload["snapshot_url"], field+".snapshot_url")
	if payload["envelope"] != nil {
		assertRegion(t, payload["envelope"], field+".envelope")
	}
}

func assertStatusPayload(t *testing.T, payload map[string]any) {
	t.Helper()
	monitor := requireMap(t, payload["monitor"], "monitor")
	requireNumber(t, monitor["frames_processed"], "monitor.frames_processed")
	requireNumber(t, monitor["motion_frames"], "monitor.motion_frames")
	requireNumber(t, monitor["alerts_fired"], "monitor.alerts_fired")
	requireNumber(t, monitor["current_fps"], "monitor.current_fps")
	requireBool(t, monitor["pending"], "monitor.pending")
	requireNumber(t, monitor["uptime_seconds"], "monitor.uptime_seconds")

	requireNumber(t, payload["timestamp"], "timestamp")

	if payload["latest_frame"] != nil {
		latest := requireMap(t, payload["latest_frame"], "latest_frame")
		requireNumber(t, latest["frame_number"], "latest_frame.frame_number")
		requireBool(t, latest["motion"], "latest_frame.motion")
		requireNumber(t, latest["motion_pixels"], "latest_frame.motion_pixels")
		if latest["envelope"] != nil {
			assertRegion(t, latest["envelope"], "latest_frame.envelope")
		}
	}

	history := requireSlice(t, payload["alert_history"], "alert_history")
	for i, raw := range history {
		field := fmt.Sprintf("alert_history[%d]", i)
		assertAlertRecord(t, requireMap(t, raw, field), field)
	}
}
