package webmonitor

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/snapshot"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/pkg/types"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestIndexPage(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), `src="/stream"`)

	resp, _ = get(t, ts.URL+"/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusReflectsLatestTick(t *testing.T) {
	srv, ts := newTestServer(t)

	env := types.Region{X: 200, Y: 150, W: 48, H: 48}
	srv.Monitor().UpdateStatus(types.FrameStats{FrameNumber: 1, Timestamp: t0, Width: 640, Height: 480})
	srv.Monitor().UpdateStatus(types.FrameStats{
		FrameNumber:  2,
		Timestamp:    t0.Add(200 * time.Millisecond),
		Width:        640,
		Height:       480,
		Motion:       true,
		MotionPixels: 2300,
		Regions:      []types.Region{env},
		Envelope:     &env,
		Pending:      true,
		FPS:          5,
	})

	resp, body := get(t, ts.URL+"/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	payload := decodeJSONMap(t, body)
	assertStatusPayload(t, payload)

	monitor := requireMap(t, payload["monitor"], "monitor")
	assert.Equal(t, 2.0, monitor["frames_processed"])
	assert.Equal(t, 1.0, monitor["motion_frames"])
	assert.Equal(t, 5.0, monitor["current_fps"])
	assert.Equal(t, true, monitor["pending"])

	latest := requireMap(t, payload["latest_frame"], "latest_frame")
	assert.Equal(t, 2300.0, latest["motion_pixels"])
	envelope := requireMap(t, latest["envelope"], "latest_frame.envelope")
	assert.Equal(t, 200.0, envelope["x"])
	assert.Len(t, requireSlice(t, latest["regions"], "latest_frame.regions"), 1)
}

func TestStatusStreamSendsCurrentStatus(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.Monitor().UpdateStatus(types.FrameStats{FrameNumber: 7, Timestamp: t0})

	headers, next := openSSE(t, ts.URL+"/api/status/stream", "")
	assert.Contains(t, headers.Get("Content-Type"), "text/event-stream")
	assert.Equal(t, "application/json", headers.Get("X-Content-Format"))

	// Initial event, then at least one periodic one.
	for i := 0; i < 2; i++ {
		event, err := next()
		require.NoError(t, err)
		payload := decodeJSONMap(t, []byte(sseData(t, event)))
		assertStatusPayload(t, payload)
		latest := requireMap(t, payload["latest_frame"], "latest_frame")
		assert.Equal(t, 7.0, latest["frame_number"])
	}
}

func TestAlertsAndSnapshots(t *testing.T) {
	srv, ts := newTestServer(t)

	ev := greenEvent("alert-1", t0)
	defer ev.Close()
	require.NoError(t, srv.Monitor().Notify(context.Background(), ev))

	resp, body := get(t, ts.URL+"/api/alerts")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	alerts := requireSlice(t, decodeJSONMap(t, body)["alerts"], "alerts")
	require.Len(t, alerts, 1)

	record := requireMap(t, alerts[0], "alerts[0]")
	assertAlertRecord(t, record, "alerts[0]")
	assert.Equal(t, "alert-1", record["id"])
	assert.Equal(t, float64(t0.Unix()), record["timestamp"])
	assert.Equal(t, 160.0, record["motion_area"])

	url := requireString(t, record["snapshot_url"], "snapshot_url")
	assert.Equal(t, "/api/alerts/alert-1/snapshot.jpg", url)

	resp, body = get(t, ts.URL+url)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 48, cfg.Height)

	resp, _ = get(t, ts.URL+"/api/alerts/unknown/snapshot.jpg")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAlertHistoryIsBounded(t *testing.T) {
	m := NewMonitor(8, snapshot.Options{})

	for i := 1; i <= 10; i++ {
		ev := greenEvent(fmt.Sprintf("alert-%d", i), t0.Add(time.Duration(i)*time.Second))
		require.NoError(t, m.Notify(context.Background(), ev))
		ev.Close()
	}

	alerts := m.Alerts()
	require.Len(t, alerts, 8)
	assert.Equal(t, "alert-10", alerts[0].ID)
	assert.Equal(t, "alert-3", alerts[7].ID)

	_, ok := m.AlertSnapshot("alert-2")
	assert.False(t, ok)
	_, ok = m.AlertSnapshot("alert-3")
	assert.True(t, ok)
	assert.Equal(t, uint64(10), m.Snapshot().Monitor.AlertsFired)
}

func TestAlertStream(t *testing.T) {
	tests := []struct {
		name   string
		accept string
		format string
	}{
		{name: "json", accept: "", format: "application/json"},
		{name: "protobuf", accept: "application/x-protobuf", format: "application/protobuf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ts := newTestServer(t)

			headers, next := openSSE(t, ts.URL+"/api/alerts/stream", tt.accept)
			assert.Equal(t, tt.format, headers.Get("X-Content-Format"))
			require.Eventually(t, func() bool { return srv.alerts.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

			ev := greenEvent("alert-1", t0)
			defer ev.Close()
			require.NoError(t, srv.Monitor().Notify(context.Background(), ev))

			event, err := next()
			require.NoError(t, err)
			data := sseData(t, event)

			if tt.accept == "" {
				payload := decodeJSONMap(t, []byte(data))
				assertAlertRecord(t, payload, "alert")
				assert.Equal(t, "alert-1", payload["id"])
				return
			}

			raw, err := base64.StdEncoding.DecodeString(data)
			require.NoError(t, err)
			var msg structpb.Struct
			require.NoError(t, proto.Unmarshal(raw, &msg))
			assert.Equal(t, "alert-1", msg.Fields["id"].GetStringValue())
			assert.Equal(t, 160.0, msg.Fields["motion_area"].GetNumberValue())
			envelope := msg.Fields["envelope"].GetStructValue()
			require.NotNil(t, envelope)
			assert.Equal(t, 10.0, envelope.Fields["x"].GetNumberValue())
		})
	}
}

func TestMJPEGStream(t *testing.T) {
	srv, ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	assert.True(t, strings.Contains(contentType, "multipart/x-mixed-replace") &&
		strings.Contains(contentType, "boundary=frame"), contentType)

	require.Eventually(t, func() bool { return srv.frames.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), 48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()
	srv.Preview().Show(frame)
	srv.Preview().Show(frame)
	assert.False(t, srv.Preview().StopRequested())

	mr := multipart.NewReader(resp.Body, "frame")

	// Placeholder sent on connect.
	part, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))
	blank, err := io.ReadAll(part)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(blank))
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)

	part, err = mr.NextPart()
	require.NoError(t, err)
	data, err := io.ReadAll(part)
	require.NoError(t, err)
	cfg, err = jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 48, cfg.Height)
}

func TestPreviewSkipsEncodingWithoutClients(t *testing.T) {
	frames := NewFrameBroadcaster()
	p := NewPreview(frames, snapshot.Options{})

	empty := gocv.NewMat()
	defer empty.Close()
	p.Show(empty)
	assert.Equal(t, 0, p.errors)

	_, ch := frames.Subscribe()
	p.Show(empty)
	assert.Equal(t, 1, p.errors)
	assert.Empty(t, ch)

	frames.Close()
	_, ok := <-ch
	assert.False(t, ok)
}
