package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DEBUG, false},
		{"INFO", INFO, false},
		{"warning", WARN, false},
		{" error ", ERROR, false},
		{"none", SILENT, false},
		{"verbose", INFO, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(WARN, &buf, false)

	l.Info("Detector", "hidden %d", 1)
	l.Warn("Detector", "shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] [Detector] shown 2")
}

func TestModuleWritesThroughGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(DEBUG, &buf, false)
	t.Cleanup(func() { Init(INFO, nil, false) })

	log := For("Alert")
	log.Error("delivery failed: %v", "boom")
	assert.True(t, log.DebugEnabled())

	assert.True(t, strings.Contains(buf.String(), "[ERROR] [Alert] delivery failed: boom"))

	SetLevel(SILENT)
	buf.Reset()
	log.Error("muted")
	assert.Empty(t, buf.String())
	assert.False(t, log.DebugEnabled())
}

func TestLevelTextRoundTrip(t *testing.T) {
	var l LogLevel
	require.NoError(t, l.UnmarshalText([]byte("warn")))
	assert.Equal(t, WARN, l)

	text, err := l.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "warn", string(text))
}
