package logging

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name          string
		logsDir       string
		appName       string
		want          string
	}{
		{
			name:          "basic path",
			logsDir:       "vehsimlogs",
			appName: "vehsim",
			want:          filepath.Join("vehsimlogs", "vehsim.20260212_213836.log"),
		},
		{
			name:          "relative path with dot",
			logsDir:       "./vehsimlogs",
			appName: "vehsim",
			want:          filepath.Join(".", "vehsimlogs", "vehsim.20260212_213836.log"),
		},
		{
			name:          "absolute path",
			logsDir:       filepath.Join("/var", "log", "vehsim"),
			appName: "vehsim",
			want:          filepath.Join("/var", "log", "vehsim", "vehsim.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.appName, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContextHandler_StampsTick(t *testing.T) {
	var buf bytes.Buffer
	var tick atomic.Uint64
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), &tick)).With("component", "world").WithGroup("drive")

	logger.Info("spawned", "gear", 1)
	tick.Store(42)
	logger.Info("stepped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "tick=", "tick 0 is left off")
	assert.Contains(t, lines[0], "drive.gear=1")
	assert.Contains(t, lines[1], "component=world")
	assert.Contains(t, lines[1], "drive.tick=42")
}

func TestContextHandler_StampsVehicle(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), nil))

	logger.WarnContext(WithVehicle(context.Background(), "car-2"), "record failed")
	logger.Info("no vehicle")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "vehicle=car-2")
	assert.NotContains(t, lines[1], "vehicle=")
}

func TestVehicleFrom(t *testing.T) {
	_, ok := VehicleFrom(context.Background())
	assert.False(t, ok)

	_, ok = VehicleFrom(WithVehicle(context.Background(), ""))
	assert.False(t, ok)

	id, ok := VehicleFrom(WithVehicle(context.Background(), "rally-1"))
	require.True(t, ok)
	assert.Equal(t, "rally-1", id)
}

func TestContextHandler_NilTick(t *testing.T) {
	var buf bytes.Buffer
	h := NewContextHandler(slog.NewTextHandler(&buf, nil), nil)
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.Same(t, h, h.WithGroup(""))

	slog.New(h).Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
	assert.NotContains(t, buf.String(), "tick=")
}
