package logging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_FileOnly_NoStdout(t *testing.T) {
	// Capture stdout to verify nothing is written there
	origStdout := captureStdout(t)

	var fileBuf bytes.Buffer
	m := NewSlogManager()
	require.NoError(t, m.Setup(Options{File: &fileBuf, Level: "info"}))
	m.Logger().Info("hello file")

	stdout := origStdout()

	assert.Contains(t, fileBuf.String(), "hello file", "log should appear in file")
	// The "Logging initialized" message from Setup also goes to file, not stdout
	assert.Empty(t, stdout, "nothing should be written to stdout when file is provided")
}

func TestSetup_NoFile_WritesToStdout(t *testing.T) {
	origStdout := captureStdout(t)

	m := NewSlogManager()
	require.NoError(t, m.Setup(Options{Level: "info"}))
	m.Logger().Info("hello console")

	stdout := origStdout()

	assert.Contains(t, stdout, "hello console", "log should appear on stdout")
}

func TestSetup_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	require.NoError(t, m.Setup(Options{File: &buf, Level: "debug"}))

	m.Logger().Debug("debug msg")
	m.Logger().Info("info msg")

	output := buf.String()
	assert.Contains(t, output, "debug msg")
	assert.Contains(t, output, "info msg")
}

func TestSetup_InfoLevel_FiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	require.NoError(t, m.Setup(Options{File: &buf, Level: "info"}))

	m.Logger().Debug("should be filtered")
	m.Logger().Info("should appear")

	output := buf.String()
	assert.NotContains(t, output, "should be filtered")
	assert.Contains(t, output, "should appear")
}

func TestSetup_ReplacesLogger(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	m := NewSlogManager()

	require.NoError(t, m.Setup(Options{File: &buf1, Level: "info"}))
	m.Logger().Info("first")

	require.NoError(t, m.Setup(Options{File: &buf2, Level: "info"}))
	m.Logger().Info("second")

	assert.Contains(t, buf1.String(), "first")
	assert.NotContains(t, buf1.String(), "second", "old file should not receive new logs")
	assert.Contains(t, buf2.String(), "second")
}

func TestSetup_StampsTick(t *testing.T) {
	var tick atomic.Uint64
	var buf bytes.Buffer
	m := NewSlogManager()
	require.NoError(t, m.Setup(Options{File: &buf, Level: "info", Tick: &tick}))

	tick.Store(1234)
	m.Logger().Info("stepped")

	assert.Contains(t, buf.String(), "tick=1234")
}

func TestSetup_Graylog(t *testing.T) {
	reader, err := gelf.NewReader("127.0.0.1:0")
	require.NoError(t, err)

	var buf bytes.Buffer
	m := NewSlogManager()
	require.NoError(t, m.Setup(Options{File: &buf, Level: "info", Graylog: reader.Addr()}))
	t.Cleanup(func() { _ = m.Close() })

	// first message is the setup banner
	msg, err := reader.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, msg.Short, "Logging initialized")

	m.Logger().Warn("gearbox overheated", "vehicle", "car-1")
	msg, err = reader.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, msg.Short, `"msg":"gearbox overheated"`)
	assert.Contains(t, msg.Short, `"vehicle":"car-1"`)
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	m := NewSlogManager()
	logger := m.Logger()
	assert.Equal(t, slog.Default(), logger)
}

func TestClose_WithoutGraylog(t *testing.T) {
	m := NewSlogManager()
	assert.NoError(t, m.Close())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestMultiHandler_FansOut(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h1 := slog.NewTextHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelInfo})
	h2 := slog.NewTextHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelInfo})

	multi := NewMultiHandler(Sink{"file", h1}, Sink{"graylog", h2})
	logger := slog.New(multi)
	logger.Info("fanned out")

	assert.Contains(t, buf1.String(), "fanned out")
	assert.Contains(t, buf2.String(), "fanned out")
}

func TestMultiHandler_FiltersNilHandlers(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, nil)

	multi := NewMultiHandler(Sink{Name: "graylog"}, Sink{"file", h}, Sink{Name: "stdout"})
	require.Len(t, multi.handlers, 1)

	logger := slog.New(multi)
	logger.Info("works")
	assert.Contains(t, buf.String(), "works")
}

func TestMultiHandler_Enabled(t *testing.T) {
	infoHandler := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})

	// Multi with only info handler: debug should be disabled
	infoOnly := NewMultiHandler(Sink{"file", infoHandler})
	assert.False(t, infoOnly.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, infoOnly.Enabled(context.Background(), slog.LevelInfo))

	// Multi with both: debug should be enabled (any handler enables it)
	both := NewMultiHandler(Sink{"file", infoHandler}, Sink{"graylog", debugHandler})
	assert.True(t, both.Enabled(context.Background(), slog.LevelDebug))
}

func TestMultiHandler_Empty(t *testing.T) {
	multi := NewMultiHandler()
	assert.False(t, multi.Enabled(context.Background(), slog.LevelInfo))
}

func TestMultiHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	multi := NewMultiHandler(Sink{"file", h})

	withAttrs := multi.WithAttrs([]slog.Attr{slog.String("component", "test")})
	logger := slog.New(withAttrs)
	logger.Info("with attrs")

	assert.Contains(t, buf.String(), "component=test")
}

func TestMultiHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	multi := NewMultiHandler(Sink{"file", h})

	withGroup := multi.WithGroup("grp")
	logger := slog.New(withGroup)
	logger.Info("grouped", "key", "val")

	assert.Contains(t, buf.String(), "grp.key=val")
}

func TestMultiHandler_WithGroupEmpty(t *testing.T) {
	h := slog.NewTextHandler(&bytes.Buffer{}, nil)
	multi := NewMultiHandler(Sink{"file", h})

	same := multi.WithGroup("")
	assert.Equal(t, multi, same, "empty group name should return same handler")
}

// errorHandler is a slog.Handler whose Handle fails. With failUntil set,
// only the first failUntil calls fail.
type errorHandler struct {
	slog.Handler
	failUntil int32
	calls     atomic.Int32
}

func (h *errorHandler) Handle(_ context.Context, _ slog.Record) error {
	n := h.calls.Add(1)
	if h.failUntil > 0 && n > h.failUntil {
		return nil
	}
	return errors.New("handler error")
}

func (h *errorHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *errorHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func TestMultiHandler_HandleError(t *testing.T) {
	var buf bytes.Buffer
	spy := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	// graylog errors, file still receives the record
	multi := NewMultiHandler(Sink{"graylog", &errorHandler{}}, Sink{"file", spy})
	logger := slog.New(multi)
	logger.Info("should reach spy")

	assert.Contains(t, buf.String(), "should reach spy")
	assert.Empty(t, multi.Muted())
}

func TestMultiHandler_MutesFailingSink(t *testing.T) {
	var buf bytes.Buffer
	file := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	broken := &errorHandler{}

	multi := NewMultiHandler(Sink{"graylog", broken}, Sink{"file", file})
	logger := slog.New(multi).With("component", "world")
	for i := 0; i < maxSinkFailures+2; i++ {
		logger.Info("tick")
	}

	assert.Equal(t, []string{"graylog"}, multi.Muted())
	assert.Equal(t, int32(maxSinkFailures), broken.calls.Load(), "muted sink is not called again")
	assert.Equal(t, 1, strings.Count(buf.String(), "Log sink muted"))
	assert.Contains(t, buf.String(), "sink=graylog")
	assert.Equal(t, maxSinkFailures+2, strings.Count(buf.String(), "msg=tick"))
}

func TestMultiHandler_RecoveryResetsFailures(t *testing.T) {
	flaky := &errorHandler{failUntil: maxSinkFailures - 1}
	multi := NewMultiHandler(Sink{"graylog", flaky})

	for i := 0; i < 2*maxSinkFailures; i++ {
		_ = multi.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "tick", 0))
	}
	assert.Empty(t, multi.Muted())
}

func TestMultiHandler_AllSinksFail(t *testing.T) {
	multi := NewMultiHandler(Sink{"graylog", &errorHandler{}})
	err := multi.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "lost", 0))
	assert.Error(t, err)
}

// captureStdout redirects os.Stdout to a pipe and returns a function
// that restores stdout and returns what was captured.
func captureStdout(t *testing.T) func() string {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)

	origStdout := osStdout
	osStdout = w

	return func() string {
		w.Close()
		osStdout = origStdout
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		r.Close()
		return buf.String()
	}
}
