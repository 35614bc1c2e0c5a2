package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
)

// osStdout is swapped by tests.
var osStdout io.Writer = os.Stdout

// SlogManager manages slog-based logging with an optional Graylog sink.
type SlogManager struct {
	logger  *slog.Logger
	sinks   *MultiHandler
	graylog *gelf.Writer
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Options configures Setup. Zero value logs INFO to stdout.
type Options struct {
	File    io.Writer
	Level   string
	Graylog string
	Tick    *atomic.Uint64 // stamped onto every record when set
}

// Setup initializes the logging system. Console output is used only when
// no file is given. A Graylog address adds a GELF sink fed with JSON records.
func (m *SlogManager) Setup(opts Options) error {
	lvl := parseLevel(opts.Level)

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var sinks []Sink
	if opts.File != nil {
		sinks = append(sinks, Sink{Name: "file", Handler: slog.NewTextHandler(opts.File, handlerOpts)})
	} else {
		sinks = append(sinks, Sink{Name: "stdout", Handler: slog.NewTextHandler(osStdout, handlerOpts)})
	}

	if m.graylog != nil {
		m.graylog.Close()
		m.graylog = nil
	}
	if opts.Graylog != "" {
		w, err := gelf.NewWriter(opts.Graylog)
		if err != nil {
			return fmt.Errorf("failed to connect to graylog at %s: %w", opts.Graylog, err)
		}
		m.graylog = w
		sinks = append(sinks, Sink{Name: "graylog", Handler: slog.NewJSONHandler(w, handlerOpts)})
	}

	m.sinks = NewMultiHandler(sinks...)
	m.logger = slog.New(NewContextHandler(m.sinks, opts.Tick))
	m.logger.Info("Logging initialized", "level", lvl.String(), "graylog", opts.Graylog != "")
	return nil
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// MutedSinks lists sinks switched off after repeated write failures.
func (m *SlogManager) MutedSinks() []string {
	if m.sinks == nil {
		return nil
	}
	return m.sinks.Muted()
}

// Close releases the Graylog connection, if any.
func (m *SlogManager) Close() error {
	if m.graylog == nil {
		return nil
	}
	err := m.graylog.Close()
	m.graylog = nil
	return err
}
