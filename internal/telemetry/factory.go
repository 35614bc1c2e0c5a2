// internal/telemetry/factory.go
package telemetry

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/trackday/vehsim/internal/config"
	"github.com/trackday/vehsim/internal/database"
	gormtelemetry "github.com/trackday/vehsim/internal/telemetry/gorm"
	influxtelemetry "github.com/trackday/vehsim/internal/telemetry/influx"
	"github.com/trackday/vehsim/internal/telemetry/memory"
	sqlitetelemetry "github.com/trackday/vehsim/internal/telemetry/sqlite"
	"github.com/trackday/vehsim/internal/telemetry/websocket"
)

// Dependencies carries the loggers handed to backends.
type Dependencies struct {
	Logger  *slog.Logger
	ZLogger zerolog.Logger
}

// NewBackend creates a telemetry backend based on configuration. Type "none"
// (or empty) disables recording and returns a nil backend.
func NewBackend(cfg config.TelemetryConfig, deps Dependencies) (Backend, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return memory.New(cfg.Memory), nil
	case "sqlite":
		return sqlitetelemetry.New(cfg.SQLite, deps.ZLogger.With().Str("backend", "sqlite").Logger())
	case "postgres":
		db, err := database.GetPostgresDB(database.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return gormtelemetry.New(gormtelemetry.Dependencies{
			DB:     db,
			Logger: deps.ZLogger.With().Str("backend", "postgres").Logger(),
		}), nil
	case "influx":
		return influxtelemetry.New(
			deps.ZLogger.With().Str("backend", "influx").Logger(),
			config.GetString("influx.bucket"),
			filepath.Join(config.GetString("logsDir"), "influx_backup.log.gz"),
		), nil
	case "websocket":
		return websocket.New(websocket.Config{
			URL:    httpToWS(config.GetString("websocket.url")),
			Secret: config.GetString("websocket.secret"),
		}, deps.Logger), nil
	default:
		return nil, fmt.Errorf("unknown telemetry type: %s", cfg.Type)
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL. ws:// and wss:// URLs
// pass through unchanged.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
