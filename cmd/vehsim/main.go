package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/trackday/vehsim/internal/cache"
	"github.com/trackday/vehsim/internal/config"
	"github.com/trackday/vehsim/internal/logging"
	intOtel "github.com/trackday/vehsim/internal/otel"
)

// BuildDate and Version can be set at build time via ldflags
var (
	Version   string = "0.1.0"
	BuildDate string = "unknown"

	AppName string = "vehsim"
)

var (
	// ConfigDir holds vehsim.cfg.json; overridable with VEHSIM_CONFIG_DIR
	ConfigDir string = "."

	LogFilePath string
	LogFile     *os.File
	MetricsFile *os.File

	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager = logging.NewSlogManager()

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger = slog.Default()

	// ZLogger is handed to telemetry backends
	ZLogger zerolog.Logger = zerolog.Nop()

	// OTelProvider handles OpenTelemetry metrics
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()
)

func setup() error {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
	}
	if dir := os.Getenv("VEHSIM_CONFIG_DIR"); dir != "" {
		ConfigDir = dir
	}

	if err := SlogManager.Setup(logging.Options{Level: "info"}); err != nil {
		return err
	}
	Logger = SlogManager.Logger()

	if err := config.Load(ConfigDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "dir", ConfigDir)
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs dir: %w", err)
	}

	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
	}

	if err := setupLogging(nil); err != nil {
		return err
	}
	Logger.Info("Begin logging in logs directory", "path", LogFilePath, "version", Version, "build", BuildDate)

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		metricsPath := filepath.Join(logsDir, fmt.Sprintf("%s.%s.metrics.json", AppName, SessionStartTime.Format("20060102_150405")))
		MetricsFile, err = os.Create(metricsPath)
		if err != nil {
			Logger.Error("Failed to create metrics file", "error", err, "path", metricsPath)
		} else {
			OTelProvider, err = intOtel.New(intOtel.Config{
				Enabled:      true,
				ServiceName:  otelCfg.ServiceName,
				Interval:     otelCfg.Interval,
				MetricWriter: MetricsFile,
			})
			if err != nil {
				Logger.Error("Failed to initialize OTel provider", "error", err)
			} else {
				Logger.Info("OTel provider initialized", "file", metricsPath)
			}
		}
	}

	if dsn := config.GetString("sentry.dsn"); dsn != "" {
		err = sentry.Init(sentry.ClientOptions{
			Dsn:     dsn,
			Release: AppName + "@" + Version,
		})
		if err != nil {
			Logger.Error("Failed to initialize Sentry", "error", err)
		} else {
			Logger.Info("Sentry initialized")
		}
	}

	return nil
}

// setupLogging (re)builds the slog and zerolog loggers from config.
func setupLogging(tick *atomic.Uint64) error {
	opts := logging.Options{
		Level: config.GetString("logLevel"),
		Tick:  tick,
	}
	var zout io.Writer = os.Stderr
	if LogFile != nil {
		opts.File = LogFile
		zout = LogFile
	}
	if config.GetBool("graylog.enabled") {
		opts.Graylog = config.GetString("graylog.address")
	}
	if err := SlogManager.Setup(opts); err != nil {
		return err
	}
	Logger = SlogManager.Logger()

	lvl, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	ZLogger = zerolog.New(zout).Level(lvl).With().Timestamp().Logger()
	return nil
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Error("Failed to shut down OTel provider", "error", err)
		}
	}
	if MetricsFile != nil {
		MetricsFile.Close()
	}
	sentry.Flush(2 * time.Second)
	SlogManager.Close()
	if LogFile != nil {
		LogFile.Close()
	}
}

// loadPresets fills a cache with the built-in presets plus every JSON preset
// in presetsDir.
func loadPresets() (*cache.PresetCache, error) {
	presets := cache.NewPresetCache()
	if err := presets.LoadBuiltins(); err != nil {
		return nil, err
	}

	dir := config.GetString("presetsDir")
	n, err := presets.LoadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			Logger.Warn("Presets directory not found", "dir", dir)
		} else {
			Logger.Error("Some presets failed to load", "dir", dir, "error", err)
		}
	}
	Logger.Info("Presets loaded", "fromDir", n, "ids", presets.IDs())
	return presets, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `%s %s

Usage:
  %s run [flags]   simulate vehicles headless and record telemetry
  %s presets       list available presets

Run '%s run --help' for run flags.
`, AppName, Version, AppName, AppName, AppName)
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	if err := setup(); err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		return 1
	}
	defer shutdown()
	defer sentry.Recover()

	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		return 0
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "run":
		err = runCommand(args[1:])
	case "presets":
		err = presetsCommand()
	case "help", "-h", "--help":
		usage()
	default:
		usage()
		err = fmt.Errorf("unknown command %q", args[0])
	}

	if err != nil {
		Logger.Error("Command failed", "command", args[0], "error", err)
		sentry.CaptureException(err)
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func presetsCommand() error {
	presets, err := loadPresets()
	if err != nil {
		return err
	}
	for _, id := range presets.IDs() {
		cfg, err := presets.Get(id)
		if err != nil {
			return err
		}
		fmt.Printf("%-16s %-24s %6.0f kg  %s  %d gears\n",
			id, cfg.Name, cfg.Chassis.Mass, cfg.Differential.Layout, cfg.GearCount()-1)
	}
	return nil
}
