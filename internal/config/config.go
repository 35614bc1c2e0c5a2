package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const configName = "vehsim.cfg.json"

// SimConfig holds world stepping settings
type SimConfig struct {
	TickRate int           `json:"tickRate" mapstructure:"tickRate"`
	MaxDt    float64       `json:"maxDt" mapstructure:"maxDt"`
	Workers  int           `json:"workers" mapstructure:"workers"`
	Duration time.Duration `json:"duration" mapstructure:"duration"`
}

// MemoryConfig holds in-memory/JSON telemetry backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds sqlite telemetry backend settings
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// TelemetryConfig selects and configures the recording backend
type TelemetryConfig struct {
	Type        string       `json:"type" mapstructure:"type"`
	SampleEvery int          `json:"sampleEvery" mapstructure:"sampleEvery"`
	Memory      MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite      SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled     bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName string        `json:"serviceName" mapstructure:"serviceName"`
	Interval    time.Duration `json:"interval" mapstructure:"interval"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetEnvPrefix("VEHSIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(configName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./vehsimlogs")
	viper.SetDefault("presetsDir", "./presets")

	viper.SetDefault("sim.tickRate", 60)
	viper.SetDefault("sim.maxDt", 0.1)
	viper.SetDefault("sim.workers", 0)
	viper.SetDefault("sim.duration", "30s")

	viper.SetDefault("telemetry.type", "none")
	viper.SetDefault("telemetry.sampleEvery", 6)
	viper.SetDefault("telemetry.memory.outputDir", "./recordings")
	viper.SetDefault("telemetry.memory.compressOutput", true)
	viper.SetDefault("telemetry.sqlite.path", "./recordings/vehsim.db")
	viper.SetDefault("telemetry.sqlite.dumpInterval", "1m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "vehsim")

	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "vehsim")
	viper.SetDefault("influx.bucket", "vehicle-telemetry")

	viper.SetDefault("websocket.url", "ws://localhost:5000/ws")
	viper.SetDefault("websocket.secret", "")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "vehsim")
	viper.SetDefault("otel.interval", "10s")

	viper.SetDefault("sentry.dsn", "")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat64 returns a float config value.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetDuration returns a duration config value ("30s", "3m").
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetSimConfig returns the world stepping settings.
func GetSimConfig() SimConfig {
	return SimConfig{
		TickRate: viper.GetInt("sim.tickRate"),
		MaxDt:    viper.GetFloat64("sim.maxDt"),
		Workers:  viper.GetInt("sim.workers"),
		Duration: viper.GetDuration("sim.duration"),
	}
}

// GetTelemetryConfig returns the recording backend settings.
func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Type:        strings.ToLower(viper.GetString("telemetry.type")),
		SampleEvery: viper.GetInt("telemetry.sampleEvery"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("telemetry.memory.outputDir"),
			CompressOutput: viper.GetBool("telemetry.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("telemetry.sqlite.path"),
			DumpInterval: viper.GetDuration("telemetry.sqlite.dumpInterval"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:     viper.GetBool("otel.enabled"),
		ServiceName: viper.GetString("otel.serviceName"),
		Interval:    viper.GetDuration("otel.interval"),
	}
}
