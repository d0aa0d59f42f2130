package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "turnkernel.cfg.json"

// SnapshotConfig holds snapshot scheduling and retention settings
type SnapshotConfig struct {
	Interval      uint32        `json:"interval" mapstructure:"interval"`
	MaxResident   int           `json:"maxResident" mapstructure:"maxResident"`
	AsyncWrites   bool          `json:"asyncWrites" mapstructure:"asyncWrites"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
}

// FileConfig holds settings for the snapshot directory backend
type FileConfig struct {
	Dir      string `json:"dir" mapstructure:"dir"`
	Compress bool   `json:"compress" mapstructure:"compress"`
}

// SqliteConfig holds settings for the SQLite snapshot backend
type SqliteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the durable snapshot store
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	File   FileConfig   `json:"file" mapstructure:"file"`
	Sqlite SqliteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// MovementConfig holds the default envelope and validation policy
type MovementConfig struct {
	MaxRange     float64 `json:"maxRange" mapstructure:"maxRange"`
	MaxElevation float64 `json:"maxElevation" mapstructure:"maxElevation"`
	MaxRotation  float64 `json:"maxRotation" mapstructure:"maxRotation"`
	ClampTargets bool    `json:"clampTargets" mapstructure:"clampTargets"`
}

// ReplayConfig holds playback settings
type ReplayConfig struct {
	FrameStep float64 `json:"frameStep" mapstructure:"frameStep"`
	MaxSpeed  float64 `json:"maxSpeed" mapstructure:"maxSpeed"`
}

// InfluxConfig holds InfluxDB connection settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// LoggingConfig holds log sink settings
type LoggingConfig struct {
	Level          string `json:"logLevel" mapstructure:"logLevel"`
	Dir            string `json:"logsDir" mapstructure:"logsDir"`
	GraylogEnabled bool   `json:"graylogEnabled" mapstructure:"graylogEnabled"`
	GraylogAddress string `json:"graylogAddress" mapstructure:"graylogAddress"`
}

// APIConfig holds session archive settings
type APIConfig struct {
	ServerURL    string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey       string `json:"apiKey" mapstructure:"apiKey"`
	UploadOnSave bool   `json:"uploadOnSave" mapstructure:"uploadOnSave"`
}

// MonitorConfig holds status monitor settings
type MonitorConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// OtelConfig holds metric provider settings
type OtelConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"serviceName" mapstructure:"serviceName"`
}

// SetDefaults registers a default for every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./turnkernel-logs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("snapshot.interval", 5)
	viper.SetDefault("snapshot.maxResident", 8)
	viper.SetDefault("snapshot.asyncWrites", true)
	viper.SetDefault("snapshot.flushInterval", "2s")

	viper.SetDefault("storage.type", "file")
	viper.SetDefault("storage.file.dir", "./snapshots")
	viper.SetDefault("storage.file.compress", true)
	viper.SetDefault("storage.sqlite.path", "./turnkernel.db")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "1m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "turnkernel")

	viper.SetDefault("eventlog.compress", true)

	viper.SetDefault("movement.maxRange", 20.0)
	viper.SetDefault("movement.maxElevation", 10.0)
	viper.SetDefault("movement.maxRotation", math.Pi/2)
	viper.SetDefault("movement.clampTargets", false)

	viper.SetDefault("replay.frameStep", 0.1)
	viper.SetDefault("replay.maxSpeed", 8.0)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "turnkernel")
	viper.SetDefault("influx.bucket", "replay")

	viper.SetDefault("api.serverUrl", "")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.uploadOnSave", false)

	viper.SetDefault("monitor.enabled", false)
	viper.SetDefault("monitor.interval", "5s")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "turnkernel")
}

// Load reads configuration from the JSON file and sets default values.
// configDir is the directory containing the config file. A missing file is not an
// error; defaults apply.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetSnapshotConfig returns the snapshot manager settings.
func GetSnapshotConfig() SnapshotConfig {
	interval := viper.GetInt("snapshot.interval")
	if interval < 1 {
		interval = 1
	}
	return SnapshotConfig{
		Interval:      uint32(interval),
		MaxResident:   viper.GetInt("snapshot.maxResident"),
		AsyncWrites:   viper.GetBool("snapshot.asyncWrites"),
		FlushInterval: viper.GetDuration("snapshot.flushInterval"),
	}
}

// GetStorageConfig returns the durable snapshot store settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		File: FileConfig{
			Dir:      viper.GetString("storage.file.dir"),
			Compress: viper.GetBool("storage.file.compress"),
		},
		Sqlite: SqliteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

// GetMovementConfig returns the default movement envelope and clamping policy.
func GetMovementConfig() MovementConfig {
	return MovementConfig{
		MaxRange:     viper.GetFloat64("movement.maxRange"),
		MaxElevation: viper.GetFloat64("movement.maxElevation"),
		MaxRotation:  viper.GetFloat64("movement.maxRotation"),
		ClampTargets: viper.GetBool("movement.clampTargets"),
	}
}

// GetReplayConfig returns playback settings.
func GetReplayConfig() ReplayConfig {
	return ReplayConfig{
		FrameStep: viper.GetFloat64("replay.frameStep"),
		MaxSpeed:  viper.GetFloat64("replay.maxSpeed"),
	}
}

// GetInfluxConfig returns InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetLoggingConfig returns log sink settings.
func GetLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:          viper.GetString("logLevel"),
		Dir:            viper.GetString("logsDir"),
		GraylogEnabled: viper.GetBool("graylog.enabled"),
		GraylogAddress: viper.GetString("graylog.address"),
	}
}

// GetAPIConfig returns session archive settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL:    viper.GetString("api.serverUrl"),
		APIKey:       viper.GetString("api.apiKey"),
		UploadOnSave: viper.GetBool("api.uploadOnSave"),
	}
}

// GetMonitorConfig returns status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:  viper.GetBool("monitor.enabled"),
		Interval: viper.GetDuration("monitor.interval"),
	}
}

// GetOtelConfig returns metric provider settings.
func GetOtelConfig() OtelConfig {
	return OtelConfig{
		Enabled:     viper.GetBool("otel.enabled"),
		ServiceName: viper.GetString("otel.serviceName"),
	}
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
