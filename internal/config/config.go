// Package config provides configuration management for podflow using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute

	// defaultSegmentDuration is the virtual slice length in seconds.
	// 120-300 is the recommended range; 180 balances ASR context against
	// retry granularity.
	defaultSegmentDuration = 180.0

	// defaultMaxRetries caps retry_count before a segment becomes
	// terminally failed.
	defaultMaxRetries = 3

	defaultLanguage = "en-US"

	defaultModelName = "whisper-1"

	// defaultSpeedFactor is the empirical ratio of wall-clock transcription
	// time to audio duration; used for ETA projections only.
	defaultSpeedFactor = 0.4

	// defaultASRTimeoutFactor bounds one ASR call at this multiple of the
	// segment's audio duration.
	defaultASRTimeoutFactor = 10.0

	defaultExtractTimeout = 30 * time.Second

	defaultWorkerCount = 4

	// defaultClipSweepAge is the minimum age before an orphan temp clip may
	// be swept.
	defaultClipSweepAge = 30 * time.Minute

	defaultClipSweepCron = "@hourly"
)

// Config holds all configuration for the application.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	// AudioDir is the root directory for ingested audio files.
	AudioDir string `mapstructure:"audio_dir"`
	// TempClipDir is the root for segment clip temp files. Defaults under
	// AudioDir when empty.
	TempClipDir string `mapstructure:"temp_clip_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// TranscriptionConfig holds the transcription orchestration parameters.
type TranscriptionConfig struct {
	// SegmentDuration is the virtual slice length in seconds.
	SegmentDuration float64 `mapstructure:"segment_duration"`

	// MaxRetries caps a segment's retry_count.
	MaxRetries int `mapstructure:"max_retries"`

	// DefaultLanguage is the BCP 47 tag used when an episode has no
	// language of its own.
	DefaultLanguage string `mapstructure:"default_language"`

	// ModelName identifies the ASR model passed to the adapter at load time.
	ModelName string `mapstructure:"model_name"`

	// APIKey authenticates against the hosted ASR service.
	APIKey string `mapstructure:"api_key"`

	// AuthToken is the credential for the diarization model. Required at
	// startup when diarization is enabled.
	AuthToken string `mapstructure:"auth_token"`

	// Diarization enables speaker attribution by default.
	Diarization bool `mapstructure:"diarization"`

	// WorkerCount bounds concurrent segment workers. The ASR serialization
	// lock may reduce effective parallelism below this.
	WorkerCount int `mapstructure:"worker_count"`

	// SpeedFactor is the empirical transcription speed ratio for ETA
	// projection.
	SpeedFactor float64 `mapstructure:"speed_factor"`

	// ASRTimeoutFactor bounds one ASR call at this multiple of the
	// segment's audio duration.
	ASRTimeoutFactor float64 `mapstructure:"asr_timeout_factor"`

	// ExtractTimeout bounds one clip extraction sub-process.
	ExtractTimeout time.Duration `mapstructure:"extract_timeout"`

	// ClipSweepAge is the minimum age before an orphan clip is swept.
	ClipSweepAge time.Duration `mapstructure:"clip_sweep_age"`

	// ClipSweepCron schedules the orphan clip sweeper.
	ClipSweepCron string `mapstructure:"clip_sweep_cron"`
}

// ASRTimeout returns the wall-clock bound for transcribing a clip of the
// given audio duration.
func (c TranscriptionConfig) ASRTimeout(clipSeconds float64) time.Duration {
	factor := c.ASRTimeoutFactor
	if factor <= 0 {
		factor = defaultASRTimeoutFactor
	}
	return time.Duration(clipSeconds * factor * float64(time.Second))
}

// ClipDir resolves the temp clip directory, defaulting under the audio dir.
func (c StorageConfig) ClipDir() string {
	if c.TempClipDir != "" {
		return c.TempClipDir
	}
	return filepath.Join(c.AudioDir, "clips")
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with PODFLOW_ and use underscores for
// nesting. Example: PODFLOW_TRANSCRIPTION_SEGMENT_DURATION=240.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/podflow")
		v.AddConfigPath("$HOME/.podflow")
	}

	v.SetEnvPrefix("PODFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - defaults and env vars apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults registers default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "podflow.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("storage.audio_dir", "data/audio")
	v.SetDefault("storage.temp_clip_dir", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", "")

	v.SetDefault("transcription.segment_duration", defaultSegmentDuration)
	v.SetDefault("transcription.max_retries", defaultMaxRetries)
	v.SetDefault("transcription.default_language", defaultLanguage)
	v.SetDefault("transcription.model_name", defaultModelName)
	v.SetDefault("transcription.api_key", "")
	v.SetDefault("transcription.auth_token", "")
	v.SetDefault("transcription.diarization", false)
	v.SetDefault("transcription.worker_count", defaultWorkerCount)
	v.SetDefault("transcription.speed_factor", defaultSpeedFactor)
	v.SetDefault("transcription.asr_timeout_factor", defaultASRTimeoutFactor)
	v.SetDefault("transcription.extract_timeout", defaultExtractTimeout)
	v.SetDefault("transcription.clip_sweep_age", defaultClipSweepAge)
	v.SetDefault("transcription.clip_sweep_cron", defaultClipSweepCron)
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("database.driver must be sqlite, postgres, or mysql, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Storage.AudioDir == "" {
		return fmt.Errorf("storage.audio_dir is required")
	}

	t := c.Transcription
	if t.SegmentDuration <= 0 {
		return fmt.Errorf("transcription.segment_duration must be positive, got %v", t.SegmentDuration)
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("transcription.max_retries must not be negative, got %d", t.MaxRetries)
	}
	if t.WorkerCount < 1 {
		return fmt.Errorf("transcription.worker_count must be at least 1, got %d", t.WorkerCount)
	}
	if t.SpeedFactor <= 0 {
		return fmt.Errorf("transcription.speed_factor must be positive, got %v", t.SpeedFactor)
	}
	if t.Diarization && t.AuthToken == "" {
		return fmt.Errorf("transcription.auth_token is required when diarization is enabled")
	}

	return nil
}
