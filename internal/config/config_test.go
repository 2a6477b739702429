package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.InDelta(t, 180.0, cfg.Transcription.SegmentDuration, 1e-9)
	assert.Equal(t, 3, cfg.Transcription.MaxRetries)
	assert.Equal(t, "en-US", cfg.Transcription.DefaultLanguage)
	assert.InDelta(t, 0.4, cfg.Transcription.SpeedFactor, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.Transcription.ExtractTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Transcription.ClipSweepAge)
	assert.False(t, cfg.Transcription.Diarization)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
transcription:
  segment_duration: 240
  max_retries: 5
  default_language: "zh-CN"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 240.0, cfg.Transcription.SegmentDuration, 1e-9)
	assert.Equal(t, 5, cfg.Transcription.MaxRetries)
	assert.Equal(t, "zh-CN", cfg.Transcription.DefaultLanguage)
	// Untouched keys keep their defaults.
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PODFLOW_TRANSCRIPTION_SEGMENT_DURATION", "120")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.InDelta(t, 120.0, cfg.Transcription.SegmentDuration, 1e-9)
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		v := viper.New()
		SetDefaults(v)
		var cfg Config
		require.NoError(t, viper.New().Unmarshal(&cfg)) // zero value, replaced below
		require.NoError(t, v.Unmarshal(&cfg))
		return &cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad driver", func(c *Config) { c.Database.Driver = "oracle" }, "database.driver"},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"empty audio dir", func(c *Config) { c.Storage.AudioDir = "" }, "storage.audio_dir"},
		{"zero segment duration", func(c *Config) { c.Transcription.SegmentDuration = 0 }, "segment_duration"},
		{"zero workers", func(c *Config) { c.Transcription.WorkerCount = 0 }, "worker_count"},
		{"zero speed factor", func(c *Config) { c.Transcription.SpeedFactor = 0 }, "speed_factor"},
		{"diarization without token", func(c *Config) { c.Transcription.Diarization = true }, "auth_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestTranscriptionConfig_ASRTimeout(t *testing.T) {
	c := TranscriptionConfig{ASRTimeoutFactor: 10}
	assert.Equal(t, 30*time.Minute, c.ASRTimeout(180))

	// Unset factor falls back to the default multiple.
	c.ASRTimeoutFactor = 0
	assert.Equal(t, 200*time.Second, c.ASRTimeout(20))
}

func TestStorageConfig_ClipDir(t *testing.T) {
	c := StorageConfig{AudioDir: "/data/audio"}
	assert.Equal(t, filepath.Join("/data/audio", "clips"), c.ClipDir())

	c.TempClipDir = "/var/tmp/clips"
	assert.Equal(t, "/var/tmp/clips", c.ClipDir())
}
