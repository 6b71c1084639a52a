package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "transcribe", cfg.Mode)
	assert.Equal(t, 300.0, cfg.ChunkDurationSec)
	assert.Equal(t, 16000, cfg.TargetSampleRate)
	assert.Equal(t, 6*time.Second, cfg.InterRequestGap())
	assert.Equal(t, 5*time.Second, cfg.RetryDelay())
	assert.Equal(t, time.Minute, cfg.QuotaCooldown())
	assert.Equal(t, 50, cfg.MaxIncidents)
}

func TestLoad_TOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batchscribe.toml")
	content := `
mode = "translate"
target_language = "German"
chunk_duration_sec = 120.0
quota_cooldown_sec = 90.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "translate", cfg.Mode)
	assert.Equal(t, "German", cfg.TargetLanguage)
	assert.Equal(t, 120.0, cfg.ChunkDurationSec)
	assert.Equal(t, 90*time.Second, cfg.QuotaCooldown())
	// Untouched values keep defaults.
	assert.Equal(t, 16000, cfg.TargetSampleRate)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BATCHSCRIBE_API_KEY", "key-from-env")
	t.Setenv("BATCHSCRIBE_MODE", "translate")
	t.Setenv("BATCHSCRIBE_CHUNK_DURATION_SEC", "150")
	t.Setenv("BATCHSCRIBE_TARGET_SAMPLE_RATE", "22050")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "key-from-env", cfg.APIKey)
	assert.Equal(t, "translate", cfg.Mode)
	assert.Equal(t, 150.0, cfg.ChunkDurationSec)
	assert.Equal(t, 22050, cfg.TargetSampleRate)
}

func TestLoad_GeminiKeyFallback(t *testing.T) {
	t.Setenv("BATCHSCRIBE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "fallback-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "fallback-key", cfg.APIKey)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.APIKey = "k"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing key", func(c *Config) { c.APIKey = "" }},
		{"zero chunk", func(c *Config) { c.ChunkDurationSec = 0 }},
		{"negative chunk", func(c *Config) { c.ChunkDurationSec = -1 }},
		{"zero rate", func(c *Config) { c.TargetSampleRate = 0 }},
		{"negative delay", func(c *Config) { c.RetryDelaySec = -1 }},
		{"zero timeout", func(c *Config) { c.RequestTimeoutSec = 0 }},
		{"zero incidents", func(c *Config) { c.MaxIncidents = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.APIKey = "k"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
