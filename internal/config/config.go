// Package config holds all pipeline policy constants, with defaults that can
// be overridden by an optional TOML file, environment variables, and command
// line flags, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const defaultAPIBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Config is the full pipeline configuration. Duration-like values are
// expressed in seconds so they read naturally in TOML and on flags.
type Config struct {
	// Mode selects the failover ladder: "transcribe" or "translate".
	Mode string `toml:"mode"`
	// TargetLanguage is the translation target for translate mode.
	TargetLanguage string `toml:"target_language"`

	// ChunkDurationSec is the nominal length of one dispatch window.
	ChunkDurationSec float64 `toml:"chunk_duration_sec"`
	// TargetSampleRate is the mono PCM rate sent to the service.
	TargetSampleRate int `toml:"target_sample_rate"`

	// InterRequestGapSec is the mandatory pause between successful chunk
	// dispatches, respecting the aggregate request-rate ceiling.
	InterRequestGapSec float64 `toml:"inter_request_gap_sec"`
	// RetryDelaySec is the short pause before a same-model retry.
	RetryDelaySec float64 `toml:"retry_delay_sec"`
	// QuotaCooldownSec is the long pause after a quota-driven failover.
	QuotaCooldownSec float64 `toml:"quota_cooldown_sec"`
	// RequestTimeoutSec bounds one HTTP transcription call.
	RequestTimeoutSec float64 `toml:"request_timeout_sec"`

	// MaxIncidents caps the bounded incident log.
	MaxIncidents int `toml:"max_incidents"`

	// APIBaseURL is the remote service endpoint prefix.
	APIBaseURL string `toml:"api_base_url"`
	// APIKey is never read from the TOML file, only from the environment.
	APIKey string `toml:"-"`
}

// Default returns the built-in policy constants.
func Default() *Config {
	return &Config{
		Mode:               "transcribe",
		TargetLanguage:     "English",
		ChunkDurationSec:   300,
		TargetSampleRate:   16000,
		InterRequestGapSec: 6,
		RetryDelaySec:      5,
		QuotaCooldownSec:   60,
		RequestTimeoutSec:  180,
		MaxIncidents:       50,
		APIBaseURL:         defaultAPIBaseURL,
	}
}

// Load builds a Config from defaults, an optional TOML file, and the
// environment. filePath may be empty. A .env file in the working directory
// is loaded into the environment first when present.
func Load(filePath string) (*Config, error) {
	cfg := Default()

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", filePath, err)
		}
	}

	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BATCHSCRIBE_API_KEY"); v != "" {
		c.APIKey = v
	} else if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("BATCHSCRIBE_API_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv("BATCHSCRIBE_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("BATCHSCRIBE_TARGET_LANGUAGE"); v != "" {
		c.TargetLanguage = v
	}
	envFloat("BATCHSCRIBE_CHUNK_DURATION_SEC", &c.ChunkDurationSec)
	envFloat("BATCHSCRIBE_INTER_REQUEST_GAP_SEC", &c.InterRequestGapSec)
	envFloat("BATCHSCRIBE_RETRY_DELAY_SEC", &c.RetryDelaySec)
	envFloat("BATCHSCRIBE_QUOTA_COOLDOWN_SEC", &c.QuotaCooldownSec)
	envFloat("BATCHSCRIBE_REQUEST_TIMEOUT_SEC", &c.RequestTimeoutSec)
	envInt("BATCHSCRIBE_TARGET_SAMPLE_RATE", &c.TargetSampleRate)
	envInt("BATCHSCRIBE_MAX_INCIDENTS", &c.MaxIncidents)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required: set BATCHSCRIBE_API_KEY or GEMINI_API_KEY")
	}
	if c.ChunkDurationSec <= 0 {
		return fmt.Errorf("chunk duration must be positive, got %v", c.ChunkDurationSec)
	}
	if c.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive, got %d", c.TargetSampleRate)
	}
	if c.InterRequestGapSec < 0 || c.RetryDelaySec < 0 || c.QuotaCooldownSec < 0 {
		return fmt.Errorf("delays must be non-negative")
	}
	if c.RequestTimeoutSec <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", c.RequestTimeoutSec)
	}
	if c.MaxIncidents <= 0 {
		return fmt.Errorf("max incidents must be positive, got %d", c.MaxIncidents)
	}
	return nil
}

// Duration helpers for the pieces of the pipeline that want time.Duration.

func (c *Config) InterRequestGap() time.Duration { return secs(c.InterRequestGapSec) }
func (c *Config) RetryDelay() time.Duration      { return secs(c.RetryDelaySec) }
func (c *Config) QuotaCooldown() time.Duration   { return secs(c.QuotaCooldownSec) }
func (c *Config) RequestTimeout() time.Duration  { return secs(c.RequestTimeoutSec) }

func secs(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
