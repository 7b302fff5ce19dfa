// Package config manages application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultMaxAudioBytes is the Whisper API upload limit (25 MiB).
const DefaultMaxAudioBytes = 25 * 1024 * 1024

// Config holds all application configuration for the transcription pipeline.
type Config struct {
	// YtdlpPath is the path to the yt-dlp executable (default: "yt-dlp")
	YtdlpPath string `json:"ytdlp_path"`
	// YtdlpTimeout is the maximum time to wait for yt-dlp operations
	YtdlpTimeout time.Duration `json:"ytdlp_timeout"`

	// DownloadsDir is where audio files are stored
	DownloadsDir string `json:"downloads_dir"`
	// OutputDir is where transcript files are written
	OutputDir string `json:"output_dir"`

	// Delay is the pause between transcription requests
	Delay time.Duration `json:"delay"`
	// MaxAudioBytes is the upload size limit enforced before calling the API
	MaxAudioBytes int64 `json:"max_audio_bytes"`
	// WhisperModel is the transcription model name
	WhisperModel string `json:"whisper_model"`
	// APIBaseURL overrides the OpenAI API endpoint (empty = default)
	APIBaseURL string `json:"api_base_url,omitempty"`

	// YouTubeAPIKey enables the Data API resolver when set
	YouTubeAPIKey string `json:"youtube_api_key,omitempty"`

	// MaxRetries is the maximum number of retries for failed operations
	MaxRetries int `json:"max_retries"`
	// InitialBackoff is the initial backoff duration for retries
	InitialBackoff time.Duration `json:"initial_backoff"`
	// MaxBackoff is the maximum backoff duration for retries
	MaxBackoff time.Duration `json:"max_backoff"`
	// BackoffMultiplier is the multiplier for exponential backoff (must be > 1)
	BackoffMultiplier float64 `json:"backoff_multiplier"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		YtdlpPath:         "yt-dlp",
		YtdlpTimeout:      10 * time.Minute,
		DownloadsDir:      "downloads",
		OutputDir:         "transcriptions",
		Delay:             5 * time.Second,
		MaxAudioBytes:     DefaultMaxAudioBytes,
		WhisperModel:      "whisper-1",
		MaxRetries:        3,
		InitialBackoff:    5 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Load loads configuration from environment variables, config file, and applies defaults.
// Priority: env vars > config file > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Try to load from config file
	if err := cfg.loadFromFile(); err != nil {
		// Config file is optional
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// Override with environment variables
	cfg.loadFromEnv()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile attempts to load config from ytscribe.json in current directory or home directory.
func (c *Config) loadFromFile() error {
	paths := []string{
		"ytscribe.json",
		filepath.Join(os.Getenv("HOME"), ".config", "ytscribe", "ytscribe.json"),
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}

	return os.ErrNotExist
}

// loadFromEnv overrides config with environment variables.
func (c *Config) loadFromEnv() {
	if v := os.Getenv("YTSCRIBE_YTDLP_PATH"); v != "" {
		c.YtdlpPath = v
	}
	if v := os.Getenv("YTSCRIBE_YTDLP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.YtdlpTimeout = d
		}
	}
	if v := os.Getenv("YTSCRIBE_DOWNLOADS_DIR"); v != "" {
		c.DownloadsDir = v
	}
	if v := os.Getenv("YTSCRIBE_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("YTSCRIBE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Delay = d
		}
	}
	if v := os.Getenv("YTSCRIBE_MAX_AUDIO_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxAudioBytes = n
		}
	}
	if v := os.Getenv("YTSCRIBE_WHISPER_MODEL"); v != "" {
		c.WhisperModel = v
	}
	if v := os.Getenv("YTSCRIBE_API_BASE_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv("YTSCRIBE_YOUTUBE_API_KEY"); v != "" {
		c.YouTubeAPIKey = v
	}
	if v := os.Getenv("YTSCRIBE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv("YTSCRIBE_INITIAL_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.InitialBackoff = d
		}
	}
	if v := os.Getenv("YTSCRIBE_MAX_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.MaxBackoff = d
		}
	}
}

// Validate checks that configuration values are valid and consistent.
// It returns an error if any configuration value is invalid.
func (c *Config) Validate() error {
	if c.YtdlpTimeout <= 0 {
		return fmt.Errorf("ytdlp_timeout must be positive")
	}
	if c.DownloadsDir == "" {
		return fmt.Errorf("downloads_dir must not be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must be non-negative")
	}
	if c.MaxAudioBytes <= 0 {
		return fmt.Errorf("max_audio_bytes must be positive")
	}
	if c.WhisperModel == "" {
		return fmt.Errorf("whisper_model must not be empty")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be > 1")
	}
	return nil
}
