package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds the application configuration
type Config struct {
	Backend  BackendConfig  `json:"backend"`
	Acquire  AcquireConfig  `json:"acquire"`
	Encoding EncodingConfig `json:"encoding"`
}

// BackendConfig holds connection settings for the classification backend
type BackendConfig struct {
	BaseURL        string        `json:"base_url"`
	Username       string        `json:"username"`
	UploadTimeout  time.Duration `json:"upload_timeout"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// AcquireConfig holds limits applied when reading a source image
type AcquireConfig struct {
	// MaxBytes is the hard acquisition limit; files over it are rejected
	// outright instead of being shrunk.
	MaxBytes int64 `json:"max_bytes"`
}

// EncodingConfig holds the codec policy the upload budget is enforced with
type EncodingConfig struct {
	MaxBytes       int64   `json:"max_bytes"`
	MaxWidthPx     int     `json:"max_width_px"`
	InitialQuality float64 `json:"initial_quality"`
	QualityStep    float64 `json:"quality_step"`
	MinQuality     float64 `json:"min_quality"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:        "http://localhost:5000",
			Username:       "guest",
			UploadTimeout:  60 * time.Second,
			RequestTimeout: 15 * time.Second,
		},
		Acquire: AcquireConfig{
			MaxBytes: 12 << 20,
		},
		Encoding: EncodingConfig{
			MaxBytes:       8 << 20,
			MaxWidthPx:     1600,
			InitialQuality: 0.92,
			QualityStep:    0.07,
			MinQuality:     0.35,
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url cannot be empty")
	}

	if c.Backend.UploadTimeout <= 0 {
		return fmt.Errorf("backend.upload_timeout must be positive")
	}

	if c.Backend.RequestTimeout <= 0 {
		return fmt.Errorf("backend.request_timeout must be positive")
	}

	if c.Acquire.MaxBytes < 1 {
		return fmt.Errorf("acquire.max_bytes must be positive")
	}

	if c.Encoding.MaxBytes < 1 {
		return fmt.Errorf("encoding.max_bytes must be positive")
	}

	if c.Encoding.MaxBytes > c.Acquire.MaxBytes {
		return fmt.Errorf("encoding.max_bytes cannot exceed acquire.max_bytes")
	}

	if c.Encoding.MaxWidthPx < 1 {
		return fmt.Errorf("encoding.max_width_px must be positive")
	}

	if c.Encoding.InitialQuality <= 0 || c.Encoding.InitialQuality > 1 {
		return fmt.Errorf("encoding.initial_quality must be in (0, 1]")
	}

	if c.Encoding.QualityStep <= 0 {
		return fmt.Errorf("encoding.quality_step must be positive")
	}

	if c.Encoding.MinQuality < 0 || c.Encoding.MinQuality > c.Encoding.InitialQuality {
		return fmt.Errorf("encoding.min_quality must be between 0 and encoding.initial_quality")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "ecoscan", "config.json")
}
