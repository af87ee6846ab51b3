// Package config provides YAML-based configuration for the clusterview server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Backend is the clustering service this client talks to
	Backend BackendConfig `yaml:"backend"`

	// Polling controls the clusters screen poll loop
	Polling PollingConfig `yaml:"polling"`

	// Screens controls the lifetime of open clusters screens
	Screens ScreensConfig `yaml:"screens"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Advanced options
	Advanced AdvancedConfig `yaml:"advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bind_address"`
	ReadTimeout  int    `yaml:"read_timeout_seconds"`
	WriteTimeout int    `yaml:"write_timeout_seconds"`
	IdleTimeout  int    `yaml:"idle_timeout_seconds"`
	BodyLimit    string `yaml:"body_limit"`
}

// BackendConfig contains clustering backend settings
type BackendConfig struct {
	BaseURL        string `yaml:"base_url"`
	RequestTimeout int    `yaml:"request_timeout_seconds"`
	UploadTimeout  int    `yaml:"upload_timeout_seconds"`
}

// PollingConfig contains cluster listing poll settings
type PollingConfig struct {
	IntervalMillis int `yaml:"interval_ms"`
	MaxAttempts    int `yaml:"max_attempts"`
	// RetryOnError counts a failed request as one attempt instead of
	// ending the loop in the error state.
	RetryOnError bool `yaml:"retry_on_error"`
}

// ScreensConfig contains screen lifecycle settings
type ScreensConfig struct {
	MaxScreens             int `yaml:"max_screens"`
	IdleTimeoutMinutes     int `yaml:"idle_timeout_minutes"`
	CleanupIntervalMinutes int `yaml:"cleanup_interval_minutes"`
}

// StorageConfig contains local storage settings
type StorageConfig struct {
	DataDirectory  string `yaml:"data_directory"`
	BlobDirectory  string `yaml:"blob_directory"`
	SpoolDirectory string `yaml:"spool_directory"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `yaml:"log_level"`
	EnableRequestLogging bool   `yaml:"enable_request_logging"`
	EnableCompression    bool   `yaml:"enable_compression"`
	UploadJobMaxAgeMins  int    `yaml:"upload_job_max_age_minutes"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         3000,
			BindAddress:  "127.0.0.1",
			ReadTimeout:  30,
			WriteTimeout: 60,
			IdleTimeout:  120,
			BodyLimit:    "1G",
		},
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8000",
			RequestTimeout: 30,
			UploadTimeout:  600,
		},
		Polling: PollingConfig{
			IntervalMillis: 1000,
			MaxAttempts:    30,
			RetryOnError:   false,
		},
		Screens: ScreensConfig{
			MaxScreens:             32,
			IdleTimeoutMinutes:     10,
			CleanupIntervalMinutes: 1,
		},
		Storage: StorageConfig{
			DataDirectory:  "./data",
			BlobDirectory:  "./data/blobs",
			SpoolDirectory: "./data/spool",
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
			EnableCompression:    true,
			UploadJobMaxAgeMins:  60,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		if err := config.Validate(); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so a partial file keeps the remaining values
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# clusterview configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration is usable
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend.base_url: %q", c.Backend.BaseURL)
	}
	if c.Polling.IntervalMillis <= 0 {
		return fmt.Errorf("polling.interval_ms must be positive")
	}
	if c.Polling.MaxAttempts <= 0 {
		return fmt.Errorf("polling.max_attempts must be positive")
	}
	if c.Screens.MaxScreens <= 0 {
		return fmt.Errorf("screens.max_screens must be positive")
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if backendURL := os.Getenv("CLUSTERVIEW_BACKEND_URL"); backendURL != "" {
		c.Backend.BaseURL = backendURL
	}

	// DATA_DIR moves the blob and spool directories along with it
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.BlobDirectory = filepath.Join(dataDir, "blobs")
		c.Storage.SpoolDirectory = filepath.Join(dataDir, "spool")
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.BlobDirectory) {
		c.Storage.BlobDirectory = filepath.Join(configDir, c.Storage.BlobDirectory)
	}
	if !filepath.IsAbs(c.Storage.SpoolDirectory) {
		c.Storage.SpoolDirectory = filepath.Join(configDir, c.Storage.SpoolDirectory)
	}
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// PollInterval returns the delay between cluster listing attempts
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalMillis) * time.Millisecond
}

// ScreenIdleTimeout returns how long an unobserved screen is kept
func (c *AppConfig) ScreenIdleTimeout() time.Duration {
	return time.Duration(c.Screens.IdleTimeoutMinutes) * time.Minute
}

// CleanupInterval returns how often idle screens and old jobs are reaped
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Screens.CleanupIntervalMinutes) * time.Minute
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.BlobDirectory,
		c.Storage.SpoolDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// BackendTimeout bounds listing, summarize and file requests
func (c *AppConfig) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.RequestTimeout) * time.Second
}

// UploadTimeout bounds a forwarded upload
func (c *AppConfig) UploadTimeout() time.Duration {
	return time.Duration(c.Backend.UploadTimeout) * time.Second
}

// JobMaxAge returns how long finished upload jobs are kept
func (c *AppConfig) JobMaxAge() time.Duration {
	return time.Duration(c.Advanced.UploadJobMaxAgeMins) * time.Minute
}
