package config

import (
	"time"
)

// Config represents the complete configuration for the rote-go system.
type Config struct {
	// Pattern store configuration
	Store StoreConfig `yaml:"store" validate:"required"`

	// Strategy controller configuration
	Controller ControllerConfig `yaml:"controller,omitempty" validate:"omitempty"`

	// Browser executor configuration
	Browser BrowserConfig `yaml:"browser,omitempty" validate:"omitempty"`

	// Perception (vision model) configuration
	Perception PerceptionConfig `yaml:"perception,omitempty" validate:"omitempty"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging,omitempty" validate:"omitempty"`
}

// StoreConfig holds pattern store configuration.
type StoreConfig struct {
	// Storage backend (file, sqlite)
	Backend string `yaml:"backend" validate:"required,backend_type"`

	// Path to the pattern file or database
	Path string `yaml:"path" validate:"required"`

	// Interval between eviction sweeps (0 disables the sweeper)
	SweepInterval time.Duration `yaml:"sweep_interval" validate:"min=0"`
}

// ControllerConfig holds strategy controller configuration.
type ControllerConfig struct {
	// Maximum browser interactions per task
	MaxInteractions int `yaml:"max_interactions" validate:"min=1"`

	// Confidence a stored pattern needs to jump the strategy order
	PromoteConfidence float64 `yaml:"promote_confidence" validate:"min=0,max=1"`

	// Strategy order (direct, learned-pattern, vision, position)
	Order []string `yaml:"order,omitempty" validate:"omitempty,dive,strategy_kind"`

	// Take a debug screenshot when a strategy fails
	FailureScreenshots bool `yaml:"failure_screenshots"`

	// Overall task timeout
	TaskTimeout time.Duration `yaml:"task_timeout" validate:"min=0"`
}

// BrowserConfig holds browser executor configuration.
type BrowserConfig struct {
	// Run the browser without a visible window
	Headless bool `yaml:"headless"`

	// Browser window dimensions
	WindowWidth  int `yaml:"window_width" validate:"min=1"`
	WindowHeight int `yaml:"window_height" validate:"min=1"`

	// User agent override (empty keeps the browser default)
	UserAgent string `yaml:"user_agent,omitempty"`

	// Path to the Chrome/Chromium binary (empty uses the system default)
	ExecPath string `yaml:"exec_path,omitempty"`

	// Timeout for page navigations
	NavigationTimeout time.Duration `yaml:"navigation_timeout" validate:"min=0"`

	// Timeout for individual actions (click, fill, ...)
	ActionTimeout time.Duration `yaml:"action_timeout" validate:"min=0"`

	// Directory where screenshots are written
	ScreenshotDir string `yaml:"screenshot_dir"`

	// JPEG quality for full-page screenshots
	ScreenshotQuality int `yaml:"screenshot_quality" validate:"min=1,max=100"`

	// Disable the Chrome sandbox (needed in some containers)
	NoSandbox bool `yaml:"no_sandbox"`

	// Disable GPU acceleration
	DisableGPU bool `yaml:"disable_gpu"`
}

// PerceptionConfig holds vision model configuration.
type PerceptionConfig struct {
	// Model ID (e.g., claude-sonnet-4-20250514)
	Model string `yaml:"model" validate:"required"`

	// API key for the provider (prefer the environment over config files)
	APIKey string `yaml:"api_key,omitempty"`

	// Maximum tokens per response
	MaxTokens int `yaml:"max_tokens" validate:"min=1"`

	// Sampling temperature
	Temperature float64 `yaml:"temperature" validate:"min=0,max=1"`

	// Request timeout
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"min=0"`

	// Retry configuration
	Retry RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig holds retry-specific configuration.
type RetryConfig struct {
	// Maximum number of retries
	MaxRetries int `yaml:"max_retries" validate:"min=0"`

	// Initial backoff duration
	InitialBackoff time.Duration `yaml:"initial_backoff" validate:"min=0"`

	// Maximum backoff duration
	MaxBackoff time.Duration `yaml:"max_backoff" validate:"min=0"`

	// Backoff multiplier
	BackoffMultiplier float64 `yaml:"backoff_multiplier" validate:"min=1.0"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Log level (DEBUG, INFO, WARN, ERROR, FATAL)
	Level string `yaml:"level" validate:"log_level"`

	// Output configurations
	Outputs []LogOutputConfig `yaml:"outputs"`

	// Default fields to include in all logs
	DefaultFields map[string]interface{} `yaml:"default_fields,omitempty"`
}

// LogOutputConfig represents a logging output destination.
type LogOutputConfig struct {
	// Type of output (console, file)
	Type string `yaml:"type" validate:"required,oneof=console file"`

	// Output format (json, text)
	Format string `yaml:"format" validate:"oneof=json text"`

	// File path (for file outputs)
	FilePath string `yaml:"file_path,omitempty"`

	// Whether to use colors (for console outputs)
	Colors bool `yaml:"colors"`
}

// Validate validates the configuration using the singleton validator.
func (c *Config) Validate() error {
	return ValidateConfiguration(c)
}
