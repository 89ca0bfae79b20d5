package config

import (
	"time"
)

// GetDefaultConfig returns the default configuration for rote-go.
func GetDefaultConfig() *Config {
	return &Config{
		Store:      getDefaultStoreConfig(),
		Controller: getDefaultControllerConfig(),
		Browser:    getDefaultBrowserConfig(),
		Perception: getDefaultPerceptionConfig(),
		Logging:    getDefaultLoggingConfig(),
	}
}

// getDefaultStoreConfig returns default pattern store configuration.
func getDefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Backend:       "file",
		Path:          "patterns.json",
		SweepInterval: time.Hour,
	}
}

// getDefaultControllerConfig returns default strategy controller configuration.
func getDefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		MaxInteractions:   25,
		PromoteConfidence: 0.6,
		Order: []string{
			"direct",
			"learned-pattern",
			"vision",
			"position",
		},
		FailureScreenshots: true,
		TaskTimeout:        5 * time.Minute,
	}
}

// getDefaultBrowserConfig returns default browser executor configuration.
func getDefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:          true,
		WindowWidth:       1920,
		WindowHeight:      1080,
		UserAgent:         "",
		NavigationTimeout: 30 * time.Second,
		ActionTimeout:     10 * time.Second,
		ScreenshotDir:     "screenshots",
		ScreenshotQuality: 90,
		NoSandbox:         false,
		DisableGPU:        true,
	}
}

// getDefaultPerceptionConfig returns default vision model configuration.
func getDefaultPerceptionConfig() PerceptionConfig {
	return PerceptionConfig{
		Model:          "claude-sonnet-4-20250514",
		APIKey:         "", // Should be provided via environment or config file
		MaxTokens:      1024,
		Temperature:    0.0,
		RequestTimeout: 60 * time.Second,
		Retry: RetryConfig{
			MaxRetries:        3,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2.0,
		},
	}
}

// getDefaultLoggingConfig returns default logging configuration.
func getDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level: "INFO",
		Outputs: []LogOutputConfig{
			{
				Type:   "console",
				Format: "text",
				Colors: true,
			},
		},
		DefaultFields: map[string]interface{}{},
	}
}
