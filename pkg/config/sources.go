package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source represents a configuration source.
type Source interface {
	// Load loads configuration from the source into the provided config
	Load(config *Config, paths []string) error

	// Name returns the name of the source
	Name() string

	// Priority returns the priority of the source (higher priority overrides lower)
	Priority() int
}

// FileSource loads configuration from YAML files.
type FileSource struct {
	priority int
}

// NewFileSource creates a new file source.
func NewFileSource() *FileSource {
	return &FileSource{priority: 100}
}

// NewFileSourceWithPriority creates a new file source with custom priority.
func NewFileSourceWithPriority(priority int) *FileSource {
	return &FileSource{priority: priority}
}

// Name returns the name of the file source.
func (fs *FileSource) Name() string {
	return "file"
}

// Priority returns the priority of the file source.
func (fs *FileSource) Priority() int {
	return fs.priority
}

// Load loads configuration from YAML files.
func (fs *FileSource) Load(config *Config, paths []string) error {
	for _, path := range paths {
		if !fileExists(path) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Parse YAML and merge into config
		var fileConfig Config
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return fmt.Errorf("failed to parse YAML from %s: %w", path, err)
		}

		// Merge the file config into the main config
		if err := fs.mergeConfig(config, &fileConfig); err != nil {
			return fmt.Errorf("failed to merge config from %s: %w", path, err)
		}
	}

	return nil
}

// mergeConfig merges source config into target config.
func (fs *FileSource) mergeConfig(target, source *Config) error {
	// Use YAML marshaling for deep merge
	sourceData, err := yaml.Marshal(source)
	if err != nil {
		return fmt.Errorf("failed to marshal source config: %w", err)
	}

	// Unmarshal into target to override fields
	if err := yaml.Unmarshal(sourceData, target); err != nil {
		return fmt.Errorf("failed to unmarshal into target config: %w", err)
	}

	return nil
}

// EnvironmentSource loads configuration from environment variables.
type EnvironmentSource struct {
	priority int
	prefix   string
}

// NewEnvironmentSource creates a new environment source.
func NewEnvironmentSource() *EnvironmentSource {
	return &EnvironmentSource{
		priority: 200, // Higher priority than file source
		prefix:   "ROTE_",
	}
}

// NewEnvironmentSourceWithPrefix creates a new environment source with custom prefix.
func NewEnvironmentSourceWithPrefix(prefix string) *EnvironmentSource {
	return &EnvironmentSource{
		priority: 200,
		prefix:   prefix,
	}
}

// Name returns the name of the environment source.
func (es *EnvironmentSource) Name() string {
	return "environment"
}

// Priority returns the priority of the environment source.
func (es *EnvironmentSource) Priority() int {
	return es.priority
}

// Load loads configuration from environment variables.
func (es *EnvironmentSource) Load(config *Config, paths []string) error {
	envVars := es.getEnvironmentVariables()

	// Sort keys for consistent processing order. Longer keys go first so
	// that more specific settings win over abbreviated forms.
	keys := make([]string, 0, len(envVars))
	for key := range envVars {
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	for _, key := range keys {
		value := envVars[key]
		if err := es.setConfigValue(config, key, value); err != nil {
			return fmt.Errorf("failed to set config value %s=%s: %w", key, value, err)
		}
	}

	return nil
}

// getEnvironmentVariables gets all environment variables with the configured prefix.
func (es *EnvironmentSource) getEnvironmentVariables() map[string]string {
	envVars := make(map[string]string)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key, value := parts[0], parts[1]

		// Only process environment variables with our specific prefix
		if strings.HasPrefix(key, es.prefix) {
			// Convert environment variable to config key
			configKey := strings.ToLower(strings.TrimPrefix(key, es.prefix))
			configKey = strings.ReplaceAll(configKey, "_", ".")
			envVars[configKey] = value
		}
	}

	return envVars
}

// setConfigValue sets a configuration value using dot notation.
func (es *EnvironmentSource) setConfigValue(config *Config, key, value string) error {
	switch {
	case strings.HasPrefix(key, "store."):
		return es.setStoreValue(&config.Store, strings.TrimPrefix(key, "store."), value)
	case strings.HasPrefix(key, "controller."):
		return es.setControllerValue(&config.Controller, strings.TrimPrefix(key, "controller."), value)
	case strings.HasPrefix(key, "browser."):
		return es.setBrowserValue(&config.Browser, strings.TrimPrefix(key, "browser."), value)
	case strings.HasPrefix(key, "perception."):
		return es.setPerceptionValue(&config.Perception, strings.TrimPrefix(key, "perception."), value)
	case strings.HasPrefix(key, "logging."):
		return es.setLoggingValue(&config.Logging, strings.TrimPrefix(key, "logging."), value)
	default:
		// For unhandled paths, simply ignore them rather than failing
		// This allows for more flexible environment variable usage
		return nil
	}
}

// setStoreValue sets pattern store configuration values.
func (es *EnvironmentSource) setStoreValue(store *StoreConfig, key, value string) error {
	switch key {
	case "backend":
		store.Backend = value
	case "path":
		store.Path = value
	case "sweep.interval", "sweepInterval":
		interval, err := es.parseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid sweep interval: %s", value)
		}
		store.SweepInterval = interval
	default:
		return nil
	}
	return nil
}

// setControllerValue sets strategy controller configuration values.
func (es *EnvironmentSource) setControllerValue(controller *ControllerConfig, key, value string) error {
	switch key {
	case "max.interactions", "maxInteractions":
		if n, err := strconv.Atoi(value); err == nil {
			controller.MaxInteractions = n
		} else {
			return fmt.Errorf("invalid max interactions: %s", value)
		}
	case "promote.confidence", "promoteConfidence":
		if confidence, err := strconv.ParseFloat(value, 64); err == nil {
			controller.PromoteConfidence = confidence
		} else {
			return fmt.Errorf("invalid promote confidence: %s", value)
		}
	case "order":
		var order []string
		for _, kind := range strings.Split(value, ",") {
			if kind = strings.TrimSpace(kind); kind != "" {
				order = append(order, kind)
			}
		}
		controller.Order = order
	case "failure.screenshots", "failureScreenshots":
		if enabled, err := strconv.ParseBool(value); err == nil {
			controller.FailureScreenshots = enabled
		} else {
			return fmt.Errorf("invalid failure screenshots flag: %s", value)
		}
	case "task.timeout", "taskTimeout":
		timeout, err := es.parseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid task timeout: %s", value)
		}
		controller.TaskTimeout = timeout
	default:
		return nil
	}
	return nil
}

// setBrowserValue sets browser executor configuration values.
func (es *EnvironmentSource) setBrowserValue(browser *BrowserConfig, key, value string) error {
	switch key {
	case "headless":
		if headless, err := strconv.ParseBool(value); err == nil {
			browser.Headless = headless
		} else {
			return fmt.Errorf("invalid headless flag: %s", value)
		}
	case "window.width", "windowWidth":
		if width, err := strconv.Atoi(value); err == nil {
			browser.WindowWidth = width
		} else {
			return fmt.Errorf("invalid window width: %s", value)
		}
	case "window.height", "windowHeight":
		if height, err := strconv.Atoi(value); err == nil {
			browser.WindowHeight = height
		} else {
			return fmt.Errorf("invalid window height: %s", value)
		}
	case "user.agent", "userAgent":
		browser.UserAgent = value
	case "exec.path", "execPath":
		browser.ExecPath = value
	case "navigation.timeout", "navigationTimeout":
		timeout, err := es.parseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid navigation timeout: %s", value)
		}
		browser.NavigationTimeout = timeout
	case "action.timeout", "actionTimeout":
		timeout, err := es.parseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid action timeout: %s", value)
		}
		browser.ActionTimeout = timeout
	case "screenshot.dir", "screenshotDir":
		browser.ScreenshotDir = value
	case "screenshot.quality", "screenshotQuality":
		if quality, err := strconv.Atoi(value); err == nil {
			browser.ScreenshotQuality = quality
		} else {
			return fmt.Errorf("invalid screenshot quality: %s", value)
		}
	case "no.sandbox", "noSandbox":
		if noSandbox, err := strconv.ParseBool(value); err == nil {
			browser.NoSandbox = noSandbox
		} else {
			return fmt.Errorf("invalid no sandbox flag: %s", value)
		}
	case "disable.gpu", "disableGpu":
		if disable, err := strconv.ParseBool(value); err == nil {
			browser.DisableGPU = disable
		} else {
			return fmt.Errorf("invalid disable gpu flag: %s", value)
		}
	default:
		return nil
	}
	return nil
}

// setPerceptionValue sets vision model configuration values.
func (es *EnvironmentSource) setPerceptionValue(perception *PerceptionConfig, key, value string) error {
	switch key {
	case "model":
		perception.Model = value
	case "api.key", "apiKey":
		perception.APIKey = value
	case "max.tokens", "maxTokens":
		if maxTokens, err := strconv.Atoi(value); err == nil {
			perception.MaxTokens = maxTokens
		} else {
			return fmt.Errorf("invalid max tokens: %s", value)
		}
	case "temperature":
		if temperature, err := strconv.ParseFloat(value, 64); err == nil {
			perception.Temperature = temperature
		} else {
			return fmt.Errorf("invalid temperature: %s", value)
		}
	case "request.timeout", "requestTimeout":
		timeout, err := es.parseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid request timeout: %s", value)
		}
		perception.RequestTimeout = timeout
	case "retry.max.retries", "retry.maxRetries":
		if retries, err := strconv.Atoi(value); err == nil {
			perception.Retry.MaxRetries = retries
		} else {
			return fmt.Errorf("invalid max retries: %s", value)
		}
	case "retry.initial.backoff", "retry.initialBackoff":
		backoff, err := es.parseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid initial backoff: %s", value)
		}
		perception.Retry.InitialBackoff = backoff
	case "retry.max.backoff", "retry.maxBackoff":
		backoff, err := es.parseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid max backoff: %s", value)
		}
		perception.Retry.MaxBackoff = backoff
	default:
		return nil
	}
	return nil
}

// setLoggingValue sets logging configuration values.
func (es *EnvironmentSource) setLoggingValue(logging *LoggingConfig, key, value string) error {
	switch key {
	case "level":
		logging.Level = strings.ToUpper(value)
	default:
		return nil
	}
	return nil
}

// parseDuration parses a duration from string, supporting both duration format and plain numbers (as seconds).
func (es *EnvironmentSource) parseDuration(value string) (time.Duration, error) {
	// First try parsing as standard duration
	if duration, err := time.ParseDuration(value); err == nil {
		return duration, nil
	}

	// If that fails, try parsing as seconds (plain number)
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	// If both fail, try parsing as float seconds
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", value)
}

// CommandLineSource loads configuration from command line arguments.
type CommandLineSource struct {
	priority int
	args     []string
}

// NewCommandLineSource creates a new command line source.
func NewCommandLineSource(args []string) *CommandLineSource {
	return &CommandLineSource{
		priority: 300, // Highest priority
		args:     args,
	}
}

// Name returns the name of the command line source.
func (cls *CommandLineSource) Name() string {
	return "command_line"
}

// Priority returns the priority of the command line source.
func (cls *CommandLineSource) Priority() int {
	return cls.priority
}

// Load loads configuration from command line arguments.
func (cls *CommandLineSource) Load(config *Config, paths []string) error {
	configArgs := cls.parseConfigArgs()

	for key, value := range configArgs {
		es := &EnvironmentSource{} // Reuse environment source logic
		if err := es.setConfigValue(config, key, value); err != nil {
			return fmt.Errorf("failed to set config value from command line %s=%s: %w", key, value, err)
		}
	}

	return nil
}

// parseConfigArgs parses configuration arguments from command line.
func (cls *CommandLineSource) parseConfigArgs() map[string]string {
	configArgs := make(map[string]string)

	for i, arg := range cls.args {
		// Handle --config-key=value format
		if strings.HasPrefix(arg, "--config.") || strings.HasPrefix(arg, "--config-") {
			parts := strings.SplitN(arg, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimPrefix(parts[0], "--config.")
				key = strings.TrimPrefix(key, "--config-")
				key = strings.ReplaceAll(key, "-", ".")
				configArgs[key] = parts[1]
			} else if i+1 < len(cls.args) && !strings.HasPrefix(cls.args[i+1], "--") {
				// Handle --config-key value format
				key := strings.TrimPrefix(arg, "--config.")
				key = strings.TrimPrefix(key, "--config-")
				key = strings.ReplaceAll(key, "-", ".")
				configArgs[key] = cls.args[i+1]
			}
		}

		// Handle -c key=value format
		if arg == "-c" && i+1 < len(cls.args) {
			parts := strings.SplitN(cls.args[i+1], "=", 2)
			if len(parts) == 2 {
				configArgs[parts[0]] = parts[1]
			}
		}
	}

	return configArgs
}

// MultiSource combines multiple configuration sources.
type MultiSource struct {
	sources []Source
}

// NewMultiSource creates a new multi-source configuration loader.
func NewMultiSource(sources ...Source) *MultiSource {
	return &MultiSource{sources: sources}
}

// Name returns the name of the multi-source.
func (ms *MultiSource) Name() string {
	return "multi_source"
}

// Priority returns the highest priority among all sources.
func (ms *MultiSource) Priority() int {
	maxPriority := 0
	for _, source := range ms.sources {
		if priority := source.Priority(); priority > maxPriority {
			maxPriority = priority
		}
	}
	return maxPriority
}

// Load loads configuration from all sources in priority order.
func (ms *MultiSource) Load(config *Config, paths []string) error {
	// Sort sources by priority (lowest first, so higher priority overrides)
	sources := make([]Source, len(ms.sources))
	copy(sources, ms.sources)
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Priority() < sources[j].Priority()
	})

	for _, source := range sources {
		if err := source.Load(config, paths); err != nil {
			return fmt.Errorf("failed to load from source %s: %w", source.Name(), err)
		}
	}

	return nil
}

// AddSource adds a source to the multi-source.
func (ms *MultiSource) AddSource(source Source) {
	ms.sources = append(ms.sources, source)
}

// GetSources returns all sources.
func (ms *MultiSource) GetSources() []Source {
	return ms.sources
}

// CreateDefaultSources creates the default set of configuration sources.
func CreateDefaultSources() []Source {
	return []Source{
		NewFileSource(),
		NewEnvironmentSource(),
	}
}

// CreateAllSources creates all available configuration sources.
func CreateAllSources(args []string) []Source {
	return []Source{
		NewFileSource(),
		NewEnvironmentSource(),
		NewCommandLineSource(args),
	}
}

// LoadFromSources loads configuration from multiple sources.
func LoadFromSources(config *Config, sources []Source, paths []string) error {
	multiSource := NewMultiSource(sources...)
	return multiSource.Load(config, paths)
}
