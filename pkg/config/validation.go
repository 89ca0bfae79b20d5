package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Tag     string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	switch e.Tag {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "min":
		return fmt.Sprintf("%s must be at least", e.Field)
	case "max":
		return fmt.Sprintf("%s must be at most", e.Field)
	case "oneof":
		return fmt.Sprintf("%s must be one of", e.Field)
	default:
		return fmt.Sprintf("%s failed validation", e.Field)
	}
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// Validator provides configuration validation.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new configuration validator.
func NewValidator() (*Validator, error) {
	validate := validator.New()

	if err := registerAllValidators(validate); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	return &Validator{validate: validate}, nil
}

// ValidateConfig validates a configuration struct.
func (v *Validator) ValidateConfig(config *Config) error {
	if config == nil {
		return ValidationErrors{
			ValidationError{
				Field:   "config",
				Tag:     "required",
				Value:   nil,
				Message: "config is nil",
			},
		}
	}

	err := v.validate.Struct(config)
	if err == nil {
		if customErrors := v.validateCustomRules(config); len(customErrors) > 0 {
			return customErrors
		}
		return nil
	}

	// Convert validator errors to our custom error format
	var validationErrors ValidationErrors

	if errs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range errs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   e.Field(),
				Tag:     e.Tag(),
				Value:   e.Value(),
				Message: getValidationMessage(e),
			})
		}
	} else {
		validationErrors = append(validationErrors, ValidationError{
			Message: err.Error(),
		})
	}

	if customErrors := v.validateCustomRules(config); len(customErrors) > 0 {
		validationErrors = append(validationErrors, customErrors...)
	}

	return validationErrors
}

// validateCustomRules performs additional custom validation rules.
func (v *Validator) validateCustomRules(config *Config) ValidationErrors {
	var errors ValidationErrors

	if errs := v.validateStoreConfig(&config.Store); len(errs) > 0 {
		errors = append(errors, errs...)
	}
	if errs := v.validateControllerConfig(&config.Controller); len(errs) > 0 {
		errors = append(errors, errs...)
	}
	if errs := v.validatePerceptionConfig(&config.Perception); len(errs) > 0 {
		errors = append(errors, errs...)
	}
	if errs := v.validateLoggingConfig(&config.Logging); len(errs) > 0 {
		errors = append(errors, errs...)
	}

	return errors
}

// validateStoreConfig validates pattern store configuration.
func (v *Validator) validateStoreConfig(config *StoreConfig) ValidationErrors {
	var errors ValidationErrors

	if config.Backend == "sqlite" && !strings.HasSuffix(config.Path, ".db") && config.Path != ":memory:" {
		errors = append(errors, ValidationError{
			Field:   "Store.Path",
			Message: fmt.Sprintf("sqlite backend expects a .db path, got %q", config.Path),
		})
	}

	return errors
}

// validateControllerConfig validates strategy controller configuration.
func (v *Validator) validateControllerConfig(config *ControllerConfig) ValidationErrors {
	var errors ValidationErrors

	// Duplicate strategies make the order ambiguous
	seen := make(map[string]bool)
	for _, kind := range config.Order {
		if seen[kind] {
			errors = append(errors, ValidationError{
				Field:   "Controller.Order",
				Message: fmt.Sprintf("strategy %q appears more than once in the order", kind),
			})
		}
		seen[kind] = true
	}

	return errors
}

// validatePerceptionConfig validates vision model configuration.
func (v *Validator) validatePerceptionConfig(config *PerceptionConfig) ValidationErrors {
	var errors ValidationErrors

	// Note: API key validation omitted - secrets should be loaded from environment
	if config.Model != "" && !isValidClaudeModel(config.Model) {
		errors = append(errors, ValidationError{
			Field:   "Perception.Model",
			Message: fmt.Sprintf("invalid model ID: %s", config.Model),
		})
	}

	return errors
}

// validateLoggingConfig validates logging configuration.
func (v *Validator) validateLoggingConfig(config *LoggingConfig) ValidationErrors {
	var errors ValidationErrors

	for i, output := range config.Outputs {
		if output.Type != "file" {
			continue
		}
		if output.FilePath == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("Logging.Outputs[%d].FilePath", i),
				Message: "file path is required for file output",
			})
		} else if !filepath.IsAbs(output.FilePath) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("Logging.Outputs[%d].FilePath", i),
				Message: "log file path must be absolute",
			})
		}
	}

	return errors
}

// registerAllValidators registers all custom validators.
func registerAllValidators(validate *validator.Validate) error {
	validators := map[string]validator.Func{
		"min_duration":  validateMinDuration,
		"file_path":     validateFilePath,
		"strategy_kind": validateStrategyKind,
		"log_level":     validateLogLevel,
		"backend_type":  validateBackendType,
	}

	for name, fn := range validators {
		if err := validate.RegisterValidation(name, fn); err != nil {
			return fmt.Errorf("failed to register validator '%s': %w", name, err)
		}
	}

	return nil
}

// validateMinDuration validates minimum duration.
func validateMinDuration(fl validator.FieldLevel) bool {
	duration := fl.Field().Interface().(time.Duration)
	minDuration, err := time.ParseDuration(fl.Param())
	if err != nil {
		return false
	}
	return duration >= minDuration
}

// validateFilePath validates file paths.
func validateFilePath(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if path == "" {
		return true // Allow empty paths
	}
	return filepath.IsAbs(path)
}

// validateStrategyKind validates strategy kind names.
func validateStrategyKind(fl validator.FieldLevel) bool {
	kind := fl.Field().String()
	validKinds := []string{"direct", "learned-pattern", "vision", "position"}
	for _, valid := range validKinds {
		if kind == valid {
			return true
		}
	}
	return false
}

// validateLogLevel validates log levels.
func validateLogLevel(fl validator.FieldLevel) bool {
	level := fl.Field().String()
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	for _, valid := range validLevels {
		if level == valid {
			return true
		}
	}
	return false
}

// validateBackendType validates storage backend types.
func validateBackendType(fl validator.FieldLevel) bool {
	backendType := fl.Field().String()
	validTypes := []string{"file", "sqlite"}
	for _, valid := range validTypes {
		if backendType == valid {
			return true
		}
	}
	return false
}

// isValidClaudeModel reports whether the model ID looks like a Claude
// model. Full validation happens when the client makes its first request.
func isValidClaudeModel(modelID string) bool {
	return strings.HasPrefix(modelID, "claude-")
}

// getValidationMessage returns a human-readable validation message.
func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
	case "strategy_kind":
		return fmt.Sprintf("%s must be a known strategy kind", e.Field())
	case "backend_type":
		return fmt.Sprintf("%s must be a file or sqlite backend", e.Field())
	case "log_level":
		return fmt.Sprintf("%s must be a valid log level", e.Field())
	case "file_path":
		return fmt.Sprintf("%s must be a valid file path", e.Field())
	case "min_duration":
		return fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
	default:
		return fmt.Sprintf("%s failed validation", e.Field())
	}
}

// Global validator instance.
var (
	globalValidator *Validator
	validatorOnce   sync.Once
)

// GetValidator returns the global validator instance.
func GetValidator() *Validator {
	validatorOnce.Do(func() {
		var err error
		globalValidator, err = NewValidator()
		if err != nil {
			panic(fmt.Sprintf("failed to create global validator: %v", err))
		}
	})
	return globalValidator
}

// ValidateConfiguration validates a configuration using the global validator.
func ValidateConfiguration(config *Config) error {
	return GetValidator().ValidateConfig(config)
}
