package config

import (
	"github.com/rote-dev/rote-go/pkg/errors"
	"github.com/rote-dev/rote-go/pkg/logging"
)

// BuildLogger constructs a logger from the logging section. Console
// outputs write text to stderr so stdout stays clean for command output;
// file outputs write JSON lines.
func BuildLogger(cfg LoggingConfig) (*logging.Logger, error) {
	var outputs []logging.Output
	for _, out := range cfg.Outputs {
		switch out.Type {
		case "console":
			outputs = append(outputs, logging.NewConsoleOutput(true, logging.WithColor(out.Colors)))
		case "file":
			fileOut, err := logging.NewFileOutput(out.FilePath)
			if err != nil {
				return nil, errors.Wrap(err, errors.ConfigurationError, "failed to open log file")
			}
			outputs = append(outputs, fileOut)
		default:
			return nil, errors.Newf(errors.ConfigurationError, "unknown log output type %q", out.Type)
		}
	}
	if len(outputs) == 0 {
		outputs = append(outputs, logging.NewConsoleOutput(true))
	}

	return logging.NewLogger(logging.Config{
		Severity:      logging.ParseSeverity(cfg.Level),
		Outputs:       outputs,
		DefaultFields: cfg.DefaultFields,
	}), nil
}
