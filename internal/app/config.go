package app

import "fmt"

// Config holds everything one resolution run needs from the command line.
type Config struct {
	// ProjectDir is the directory containing pyproject.toml.
	ProjectDir string

	// LocalFiles and CrossFiles are override files from --local and
	// --cross, in order.
	LocalFiles []string
	CrossFiles []string

	// LocalExprs and CrossExprs are override expressions from
	// -o/--override and --override-cross, in order.
	LocalExprs []string
	CrossExprs []string

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProjectDir == "" {
		cfg.ProjectDir = "."
	}
	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "":
		cfg.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	return &cfg, nil
}
