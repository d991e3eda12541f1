// Package observability owns the process-wide loggers and the Prometheus
// exporter.
package observability

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/itemtally/itemtally/internal/config"
)

var (
	// CLILogger is used by CLI commands and the collectors they run.
	CLILogger *logging.Logger

	// ServerLogger is used by the status API.
	ServerLogger *logging.Logger
)

// ProfileStructured selects JSON server logs; anything else logs like the CLI.
const ProfileStructured = "STRUCTURED"

// InitCLILogger creates the human-readable CLI logger. Verbose lowers the
// level to debug.
func InitCLILogger(serviceName string, verbose bool) error {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		return fmt.Errorf("initialize CLI logger: %w", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}

	CLILogger = logger
	return nil
}

// InitServerLogger creates the logger for serve from the logging settings.
// The namespace, when set, is attached to every entry.
func InitServerLogger(serviceName string, cfg config.LoggingConfig, namespace string) error {
	level := parseLogLevel(cfg.Level)

	if !strings.EqualFold(strings.TrimSpace(cfg.Profile), ProfileStructured) {
		logger, err := logging.New(&logging.LoggerConfig{
			Profile:      logging.ProfileSimple,
			DefaultLevel: level,
			Service:      serviceName,
			Environment:  "production",
			Sinks: []logging.SinkConfig{
				{
					Type:    "console",
					Format:  "console",
					Console: &logging.ConsoleSinkConfig{Stream: "stderr", Colorize: false},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("initialize server logger: %w", err)
		}
		ServerLogger = logger
		return nil
	}

	staticFields := make(map[string]any)
	if namespace != "" {
		staticFields["namespace"] = namespace
	}

	logger, err := logging.New(&logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: level,
		Service:      serviceName,
		Environment:  "production",
		StaticFields: staticFields,
		Middleware: []logging.MiddlewareConfig{
			{Name: "correlation", Enabled: true, Order: 100, Config: map[string]any{}},
		},
		Sinks: []logging.SinkConfig{
			{
				Type:    "console",
				Format:  "json",
				Console: &logging.ConsoleSinkConfig{Stream: "stderr", Colorize: false},
			},
		},
		EnableCaller:     true,
		EnableStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("initialize server logger: %w", err)
	}

	ServerLogger = logger
	return nil
}

var logLevels = map[string]string{
	"trace":   "TRACE",
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// parseLogLevel maps a configured level to a gofulmen severity, defaulting
// to INFO.
func parseLogLevel(level string) string {
	if severity, ok := logLevels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return severity
	}
	return "INFO"
}
