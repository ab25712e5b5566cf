package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Logger holds CLI flags for the process logger
type Logger struct {
	level  string
	format string
	output string
	source bool
}

func (l *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Category:    "Logging",
			Value:       "info",
			Sources:     cli.EnvVars("RECALL_LOG_LEVEL"),
			Destination: &l.level,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Category:    "Logging",
			Value:       "console",
			Sources:     cli.EnvVars("RECALL_LOG_FORMAT"),
			Destination: &l.format,
		},
		&cli.StringFlag{
			Name:        "log-output",
			Usage:       "Log output (stdout, stderr, or a file path)",
			Category:    "Logging",
			Value:       "stderr",
			Sources:     cli.EnvVars("RECALL_LOG_OUTPUT"),
			Destination: &l.output,
		},
		&cli.BoolFlag{
			Name:        "log-source",
			Usage:       "Add source file and line to log records",
			Category:    "Logging",
			Sources:     cli.EnvVars("RECALL_LOG_SOURCE"),
			Destination: &l.source,
		},
	}
}

func (l *Logger) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("level", l.level),
		slog.String("format", l.format),
		slog.String("output", l.output),
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, goerr.Wrap(ErrInvalidConfig, "unknown log level", goerr.V("level", s))
}

func parseFormat(s string) (logging.Format, error) {
	switch strings.ToLower(s) {
	case "", "console":
		return logging.FormatConsole, nil
	case "json":
		return logging.FormatJSON, nil
	}
	return 0, goerr.Wrap(ErrInvalidConfig, "unknown log format", goerr.V("format", s))
}

// Configure installs the process-wide logger. The returned closer releases the
// output file, if any.
func (l *Logger) Configure() (func(), error) {
	level, err := parseLevel(l.level)
	if err != nil {
		return nil, err
	}
	format, err := parseFormat(l.format)
	if err != nil {
		return nil, err
	}

	var w io.Writer
	closer := func() {}
	switch l.output {
	case "", "stderr", "-":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(l.output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open log file", goerr.V("path", l.output))
		}
		w = f
		closer = func() {
			_ = f.Close()
		}
	}

	logging.SetDefault(logging.New(w, level, format, l.source))
	return closer, nil
}
