package config

import (
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const sentryFlushTimeout = 2 * time.Second

// Sentry holds error reporting configuration. Reporting is disabled when no
// DSN is given.
type Sentry struct {
	dsn string
	env string
}

func (s *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN for error reporting",
			Category:    "Sentry",
			Sources:     cli.EnvVars("RECALL_SENTRY_DSN"),
			Destination: &s.dsn,
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment",
			Category:    "Sentry",
			Value:       "development",
			Sources:     cli.EnvVars("RECALL_SENTRY_ENV"),
			Destination: &s.env,
		},
	}
}

func (s *Sentry) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Bool("enabled", s.dsn != ""),
		slog.String("env", s.env),
	}
}

// Configure initializes the Sentry client. The returned closer flushes
// buffered events.
func (s *Sentry) Configure(release string) (func(), error) {
	if s.dsn == "" {
		return func() {}, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         s.dsn,
		Environment: s.env,
		Release:     release,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to initialize sentry", goerr.V("env", s.env))
	}

	return func() {
		sentry.Flush(sentryFlushTimeout)
	}, nil
}
