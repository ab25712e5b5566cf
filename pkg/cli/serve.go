package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	httpctrl "github.com/secmon-lab/recall/pkg/controller/http"
	"github.com/secmon-lab/recall/pkg/usecase"
	"github.com/secmon-lab/recall/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func cmdServe() *cli.Command {
	var addr string
	var sessionTTL time.Duration
	var sweepInterval time.Duration
	var cfg conversationConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("RECALL_ADDR"),
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "session-ttl",
			Usage:       "Idle time after which a conversation session is discarded",
			Value:       30 * time.Minute,
			Sources:     cli.EnvVars("RECALL_SESSION_TTL"),
			Destination: &sessionTTL,
		},
		&cli.DurationFlag{
			Name:        "session-sweep-interval",
			Usage:       "Interval of idle session eviction",
			Value:       time.Minute,
			Sources:     cli.EnvVars("RECALL_SESSION_SWEEP_INTERVAL"),
			Destination: &sweepInterval,
		},
	}
	flags = append(flags, cfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			deps, err := cfg.build(ctx, c)
			if err != nil {
				return err
			}
			defer deps.close(ctx)

			sessions := usecase.NewSessionManager(deps.newConversation,
				usecase.WithSessionTTL(sessionTTL),
			)

			server := &http.Server{
				Addr: addr,
				Handler: httpctrl.New(sessions,
					httpctrl.WithDefaultUser(deps.profile.UserID),
				),
				ReadHeaderTimeout: 30 * time.Second,
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			eg, ctx := errgroup.WithContext(ctx)

			eg.Go(func() error {
				return sessions.Run(ctx, sweepInterval)
			})

			eg.Go(func() error {
				logger.Info("Starting HTTP server", "addr", addr, "session_ttl", sessionTTL)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return goerr.Wrap(err, "failed to start server", goerr.V("addr", addr))
				}
				return nil
			})

			eg.Go(func() error {
				<-ctx.Done()
				logger.Info("Shutting down HTTP server")

				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}
				if err := sessions.Close(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to finish memory write-back")
				}
				logger.Info("Server shutdown completed")
				return nil
			})

			return eg.Wait()
		},
	}
}
