package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/seabird-lab/beacon/pkg/cli/config"
	httpctrl "github.com/seabird-lab/beacon/pkg/controller/http"
	"github.com/seabird-lab/beacon/pkg/service/worker"
	"github.com/seabird-lab/beacon/pkg/usecase"
	"github.com/seabird-lab/beacon/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var repoCfg config.Repository
	var pushCfg config.Push
	var tuningCfg config.Tuning

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("BEACON_ADDR"),
			Destination: &addr,
		},
	}

	// Add shared config flags
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, pushCfg.Flags()...)
	flags = append(flags, tuningCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			timing, err := tuningCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load tuning profile")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			ucOpts := []usecase.Option{
				usecase.WithTiming(timing),
			}

			pushSvc, err := pushCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure push client")
			}
			if pushSvc != nil {
				ucOpts = append(ucOpts, usecase.WithPush(pushSvc))
				logging.Default().Info("Push delivery enabled", "push", pushCfg)
			} else {
				logging.Default().Info("Push endpoint not configured, delivery relies on realtime subscriptions only")
			}

			uc := usecase.New(repo, ucOpts...)

			retentionWorker := worker.NewRetentionWorker(repo, timing.EventRetention, timing.EventRetention/2)
			if err := retentionWorker.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start retention worker")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr, "backend", repoCfg.Backend())
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				retentionWorker.Stop()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
