package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seabird-lab/beacon/pkg/cli/config"
	"github.com/seabird-lab/beacon/pkg/domain/types"
	"github.com/seabird-lab/beacon/pkg/usecase"
	"github.com/seabird-lab/beacon/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// cmdTrack runs a presence tracker for one user until interrupted. Mainly a
// development tool for watching a backend from a second terminal.
func cmdTrack() *cli.Command {
	var userID string
	var repoCfg config.Repository
	var tuningCfg config.Tuning

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user-id",
			Usage:       "User ID to report presence for (required)",
			Required:    true,
			Sources:     cli.EnvVars("BEACON_USER_ID"),
			Destination: &userID,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, tuningCfg.Flags()...)

	return &cli.Command{
		Name:  "track",
		Usage: "Report presence heartbeats for a user until interrupted",
		Flags: flags,
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

			uc := usecase.New(repo, usecase.WithTiming(timing))
			tracker, err := uc.Presence.NewTracker(types.UserID(userID))
			if err != nil {
				return err
			}

			if err := tracker.Start(ctx); err != nil {
				return err
			}
			logging.Default().Info("Tracking presence",
				"user_id", userID,
				"heartbeat_interval", timing.HeartbeatInterval.String())

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)
			case <-ctx.Done():
			}

			tracker.Stop(context.WithoutCancel(ctx))
			logging.Default().Info("Tracker stopped", "user_id", userID)
			return nil
		},
	}
}
