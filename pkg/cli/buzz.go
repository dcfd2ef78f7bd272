package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seabird-lab/beacon/pkg/cli/config"
	"github.com/seabird-lab/beacon/pkg/domain/types"
	"github.com/seabird-lab/beacon/pkg/usecase"
	"github.com/seabird-lab/beacon/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// cmdBuzz sends a single attention event from the command line.
func cmdBuzz() *cli.Command {
	var senderID string
	var receiverID string
	var message string
	var repoCfg config.Repository
	var pushCfg config.Push
	var tuningCfg config.Tuning

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "sender-id",
			Usage:       "Sender user ID (required)",
			Required:    true,
			Destination: &senderID,
		},
		&cli.StringFlag{
			Name:        "receiver-id",
			Usage:       "Receiver user ID (required)",
			Required:    true,
			Destination: &receiverID,
		},
		&cli.StringFlag{
			Name:        "message",
			Usage:       "Optional message attached to the event",
			Destination: &message,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, pushCfg.Flags()...)
	flags = append(flags, tuningCfg.Flags()...)

	return &cli.Command{
		Name:  "buzz",
		Usage: "Send an attention event to a user",
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

			ucOpts := []usecase.Option{usecase.WithTiming(timing)}
			pushSvc, err := pushCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure push client")
			}
			if pushSvc != nil {
				ucOpts = append(ucOpts, usecase.WithPush(pushSvc))
			}

			uc := usecase.New(repo, ucOpts...)

			ev, err := uc.Attention.Send(ctx, types.UserID(senderID), types.UserID(receiverID), message)
			if err != nil {
				return goerr.Wrap(err, "failed to send attention event")
			}

			logging.Default().Info("Attention event sent",
				"event_id", ev.ID,
				"sender_id", ev.SenderID,
				"receiver_id", ev.ReceiverID)
			return nil
		},
	}
}
