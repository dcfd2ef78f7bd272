package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seabird-lab/beacon/pkg/service/push"
	"github.com/urfave/cli/v3"
)

// Push holds CLI flags for the push gateway client
type Push struct {
	endpoint string
	token    string
}

// Flags returns CLI flags for push configuration
func (p *Push) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "push-endpoint",
			Usage:       "Push gateway endpoint URL (push delivery disabled when empty)",
			Category:    "Push",
			Sources:     cli.EnvVars("BEACON_PUSH_ENDPOINT"),
			Destination: &p.endpoint,
		},
		&cli.StringFlag{
			Name:        "push-token",
			Usage:       "Bearer token for the push gateway",
			Category:    "Push",
			Sources:     cli.EnvVars("BEACON_PUSH_TOKEN"),
			Destination: &p.token,
		},
	}
}

// IsConfigured reports whether a push endpoint was given.
func (p *Push) IsConfigured() bool {
	return p.endpoint != ""
}

// Configure builds the push client. Returns nil when no endpoint is set.
func (p *Push) Configure() (push.Service, error) {
	if p.endpoint == "" {
		return nil, nil
	}

	var opts []push.Option
	if p.token != "" {
		opts = append(opts, push.WithToken(p.token))
	}

	client, err := push.New(p.endpoint, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize push client")
	}
	return client, nil
}

// LogValue hides the token from startup logs.
func (p Push) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("endpoint", p.endpoint),
		slog.Bool("token", p.token != ""),
	)
}
