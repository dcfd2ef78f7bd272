package config

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	domainConfig "github.com/seabird-lab/beacon/pkg/domain/model/config"
	"github.com/urfave/cli/v3"
)

// Tuning loads the timing profile from a TOML file. All fields are optional;
// missing ones keep their defaults. Example:
//
//	[presence]
//	ttl = "70s"
//	heartbeat_interval = "25s"
//	hide_delay = "65s"
//
//	[attention]
//	dedup_window = "2m"
//	dedup_capacity = 256
//	event_retention = "10m"
type Tuning struct {
	path string
}

type tuningFile struct {
	Presence struct {
		TTL               string `toml:"ttl"`
		HeartbeatInterval string `toml:"heartbeat_interval"`
		HideDelay         string `toml:"hide_delay"`
	} `toml:"presence"`
	Attention struct {
		DedupWindow    string `toml:"dedup_window"`
		DedupCapacity  int    `toml:"dedup_capacity"`
		EventRetention string `toml:"event_retention"`
	} `toml:"attention"`
}

// Flags returns CLI flags for tuning configuration
func (t *Tuning) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "tuning-file",
			Usage:       "Path to TOML timing profile (defaults apply when empty)",
			Category:    "Tuning",
			Sources:     cli.EnvVars("BEACON_TUNING_FILE"),
			Destination: &t.path,
		},
	}
}

// Configure loads and validates the timing profile.
func (t *Tuning) Configure() (domainConfig.Timing, error) {
	timing := domainConfig.DefaultTiming()
	if t.path == "" {
		return timing, nil
	}

	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return timing, goerr.Wrap(ErrConfigNotFound, "tuning file does not exist", goerr.V(ConfigPathKey, t.path))
		}
		return timing, goerr.Wrap(err, "failed to read tuning file", goerr.V(ConfigPathKey, t.path))
	}

	var file tuningFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return timing, goerr.Wrap(err, "failed to parse tuning file", goerr.V(ConfigPathKey, t.path))
	}

	if err := applyDuration(&timing.TTL, file.Presence.TTL, "presence.ttl"); err != nil {
		return timing, err
	}
	if err := applyDuration(&timing.HeartbeatInterval, file.Presence.HeartbeatInterval, "presence.heartbeat_interval"); err != nil {
		return timing, err
	}
	if err := applyDuration(&timing.HideDelay, file.Presence.HideDelay, "presence.hide_delay"); err != nil {
		return timing, err
	}
	if err := applyDuration(&timing.DedupWindow, file.Attention.DedupWindow, "attention.dedup_window"); err != nil {
		return timing, err
	}
	if file.Attention.DedupCapacity != 0 {
		timing.DedupCapacity = file.Attention.DedupCapacity
	}
	if err := applyDuration(&timing.EventRetention, file.Attention.EventRetention, "attention.event_retention"); err != nil {
		return timing, err
	}

	if err := validateTiming(timing); err != nil {
		return timing, goerr.Wrap(err, "invalid tuning file", goerr.V(ConfigPathKey, t.path))
	}

	return timing, nil
}

func applyDuration(dst *time.Duration, raw, field string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return goerr.Wrap(ErrInvalidConfig, "invalid duration", goerr.V(FieldKey, field), goerr.V("value", raw))
	}
	*dst = d
	return nil
}

func validateTiming(timing domainConfig.Timing) error {
	if timing.TTL <= 0 || timing.HeartbeatInterval <= 0 || timing.HideDelay <= 0 ||
		timing.DedupWindow <= 0 || timing.EventRetention <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "durations must be positive")
	}
	// A heartbeat must fit inside the TTL with room for one missed beat,
	// otherwise healthy users flap offline.
	if timing.TTL < 2*timing.HeartbeatInterval {
		return goerr.Wrap(ErrInvalidConfig, "ttl must be at least twice the heartbeat interval",
			goerr.V("ttl", timing.TTL.String()),
			goerr.V("heartbeat_interval", timing.HeartbeatInterval.String()),
		)
	}
	if timing.DedupCapacity < 1 {
		return goerr.Wrap(ErrInvalidConfig, "dedup capacity must be at least 1",
			goerr.V("capacity", timing.DedupCapacity),
		)
	}
	return nil
}
