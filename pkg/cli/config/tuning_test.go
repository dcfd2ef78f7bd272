package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/seabird-lab/beacon/pkg/cli/config"
)

func writeTuningFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0644)).Required()
	return path
}

func TestTuningDefaults(t *testing.T) {
	var tuning config.Tuning
	cmd := newTestCommand(tuning.Flags())
	gt.NoError(t, cmd.Run(t.Context(), []string{"test"})).Required()

	timing, err := tuning.Configure()
	gt.NoError(t, err).Required()
	gt.Value(t, timing.TTL).Equal(70 * time.Second)
	gt.Value(t, timing.HeartbeatInterval).Equal(25 * time.Second)
	gt.Value(t, timing.HideDelay).Equal(65 * time.Second)
}

func TestTuningFromFile(t *testing.T) {
	path := writeTuningFile(t, `
[presence]
ttl = "30s"
heartbeat_interval = "10s"

[attention]
dedup_window = "1m"
dedup_capacity = 32
`)

	var tuning config.Tuning
	cmd := newTestCommand(tuning.Flags())
	gt.NoError(t, cmd.Run(t.Context(), []string{"test", "--tuning-file", path})).Required()

	timing, err := tuning.Configure()
	gt.NoError(t, err).Required()
	gt.Value(t, timing.TTL).Equal(30 * time.Second)
	gt.Value(t, timing.HeartbeatInterval).Equal(10 * time.Second)
	gt.Value(t, timing.HideDelay).Equal(65*time.Second) // untouched default
	gt.Value(t, timing.DedupWindow).Equal(time.Minute)
	gt.Number(t, timing.DedupCapacity).Equal(32)
}

func TestTuningRejectsTightTTL(t *testing.T) {
	path := writeTuningFile(t, `
[presence]
ttl = "30s"
heartbeat_interval = "25s"
`)

	var tuning config.Tuning
	cmd := newTestCommand(tuning.Flags())
	gt.NoError(t, cmd.Run(t.Context(), []string{"test", "--tuning-file", path})).Required()

	_, err := tuning.Configure()
	gt.Error(t, err).Required()
	gt.Bool(t, errors.Is(err, config.ErrInvalidConfig)).True()
}

func TestTuningRejectsBadDuration(t *testing.T) {
	path := writeTuningFile(t, `
[presence]
ttl = "soon"
`)

	var tuning config.Tuning
	cmd := newTestCommand(tuning.Flags())
	gt.NoError(t, cmd.Run(t.Context(), []string{"test", "--tuning-file", path})).Required()

	_, err := tuning.Configure()
	gt.Error(t, err).Required()
	gt.Bool(t, errors.Is(err, config.ErrInvalidConfig)).True()
}

func TestTuningMissingFile(t *testing.T) {
	var tuning config.Tuning
	cmd := newTestCommand(tuning.Flags())
	gt.NoError(t, cmd.Run(t.Context(), []string{"test", "--tuning-file", "/no/such/file.toml"})).Required()

	_, err := tuning.Configure()
	gt.Error(t, err).Required()
	gt.Bool(t, errors.Is(err, config.ErrConfigNotFound)).True()
}
