package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	body := `
[server]
name = "dev"
bind_address = "127.0.0.1:9000"

[world]
max_occupancy = 12

[rate_limit]
enabled = false

[logging]
format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Server.Name)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.BindAddress)
	assert.Equal(t, 12, cfg.World.MaxOccupancy)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Keys the file omits keep their compiled defaults.
	assert.Equal(t, 100*time.Millisecond, cfg.World.TickRate)
	assert.Equal(t, 25*time.Second, cfg.Server.PollWaitMax)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotZero(t, cfg.Server.StartTime)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nname="), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestDefaultsAreCoherent(t *testing.T) {
	cfg := Defaults()
	assert.Greater(t, cfg.Server.WriteTimeout, cfg.Server.PollWaitMax,
		"long-polls must fit inside the HTTP write timeout")
	assert.Greater(t, cfg.Session.Timeout, cfg.Server.PollWaitMax)
	assert.Greater(t, cfg.Session.ReconnectWindow, cfg.Session.Timeout,
		"sessions must outlive entity timeouts so reconnect can respawn")
	assert.Positive(t, cfg.World.TickRate)
	assert.Positive(t, cfg.World.IntentQueueSize)
}
