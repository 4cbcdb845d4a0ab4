package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimal returns the smallest config that passes Validate.
func minimal() Config {
	cfg := Defaults()
	cfg.Marketplace.ApiURL = "https://api.example.com"
	cfg.Marketplace.ApiKey = "secret"
	cfg.Marketplace.WsURL = "wss://api.example.com/ws"
	return cfg
}

func TestValidate(t *testing.T) {
	t.Run("minimal config passes", func(t *testing.T) {
		cfg := minimal()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("defaults alone have no store", func(t *testing.T) {
		cfg := Defaults()
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "either database or marketplace.api_url")
	})

	t.Run("api_url without api_key", func(t *testing.T) {
		cfg := minimal()
		cfg.Marketplace.ApiKey = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api_key is required")
	})

	t.Run("server mode runs without a live feed", func(t *testing.T) {
		cfg := minimal()
		cfg.Mode = "server"
		cfg.Marketplace.WsURL = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("full mode requires a live feed", func(t *testing.T) {
		cfg := minimal()
		cfg.Marketplace.WsURL = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ws_url is required")
	})

	t.Run("unknown mode", func(t *testing.T) {
		cfg := minimal()
		cfg.Mode = "turbo"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown mode")
	})

	t.Run("s3 bucket without credentials", func(t *testing.T) {
		cfg := minimal()
		cfg.S3.Bucket = "settlements"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access_key and secret_key")
	})

	t.Run("telegram token without chat id", func(t *testing.T) {
		cfg := minimal()
		cfg.Notify.TelegramToken = "123:abc"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "telegram_token and telegram_chat_id")
	})

	t.Run("every problem is reported at once", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = "turbo"
		cfg.Redis.Addr = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown mode")
		assert.Contains(t, err.Error(), "redis: addr")
	})
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "agent"

[marketplace]
api_url = "https://api.example.com"
api_key = "secret"
ws_url = "wss://api.example.com/ws"

[sync]
viewer = "alice"
stale_after = "30s"
throttle_window = "250ms"

[server]
cors_origins = ["https://app.example.com"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "agent", cfg.Mode)
	assert.Equal(t, "alice", cfg.Sync.Viewer)
	assert.Equal(t, 30*time.Second, cfg.Sync.StaleAfter.Duration)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.ThrottleWindow.Duration)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSOrigins)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Sync.MaxReconnects)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DOMAINBID_MARKETPLACE_API_KEY", "from-env")
	t.Setenv("DOMAINBID_SYNC_RECONNECT_DELAY", "2s")
	t.Setenv("DOMAINBID_SERVER_RATE_LIMIT", "50")
	t.Setenv("DOMAINBID_SERVER_ENABLED", "false")
	t.Setenv("DOMAINBID_NOTIFY_EVENTS", "outbid, sale")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Marketplace.ApiKey)
	assert.Equal(t, 2*time.Second, cfg.Sync.ReconnectDelay.Duration)
	assert.Equal(t, 50, cfg.Server.RateLimit)
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, []string{"outbid", "sale"}, cfg.Notify.Events)
}

func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv("DOMAINBID_SERVER_PORT", "not-a-number")
	t.Setenv("DOMAINBID_SYNC_STALE_AFTER", "soonish")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Sync.StaleAfter.Duration)
}
