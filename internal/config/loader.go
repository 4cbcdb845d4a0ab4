package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DOMAINBID_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DOMAINBID_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Marketplace ──
	setStr(&cfg.Marketplace.ApiURL, "DOMAINBID_MARKETPLACE_API_URL")
	setStr(&cfg.Marketplace.ApiKey, "DOMAINBID_MARKETPLACE_API_KEY")
	setStr(&cfg.Marketplace.WsURL, "DOMAINBID_MARKETPLACE_WS_URL")
	setStr(&cfg.Marketplace.SubscribeChannel, "DOMAINBID_MARKETPLACE_SUBSCRIBE_CHANNEL")

	// ── Database ──
	setStr(&cfg.Database.DSN, "DOMAINBID_DATABASE_DSN")
	setStr(&cfg.Database.Host, "DOMAINBID_DATABASE_HOST")
	setInt(&cfg.Database.Port, "DOMAINBID_DATABASE_PORT")
	setStr(&cfg.Database.Database, "DOMAINBID_DATABASE_NAME")
	setStr(&cfg.Database.User, "DOMAINBID_DATABASE_USER")
	setStr(&cfg.Database.Password, "DOMAINBID_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "DOMAINBID_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "DOMAINBID_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "DOMAINBID_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "DOMAINBID_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "DOMAINBID_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DOMAINBID_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DOMAINBID_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DOMAINBID_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DOMAINBID_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DOMAINBID_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "DOMAINBID_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DOMAINBID_S3_REGION")
	setStr(&cfg.S3.Bucket, "DOMAINBID_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DOMAINBID_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DOMAINBID_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DOMAINBID_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DOMAINBID_S3_FORCE_PATH_STYLE")

	// ── Sync ──
	setStr(&cfg.Sync.Viewer, "DOMAINBID_SYNC_VIEWER")
	setDuration(&cfg.Sync.StaleAfter, "DOMAINBID_SYNC_STALE_AFTER")
	setDuration(&cfg.Sync.ReconnectDelay, "DOMAINBID_SYNC_RECONNECT_DELAY")
	setInt(&cfg.Sync.MaxReconnects, "DOMAINBID_SYNC_MAX_RECONNECTS")
	setStr(&cfg.Sync.BroadcastChannel, "DOMAINBID_SYNC_BROADCAST_CHANNEL")
	setDuration(&cfg.Sync.ThrottleWindow, "DOMAINBID_SYNC_THROTTLE_WINDOW")
	setDuration(&cfg.Sync.SettleInterval, "DOMAINBID_SYNC_SETTLE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "DOMAINBID_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "DOMAINBID_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DOMAINBID_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AdminToken, "DOMAINBID_SERVER_ADMIN_TOKEN")
	setStr(&cfg.Server.AdminUser, "DOMAINBID_SERVER_ADMIN_USER")
	setInt(&cfg.Server.RateLimit, "DOMAINBID_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DOMAINBID_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DOMAINBID_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DOMAINBID_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DOMAINBID_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "DOMAINBID_MODE")
	setStr(&cfg.LogLevel, "DOMAINBID_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
