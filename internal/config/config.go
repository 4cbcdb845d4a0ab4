// Package config defines the top-level configuration for the domainbid sync
// agent and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by DOMAINBID_* environment variables.
type Config struct {
	Marketplace MarketplaceConfig `toml:"marketplace"`
	Database    DatabaseConfig    `toml:"database"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Sync        SyncConfig        `toml:"sync"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// MarketplaceConfig holds the remote marketplace backend endpoints.
type MarketplaceConfig struct {
	ApiURL           string `toml:"api_url"`
	ApiKey           string `toml:"api_key"`
	WsURL            string `toml:"ws_url"`
	SubscribeChannel string `toml:"subscribe_channel"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the optional
// local store. An empty DSN and Host means the agent uses the marketplace
// REST API as its store instead.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// Enabled reports whether a local database store is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.DSN != "" || d.Host != ""
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the settlement
// archive. An empty bucket disables archiving.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SyncConfig holds the synchronization parameters.
type SyncConfig struct {
	// Viewer is the identity acting through this agent; outbid
	// notifications fire when this identity loses the lead.
	Viewer string `toml:"viewer"`

	// StaleAfter bounds how old a cached snapshot may be and still seed
	// the view on startup.
	StaleAfter duration `toml:"stale_after"`

	// ReconnectDelay is the fixed pause between live-feed reconnect
	// attempts; MaxReconnects bounds how many are made before giving up.
	ReconnectDelay duration `toml:"reconnect_delay"`
	MaxReconnects  int      `toml:"max_reconnects"`

	// BroadcastChannel carries cross-instance update fan-out;
	// ThrottleWindow is the minimum spacing between sends.
	BroadcastChannel string   `toml:"broadcast_channel"`
	ThrottleWindow   duration `toml:"throttle_window"`

	// SettleInterval is how often expired auctions are swept for
	// settlement. Zero disables the settler.
	SettleInterval duration `toml:"settle_interval"`
}

// ServerConfig holds the local HTTP + WebSocket surface parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	AdminToken  string   `toml:"admin_token"`
	AdminUser   string   `toml:"admin_user"`
	RateLimit   int      `toml:"rate_limit"`
}

// NotifyConfig holds notification sink parameters.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	// Events filters which event kinds are forwarded (e.g. "outbid",
	// "sale"). Empty means all.
	Events []string `toml:"events"`
}

// duration wraps time.Duration so TOML can parse strings like "5s" or "1m".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config with sensible local-development defaults.
func Defaults() Config {
	return Config{
		Marketplace: MarketplaceConfig{
			SubscribeChannel: "domains",
		},
		Database: DatabaseConfig{
			Port:          5432,
			Database:      "domainbid",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			ForcePathStyle: true,
		},
		Sync: SyncConfig{
			Viewer:           "",
			StaleAfter:       duration{5 * time.Second},
			ReconnectDelay:   duration{5 * time.Second},
			MaxReconnects:    5,
			BroadcastChannel: "domainbid:broadcast",
			ThrottleWindow:   duration{time.Second},
			SettleInterval:   duration{15 * time.Second},
		},
		Server: ServerConfig{
			Enabled:   true,
			Port:      8090,
			AdminUser: "admin",
			RateLimit: 20,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"agent":  true, // sync only, no local HTTP surface
	"server": true, // local HTTP surface over a cold view, no live feed
	"full":   true, // everything
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: agent, server, full)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// A store is required: either a local database or the marketplace API.
	if !c.Database.Enabled() && c.Marketplace.ApiURL == "" {
		errs = append(errs, "either database or marketplace.api_url must be configured")
	}
	if c.Marketplace.ApiURL != "" && c.Marketplace.ApiKey == "" {
		errs = append(errs, "marketplace: api_key is required when api_url is set")
	}

	// The live feed is optional, but modes that sync need a backend to
	// resync from, which the store check above already covers.
	if c.Mode != "server" && c.Marketplace.WsURL == "" {
		errs = append(errs, "marketplace: ws_url is required for mode "+c.Mode)
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	if c.S3.Bucket != "" {
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			errs = append(errs, "s3: access_key and secret_key are required when bucket is set")
		}
	}

	if c.Sync.StaleAfter.Duration < 0 {
		errs = append(errs, "sync: stale_after must not be negative")
	}
	if c.Sync.MaxReconnects < 0 {
		errs = append(errs, "sync: max_reconnects must not be negative")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port %d out of range", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must not be negative")
		}
	}

	// Telegram needs both the token and the chat.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
