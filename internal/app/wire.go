package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/kovacsd/domainbid/internal/blob/s3"
	"github.com/kovacsd/domainbid/internal/broadcast"
	"github.com/kovacsd/domainbid/internal/cache/redis"
	"github.com/kovacsd/domainbid/internal/config"
	"github.com/kovacsd/domainbid/internal/domain"
	"github.com/kovacsd/domainbid/internal/notify"
	"github.com/kovacsd/domainbid/internal/platform/marketplace"
	"github.com/kovacsd/domainbid/internal/service"
	"github.com/kovacsd/domainbid/internal/store/postgres"
)

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	DomainStore  domain.DomainStore
	ProfileStore domain.ProfileStore
	Auth         domain.Authenticator

	// Redis-backed infrastructure
	SnapshotCache domain.SnapshotCache
	SignalBus     domain.SignalBus
	RateLimiter   domain.RateLimiter
	LockManager   domain.LockManager

	// Cross-instance fan-out
	Broadcaster *broadcast.Broadcaster

	// Settlement archive; nil when no bucket is configured.
	Archiver domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Store: local database when configured, marketplace API otherwise ---
	if cfg.Database.Enabled() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.DomainStore = postgres.NewDomainStore(pool)
		deps.ProfileStore = postgres.NewProfileStore(pool)
		deps.Auth = service.NewLocalAuth(deps.ProfileStore, logger)
	} else {
		client := marketplace.NewClient(cfg.Marketplace.ApiURL, cfg.Marketplace.ApiKey)
		deps.DomainStore = client
		deps.ProfileStore = marketplace.NewProfileClient(client)
		deps.Auth = marketplace.NewAuthClient(client)
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.SnapshotCache = redis.NewSnapshotCache(redisClient, logger)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)

	deps.Broadcaster = broadcast.New(
		deps.SignalBus,
		cfg.Sync.BroadcastChannel,
		cfg.Sync.ThrottleWindow.Duration,
		logger,
	)

	// --- S3 settlement archive (optional) ---
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), "", logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
