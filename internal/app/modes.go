package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kovacsd/domainbid/internal/domain"
	"github.com/kovacsd/domainbid/internal/live"
	"github.com/kovacsd/domainbid/internal/server"
	"github.com/kovacsd/domainbid/internal/server/handler"
	"github.com/kovacsd/domainbid/internal/server/ws"
	"github.com/kovacsd/domainbid/internal/service"
	dsync "github.com/kovacsd/domainbid/internal/sync"
)

// AgentMode runs headless synchronization: live feed, broadcast listener and
// settlement sweep, without the local HTTP surface.
func (a *App) AgentMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting agent mode")

	g, ctx := errgroup.WithContext(ctx)

	coord := a.buildCoordinator(deps)
	if err := coord.Start(ctx); err != nil {
		a.logger.WarnContext(ctx, "initial sync failed, continuing with empty view",
			slog.String("error", err.Error()),
		)
	}

	a.startBroadcastListener(ctx, g, deps, coord)
	channel := a.startLiveChannel(ctx, g, deps, coord)
	a.startSettler(ctx, g, deps, coord)
	a.startSighupResync(ctx, g, &liveView{Coordinator: coord, channel: channel, logger: a.logger})

	return g.Wait()
}

// ServerMode serves the local HTTP + WebSocket surface over a view seeded
// once from the backend, without the upstream live feed.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	coord := a.buildCoordinator(deps)
	if err := coord.Start(ctx); err != nil {
		a.logger.WarnContext(ctx, "initial sync failed, continuing with empty view",
			slog.String("error", err.Error()),
		)
	}

	a.startBroadcastListener(ctx, g, deps, coord)
	a.startHTTPServer(ctx, g, deps, coord, nil)
	a.startSighupResync(ctx, g, &liveView{Coordinator: coord, logger: a.logger})

	return g.Wait()
}

// FullMode runs everything: live feed, broadcast listener, settler, and the
// local HTTP + WebSocket surface.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	coord := a.buildCoordinator(deps)
	if err := coord.Start(ctx); err != nil {
		a.logger.WarnContext(ctx, "initial sync failed, continuing with empty view",
			slog.String("error", err.Error()),
		)
	}

	a.startBroadcastListener(ctx, g, deps, coord)
	channel := a.startLiveChannel(ctx, g, deps, coord)
	a.startSettler(ctx, g, deps, coord)
	a.startHTTPServer(ctx, g, deps, coord, channel)
	a.startSighupResync(ctx, g, &liveView{Coordinator: coord, channel: channel, logger: a.logger})

	return g.Wait()
}

// buildCoordinator constructs the update coordinator from wired deps.
func (a *App) buildCoordinator(deps *Dependencies) *dsync.Coordinator {
	return dsync.NewCoordinator(
		dsync.Config{
			StaleAfter: a.cfg.Sync.StaleAfter.Duration,
			Viewer:     a.cfg.Sync.Viewer,
		},
		deps.DomainStore,
		deps.SnapshotCache,
		deps.Broadcaster,
		deps.Notifier,
		a.logger,
	)
}

// startBroadcastListener feeds updates from other instances into the
// coordinator. Those are applied without re-broadcasting.
func (a *App) startBroadcastListener(ctx context.Context, g *errgroup.Group, deps *Dependencies, coord *dsync.Coordinator) {
	g.Go(func() error {
		return deps.Broadcaster.Listen(ctx, func(msgType string, domains []domain.Domain, sentAt time.Time) {
			coord.ApplyBroadcast(ctx, domains, sentAt)
		})
	})
}

// startLiveChannel connects the upstream change feed and routes every
// snapshot into the coordinator. The initial dial gets the same bounded
// retry budget the channel applies to later drops.
func (a *App) startLiveChannel(ctx context.Context, g *errgroup.Group, deps *Dependencies, coord *dsync.Coordinator) *live.Channel {
	channel := live.NewChannel(live.Config{
		URL:              a.cfg.Marketplace.WsURL,
		SubscribeChannel: a.cfg.Marketplace.SubscribeChannel,
		ReconnectDelay:   a.cfg.Sync.ReconnectDelay.Duration,
		MaxReconnects:    a.cfg.Sync.MaxReconnects,
	}, a.logger)

	channel.OnSnapshot(func(domains []domain.Domain, receivedAt time.Time) {
		coord.ApplyIncoming(ctx, domains, receivedAt)
	})
	channel.OnFailure(func(err error) {
		a.logger.ErrorContext(ctx, "change feed permanently down, serving last-known-good state",
			slog.String("error", err.Error()),
		)
		_ = deps.Notifier.Notify(ctx, "feed_down", "Change feed down",
			"Live updates stopped after exhausting reconnect attempts. Trigger a resync to recover.")
	})

	g.Go(func() error {
		var err error
		for attempt := 0; attempt <= a.cfg.Sync.MaxReconnects; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(a.cfg.Sync.ReconnectDelay.Duration):
				}
			}
			if err = channel.Connect(ctx); err == nil {
				break
			}
			a.logger.WarnContext(ctx, "change feed connect failed",
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
		}
		if err != nil {
			_ = deps.Notifier.Notify(ctx, "feed_down", "Change feed unavailable",
				"Could not establish the live update connection. Trigger a resync to retry.")
		}

		<-ctx.Done()
		_ = channel.Close()
		return ctx.Err()
	})

	return channel
}

// startSettler runs the periodic expired-auction sweep. A zero interval
// disables it.
func (a *App) startSettler(ctx context.Context, g *errgroup.Group, deps *Dependencies, coord *dsync.Coordinator) {
	interval := a.cfg.Sync.SettleInterval.Duration
	if interval <= 0 {
		a.logger.InfoContext(ctx, "settler disabled")
		return
	}

	settler := dsync.NewSettler(
		coord,
		deps.DomainStore,
		deps.LockManager,
		deps.Archiver,
		deps.Notifier,
		interval,
		a.logger,
	)
	g.Go(func() error {
		return settler.Run(ctx)
	})
}

// startSighupResync forces a full refetch on SIGHUP, the operator-side
// equivalent of POST /api/resync.
func (a *App) startSighupResync(ctx context.Context, g *errgroup.Group, view *liveView) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	g.Go(func() error {
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-hup:
				a.logger.InfoContext(ctx, "resync requested via SIGHUP")
				if err := view.Resync(ctx); err != nil {
					a.logger.WarnContext(ctx, "signal-triggered resync failed",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	})
}

// liveView decorates the coordinator so a forced resync also revives a
// permanently failed feed.
type liveView struct {
	*dsync.Coordinator
	channel *live.Channel
	logger  *slog.Logger
}

func (v *liveView) Resync(ctx context.Context) error {
	if err := v.Coordinator.Resync(ctx); err != nil {
		return err
	}
	if v.channel != nil && v.channel.State() == live.StateFailed {
		if err := v.channel.Connect(ctx); err != nil {
			v.logger.WarnContext(ctx, "feed revival failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// startHTTPServer builds handlers, the WebSocket hub and the server, and
// adds their goroutines to the errgroup. channel may be nil.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, coord *dsync.Coordinator, channel *live.Channel) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "http server disabled")
		return
	}

	auctionSvc := service.NewAuctionService(coord, deps.DomainStore, a.logger)
	adminSvc := service.NewAdminService(coord, deps.DomainStore, a.logger)

	view := &liveView{Coordinator: coord, channel: channel, logger: a.logger}

	hub := ws.NewHub(coord, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(coord, a.logger),
		Domains:  handler.NewDomainHandler(view, a.logger),
		Auctions: handler.NewAuctionHandler(auctionSvc, a.cfg.Sync.Viewer, a.logger),
		Admin:    handler.NewAdminHandler(adminSvc, a.cfg.Server.AdminUser, a.logger),
		Auth:     handler.NewAuthHandler(deps.Auth, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		AdminToken:  a.cfg.Server.AdminToken,
		RateLimit:   a.cfg.Server.RateLimit,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
