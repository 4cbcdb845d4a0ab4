package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kovacsd/domainbid/internal/domain"
	"github.com/kovacsd/domainbid/internal/server/handler"
	"github.com/kovacsd/domainbid/internal/server/middleware"
	"github.com/kovacsd/domainbid/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	AdminToken  string // if empty, moderation endpoints are unguarded
	RateLimit   int    // requests per second per client; 0 disables limiting
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health   *handler.HealthHandler
	Domains  *handler.DomainHandler
	Auctions *handler.AuctionHandler
	Admin    *handler.AdminHandler
	Auth     *handler.AuthHandler
}

// Server is the local HTTP + WebSocket surface the browser UI talks to.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and builds the middleware chain. Moderation
// routes additionally pass through the admin-token guard. limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	adminOnly := middleware.AdminToken(cfg.AdminToken)

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Synchronized view.
	mux.HandleFunc("GET /api/domains", handlers.Domains.ListDomains)
	mux.HandleFunc("GET /api/domains/{id}", handlers.Domains.GetDomain)
	mux.HandleFunc("POST /api/resync", handlers.Domains.Resync)

	// Listing and bidding.
	mux.HandleFunc("POST /api/domains", handlers.Auctions.SubmitDomain)
	mux.HandleFunc("POST /api/domains/{id}/bid", handlers.Auctions.PlaceBid)
	mux.HandleFunc("POST /api/domains/{id}/proxy-bid", handlers.Auctions.PlaceProxyBid)
	mux.HandleFunc("POST /api/domains/{id}/buy", handlers.Auctions.BuyNow)

	// Moderation.
	mux.Handle("POST /api/domains/{id}/approve", adminOnly(http.HandlerFunc(handlers.Admin.Approve)))
	mux.Handle("POST /api/domains/{id}/reject", adminOnly(http.HandlerFunc(handlers.Admin.Reject)))
	mux.Handle("POST /api/domains/{id}/feature", adminOnly(http.HandlerFunc(handlers.Admin.Feature)))
	mux.Handle("DELETE /api/domains/{id}", adminOnly(http.HandlerFunc(handlers.Admin.Delete)))

	// Auth.
	if handlers.Auth != nil {
		mux.HandleFunc("POST /api/auth/signin", handlers.Auth.SignIn)
		mux.HandleFunc("POST /api/auth/signup", handlers.Auth.SignUp)
		mux.HandleFunc("POST /api/auth/signout", handlers.Auth.SignOut)
	}

	// WebSocket change feed.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux

	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, time.Second)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
