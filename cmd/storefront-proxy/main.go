// Storefront Proxy - keeps shopper carts and wishlists consistent with the
// commerce API and serves them over REST and MCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"storefront-proxy/internal/account"
	"storefront-proxy/internal/cart"
	"storefront-proxy/internal/catalog"
	"storefront-proxy/internal/config"
	"storefront-proxy/internal/gateway"
	"storefront-proxy/internal/handler"
	"storefront-proxy/internal/health"
	"storefront-proxy/internal/metrics"
	"storefront-proxy/internal/middleware"
	"storefront-proxy/internal/orders"
	"storefront-proxy/internal/session"
	"storefront-proxy/internal/transport"
	"storefront-proxy/internal/wishlist"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Initialize structured logger
	logger := initLogger(cfg.LogLevel, cfg.IsProduction())
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("upstream", cfg.UpstreamURL()),
		slog.String("session_backend", cfg.Session.Backend),
		slog.Bool("rollback_on_failure", cfg.Consistency.RollbackOnFailure),
	)

	rt, err := transport.New(transport.Options{Fingerprint: transport.Fingerprint(cfg.Upstream.TLSFingerprint)})
	if err != nil {
		return fmt.Errorf("creating transport: %w", err)
	}
	gw := gateway.New(gateway.Config{
		BaseURL:   cfg.UpstreamURL(),
		Timeout:   cfg.Upstream.Timeout,
		Transport: rt,
		Logger:    logger,
	})

	store, closeStore, err := openSessionStore(cfg)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer closeStore()

	cache := catalog.NewCache(gw.Products, gw.Product,
		catalog.WithTTL(cfg.Catalog.TTL),
		catalog.WithLogger(logger),
	)
	registry := session.NewRegistry(gw, store,
		session.WithLogger(logger),
		session.WithCartOptions(cart.WithRollback(cfg.Consistency.RollbackOnFailure)),
		session.WithWishlistOptions(wishlist.WithRollback(cfg.Consistency.RollbackOnFailure)),
	)

	checks, err := health.NewHealthHandler(version, &health.Endpoints{
		SessionStore: store,
		Upstream:     gw,
	})
	if err != nil {
		return fmt.Errorf("creating health checks: %w", err)
	}

	h := handler.New(handler.Deps{
		Catalog:  catalog.New(cache, gw, logger),
		Sessions: registry,
		Accounts: account.NewService(gw, logger),
		Orders:   orders.NewService(gw, logger),
		Health:   checks.Handler(),
		Version:  version,
		Logger:   logger,
	})

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Recovery must be outermost to catch panics from the other middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		metrics.Middleware,
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(httpHandler, "storefront-proxy"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("version", version),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	// Let background cart refreshes land before the store closes
	registry.Wait()
	logger.Info("server stopped")
	return nil
}

// sessionStore is what the registry and the health check need from a backend.
type sessionStore interface {
	session.Storage
	health.Pinger
}

// openSessionStore creates the configured backend and a func that releases it.
func openSessionStore(cfg *config.Config) (sessionStore, func(), error) {
	switch cfg.Session.Backend {
	case "redis":
		store, err := session.NewRedisStorageFromURL(cfg.Session.RedisURL, cfg.Session.TTL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return session.NewMemoryStorage(), func() {}, nil
	}
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger(levelName string, production bool) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if production {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
