package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/commsware/channel-whatsapp/internal/accounts"
	"github.com/commsware/channel-whatsapp/internal/api/router"
	"github.com/commsware/channel-whatsapp/internal/app/bootstrap"
	appconfig "github.com/commsware/channel-whatsapp/internal/config"
	"github.com/commsware/channel-whatsapp/internal/dispatch"
	"github.com/commsware/channel-whatsapp/internal/http/handlers"
	"github.com/commsware/channel-whatsapp/internal/oauth"
	observemetrics "github.com/commsware/channel-whatsapp/internal/observability/metrics"
	"github.com/commsware/channel-whatsapp/internal/webhook"
	"github.com/commsware/channel-whatsapp/internal/whatsapp"
	"github.com/commsware/channel-whatsapp/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting whatsapp channel service",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := bootstrap.BuildPgxPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("redis is required for oauth sessions")
		os.Exit(1)
	}

	metrics := observemetrics.NewChannelMetrics(nil)

	// Graph API client and account layer
	client := whatsapp.NewClient(whatsapp.ClientConfig{
		APIBase:     cfg.WhatsAppAPIURL,
		APIVersion:  cfg.WhatsAppAPIVersion,
		AppID:       cfg.WhatsAppAppID,
		AppSecret:   cfg.WhatsAppAppSecret,
		RedirectURI: cfg.OAuthRedirectURI,
	})
	store := accounts.NewStore(pool)
	provider := accounts.NewProvider(store, logger)
	registry := accounts.NewRegistry()
	registry.Register(provider)

	// OAuth flow over redis sessions
	sessions := oauth.NewSessionStore(redisClient, cfg.OAuthSessionTTL)
	flow := oauth.NewFlow(client, sessions, provider, logger)

	// Inbound routing and outbound dispatch
	eventRouter := webhook.NewRouter(store, nil, logger, metrics)
	dispatcher := dispatch.NewDispatcher(client, cfg.WhatsAppAPIToken, cfg.PreviewURL, logger, metrics)

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(handlers.WebhookConfig{
		Router:      eventRouter,
		VerifyToken: cfg.WebhookVerifyToken,
		AppSecret:   cfg.WebhookSecret,
		Logger:      logger,
		Metrics:     metrics,
	})
	oauthHandler := handlers.NewOAuthHandler(handlers.OAuthConfig{
		Flow:          flow,
		PublicBaseURL: cfg.PublicBaseURL,
		CookieTTL:     cfg.OAuthSessionTTL,
		Logger:        logger,
	})
	adminHandler := handlers.NewAdminHandler(handlers.AdminConfig{
		Store:      store,
		Registry:   registry,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	// Setup router
	r := router.New(&router.Config{
		Logger:          logger,
		Webhook:         webhookHandler,
		OAuth:           oauthHandler,
		Admin:           adminHandler,
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  promhttp.Handler(),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
