package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/commsware/channel-whatsapp/internal/http/handlers"
	httpmiddleware "github.com/commsware/channel-whatsapp/internal/http/middleware"
	"github.com/commsware/channel-whatsapp/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	Webhook         *handlers.WebhookHandler
	OAuth           *handlers.OAuthHandler
	Admin           *handlers.AdminHandler
	AdminAuthSecret string
	MetricsHandler  http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: webhooks, health, metrics, and the browser-facing
	// legs of the OAuth flow.
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.Webhook != nil {
			public.Get("/webhooks/whatsapp", cfg.Webhook.HandleVerify)
			public.Post("/webhooks/whatsapp", cfg.Webhook.HandleDelivery)
		}
		if cfg.OAuth != nil {
			public.Route("/oauth/whatsapp", func(r chi.Router) {
				r.Get("/callback", cfg.OAuth.HandleCallback)
				r.Get("/select", cfg.OAuth.HandleSelect)
				r.Get("/success", cfg.OAuth.HandleSuccess)
				r.Get("/error", cfg.OAuth.HandleError)
			})
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Admin routes (protected by HMAC JWT). Starting an OAuth flow and
	// finishing it with an account both need an authenticated tenant.
	if cfg.AdminAuthSecret != "" {
		r.Group(func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

			if cfg.OAuth != nil {
				admin.Get("/oauth/whatsapp/redirect", cfg.OAuth.HandleRedirect)
				admin.Post("/oauth/whatsapp/create-account", cfg.OAuth.HandleCreateAccount)
			}
			if cfg.Admin != nil {
				admin.Route("/admin", func(r chi.Router) {
					r.Post("/messages:send", cfg.Admin.HandleSendMessage)
					r.Get("/accounts", cfg.Admin.HandleListAccounts)
					r.Patch("/accounts/{accountID}", cfg.Admin.HandleUpdateAccount)
					r.Delete("/accounts/{accountID}", cfg.Admin.HandleDeleteAccount)
				})
			}
		})
	}

	return r
}
