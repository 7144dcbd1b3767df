package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	observemetrics "github.com/commsware/channel-whatsapp/internal/observability/metrics"
	"github.com/commsware/channel-whatsapp/internal/webhook"
	"github.com/commsware/channel-whatsapp/internal/whatsapp"
	"github.com/commsware/channel-whatsapp/pkg/logging"
)

// WebhookHandler terminates the WhatsApp webhook endpoint: GET verification
// challenges and POST event deliveries.
type WebhookHandler struct {
	router      *webhook.Router
	verifyToken string
	appSecret   string
	logger      *logging.Logger
	metrics     *observemetrics.ChannelMetrics
}

type WebhookConfig struct {
	Router      *webhook.Router
	VerifyToken string
	// AppSecret signs deliveries. When empty, signature checks are skipped;
	// local setups run without a configured app secret.
	AppSecret string
	Logger    *logging.Logger
	Metrics   *observemetrics.ChannelMetrics
}

func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &WebhookHandler{
		router:      cfg.Router,
		verifyToken: cfg.VerifyToken,
		appSecret:   cfg.AppSecret,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

// HandleVerify answers Meta's GET subscription challenge. Both the dotted
// and underscored parameter spellings are accepted.
func (h *WebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := firstOf(q.Get("hub.mode"), q.Get("hub_mode"))
	token := firstOf(q.Get("hub.verify_token"), q.Get("hub_verify_token"))
	challenge := firstOf(q.Get("hub.challenge"), q.Get("hub_challenge"))

	if mode == "subscribe" && token != "" && token == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		return
	}
	http.Error(w, "verification failed", http.StatusForbidden)
}

// HandleDelivery processes a POST event delivery. Signature failures are
// 401, malformed payloads 400. Everything past parsing answers 200 with a
// per-delivery summary; Meta retries whole deliveries, so per-event failures
// must not fail the request.
func (h *WebhookHandler) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := whatsapp.VerifySignature(h.appSecret, body, r.Header.Get("X-Hub-Signature-256")); err != nil {
		h.logger.Warn("invalid webhook signature", "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	events, err := whatsapp.ParseEnvelope(body)
	if err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	results := h.router.Route(r.Context(), events)
	var processed, failed int
	for _, res := range results {
		switch {
		case res.Err != nil:
			failed++
		case res.Dropped:
		default:
			processed++
		}
	}
	h.metrics.ObserveWebhookLatency("delivery", time.Since(start).Seconds())

	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"processed": processed,
		"failed":    failed,
	})
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
