package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/commsware/channel-whatsapp/internal/accounts"
	"github.com/commsware/channel-whatsapp/internal/oauth"
	"github.com/commsware/channel-whatsapp/pkg/logging"
)

const flowCookieName = "wa_oauth_flow"

// OAuthHandler exposes the connect-your-number flow over HTTP. The flow id
// travels in a cookie; all flow state lives server side.
type OAuthHandler struct {
	flow      *oauth.Flow
	baseURL   string
	cookieTTL time.Duration
	logger    *logging.Logger
}

type OAuthConfig struct {
	Flow *oauth.Flow
	// PublicBaseURL prefixes the redirect targets, e.g. "https://comms.example.com".
	PublicBaseURL string
	CookieTTL     time.Duration
	Logger        *logging.Logger
}

func NewOAuthHandler(cfg OAuthConfig) *OAuthHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.CookieTTL <= 0 {
		cfg.CookieTTL = 15 * time.Minute
	}
	return &OAuthHandler{
		flow:      cfg.Flow,
		baseURL:   cfg.PublicBaseURL,
		cookieTTL: cfg.CookieTTL,
		logger:    cfg.Logger,
	}
}

// HandleRedirect starts a flow and sends the user to the Meta consent dialog.
func (h *OAuthHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	flowID := uuid.NewString()
	authURL, err := h.flow.BeginAuthorization(r.Context(), flowID)
	if err != nil {
		h.logger.Error("failed to begin oauth flow", "error", err)
		respondError(w, http.StatusInternalServerError, "could not start authorization")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flowCookieName,
		Value:    flowID,
		Path:     "/oauth/whatsapp",
		MaxAge:   int(h.cookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback receives the consent dialog result and runs discovery, then
// forwards the browser to the selection or error page.
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	flowID, ok := h.flowID(r)
	if !ok {
		http.Redirect(w, r, h.baseURL+"/oauth/whatsapp/error", http.StatusFound)
		return
	}

	q := r.URL.Query()
	err := h.flow.HandleCallback(r.Context(), flowID, q.Get("state"), q.Get("code"), q.Get("error"))
	if err != nil {
		h.logger.Warn("oauth callback failed", "flow_id", flowID, "error", err)
		http.Redirect(w, r, h.baseURL+"/oauth/whatsapp/error", http.StatusFound)
		return
	}
	http.Redirect(w, r, h.baseURL+"/oauth/whatsapp/select", http.StatusFound)
}

// HandleSelect lists the discovered phone numbers for the flow.
func (h *OAuthHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	flowID, ok := h.flowID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "no active authorization flow")
		return
	}

	candidates, err := h.flow.Candidates(r.Context(), flowID)
	if err != nil {
		switch {
		case errors.Is(err, oauth.ErrSessionNotFound):
			respondError(w, http.StatusGone, "authorization flow expired")
		case errors.Is(err, oauth.ErrNoPhoneNumbers):
			respondError(w, http.StatusNotFound, "no phone numbers available")
		default:
			h.logger.Error("failed to load candidates", "error", err)
			respondError(w, http.StatusInternalServerError, "could not load phone numbers")
		}
		return
	}

	type candidate struct {
		ID                 string `json:"id"`
		DisplayPhoneNumber string `json:"display_phone_number"`
		VerifiedName       string `json:"verified_name"`
		QualityRating      string `json:"quality_rating,omitempty"`
	}
	out := make([]candidate, 0, len(candidates))
	for _, pn := range candidates {
		out = append(out, candidate{
			ID:                 pn.ID,
			DisplayPhoneNumber: pn.DisplayPhoneNumber,
			VerifiedName:       pn.VerifiedName,
			QualityRating:      pn.QualityRating,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"phone_numbers": out})
}

type createAccountRequest struct {
	PhoneNumberID string `json:"phone_number_id"`
	Name          string `json:"name,omitempty"`
	OwnershipType string `json:"ownership_type,omitempty"`
}

// HandleCreateAccount registers the selected number as a channel for the
// authenticated tenant.
func (h *OAuthHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	flowID, ok := h.flowID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "no active authorization flow")
		return
	}

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PhoneNumberID == "" {
		respondError(w, http.StatusBadRequest, "phone_number_id is required")
		return
	}

	channelID, err := h.flow.CreateAccount(r.Context(), flowID, oauth.CreateAccountParams{
		PhoneNumberID: req.PhoneNumberID,
		Name:          req.Name,
		OwnershipType: accounts.OwnershipType(req.OwnershipType),
	})
	if err != nil {
		switch {
		case errors.Is(err, oauth.ErrSessionNotFound):
			respondError(w, http.StatusGone, "authorization flow expired")
		case errors.Is(err, oauth.ErrUnknownPhoneNumber):
			respondError(w, http.StatusUnprocessableEntity, "phone number was not discovered in this flow")
		case errors.Is(err, accounts.ErrValidation):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, accounts.ErrConflict):
			respondError(w, http.StatusConflict, "phone number already connected")
		default:
			h.logger.Error("failed to create account from oauth flow", "error", err)
			respondError(w, http.StatusInternalServerError, "could not create account")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"channel_id": channelID,
		"redirect":   h.baseURL + "/oauth/whatsapp/success",
	})
}

// HandleSuccess renders the terminal success page.
func (h *OAuthHandler) HandleSuccess(w http.ResponseWriter, r *http.Request) {
	renderPage(w, http.StatusOK, "WhatsApp connected",
		"Your WhatsApp number is connected. You can close this window.")
}

// HandleError renders the terminal error page.
func (h *OAuthHandler) HandleError(w http.ResponseWriter, r *http.Request) {
	renderPage(w, http.StatusOK, "Connection failed",
		"The WhatsApp authorization did not complete. Close this window and try again.")
}

func (h *OAuthHandler) flowID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(flowCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func renderPage(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!doctype html><html><head><title>%s</title></head><body><h1>%s</h1><p>%s</p></body></html>", title, title, body)
}
