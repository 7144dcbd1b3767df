package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/commsware/channel-whatsapp/internal/accounts"
	"github.com/commsware/channel-whatsapp/internal/dispatch"
	"github.com/commsware/channel-whatsapp/internal/tenancy"
	"github.com/commsware/channel-whatsapp/pkg/logging"
)

// AdminHandler exposes the management surface: account CRUD and outbound
// sends. Every operation is scoped to the tenant on the request context.
type AdminHandler struct {
	store      *accounts.Store
	registry   *accounts.Registry
	dispatcher *dispatch.Dispatcher
	logger     *logging.Logger
}

type AdminConfig struct {
	Store      *accounts.Store
	Registry   *accounts.Registry
	Dispatcher *dispatch.Dispatcher
	Logger     *logging.Logger
}

func NewAdminHandler(cfg AdminConfig) *AdminHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &AdminHandler{
		store:      cfg.Store,
		registry:   cfg.Registry,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
	}
}

type accountResponse struct {
	ID            string `json:"id"`
	ChannelID     string `json:"channel_id"`
	PhoneNumber   string `json:"phone_number"`
	PhoneNumberID string `json:"phone_number_id"`
	Name          string `json:"name,omitempty"`
	BusinessID    string `json:"business_id,omitempty"`
	OwnershipType string `json:"ownership_type"`
	IsDefault     bool   `json:"is_default"`
	CreatedAt     string `json:"created_at"`
}

func toAccountResponse(a accounts.Account) accountResponse {
	return accountResponse{
		ID:            a.ID.String(),
		ChannelID:     accounts.ChannelID(a.ID),
		PhoneNumber:   a.PhoneNumber,
		PhoneNumberID: a.PhoneNumberID,
		Name:          a.Name,
		BusinessID:    a.BusinessID,
		OwnershipType: string(a.OwnershipType),
		IsDefault:     a.IsDefault,
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// HandleListAccounts returns the tenant's live accounts.
func (h *AdminHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	teamID, ok := tenancy.TeamIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusForbidden, "no tenant on request")
		return
	}

	accts, err := h.store.ListByTeam(r.Context(), teamID)
	if err != nil {
		h.logger.Error("failed to list accounts", "error", err, "team_id", teamID)
		respondError(w, http.StatusInternalServerError, "could not list accounts")
		return
	}

	out := make([]accountResponse, 0, len(accts))
	for _, a := range accts {
		out = append(out, toAccountResponse(a))
	}
	respondJSON(w, http.StatusOK, map[string]any{"accounts": out})
}

type updateAccountRequest struct {
	Name          *string `json:"name,omitempty"`
	OwnershipType *string `json:"ownership_type,omitempty"`
	UserID        *string `json:"user_id,omitempty"`
	IsDefault     *bool   `json:"is_default,omitempty"`
}

// HandleUpdateAccount renames an account or changes its ownership.
func (h *AdminHandler) HandleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.authorizedAccount(w, r)
	if !ok {
		return
	}

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := accounts.UpdateParams{Name: req.Name, UserID: req.UserID, IsDefault: req.IsDefault}
	if req.OwnershipType != nil {
		ownership := accounts.OwnershipType(*req.OwnershipType)
		if ownership != accounts.OwnershipTeam && ownership != accounts.OwnershipUser {
			respondError(w, http.StatusUnprocessableEntity, "unknown ownership type")
			return
		}
		params.OwnershipType = &ownership
	}

	if err := h.store.Update(r.Context(), acct.ID, params); err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			respondError(w, http.StatusNotFound, "account not found")
			return
		}
		h.logger.Error("failed to update account", "error", err, "account_id", acct.ID)
		respondError(w, http.StatusInternalServerError, "could not update account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteAccount disconnects an account via the channel registry.
func (h *AdminHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.authorizedAccount(w, r)
	if !ok {
		return
	}

	if err := h.registry.DeleteChannel(r.Context(), accounts.ChannelID(acct.ID)); err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			respondError(w, http.StatusNotFound, "account not found")
			return
		}
		h.logger.Error("failed to delete channel", "error", err, "account_id", acct.ID)
		respondError(w, http.StatusInternalServerError, "could not delete account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendMessageRequest struct {
	AccountID        string `json:"account_id"`
	To               string `json:"to"`
	Body             string `json:"body"`
	PreviewURL       *bool  `json:"preview_url,omitempty"`
	ContextMessageID string `json:"context_message_id,omitempty"`
}

// HandleSendMessage dispatches an outbound text through one of the tenant's
// accounts.
func (h *AdminHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountID == "" || req.To == "" || req.Body == "" {
		respondError(w, http.StatusBadRequest, "account_id, to and body are required")
		return
	}

	acct, ok := h.loadAuthorized(w, r, req.AccountID)
	if !ok {
		return
	}

	messageID, err := h.dispatcher.SendText(r.Context(), acct, req.To, req.Body, dispatch.SendOptions{
		PreviewURL:       req.PreviewURL,
		ContextMessageID: req.ContextMessageID,
	})
	if err != nil {
		if errors.Is(err, dispatch.ErrNotConfigured) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Error("failed to send message", "error", err, "account_id", acct.ID)
		respondError(w, http.StatusBadGateway, "send failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message_id": messageID})
}

func (h *AdminHandler) authorizedAccount(w http.ResponseWriter, r *http.Request) (*accounts.Account, bool) {
	return h.loadAuthorized(w, r, chi.URLParam(r, "accountID"))
}

func (h *AdminHandler) loadAuthorized(w http.ResponseWriter, r *http.Request, rawID string) (*accounts.Account, bool) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account id")
		return nil, false
	}

	acct, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			respondError(w, http.StatusNotFound, "account not found")
			return nil, false
		}
		h.logger.Error("failed to load account", "error", err, "account_id", id)
		respondError(w, http.StatusInternalServerError, "could not load account")
		return nil, false
	}

	teamID, _ := tenancy.TeamIDFromContext(r.Context())
	userID, _ := tenancy.UserIDFromContext(r.Context())
	if !acct.HasUserAccess(userID, teamID) {
		respondError(w, http.StatusForbidden, "no access to this account")
		return nil, false
	}
	return acct, true
}
