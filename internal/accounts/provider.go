package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/commsware/channel-whatsapp/internal/whatsapp"
	"github.com/commsware/channel-whatsapp/pkg/logging"
)

// ErrValidation marks a CreateChannel rejection caused by bad input rather
// than by infrastructure failure.
var ErrValidation = errors.New("accounts: invalid channel parameters")

const channelType = "whatsapp"

// CreateParams describes a channel to register. PhoneNumber and TeamID are
// required. Webhook credentials are generated when absent.
type CreateParams struct {
	PhoneNumber        string
	PhoneNumberID      string
	Name               string
	BusinessID         string
	APIToken           string
	WebhookVerifyToken string
	TeamID             string
	CreatedByUserID    string
	UserID             string
	OwnershipType      OwnershipType
	Meta               map[string]string
}

// ChannelProvider is the capability surface a channel type exposes to the
// rest of the platform. Channel ids are "<type>:<id>".
type ChannelProvider interface {
	Type() string
	CreateChannel(ctx context.Context, params CreateParams) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
}

// Provider implements ChannelProvider for WhatsApp on top of the account
// store.
type Provider struct {
	store  *Store
	logger *logging.Logger
}

func NewProvider(store *Store, logger *logging.Logger) *Provider {
	if logger == nil {
		logger = logging.Default()
	}
	return &Provider{store: store, logger: logger}
}

func (p *Provider) Type() string { return channelType }

// CreateChannel validates params, fills generated credentials and persists
// the account. The returned id is "whatsapp:<uuid>".
func (p *Provider) CreateChannel(ctx context.Context, params CreateParams) (string, error) {
	if err := validateCreate(params); err != nil {
		return "", err
	}

	ownership := params.OwnershipType
	if ownership == "" {
		ownership = OwnershipTeam
	}
	verifyToken := params.WebhookVerifyToken
	if verifyToken == "" {
		verifyToken = NewWebhookToken()
	}

	acct := &Account{
		PhoneNumber:        whatsapp.NormalizePhone(params.PhoneNumber),
		PhoneNumberID:      params.PhoneNumberID,
		Name:               params.Name,
		BusinessID:         params.BusinessID,
		APIToken:           params.APIToken,
		WebhookToken:       NewWebhookToken(),
		WebhookVerifyToken: verifyToken,
		TeamID:             params.TeamID,
		CreatedByUserID:    params.CreatedByUserID,
		UserID:             params.UserID,
		OwnershipType:      ownership,
		Meta:               NewMeta(params.Meta),
	}
	if err := p.store.Create(ctx, acct); err != nil {
		return "", err
	}

	p.logger.Info("whatsapp channel created",
		"account_id", acct.ID,
		"phone_number_id", acct.PhoneNumberID,
		"team_id", acct.TeamID,
	)
	return ChannelID(acct.ID), nil
}

// DeleteChannel tombstones the account behind a channel id.
func (p *Provider) DeleteChannel(ctx context.Context, channelID string) error {
	id, err := ParseChannelID(channelID)
	if err != nil {
		return err
	}
	if err := p.store.Tombstone(ctx, id); err != nil {
		return err
	}
	p.logger.Info("whatsapp channel deleted", "account_id", id)
	return nil
}

func validateCreate(params CreateParams) error {
	if strings.TrimSpace(params.PhoneNumber) == "" {
		return fmt.Errorf("%w: phone number is required", ErrValidation)
	}
	if params.TeamID == "" {
		return fmt.Errorf("%w: team id is required", ErrValidation)
	}
	switch params.OwnershipType {
	case "", OwnershipTeam:
	case OwnershipUser:
		if params.UserID == "" {
			return fmt.Errorf("%w: user ownership requires a user id", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown ownership type %q", ErrValidation, params.OwnershipType)
	}
	return nil
}

// ChannelID formats an account id as a platform channel id.
func ChannelID(id uuid.UUID) string {
	return channelType + ":" + id.String()
}

// ParseChannelID extracts the account id from a "whatsapp:<uuid>" channel id.
func ParseChannelID(channelID string) (uuid.UUID, error) {
	raw, ok := strings.CutPrefix(channelID, channelType+":")
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: channel id %q is not a whatsapp channel", ErrValidation, channelID)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed channel id %q", ErrValidation, channelID)
	}
	return id, nil
}
