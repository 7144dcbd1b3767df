package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/commsware/channel-whatsapp/internal/accounts"
	"github.com/commsware/channel-whatsapp/internal/tenancy"
	"github.com/commsware/channel-whatsapp/internal/whatsapp"
	"github.com/commsware/channel-whatsapp/pkg/logging"
)

var (
	// ErrStateMismatch indicates the callback state did not exactly match
	// the state issued at authorization time.
	ErrStateMismatch = errors.New("oauth: state mismatch")
	// ErrProviderDenied indicates Meta returned an error instead of a code,
	// usually because the user cancelled the consent dialog.
	ErrProviderDenied = errors.New("oauth: authorization denied by provider")
	// ErrNoCode indicates the callback carried neither a code nor an error
	// param. No exchange is attempted for such a callback.
	ErrNoCode = errors.New("oauth: callback without authorization code")
	// ErrNoPhoneNumbers indicates discovery finished without a single
	// registrable phone number.
	ErrNoPhoneNumbers = errors.New("oauth: no phone numbers discovered")
	// ErrUnknownPhoneNumber indicates the selected phone number id was not
	// part of the discovered candidate set.
	ErrUnknownPhoneNumber = errors.New("oauth: phone number not in discovered set")
)

// GraphClient is the slice of the WhatsApp client the flow needs.
type GraphClient interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
	ListBusinesses(ctx context.Context, accessToken string) ([]whatsapp.Business, error)
	ListPhoneNumbers(ctx context.Context, accessToken, businessID string) ([]whatsapp.PhoneNumber, error)
}

// ChannelCreator registers the selected phone number as a channel.
type ChannelCreator interface {
	CreateChannel(ctx context.Context, params accounts.CreateParams) (string, error)
}

// Flow drives the token-exchange state machine: authorize, callback with
// discovery, then account creation from the discovered set. All transient
// state lives in the session store under the flow id.
type Flow struct {
	client   GraphClient
	sessions *SessionStore
	creator  ChannelCreator
	logger   *logging.Logger
	tracer   trace.Tracer
}

func NewFlow(client GraphClient, sessions *SessionStore, creator ChannelCreator, logger *logging.Logger) *Flow {
	if logger == nil {
		logger = logging.Default()
	}
	return &Flow{
		client:   client,
		sessions: sessions,
		creator:  creator,
		logger:   logger,
		tracer:   otel.Tracer("comms.internal.oauth.flow"),
	}
}

// BeginAuthorization issues a fresh state token, stores it under the flow id
// and returns the provider consent URL to redirect the user to.
func (f *Flow) BeginAuthorization(ctx context.Context, flowID string) (string, error) {
	ctx, span := f.tracer.Start(ctx, "oauth.begin_authorization")
	defer span.End()

	state := newStateToken()
	if err := f.sessions.Save(ctx, flowID, &Session{State: state}); err != nil {
		span.RecordError(err)
		return "", err
	}
	return f.client.AuthorizationURL(state), nil
}

// HandleCallback validates the returned state, exchanges the code and runs
// asset discovery. The stored state is consumed no matter the outcome, so a
// replayed callback always fails.
func (f *Flow) HandleCallback(ctx context.Context, flowID, state, code, providerError string) error {
	ctx, span := f.tracer.Start(ctx, "oauth.handle_callback")
	defer span.End()

	session, err := f.sessions.Load(ctx, flowID)
	if err != nil {
		return err
	}

	expected := session.State
	session.State = ""
	if saveErr := f.sessions.Save(ctx, flowID, session); saveErr != nil {
		return saveErr
	}

	if expected == "" || state != expected {
		return ErrStateMismatch
	}
	if providerError != "" {
		return fmt.Errorf("%w: %s", ErrProviderDenied, providerError)
	}
	if code == "" {
		return ErrNoCode
	}

	token, err := f.client.ExchangeCode(ctx, code)
	if err != nil {
		span.RecordError(err)
		return err
	}
	session.AccessToken = token

	if err := f.discover(ctx, session); err != nil {
		return err
	}
	return f.sessions.Save(ctx, flowID, session)
}

// discover walks the businesses visible to the token and collects their
// phone numbers. A business whose listing fails is skipped with a warning
// rather than failing the whole flow. The last business that yields numbers
// becomes the session's business id.
func (f *Flow) discover(ctx context.Context, session *Session) error {
	businesses, err := f.client.ListBusinesses(ctx, session.AccessToken)
	if err != nil {
		return err
	}

	session.PhoneNumbers = nil
	for _, business := range businesses {
		numbers, err := f.client.ListPhoneNumbers(ctx, session.AccessToken, business.ID)
		if err != nil {
			f.logger.Warn("skipping business during discovery",
				"business_id", business.ID,
				"error", err,
			)
			continue
		}
		if len(numbers) == 0 {
			continue
		}
		session.BusinessID = business.ID
		session.PhoneNumbers = append(session.PhoneNumbers, numbers...)
	}

	if len(session.PhoneNumbers) == 0 {
		return ErrNoPhoneNumbers
	}
	return nil
}

// Candidates returns the phone numbers discovered for a flow.
func (f *Flow) Candidates(ctx context.Context, flowID string) ([]whatsapp.PhoneNumber, error) {
	session, err := f.sessions.Load(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if len(session.PhoneNumbers) == 0 {
		return nil, ErrNoPhoneNumbers
	}
	return session.PhoneNumbers, nil
}

// CreateAccountParams selects one discovered number to register.
type CreateAccountParams struct {
	PhoneNumberID string
	Name          string
	OwnershipType accounts.OwnershipType
}

// CreateAccount registers the selected phone number as a channel, owned by
// the tenant on the context, and tears the session down on success.
func (f *Flow) CreateAccount(ctx context.Context, flowID string, params CreateAccountParams) (string, error) {
	ctx, span := f.tracer.Start(ctx, "oauth.create_account")
	defer span.End()

	session, err := f.sessions.Load(ctx, flowID)
	if err != nil {
		return "", err
	}

	var selected *whatsapp.PhoneNumber
	for i := range session.PhoneNumbers {
		if session.PhoneNumbers[i].ID == params.PhoneNumberID {
			selected = &session.PhoneNumbers[i]
			break
		}
	}
	if selected == nil {
		return "", ErrUnknownPhoneNumber
	}

	teamID, _ := tenancy.TeamIDFromContext(ctx)
	userID, _ := tenancy.UserIDFromContext(ctx)

	name := params.Name
	if name == "" {
		name = selected.VerifiedName
	}
	phone := selected.PhoneNumber
	if phone == "" {
		phone = selected.DisplayPhoneNumber
	}

	channelID, err := f.creator.CreateChannel(ctx, accounts.CreateParams{
		PhoneNumber:     phone,
		PhoneNumberID:   selected.ID,
		Name:            name,
		BusinessID:      session.BusinessID,
		APIToken:        session.AccessToken,
		TeamID:          teamID,
		CreatedByUserID: userID,
		UserID:          userID,
		OwnershipType:   params.OwnershipType,
		Meta: map[string]string{
			"source":            "oauth",
			"verified_name":     selected.VerifiedName,
			"quality_rating":    selected.QualityRating,
			"code_verification": selected.CodeVerificationStatus,
		},
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	if err := f.sessions.Delete(ctx, flowID); err != nil {
		// The channel exists; a stale session only wastes its TTL.
		f.logger.Warn("failed to clear oauth session", "flow_id", flowID, "error", err)
	}
	f.logger.Info("whatsapp account connected via oauth",
		"channel_id", channelID,
		"business_id", session.BusinessID,
	)
	return channelID, nil
}

func newStateToken() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
