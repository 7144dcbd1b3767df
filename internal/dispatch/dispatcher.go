package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/commsware/channel-whatsapp/internal/accounts"
	"github.com/commsware/channel-whatsapp/internal/observability/metrics"
	"github.com/commsware/channel-whatsapp/internal/whatsapp"
	"github.com/commsware/channel-whatsapp/pkg/logging"
)

// ErrNotConfigured indicates a send precondition failed before any network
// traffic: no token, no phone number id, or an empty message.
var ErrNotConfigured = errors.New("dispatch: sender not configured")

// Sender is the slice of the WhatsApp client the dispatcher needs.
type Sender interface {
	SendText(ctx context.Context, accessToken, phoneNumberID string, req whatsapp.SendRequest) (*whatsapp.SendResponse, error)
}

// SendOptions tune one outbound message.
type SendOptions struct {
	// PreviewURL overrides the dispatcher default when set.
	PreviewURL *bool
	// ContextMessageID marks the message as a reply to an earlier one.
	ContextMessageID string
}

// Dispatcher sends text messages through an account, falling back to the
// process-wide token when the account carries none.
type Dispatcher struct {
	sender        Sender
	fallbackToken string
	previewURL    bool
	logger        *logging.Logger
	metrics       *metrics.ChannelMetrics
	tracer        trace.Tracer
}

func NewDispatcher(sender Sender, fallbackToken string, previewURL bool, logger *logging.Logger, m *metrics.ChannelMetrics) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		sender:        sender,
		fallbackToken: fallbackToken,
		previewURL:    previewURL,
		logger:        logger,
		metrics:       m,
		tracer:        otel.Tracer("comms.internal.dispatch"),
	}
}

// SendText delivers a text message to a recipient through the account's
// phone number. The recipient is normalized before dispatch. The returned
// string is the provider message id.
func (d *Dispatcher) SendText(ctx context.Context, acct *accounts.Account, to, body string, opts SendOptions) (string, error) {
	token := acct.ResolveToken(d.fallbackToken)
	if token == "" {
		return "", fmt.Errorf("%w: no api token for account %s", ErrNotConfigured, acct.ID)
	}
	if acct.PhoneNumberID == "" {
		return "", fmt.Errorf("%w: account %s has no phone number id", ErrNotConfigured, acct.ID)
	}
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("%w: empty message body", ErrNotConfigured)
	}
	if strings.TrimSpace(to) == "" {
		return "", fmt.Errorf("%w: empty recipient", ErrNotConfigured)
	}
	recipient := whatsapp.NormalizePhone(to)

	ctx, span := d.tracer.Start(ctx, "dispatch.send_text")
	defer span.End()
	span.SetAttributes(
		attribute.String("comms.account_id", acct.ID.String()),
		attribute.String("comms.phone_number_id", acct.PhoneNumberID),
	)

	preview := d.previewURL
	if opts.PreviewURL != nil {
		preview = *opts.PreviewURL
	}
	req := whatsapp.SendRequest{
		MessagingProduct: "whatsapp",
		To:               recipient,
		Type:             "text",
		Text: whatsapp.TextBody{
			Body:       body,
			PreviewURL: &preview,
		},
	}
	if opts.ContextMessageID != "" {
		req.Context = &whatsapp.MessageContext{MessageID: opts.ContextMessageID}
	}

	resp, err := d.sender.SendText(ctx, token, acct.PhoneNumberID, req)
	if err != nil {
		span.RecordError(err)
		d.metrics.ObserveOutbound("failed")
		d.logger.Error("failed to send whatsapp message",
			"error", err,
			"account_id", acct.ID,
			"phone_number_id", acct.PhoneNumberID,
		)
		return "", err
	}

	messageID := resp.MessageID()
	d.metrics.ObserveOutbound("sent")
	d.logger.Info("whatsapp message sent",
		"account_id", acct.ID,
		"phone_number_id", acct.PhoneNumberID,
		"message_id", messageID,
	)
	return messageID, nil
}
