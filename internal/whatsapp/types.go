package whatsapp

import "encoding/json"

// Envelope is the top-level structure received from Meta's webhook.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one business account's worth of changes within a delivery.
type Entry struct {
	ID      string   `json:"id"`
	Time    int64    `json:"time"`
	Changes []Change `json:"changes"`
}

// Change wraps a single typed update within an entry.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue carries either a batch of statuses, a batch of messages, or neither.
type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Statuses         []Status  `json:"statuses,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
}

// Metadata identifies the receiving phone number. A webhook entry carries a
// business id; only the metadata disambiguates which phone number it hit.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender's WhatsApp contact card.
type Contact struct {
	Profile ContactProfile `json:"profile"`
	WaID    string         `json:"wa_id"`
}

// ContactProfile has the sender's display name.
type ContactProfile struct {
	Name string `json:"name"`
}

// Status is a delivery/read update for a previously sent message.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// Message is an inbound message. Only text bodies are decoded; every other
// type keeps its raw JSON so downstream consumers can handle it themselves.
type Message struct {
	From      string       `json:"from"`
	ID        string       `json:"id"`
	Timestamp string       `json:"timestamp"`
	Type      string       `json:"type"`
	Text      *TextContent `json:"text,omitempty"`
	Image     *MediaRef    `json:"image,omitempty"`

	// Raw is the original message object as received.
	Raw json.RawMessage `json:"-"`
}

type messageAlias Message

// UnmarshalJSON decodes the known fields and retains the raw payload.
func (m *Message) UnmarshalJSON(data []byte) error {
	var alias messageAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*m = Message(alias)
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// TextContent holds a text message body.
type TextContent struct {
	Body string `json:"body"`
}

// MediaRef references an uploaded media object by provider id.
type MediaRef struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// EventKind classifies an inbound event.
type EventKind string

const (
	EventStatus  EventKind = "status"
	EventMessage EventKind = "message"
)

// InboundEvent is one parsed webhook event. Exactly one of Status/Message is
// set depending on Kind. Events are transient; persistence is the consumer's
// concern, as is deduplication of provider redeliveries.
type InboundEvent struct {
	Kind          EventKind
	BusinessID    string
	PhoneNumberID string
	Status        *Status
	Message       *Message
}

// SendRequest is the payload for the send-message endpoint.
type SendRequest struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Text             TextBody        `json:"text"`
	Context          *MessageContext `json:"context,omitempty"`
}

// TextBody is the outbound text content.
type TextBody struct {
	Body       string `json:"body"`
	PreviewURL *bool  `json:"preview_url,omitempty"`
}

// MessageContext marks an outbound message as a reply to a prior message.
type MessageContext struct {
	MessageID string `json:"message_id"`
}

// SendResponse is the provider's response to a successful send.
type SendResponse struct {
	MessagingProduct string        `json:"messaging_product"`
	Contacts         []SendContact `json:"contacts,omitempty"`
	Messages         []SentMessage `json:"messages,omitempty"`
}

// SendContact echoes the resolved recipient.
type SendContact struct {
	Input string `json:"input"`
	WaID  string `json:"wa_id"`
}

// SentMessage carries the provider-assigned message id.
type SentMessage struct {
	ID string `json:"id"`
}

// MessageID returns the first assigned message id, if any.
func (r *SendResponse) MessageID() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}

// Business is one business account visible to an access token.
type Business struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PhoneNumber is one registered phone number under a business account.
type PhoneNumber struct {
	ID                     string `json:"id"`
	PhoneNumber            string `json:"phone_number"`
	DisplayPhoneNumber     string `json:"display_phone_number"`
	VerifiedName           string `json:"verified_name"`
	CodeVerificationStatus string `json:"code_verification_status"`
	QualityRating          string `json:"quality_rating"`
}
