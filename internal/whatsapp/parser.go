package whatsapp

import (
	"encoding/json"
	"fmt"
)

// ParseEnvelope decodes a raw webhook body into a flat, ordered event
// sequence. Entry and change order is preserved; within one change, statuses
// come before messages to match arrival semantics. A missing entry list is
// an empty sequence, not an error. Malformed JSON is a hard failure.
func ParseEnvelope(body []byte) ([]InboundEvent, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("whatsapp: decode webhook envelope: %w", err)
	}
	return ParseEvents(env), nil
}

// ParseEvents flattens a decoded envelope into inbound events.
func ParseEvents(env Envelope) []InboundEvent {
	var events []InboundEvent

	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			for i := range value.Statuses {
				events = append(events, InboundEvent{
					Kind:          EventStatus,
					BusinessID:    entry.ID,
					PhoneNumberID: value.Metadata.PhoneNumberID,
					Status:        &value.Statuses[i],
				})
			}
			for i := range value.Messages {
				events = append(events, InboundEvent{
					Kind:          EventMessage,
					BusinessID:    entry.ID,
					PhoneNumberID: value.Metadata.PhoneNumberID,
					Message:       &value.Messages[i],
				})
			}
		}
	}

	return events
}
