package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSubscriberCreated      EventType = "subscriber_created"
	EventSubscriberReactivated  EventType = "subscriber_reactivated"
	EventSubscriberUnsubscribed EventType = "subscriber_unsubscribed"
)

// Event represents a subscription lifecycle event emitted by the registry.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	SubscriberID string      `json:"subscriber_id"`
	Email        string      `json:"email"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload,omitempty"`
}

// SubscriberCreatedPayload carries provenance for new registrations.
type SubscriberCreatedPayload struct {
	Source    string `json:"source"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// SubscriberUnsubscribedPayload notes how the record was resolved.
type SubscriberUnsubscribedPayload struct {
	ViaToken bool `json:"via_token"`
}
