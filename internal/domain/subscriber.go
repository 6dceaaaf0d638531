package domain

import "time"

// SubscriberStatus represents lifecycle states for a subscriber.
type SubscriberStatus string

const (
	SubscriberStatusActive       SubscriberStatus = "active"
	SubscriberStatusUnsubscribed SubscriberStatus = "unsubscribed"
)

// Valid reports whether the status is a known lifecycle state.
func (s SubscriberStatus) Valid() bool {
	return s == SubscriberStatusActive || s == SubscriberStatusUnsubscribed
}

// DefaultSource tags records created without an explicit origin.
const DefaultSource = "emailjs-learning-tool"

// Subscriber is the domain model for a registered email address.
// Exactly one record exists per email for the lifetime of the system;
// transitions mutate Status and UpdatedAt, records are never deleted.
type Subscriber struct {
	ID               string           `json:"id"`
	Email            string           `json:"email"`
	Status           SubscriberStatus `json:"status"`
	Source           string           `json:"source"`
	UnsubscribeToken string           `json:"unsubscribeToken"`
	IPAddress        string           `json:"ipAddress,omitempty"`
	UserAgent        string           `json:"userAgent,omitempty"`
	SubscribedAt     time.Time        `json:"subscribedAt"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Stats aggregates subscriber counts. Window counts are computed against
// SubscribedAt using UTC day boundaries, inclusive of the current day.
type Stats struct {
	Total        int `json:"total_subscribers"`
	Active       int `json:"active_subscribers"`
	Unsubscribed int `json:"unsubscribed_count"`
	Today        int `json:"today_subscribers"`
	Week         int `json:"week_subscribers"`
	Month        int `json:"month_subscribers"`
}

// SourceCount is a per-source aggregation row used by operational tooling.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
	Active int    `json:"active_count"`
}
