package dto

import (
	"time"

	"github.com/vibecodezero/subscriber-service/internal/domain"
)

// SubscribeRequest is the POST /api/subscribe payload.
type SubscribeRequest struct {
	Email  string `json:"email"`
	Source string `json:"source,omitempty"`
}

// UnsubscribeRequest is the POST /api/unsubscribe payload; token takes
// precedence when both identifiers are present.
type UnsubscribeRequest struct {
	Token string `json:"token,omitempty"`
	Email string `json:"email,omitempty"`
}

// AdminLoginRequest is the POST /api/admin/login payload.
type AdminLoginRequest struct {
	Password string `json:"password"`
}

// MessageResponse is the minimal success envelope.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SubscribeResponse reports a completed registration.
type SubscribeResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	SubscriberID string `json:"subscriber_id,omitempty"`
}

// AdminLoginResponse carries the issued bearer token.
type AdminLoginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SubscriberView is the admin-facing projection of one record.
type SubscriberView struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Status       string    `json:"status"`
	Source       string    `json:"source"`
	SubscribedAt time.Time `json:"subscribed_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// SubscriberListData wraps a page of subscribers.
type SubscriberListData struct {
	Subscribers []SubscriberView `json:"subscribers"`
	Pagination  Pagination       `json:"pagination"`
}

// SubscriberListResponse is the GET /api/subscribers envelope.
type SubscriberListResponse struct {
	Success bool               `json:"success"`
	Data    SubscriberListData `json:"data"`
}

// StatsResponse is the GET /api/subscribers/stats envelope.
type StatsResponse struct {
	Success bool         `json:"success"`
	Stats   domain.Stats `json:"stats"`
}

// NewSubscriberView projects a domain record, omitting the unsubscribe
// token and provenance fields.
func NewSubscriberView(sub domain.Subscriber) SubscriberView {
	return SubscriberView{
		ID:           sub.ID,
		Email:        sub.Email,
		Status:       string(sub.Status),
		Source:       sub.Source,
		SubscribedAt: sub.SubscribedAt,
		UpdatedAt:    sub.UpdatedAt,
	}
}
