package registry

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vibecodezero/subscriber-service/internal/domain"
	"github.com/vibecodezero/subscriber-service/internal/events"
	"github.com/vibecodezero/subscriber-service/internal/storage"
	apperrors "github.com/vibecodezero/subscriber-service/pkg/util"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RegisterOutcome classifies the result of a register call.
type RegisterOutcome string

const (
	OutcomeCreated       RegisterOutcome = "created"
	OutcomeAlreadyActive RegisterOutcome = "already_active"
	OutcomeReactivated   RegisterOutcome = "reactivated"
)

// UnsubscribeOutcome classifies the result of an unsubscribe call.
type UnsubscribeOutcome string

const (
	OutcomeUnsubscribed        UnsubscribeOutcome = "unsubscribed"
	OutcomeAlreadyUnsubscribed UnsubscribeOutcome = "already_unsubscribed"
)

// RegisterResult is the structured outcome of a register call.
type RegisterResult struct {
	Outcome    RegisterOutcome
	Subscriber *domain.Subscriber
}

// UnsubscribeResult is the structured outcome of an unsubscribe call.
type UnsubscribeResult struct {
	Outcome    UnsubscribeOutcome
	Subscriber *domain.Subscriber
}

// RegisterMeta carries the origin tag and request provenance for new records.
type RegisterMeta struct {
	Source    string
	IPAddress string
	UserAgent string
}

// UnsubscribeRequest identifies the record to unsubscribe, by token when
// present, otherwise by email.
type UnsubscribeRequest struct {
	Token string
	Email string
}

// Registry applies the subscription lifecycle (register / reactivate /
// unsubscribe) over a deduplicated store. It holds no mutable state of its
// own; email uniqueness is enforced by the storage adapter and is
// authoritative under concurrent registrations.
type Registry struct {
	store         storage.Adapter
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	defaultSource string
	now           func() time.Time
}

// Option customizes registry construction.
type Option func(*Registry)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithDefaultSource sets the origin tag applied when a registration does
// not carry one.
func WithDefaultSource(source string) Option {
	return func(r *Registry) { r.defaultSource = source }
}

// New constructs a registry over the given storage adapter.
func New(store storage.Adapter, dispatcher events.Dispatcher, logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		store:         store,
		dispatcher:    dispatcher,
		logger:        logger,
		defaultSource: domain.DefaultSource,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates a subscriber for an unseen email, reports duplicates as
// AlreadyActive, and reactivates previously unsubscribed emails. A
// DuplicateKey from the store (lost check-then-act race) is recovered by
// re-reading the record, never surfaced to the caller.
func (r *Registry) Register(ctx context.Context, email string, meta RegisterMeta) (*RegisterResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || !emailPattern.MatchString(email) {
		return nil, apperrors.NewInvalidEmail("a valid email address is required")
	}

	existing, err := r.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return r.registerExisting(ctx, existing)
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, apperrors.MapError(err)
	}

	now := r.now()
	source := meta.Source
	if source == "" {
		source = r.defaultSource
	}
	sub := &domain.Subscriber{
		ID:               uuid.NewString(),
		Email:            email,
		Status:           domain.SubscriberStatusActive,
		Source:           source,
		UnsubscribeToken: uuid.NewString(),
		IPAddress:        meta.IPAddress,
		UserAgent:        meta.UserAgent,
		SubscribedAt:     now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = r.store.Insert(ctx, sub)
	if errors.Is(err, storage.ErrDuplicateKey) {
		// A concurrent register won the insert; fall back to the
		// already-active / reactivate path.
		existing, err := r.store.FindByEmail(ctx, email)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		return r.registerExisting(ctx, existing)
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	r.logger.Info("subscriber created", zap.String("subscriber_id", sub.ID), zap.String("source", sub.Source))
	r.publish(ctx, events.Event{
		Type:         events.EventSubscriberCreated,
		SubscriberID: sub.ID,
		Email:        sub.Email,
		Payload: events.SubscriberCreatedPayload{
			Source:    sub.Source,
			IPAddress: sub.IPAddress,
			UserAgent: sub.UserAgent,
		},
	})
	return &RegisterResult{Outcome: OutcomeCreated, Subscriber: sub}, nil
}

func (r *Registry) registerExisting(ctx context.Context, existing *domain.Subscriber) (*RegisterResult, error) {
	if existing.Status == domain.SubscriberStatusActive {
		return &RegisterResult{Outcome: OutcomeAlreadyActive, Subscriber: existing}, nil
	}

	updated, err := r.store.UpdateStatus(ctx, existing.Email, domain.SubscriberStatusActive)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	r.logger.Info("subscriber reactivated", zap.String("subscriber_id", updated.ID))
	r.publish(ctx, events.Event{
		Type:         events.EventSubscriberReactivated,
		SubscriberID: updated.ID,
		Email:        updated.Email,
	})
	return &RegisterResult{Outcome: OutcomeReactivated, Subscriber: updated}, nil
}

// Unsubscribe resolves the record by token when given, else by email, and
// transitions it to unsubscribed. Already-unsubscribed records are reported
// as such without side effects.
func (r *Registry) Unsubscribe(ctx context.Context, req UnsubscribeRequest) (*UnsubscribeResult, error) {
	var (
		existing *domain.Subscriber
		err      error
	)
	switch {
	case req.Token != "":
		existing, err = r.store.FindByToken(ctx, req.Token)
	case strings.TrimSpace(req.Email) != "":
		existing, err = r.store.FindByEmail(ctx, strings.TrimSpace(req.Email))
	default:
		return nil, apperrors.NewValidationError("an unsubscribe token or email address is required", nil)
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if existing.Status == domain.SubscriberStatusUnsubscribed {
		return &UnsubscribeResult{Outcome: OutcomeAlreadyUnsubscribed, Subscriber: existing}, nil
	}

	updated, err := r.store.UpdateStatus(ctx, existing.Email, domain.SubscriberStatusUnsubscribed)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	r.logger.Info("subscriber unsubscribed", zap.String("subscriber_id", updated.ID))
	r.publish(ctx, events.Event{
		Type:         events.EventSubscriberUnsubscribed,
		SubscriberID: updated.ID,
		Email:        updated.Email,
		Payload:      events.SubscriberUnsubscribedPayload{ViaToken: req.Token != ""},
	})
	return &UnsubscribeResult{Outcome: OutcomeUnsubscribed, Subscriber: updated}, nil
}

// Statistics aggregates subscriber counts. Window boundaries are UTC
// midnights: "today" starts at the current UTC day, the week and month
// windows start 7 and 30 days before it, inclusive of the current day.
func (r *Registry) Statistics(ctx context.Context) (*domain.Stats, error) {
	today := startOfUTCDay(r.now())

	var stats domain.Stats
	counts := []struct {
		dest   *int
		filter storage.Filter
	}{
		{&stats.Total, storage.Filter{}},
		{&stats.Active, storage.Filter{Status: domain.SubscriberStatusActive}},
		{&stats.Unsubscribed, storage.Filter{Status: domain.SubscriberStatusUnsubscribed}},
		{&stats.Today, storage.Filter{SubscribedSince: today}},
		{&stats.Week, storage.Filter{SubscribedSince: today.AddDate(0, 0, -7)}},
		{&stats.Month, storage.Filter{SubscribedSince: today.AddDate(0, 0, -30)}},
	}

	for _, c := range counts {
		n, err := r.store.Count(ctx, c.filter)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		*c.dest = n
	}
	return &stats, nil
}

// List returns one page of subscribers, newest first. statusFilter "all"
// or empty removes the status predicate.
func (r *Registry) List(ctx context.Context, page, pageSize int, statusFilter string) (*storage.Page, error) {
	filter := storage.Filter{}
	switch statusFilter {
	case "", "all":
	default:
		status := domain.SubscriberStatus(statusFilter)
		if !status.Valid() {
			return nil, apperrors.NewValidationError("unknown status filter", map[string]any{"status": statusFilter})
		}
		filter.Status = status
	}

	result, err := r.store.List(ctx, page, pageSize, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return result, nil
}

func (r *Registry) publish(ctx context.Context, event events.Event) {
	if r.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = r.now()
	_ = r.dispatcher.Publish(ctx, event)
}

func startOfUTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
