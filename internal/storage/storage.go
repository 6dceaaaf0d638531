package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vibecodezero/subscriber-service/internal/domain"
)

// Sentinel errors shared by all adapter implementations. Backend-specific
// failures are wrapped with Unavailable so their shapes never leak upward.
var (
	ErrNotFound        = errors.New("subscriber not found")
	ErrDuplicateKey    = errors.New("duplicate email")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnavailable     = errors.New("storage unavailable")
)

// Unavailable wraps a backend error as ErrUnavailable, keeping the cause
// text for server-side logs only.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Filter narrows Count and List queries.
type Filter struct {
	// Status limits results to one lifecycle state when non-empty.
	Status domain.SubscriberStatus
	// SubscribedSince limits results to records with SubscribedAt at or
	// after the given instant when non-zero.
	SubscribedSince time.Time
}

// Page is one page of subscribers ordered by SubscribedAt descending.
type Page struct {
	Records    []domain.Subscriber
	TotalCount int
}

// Adapter is the persistence boundary the registry depends on. Email
// uniqueness is enforced at this layer and is authoritative under
// concurrent inserts.
type Adapter interface {
	FindByEmail(ctx context.Context, email string) (*domain.Subscriber, error)
	FindByToken(ctx context.Context, token string) (*domain.Subscriber, error)
	Insert(ctx context.Context, sub *domain.Subscriber) error
	UpdateStatus(ctx context.Context, email string, status domain.SubscriberStatus) (*domain.Subscriber, error)
	Count(ctx context.Context, filter Filter) (int, error)
	List(ctx context.Context, page, pageSize int, filter Filter) (*Page, error)
}

// SourceCounter is implemented by adapters that can aggregate per-source
// counts, used by the stats CLI.
type SourceCounter interface {
	CountBySource(ctx context.Context) ([]domain.SourceCount, error)
}

func validatePagination(page, pageSize int) error {
	if page <= 0 {
		return fmt.Errorf("%w: page must be >= 1", ErrInvalidArgument)
	}
	if pageSize <= 0 {
		return fmt.Errorf("%w: page size must be >= 1", ErrInvalidArgument)
	}
	return nil
}

func matches(sub *domain.Subscriber, filter Filter) bool {
	if filter.Status != "" && sub.Status != filter.Status {
		return false
	}
	if !filter.SubscribedSince.IsZero() && sub.SubscribedAt.Before(filter.SubscribedSince) {
		return false
	}
	return true
}
