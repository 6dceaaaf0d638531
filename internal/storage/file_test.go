package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vibecodezero/subscriber-service/internal/domain"
)

func newTestFileAdapter(t *testing.T) *FileAdapter {
	t.Helper()
	adapter, err := NewFileAdapter(filepath.Join(t.TempDir(), "subscribers.json"))
	if err != nil {
		t.Fatalf("NewFileAdapter: %v", err)
	}
	return adapter
}

func testSubscriber(email string, subscribedAt time.Time) *domain.Subscriber {
	return &domain.Subscriber{
		ID:               "id-" + email,
		Email:            email,
		Status:           domain.SubscriberStatusActive,
		Source:           domain.DefaultSource,
		UnsubscribeToken: "token-" + email,
		SubscribedAt:     subscribedAt,
		CreatedAt:        subscribedAt,
		UpdatedAt:        subscribedAt,
	}
}

func TestFileAdapterInsertAndFind(t *testing.T) {
	adapter := newTestFileAdapter(t)
	ctx := context.Background()
	now := time.Now().UTC()

	sub := testSubscriber("a@b.com", now)
	if err := adapter.Insert(ctx, sub); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := adapter.FindByEmail(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if got.ID != sub.ID || got.Status != domain.SubscriberStatusActive {
		t.Errorf("unexpected record: %+v", got)
	}

	byToken, err := adapter.FindByToken(ctx, sub.UnsubscribeToken)
	if err != nil {
		t.Fatalf("FindByToken: %v", err)
	}
	if byToken.Email != "a@b.com" {
		t.Errorf("FindByToken email = %s", byToken.Email)
	}

	if _, err := adapter.FindByEmail(ctx, "ghost@b.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown email: got %v, want ErrNotFound", err)
	}
}

func TestFileAdapterDuplicateInsert(t *testing.T) {
	adapter := newTestFileAdapter(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := adapter.Insert(ctx, testSubscriber("a@b.com", now)); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	err := adapter.Insert(ctx, testSubscriber("a@b.com", now))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("got %v, want ErrDuplicateKey", err)
	}
}

func TestFileAdapterUpdateStatus(t *testing.T) {
	adapter := newTestFileAdapter(t)
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)

	if err := adapter.Insert(ctx, testSubscriber("a@b.com", past)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	updated, err := adapter.UpdateStatus(ctx, "a@b.com", domain.SubscriberStatusUnsubscribed)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != domain.SubscriberStatusUnsubscribed {
		t.Errorf("status = %s, want unsubscribed", updated.Status)
	}
	if !updated.UpdatedAt.After(past) {
		t.Errorf("UpdatedAt not bumped: %v", updated.UpdatedAt)
	}
	if !updated.SubscribedAt.Equal(past) {
		t.Errorf("SubscribedAt mutated: %v", updated.SubscribedAt)
	}

	if _, err := adapter.UpdateStatus(ctx, "ghost@b.com", domain.SubscriberStatusActive); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown email: got %v, want ErrNotFound", err)
	}
}

func TestFileAdapterListOrderingAndPagination(t *testing.T) {
	adapter := newTestFileAdapter(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 15; i++ {
		sub := testSubscriber(fmt.Sprintf("u%02d@b.com", i), base.Add(time.Duration(i)*time.Hour))
		if i%3 == 0 {
			sub.Status = domain.SubscriberStatusUnsubscribed
		}
		if err := adapter.Insert(ctx, sub); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	page, err := adapter.List(ctx, 1, 10, Filter{Status: domain.SubscriberStatusActive})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalCount != 10 {
		t.Errorf("TotalCount = %d, want 10", page.TotalCount)
	}
	if len(page.Records) != 10 {
		t.Errorf("len(Records) = %d, want 10", len(page.Records))
	}
	for i, sub := range page.Records {
		if sub.Status != domain.SubscriberStatusActive {
			t.Errorf("record %d has status %s", i, sub.Status)
		}
		if i > 0 && sub.SubscribedAt.After(page.Records[i-1].SubscribedAt) {
			t.Errorf("records not in descending order at %d", i)
		}
	}

	second, err := adapter.List(ctx, 2, 10, Filter{})
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if second.TotalCount != 15 || len(second.Records) != 5 {
		t.Errorf("page 2: total %d len %d, want 15/5", second.TotalCount, len(second.Records))
	}

	if _, err := adapter.List(ctx, 1, 0, Filter{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("pageSize 0: got %v, want ErrInvalidArgument", err)
	}
	if _, err := adapter.List(ctx, 0, 10, Filter{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("page 0: got %v, want ErrInvalidArgument", err)
	}
}

func TestFileAdapterCountFilters(t *testing.T) {
	adapter := newTestFileAdapter(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		sub := testSubscriber(fmt.Sprintf("u%d@b.com", i), base.AddDate(0, 0, -i))
		if err := adapter.Insert(ctx, sub); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	total, err := adapter.Count(ctx, Filter{})
	if err != nil || total != 6 {
		t.Fatalf("Count all = %d err %v, want 6", total, err)
	}

	recent, err := adapter.Count(ctx, Filter{SubscribedSince: base.AddDate(0, 0, -2)})
	if err != nil || recent != 3 {
		t.Fatalf("Count since -2d = %d err %v, want 3", recent, err)
	}
}

func TestFileAdapterDurability(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subscribers.json")
	ctx := context.Background()

	adapter, err := NewFileAdapter(path)
	if err != nil {
		t.Fatalf("NewFileAdapter: %v", err)
	}
	if err := adapter.Insert(ctx, testSubscriber("a@b.com", time.Now().UTC())); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	reopened, err := NewFileAdapter(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.FindByEmail(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("FindByEmail after reopen: %v", err)
	}
	if got.Email != "a@b.com" {
		t.Errorf("unexpected record after reopen: %+v", got)
	}
}

func TestFileAdapterConcurrentInserts(t *testing.T) {
	adapter := newTestFileAdapter(t)
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub := testSubscriber("same@b.com", time.Now().UTC())
			sub.ID = fmt.Sprintf("id-%d", i)
			sub.UnsubscribeToken = fmt.Sprintf("token-%d", i)
			results <- adapter.Insert(ctx, sub)
		}(i)
	}
	wg.Wait()
	close(results)

	wins, dups := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrDuplicateKey):
			dups++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || dups != attempts-1 {
		t.Fatalf("wins=%d dups=%d, want exactly one winner", wins, dups)
	}

	count, err := adapter.Count(ctx, Filter{})
	if err != nil || count != 1 {
		t.Fatalf("Count = %d err %v, want 1", count, err)
	}
}
