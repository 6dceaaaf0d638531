package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var got []string
	d.Subscribe(EventSubscriberCreated, func(ctx context.Context, e Event) error {
		got = append(got, "first:"+e.Email)
		return nil
	})
	d.Subscribe(EventSubscriberCreated, func(ctx context.Context, e Event) error {
		got = append(got, "second:"+e.Email)
		return nil
	})
	d.Subscribe(EventSubscriberUnsubscribed, func(ctx context.Context, e Event) error {
		t.Error("unrelated handler invoked")
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventSubscriberCreated, Email: "a@b.com"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(got) != 2 || got[0] != "first:a@b.com" || got[1] != "second:a@b.com" {
		t.Errorf("deliveries = %v", got)
	}
}

func TestDispatcherContinuesPastHandlerErrors(t *testing.T) {
	d := NewInMemoryDispatcher()

	delivered := false
	d.Subscribe(EventSubscriberCreated, func(ctx context.Context, e Event) error {
		return errors.New("handler failure")
	})
	d.Subscribe(EventSubscriberCreated, func(ctx context.Context, e Event) error {
		delivered = true
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventSubscriberCreated}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !delivered {
		t.Error("handler after a failing one was not invoked")
	}
}
