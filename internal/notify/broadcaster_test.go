package notify

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewBroadcaster()

	chA, cancelA := b.Subscribe("user-1")
	defer cancelA()
	chB, cancelB := b.Subscribe("user-1")
	defer cancelB()

	b.Publish("user-1", Event{Kind: EventJobCompleted, JobID: "job-1"})

	for _, ch := range []<-chan Event{chA, chB} {
		select {
		case ev := <-ch:
			if ev.Kind != EventJobCompleted || ev.JobID != "job-1" {
				t.Fatalf("unexpected event: %+v", ev)
			}
			if ev.Timestamp.IsZero() {
				t.Fatalf("expected timestamp to be set")
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber did not receive event")
		}
	}
}

func TestPublishIsScopedToUser(t *testing.T) {
	b := NewBroadcaster()

	mine, cancelMine := b.Subscribe("user-1")
	defer cancelMine()
	other, cancelOther := b.Subscribe("user-2")
	defer cancelOther()

	b.Publish("user-1", Event{Kind: EventUnitStarted, JobID: "job-1"})

	select {
	case <-mine:
	case <-time.After(time.Second):
		t.Fatalf("expected event for user-1")
	}

	select {
	case ev := <-other:
		t.Fatalf("user-2 should not receive user-1 events, got %+v", ev)
	default:
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	b := NewBroadcaster()

	_, cancel := b.Subscribe("user-1")
	defer cancel()

	// Overflow the buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish("user-1", Event{Kind: EventItemCompleted, JobID: "job-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on full subscriber buffer")
	}
}

func TestCancelRemovesSubscription(t *testing.T) {
	b := NewBroadcaster()

	ch, cancel := b.Subscribe("user-1")
	if got := b.SubscriberCount("user-1"); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}

	cancel()
	cancel() // idempotent

	if got := b.SubscriberCount("user-1"); got != 0 {
		t.Fatalf("expected 0 subscribers after cancel, got %d", got)
	}

	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}
