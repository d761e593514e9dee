package notify

import (
	"sync"
	"time"

	"tender-backend/internal/shared/telemetry"
)

const subscriberBuffer = 64

// Broadcaster fans analysis events out to per-user subscribers. Sends never
// block: a subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{} // userId -> subscriber channels
}

// NewBroadcaster constructs a Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe registers a new subscriber for a user. The returned cancel
// function removes the subscription and closes the channel.
func (b *Broadcaster) Subscribe(userId string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[userId] == nil {
		b.subs[userId] = make(map[chan Event]struct{})
	}
	b.subs[userId][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if set, ok := b.subs[userId]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(b.subs, userId)
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber of the user. Events to users
// with no subscribers are discarded.
func (b *Broadcaster) Publish(userId string, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[userId] {
		select {
		case ch <- event:
		default:
			telemetry.Warn("notify.dropped", map[string]any{
				"kind":  event.Kind,
				"jobId": event.JobID,
			})
		}
	}
}

// SubscriberCount reports active subscriptions for a user.
func (b *Broadcaster) SubscriberCount(userId string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userId])
}
