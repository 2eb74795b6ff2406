// ABOUTME: In-memory fan-out of working-list update notifications.
// ABOUTME: Subscribers get a nudge per mutation and pull Snapshot themselves.

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber. A full
// buffer means the subscriber is behind; coalescing nudges is fine since
// receivers re-read the whole snapshot anyway.
const subscriberBufferSize = 64

// Broadcaster provides in-memory pub/sub for coordinator state changes.
// Publishing never blocks: a notification to a full subscriber is dropped.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan struct{}
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan struct{}),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber. Returns the notification channel and a
// subscription id. The subscription is cleaned up when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan struct{}, string) {
	subID := uuid.New().String()
	ch := make(chan struct{}, subscriberBufferSize)

	b.mu.Lock()
	b.subscribers[subID] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	ch, ok := b.subscribers[subID]
	if ok {
		delete(b.subscribers, subID)
	}
	b.mu.Unlock()

	if ok {
		close(ch)
	}
}

// Publish nudges every subscriber. Non-blocking: slow subscribers miss
// intermediate nudges, never the final state. Sends happen under the read
// lock so a concurrent Unsubscribe cannot close a channel mid-send.
func (b *Broadcaster) Publish() {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
