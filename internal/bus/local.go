// Package bus provides an in-process signal bus used when Redis is
// disabled. It mirrors the Redis Pub/Sub semantics closely enough for the
// WebSocket hub: glob-style channel patterns, fire-and-forget delivery,
// and subscriptions torn down on context cancellation.
package bus

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/rosterfi/rosterfi/internal/domain"
)

// subscriberBuffer is the per-subscriber channel depth. Slow subscribers
// drop messages rather than block the publisher.
const subscriberBuffer = 128

// LocalBus implements domain.SignalBus over process-local channels.
type LocalBus struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	pattern string
	ch      chan []byte
}

// NewLocal creates an empty in-process bus.
func NewLocal() *LocalBus {
	return &LocalBus{subs: make(map[*subscriber]struct{})}
}

// Publish delivers payload to every subscriber whose pattern matches the
// channel. Delivery is best effort; a subscriber with a full buffer misses
// the message.
func (b *LocalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if !matches(sub.pattern, channel) {
			continue
		}
		select {
		case sub.ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscription for the given channel or glob pattern
// and returns a read-only payload channel. The subscription is removed and
// the channel closed when ctx is cancelled.
func (b *LocalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := &subscriber{
		pattern: channel,
		ch:      make(chan []byte, subscriberBuffer),
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, sub)
		// Closed under the write lock so no publisher is mid-send.
		close(sub.ch)
		b.mu.Unlock()
	}()

	return sub.ch, nil
}

// matches reports whether a published channel name matches a subscription
// pattern. Patterns without glob characters require an exact match.
func matches(pattern, channel string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return pattern == channel
	}
	ok, err := path.Match(pattern, channel)
	return err == nil && ok
}

// Compile-time interface check.
var _ domain.SignalBus = (*LocalBus)(nil)
