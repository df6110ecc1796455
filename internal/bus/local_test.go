package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvTimeout(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestPublishExactChannel(t *testing.T) {
	b := NewLocal()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, "trade:status")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "trade:status", []byte("update")))
	assert.Equal(t, []byte("update"), recvTimeout(t, ch))
}

func TestPublishPatternMatch(t *testing.T) {
	b := NewLocal()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, "trade:*")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "trade:status", []byte("a")))
	assert.Equal(t, []byte("a"), recvTimeout(t, ch))

	// Non-matching channel is not delivered.
	require.NoError(t, b.Publish(ctx, "session:auth", []byte("b")))
	select {
	case msg := <-ch:
		t.Fatalf("unexpected delivery: %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeClosedOnCancel(t *testing.T) {
	b := NewLocal()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := b.Subscribe(ctx, "trade:status")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// Publishing after teardown is a no-op, not a panic.
	require.NoError(t, b.Publish(context.Background(), "trade:status", []byte("late")))
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewLocal()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := b.Subscribe(ctx, "trade:status")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			_ = b.Publish(ctx, "trade:status", []byte("x"))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
}
