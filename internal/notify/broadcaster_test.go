// ABOUTME: Tests for the notification broadcaster: fan-out, topic isolation,
// ABOUTME: drop-on-full, and context-driven cleanup

package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllTopicSubscribers(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()
	ctx := context.Background()

	ch1, _ := b.Subscribe(ctx, TopicLogs)
	ch2, _ := b.Subscribe(ctx, TopicLogs)

	b.Publish(TopicLogs, "LOG_CAPTURED", map[string]any{"level": "error"})

	for _, ch := range []<-chan *Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, TopicLogs, ev.Topic)
			assert.Equal(t, "LOG_CAPTURED", ev.Action)
			assert.NotZero(t, ev.Timestamp)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestPublishRespectsTopicBoundary(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	perfCh, _ := b.Subscribe(context.Background(), TopicPerformance)
	b.Publish(TopicLogs, "LOG_CAPTURED", nil)

	select {
	case ev := <-perfCh:
		t.Fatalf("unexpected cross-topic event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishWithoutSubscribersIsNoOp(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()
	assert.NotPanics(t, func() {
		b.Publish(TopicStatus, "GET_STATUS", nil)
	})
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(context.Background(), TopicLogs)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBufferSize*2; i++ {
			b.Publish(TopicLogs, "LOG_CAPTURED", i)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber channel")
	}
	assert.Len(t, ch, subscriberBufferSize)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, id := b.Subscribe(context.Background(), TopicSettings)
	b.Unsubscribe(TopicSettings, id)

	_, open := <-ch
	assert.False(t, open)

	// Repeated unsubscription is harmless
	assert.NotPanics(t, func() { b.Unsubscribe(TopicSettings, id) })
}

func TestContextCancellationCleansUp(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, TopicLogs)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}
