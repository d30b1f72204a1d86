// ABOUTME: Tests for the generic fan-out Broadcaster
// ABOUTME: Covers subscribe, publish, unsubscribe, context cancellation, concurrency

package broadcast

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_SingleSubscriberReceivesValue(t *testing.T) {
	b := New[string](nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context())
	b.Publish("evt-1")

	select {
	case received := <-ch:
		assert.Equal(t, "evt-1", received)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
}

func TestBroadcaster_MultipleSubscribersReceiveSameValue(t *testing.T) {
	b := New[int](nil)
	defer b.Close()

	ctx := t.Context()
	ch1, _ := b.Subscribe(ctx)
	ch2, _ := b.Subscribe(ctx)
	ch3, _ := b.Subscribe(ctx)

	b.Publish(42)

	for i, ch := range []<-chan int{ch1, ch2, ch3} {
		select {
		case received := <-ch:
			assert.Equal(t, 42, received, "subscriber %d got wrong value", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestBroadcaster_SlowConsumerDoesNotBlockPublisher(t *testing.T) {
	b := New[int](nil)
	defer b.Close()

	ctx := t.Context()

	// Subscribe but never read from the first channel
	_, _ = b.Subscribe(ctx)
	ch2, _ := b.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		for i := range 3 * subscriberBufferSize {
			b.Publish(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}

	assert.Len(t, ch2, subscriberBufferSize, "fast consumer buffer should be full")
}

func TestBroadcaster_ContextCancellationCleansUp(t *testing.T) {
	b := New[string](nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx)
	assert.Equal(t, 1, b.Len())

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after context cancel")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
	assert.Equal(t, 0, b.Len())
}

func TestBroadcaster_ManualUnsubscribe(t *testing.T) {
	b := New[string](nil)
	defer b.Close()

	ch, subID := b.Subscribe(t.Context())
	b.Unsubscribe(subID)

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after unsubscribe")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}

	// Publishing and unsubscribing again should not panic
	b.Publish("after-unsub")
	b.Unsubscribe(subID)
}

func TestBroadcaster_CloseClosesAllSubscriptions(t *testing.T) {
	b := New[string](nil)

	ch1, _ := b.Subscribe(t.Context())
	ch2, _ := b.Subscribe(t.Context())

	b.Close()

	for i, ch := range []<-chan string{ch1, ch2} {
		select {
		case _, ok := <-ch:
			assert.False(t, ok, "channel %d should be closed after Close()", i)
		case <-time.After(time.Second):
			t.Fatalf("channel %d not closed after Close()", i)
		}
	}

	late, _ := b.Subscribe(t.Context())
	_, ok := <-late
	assert.False(t, ok, "subscribing after Close returns a closed channel")
	b.Publish("ignored")
}

func TestBroadcaster_ConcurrentPublishSubscribe(t *testing.T) {
	b := New[string](nil)
	defer b.Close()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for range 10 {
		wg.Go(func() {
			subCtx, subCancel := context.WithCancel(ctx)
			defer subCancel()
			ch, _ := b.Subscribe(subCtx)
			for range 5 {
				select {
				case <-ch:
				case <-time.After(500 * time.Millisecond):
					return
				}
			}
		})
	}

	for range 10 {
		wg.Go(func() {
			for range 10 {
				b.Publish("concurrent")
			}
		})
	}

	wg.Wait()
}

func TestBroadcaster_SubscribeReturnsUniqueIDs(t *testing.T) {
	b := New[string](nil)
	defer b.Close()

	_, id1 := b.Subscribe(t.Context())
	_, id2 := b.Subscribe(t.Context())

	require.NotEqual(t, id1, id2)
}

func TestBroadcaster_CloseReleasesCleanupGoroutines(t *testing.T) {
	before := runtime.NumGoroutine()

	b := New[int](nil)
	for i := 0; i < 50; i++ {
		// Never cancelled: only Close can end the cleanup goroutine.
		b.Subscribe(context.Background())
	}
	require.GreaterOrEqual(t, runtime.NumGoroutine(), before+50)

	b.Close()
	b.Close()

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, b.Len())
}
