package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatcore/internal/events"
)

func TestLocalBroadcaster_PublishReachesAllSubscribers(t *testing.T) {
	b := events.NewLocalBroadcaster()
	ctx := context.Background()

	ch1, unsub1, err := b.Subscribe(ctx, "room-1")
	require.NoError(t, err)
	defer unsub1()

	ch2, unsub2, err := b.Subscribe(ctx, "room-1")
	require.NoError(t, err)
	defer unsub2()

	require.NoError(t, b.Publish(ctx, "room-1", []byte("hello")))

	select {
	case got := <-ch1:
		assert.Equal(t, "hello", string(got))
	case <-time.After(time.Second):
		t.Fatal("subscriber 1 did not receive frame")
	}
	select {
	case got := <-ch2:
		assert.Equal(t, "hello", string(got))
	case <-time.After(time.Second):
		t.Fatal("subscriber 2 did not receive frame")
	}
}

func TestLocalBroadcaster_PublishIsScopedToRoom(t *testing.T) {
	b := events.NewLocalBroadcaster()
	ctx := context.Background()

	ch, unsub, err := b.Subscribe(ctx, "room-1")
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, b.Publish(ctx, "room-2", []byte("not for you")))

	select {
	case <-ch:
		t.Fatal("subscriber received a frame published to a different room")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := events.NewLocalBroadcaster()
	ctx := context.Background()

	ch, unsub, err := b.Subscribe(ctx, "room-1")
	require.NoError(t, err)

	unsub()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestLocalBroadcaster_PublishToEmptyRoomIsNoop(t *testing.T) {
	b := events.NewLocalBroadcaster()
	assert.NoError(t, b.Publish(context.Background(), "no-subscribers", []byte("frame")))
}

func TestNoopPublisher_DiscardsEverything(t *testing.T) {
	p := events.NoopPublisher{}
	err := p.Publish(context.Background(), events.DomainEvent{Kind: events.MessageCreated})
	assert.NoError(t, err)
	assert.NoError(t, p.Close())
}
