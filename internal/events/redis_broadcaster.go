package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisBroadcaster publishes room frames to, and subscribes to, one Redis
// Pub/Sub channel per room. It sits behind the same Broadcaster interface as
// LocalBroadcaster, so the Room Registry's code is unaware which is wired
// in. The Registry only publishes; nothing in this module subscribes, so
// frames published by one instance are not delivered to another instance's
// subscribers.
type RedisBroadcaster struct {
	client *redis.Client
	log    *logrus.Entry
}

func NewRedisBroadcaster(client *redis.Client, log *logrus.Entry) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, log: log}
}

var _ Broadcaster = (*RedisBroadcaster)(nil)

func (b *RedisBroadcaster) Publish(ctx context.Context, room string, frame []byte) error {
	if err := b.client.Publish(ctx, channelName(room), frame).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBroadcaster) Subscribe(ctx context.Context, room string) (<-chan []byte, func(), error) {
	sub := b.client.Subscribe(ctx, channelName(room))
	if _, err := sub.Receive(ctx); err != nil {
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan []byte, 32)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	unsubscribe := func() {
		if err := sub.Close(); err != nil {
			b.log.WithError(err).Warn("redis unsubscribe failed")
		}
	}
	return out, unsubscribe, nil
}

func channelName(room string) string {
	return "chatcore:room:" + room
}
