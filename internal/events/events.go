// Package events implements two eventing extension points: a pluggable
// cross-instance Broadcaster for the Room Registry's fan-out, and an
// optional Kafka-backed domain-event publisher for audit/search consumers.
// Neither sits on the Message Pipeline's critical path — Publisher failures
// are logged by the Message Pipeline, Broadcaster failures are discarded by
// the Room Registry, and neither is propagated.
package events

import (
	"context"
	"time"
)

// DomainEventKind names the kinds of message lifecycle events the
// Message Pipeline can emit.
type DomainEventKind string

const (
	MessageCreated DomainEventKind = "message.created"
	MessageEdited  DomainEventKind = "message.edited"
	MessageDeleted DomainEventKind = "message.deleted"
)

// DomainEvent is one committed message lifecycle transition.
type DomainEvent struct {
	Kind           DomainEventKind `json:"kind"`
	MessageID      string          `json:"message_id"`
	ConversationID string          `json:"conversation_id"`
	SenderID       string          `json:"sender_id"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// Publisher emits domain events to an audit/search consumer. The default
// wiring uses NoopPublisher; KafkaPublisher is opt-in via configuration.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent) error
	Close() error
}

// NoopPublisher discards every event. It is the default publisher so the
// Message Pipeline never depends on Kafka being configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, DomainEvent) error { return nil }
func (NoopPublisher) Close() error                               { return nil }

// Broadcaster is a pub/sub channel for a room's outbound frames, either
// in-process (LocalBroadcaster) or through Redis (RedisBroadcaster). The
// Room Registry is the sole caller and only calls Publish, after delivering
// the frame to its own subscribers; nothing in this module calls Subscribe.
type Broadcaster interface {
	// Publish sends a pre-encoded frame to every subscriber of room.
	Publish(ctx context.Context, room string, frame []byte) error
	// Subscribe returns a channel of frames published to room from any
	// instance, and an unsubscribe function the caller must invoke when done.
	Subscribe(ctx context.Context, room string) (<-chan []byte, func(), error)
}
