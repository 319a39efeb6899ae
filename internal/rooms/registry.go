// Package rooms implements the Room Registry: per-conversation subscriber
// bookkeeping and broadcast fan-out, independent of how a given connection
// maps to a user.
package rooms

import (
	"context"
	"sync"

	"chatcore/internal/events"
)

const outboundQueueSize = 64

// Metrics receives counters the Room Registry updates as subscribers join,
// leave, and get evicted. Implementations must be safe for concurrent use.
type Metrics interface {
	RoomCount(delta int)
	SubscriberCount(delta int)
	MessageBroadcast()
	SlowConsumerEvicted()
}

type noopMetrics struct{}

func (noopMetrics) RoomCount(int)          {}
func (noopMetrics) SubscriberCount(int)    {}
func (noopMetrics) MessageBroadcast()      {}
func (noopMetrics) SlowConsumerEvicted()   {}

// Subscriber is a single connection's outbound side, identified by a
// stable handle the Connection Supervisor assigns.
type Subscriber struct {
	ID       string
	UserID   string
	Outbound chan []byte
}

type room struct {
	mu          sync.Mutex // serializes broadcasts and membership changes for this conversation
	subscribers map[string]*Subscriber
}

// Registry tracks, per conversation, the set of subscribed connections and
// fans outbound frames out to their bounded queues. A slow consumer whose
// queue fills is evicted without blocking delivery to anyone else.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*room
	bcast   events.Broadcaster
	metrics Metrics
}

func NewRegistry(bcast events.Broadcaster, metrics Metrics) *Registry {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Registry{
		rooms:   make(map[string]*room),
		bcast:   bcast,
		metrics: metrics,
	}
}

// Join adds sub to conversationID's room, creating the room if necessary.
func (r *Registry) Join(conversationID string, sub *Subscriber) {
	rm := r.roomFor(conversationID, true)
	rm.mu.Lock()
	rm.subscribers[sub.ID] = sub
	rm.mu.Unlock()
	r.metrics.SubscriberCount(1)
}

// Leave removes one subscriber from conversationID's room.
func (r *Registry) Leave(conversationID, subscriberID string) {
	r.mu.RLock()
	rm, ok := r.rooms[conversationID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	rm.mu.Lock()
	if _, existed := rm.subscribers[subscriberID]; existed {
		delete(rm.subscribers, subscriberID)
		r.metrics.SubscriberCount(-1)
	}
	empty := len(rm.subscribers) == 0
	rm.mu.Unlock()

	if empty {
		r.mu.Lock()
		if rm2, ok := r.rooms[conversationID]; ok && len(rm2.subscribers) == 0 {
			delete(r.rooms, conversationID)
			r.metrics.RoomCount(-1)
		}
		r.mu.Unlock()
	}
}

// LeaveAll removes subscriberID from every room it belongs to. The
// Connection Supervisor calls this on disconnect.
func (r *Registry) LeaveAll(subscriberID string) {
	r.mu.RLock()
	conversationIDs := make([]string, 0, len(r.rooms))
	for id, rm := range r.rooms {
		rm.mu.Lock()
		_, present := rm.subscribers[subscriberID]
		rm.mu.Unlock()
		if present {
			conversationIDs = append(conversationIDs, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range conversationIDs {
		r.Leave(id, subscriberID)
	}
}

// Broadcast delivers frame to every current subscriber of conversationID,
// serialized against other broadcasts to the same room so subscribers
// observe frames in commit order. A subscriber whose outbound queue is
// full is evicted (domain.ErrSlowConsumer semantics) rather than blocking
// delivery to the rest of the room.
func (r *Registry) Broadcast(conversationID string, frame []byte) {
	rm := r.roomFor(conversationID, false)
	if rm != nil {
		rm.mu.Lock()
		for id, sub := range rm.subscribers {
			select {
			case sub.Outbound <- frame:
			default:
				delete(rm.subscribers, id)
				close(sub.Outbound)
				r.metrics.SubscriberCount(-1)
				r.metrics.SlowConsumerEvicted()
			}
		}
		rm.mu.Unlock()
	}
	r.metrics.MessageBroadcast()

	if r.bcast != nil {
		_ = r.bcast.Publish(context.Background(), conversationID, frame)
	}
}

// Snapshot returns the subscribers currently in conversationID's room, as a
// fresh slice that is safe to iterate without holding any registry lock.
func (r *Registry) Snapshot(conversationID string) []*Subscriber {
	rm := r.roomFor(conversationID, false)
	if rm == nil {
		return nil
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	out := make([]*Subscriber, 0, len(rm.subscribers))
	for _, sub := range rm.subscribers {
		out = append(out, sub)
	}
	return out
}

func (r *Registry) roomFor(conversationID string, create bool) *room {
	r.mu.RLock()
	rm, ok := r.rooms[conversationID]
	r.mu.RUnlock()
	if ok || !create {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok := r.rooms[conversationID]; ok {
		return rm
	}
	rm = &room{subscribers: make(map[string]*Subscriber)}
	r.rooms[conversationID] = rm
	r.metrics.RoomCount(1)
	return rm
}

// NewSubscriber allocates a Subscriber with a bounded outbound queue.
func NewSubscriber(id, userID string) *Subscriber {
	return &Subscriber{ID: id, UserID: userID, Outbound: make(chan []byte, outboundQueueSize)}
}
