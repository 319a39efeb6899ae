// Package metrics instruments the concurrency-heavy components with Prometheus counters and gauges, exposed at
// /api/metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements rooms.Metrics against Prometheus instruments, plus
// tracks active WebSocket connections for the Connection Supervisor.
type Collector struct {
	activeConnections prometheus.Gauge
	roomCount         prometheus.Gauge
	subscriberCount   prometheus.Gauge
	messagesBroadcast prometheus.Counter
	slowConsumerEvict prometheus.Counter
}

func NewCollector() *Collector {
	c := &Collector{
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatcore_active_connections",
			Help: "Currently open WebSocket connections.",
		}),
		roomCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatcore_room_count",
			Help: "Conversations with at least one connected subscriber.",
		}),
		subscriberCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatcore_subscriber_count",
			Help: "Total subscribers across all rooms.",
		}),
		messagesBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatcore_messages_broadcast_total",
			Help: "Frames broadcast to rooms.",
		}),
		slowConsumerEvict: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatcore_slow_consumer_evictions_total",
			Help: "Subscribers evicted for a full outbound queue.",
		}),
	}
	prometheus.MustRegister(
		c.activeConnections,
		c.roomCount,
		c.subscriberCount,
		c.messagesBroadcast,
		c.slowConsumerEvict,
	)
	return c
}

// rooms.Metrics implementation.

func (c *Collector) RoomCount(delta int)       { c.roomCount.Add(float64(delta)) }
func (c *Collector) SubscriberCount(delta int) { c.subscriberCount.Add(float64(delta)) }
func (c *Collector) MessageBroadcast()         { c.messagesBroadcast.Inc() }
func (c *Collector) SlowConsumerEvicted()      { c.slowConsumerEvict.Inc() }

func (c *Collector) ConnectionOpened() { c.activeConnections.Inc() }
func (c *Collector) ConnectionClosed() { c.activeConnections.Dec() }

// Handler exposes the registered metrics for GET /api/metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
