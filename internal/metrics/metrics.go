// Package metrics exposes the server's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles all collectors. A single instance is shared by the AIC
// surface, the room registry, and the transport hub.
type Metrics struct {
	IntentsTotal    *prometheus.CounterVec
	EventsAppended  *prometheus.CounterVec
	ChatMessages    prometheus.Counter
	RateLimited     prometheus.Counter
	RequestDuration *prometheus.HistogramVec
	RoomOccupancy   *prometheus.GaugeVec
	RoomsActive     prometheus.Gauge
	WSClients       prometheus.Gauge
}

// New registers all collectors on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IntentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tilemud_intents_total",
			Help: "Room intents processed, by kind and result.",
		}, []string{"kind", "result"}),
		EventsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tilemud_events_appended_total",
			Help: "Events appended to room journals, by type.",
		}, []string{"type"}),
		ChatMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "tilemud_chat_messages_total",
			Help: "Accepted chat messages.",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "tilemud_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tilemud_request_duration_seconds",
			Help:    "AIC request latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		RoomOccupancy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tilemud_room_occupancy",
			Help: "Entities present per room.",
		}, []string{"room"}),
		RoomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tilemud_rooms_active",
			Help: "Rooms currently running.",
		}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tilemud_ws_clients",
			Help: "Connected realtime transport clients.",
		}),
	}
}
