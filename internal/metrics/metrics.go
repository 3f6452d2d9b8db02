package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamMessages counts decoded upstream frames by venue and kind
	// (kline, ticker, ack, other).
	UpstreamMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_upstream_messages_total",
		Help: "Upstream WebSocket frames processed, by venue and kind.",
	}, []string{"venue", "kind"})

	// UpstreamReconnects counts venue session reconnect attempts.
	UpstreamReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_upstream_reconnects_total",
		Help: "Upstream WebSocket reconnect attempts, by venue.",
	}, []string{"venue"})

	// BusPublished counts messages published to the bus, by subject.
	BusPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_bus_published_total",
		Help: "Messages published to the pub/sub bus, by subject.",
	}, []string{"subject"})

	// RelayDropped counts bus messages dropped on decode errors.
	RelayDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_relay_dropped_total",
		Help: "Bus messages dropped by the relay, by subject.",
	}, []string{"subject"})

	// ClientsConnected tracks currently connected downstream clients.
	ClientsConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gateway_clients_connected",
		Help: "Connected downstream WebSocket clients, by kind.",
	}, []string{"kind"})

	// ClientEvictions counts clients dropped on send failure.
	ClientEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_client_evictions_total",
		Help: "Downstream clients evicted after a failed send, by kind.",
	}, []string{"kind"})

	// Broadcasts counts fan-out dispatches (one per bus message, not per
	// client send).
	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_broadcasts_total",
		Help: "Broadcast dispatches to local clients, by kind.",
	}, []string{"kind"})

	// RegistryRefreshes counts symbol universe refresh outcomes.
	RegistryRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_registry_refreshes_total",
		Help: "Symbol registry refresh attempts, by result (ok, error).",
	}, []string{"result"})
)
