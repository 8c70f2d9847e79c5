package ws

import "github.com/prometheus/client_golang/prometheus"

var (
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_active",
		Help: "Number of live websocket connections.",
	})
	eventsDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ws_events_delivered_total",
		Help: "Game events fanned out to subscribers.",
	})
)

func init() {
	prometheus.MustRegister(wsConnections, eventsDelivered)
}
