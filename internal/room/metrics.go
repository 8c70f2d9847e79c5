package room

import (
	"github.com/prometheus/client_golang/prometheus"

	"cardroom/internal/domain"
)

var (
	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "game_actions_total",
			Help: "Actions processed by room actors, by kind and outcome",
		},
		[]string{"action", "result"},
	)
	ActiveRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "game_rooms_active",
			Help: "Rooms currently registered",
		},
	)
)

func init() {
	prometheus.MustRegister(actionsTotal)
	prometheus.MustRegister(ActiveRooms)
}

func observeAction(kind domain.ActionKind, result string) {
	actionsTotal.WithLabelValues(string(kind), result).Inc()
}
