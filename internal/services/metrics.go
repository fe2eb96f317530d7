package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	GamesRecorded    *prometheus.CounterVec
	StoreErrors      *prometheus.CounterVec
	Rebuilds         prometheus.Counter
	RebuildFailures  prometheus.Counter
	RebuildDuration  prometheus.Histogram
	LeaderboardSize  prometheus.Gauge
	WebSocketClients prometheus.Gauge
}

// NewMetrics registers the collectors with reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		GamesRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poker",
			Name:      "games_recorded_total",
			Help:      "Games recorded, by result.",
		}, []string{"result"}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poker",
			Name:      "store_errors_total",
			Help:      "Failed store operations, by operation.",
		}, []string{"op"}),
		Rebuilds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "poker",
			Name:      "leaderboard_rebuilds_total",
			Help:      "Completed leaderboard rebuilds.",
		}),
		RebuildFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "poker",
			Name:      "leaderboard_rebuild_failures_total",
			Help:      "Leaderboard rebuilds that failed.",
		}),
		RebuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "poker",
			Name:      "leaderboard_rebuild_seconds",
			Help:      "Time taken to rebuild the leaderboard.",
			Buckets:   prometheus.DefBuckets,
		}),
		LeaderboardSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "poker",
			Name:      "leaderboard_players",
			Help:      "Players in the current leaderboard snapshot.",
		}),
		WebSocketClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "poker",
			Name:      "websocket_clients",
			Help:      "Connected live leaderboard clients.",
		}),
	}
}
