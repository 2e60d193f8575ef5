package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Deliveries counts fire attempts by notification type and outcome
	// (delivered, duplicate, permission_denied, failed).
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habit_notifier_deliveries_total",
			Help: "Total number of scheduled notification fire attempts",
		},
		[]string{"type", "outcome"},
	)

	// Interactions counts clicks by resolved route kind.
	Interactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habit_notifier_interactions_total",
			Help: "Total number of notification clicks handled",
		},
		[]string{"route"},
	)

	// ArmedTimers is the current number of armed in-memory timers.
	ArmedTimers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "habit_notifier_armed_timers",
			Help: "Number of currently armed notification timers",
		},
	)

	// StoreErrors counts failed store operations.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habit_notifier_store_errors_total",
			Help: "Total number of failed notification store operations",
		},
		[]string{"op"},
	)

	// CatchUpRuns counts periodic wake-ups processed.
	CatchUpRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "habit_notifier_catchup_runs_total",
			Help: "Total number of periodic catch-up checks",
		},
	)

	// CommandDuration tracks worker command processing time.
	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "habit_notifier_command_duration_seconds",
			Help:    "Worker command processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
)
