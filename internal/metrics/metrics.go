package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JoinsObserved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antiraid_joins_total",
			Help: "Member joins seen by the monitor, by how they were handled",
		},
		[]string{"result"}, // counted, exempt, duplicate, stale, disabled
	)

	HighRiskJoins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "antiraid_high_risk_joins_total",
			Help: "Joins from accounts younger than the guild's minimum account age",
		},
	)

	RaidsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antiraid_raids_detected_total",
			Help: "Raids detected, by mitigation action",
		},
		[]string{"action"},
	)

	RaidsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "antiraid_raids_suppressed_total",
			Help: "Joins that reached the threshold while the guild was already latched",
		},
	)

	MitigationCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antiraid_mitigation_calls_total",
			Help: "Platform calls made during mitigation",
		},
		[]string{"action", "result"}, // result: success, failure, skipped
	)

	MitigationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "antiraid_mitigation_duration_seconds",
			Help:    "Wall time of a whole mitigation run",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	LockdownsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "antiraid_lockdowns_active",
			Help: "Guilds currently in lockdown",
		},
	)

	IncidentWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antiraid_incident_writes_total",
			Help: "Incident write attempts",
		},
		[]string{"result"}, // success, retry, failure
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "antiraid_notifications_total",
			Help: "Alert deliveries",
		},
		[]string{"result"}, // sent, skipped, failure
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "antiraid_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	ActiveLanes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "antiraid_active_lanes",
			Help: "Per-guild serialization lanes currently held",
		},
	)

	TrackedWindows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "antiraid_tracked_windows",
			Help: "Guilds with a live join window",
		},
	)
)
