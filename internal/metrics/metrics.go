package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Offline Queue Metrics
var (
	// QueuedMutationsTotal tracks mutations recorded while offline
	QueuedMutationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_queued_mutations_total",
			Help: "Total mutations recorded in the offline queue",
		},
	)

	// QueueDepth tracks the current number of entries in the offline queue
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "offline_queue_depth",
			Help: "Current number of entries in the offline queue",
		},
	)

	// ReplayAttemptsTotal tracks replayed mutations by result
	ReplayAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_replay_attempts_total",
			Help: "Total offline mutation replay attempts by result (success/failure)",
		},
		[]string{"result"},
	)

	// ReplayInvocationsTotal tracks replayer invocations by outcome
	ReplayInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_replay_invocations_total",
			Help: "Total replayer invocations by outcome (drained/partial/empty/store_error/unsupported)",
		},
		[]string{"outcome"},
	)

	// ReplayDuration tracks replayer invocation duration
	ReplayDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "offline_replay_duration_seconds",
			Help:    "Replayer invocation duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// Schedule Metrics
var (
	// ScheduleFetchesTotal tracks master schedule fetches by result
	ScheduleFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_fetches_total",
			Help: "Total master schedule fetches by result (success/error)",
		},
		[]string{"result"},
	)

	// ScheduleSessions tracks the number of sessions in the cached schedule
	ScheduleSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "schedule_sessions",
			Help: "Number of sessions in the cached master schedule",
		},
	)
)

// Reconciler Metrics
var (
	// UserDataDriftDetected tracks drift between the local view and the remote store
	UserDataDriftDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "userdata_drift_detected_total",
			Help: "Total reconciliation runs that found local/remote drift",
		},
	)

	// UserDataDriftFixed tracks drift occurrences resolved by adopting the remote state
	UserDataDriftFixed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "userdata_drift_fixed_total",
			Help: "Total drift occurrences resolved by adopting the remote state",
		},
	)

	// ReconcileRunsTotal tracks reconciliation runs by result
	ReconcileRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userdata_reconcile_runs_total",
			Help: "Total reconciliation runs by result (clean/drift/error)",
		},
		[]string{"result"},
	)
)

// Realtime Sync Metrics
var (
	// SyncReconnectsTotal tracks realtime feed reconnection attempts
	SyncReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_reconnects_total",
			Help: "Total realtime feed reconnection attempts after disconnect",
		},
	)

	// SyncEventsTotal tracks realtime events received by type
	SyncEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_events_total",
			Help: "Total realtime events received by type",
		},
		[]string{"type"},
	)

	// SyncConnected tracks whether the realtime feed is connected (1) or not (0)
	SyncConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_connected",
			Help: "1 if the realtime feed is connected, 0 otherwise",
		},
	)
)

// Notification Metrics
var (
	// ToastsShownTotal tracks toasts shown to the user
	ToastsShownTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "toasts_shown_total",
			Help: "Total toast notifications shown",
		},
	)
)

// Backend Client Metrics
var (
	// BackendRequestsTotal tracks backend requests by method and result
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Total conference backend requests by method and result",
		},
		[]string{"method", "result"},
	)

	// BackendBreakerState tracks the circuit breaker state (0=closed, 1=half-open, 2=open)
	BackendBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backend_circuit_breaker_state",
			Help: "Backend circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)
