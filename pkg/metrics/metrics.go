package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sekas_nodes_total",
			Help: "Total number of nodes by lifecycle status",
		},
		[]string{"status"},
	)

	GroupsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sekas_groups_total",
			Help: "Total number of raft groups",
		},
	)

	ShardsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sekas_shards_total",
			Help: "Total number of shards",
		},
	)

	// Raft metrics
	RaftLeader = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sekas_raft_is_leader",
			Help: "Whether this replica is the Raft leader for its group (1 = leader, 0 = follower)",
		},
		[]string{"group_id"},
	)

	RaftAppliedIndex = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sekas_raft_applied_index",
			Help: "Last applied Raft log index, per group",
		},
		[]string{"group_id"},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sekas_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Intent evaluator metrics
	EvalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sekas_eval_duration_seconds",
			Help:    "Time taken to evaluate a write/commit/clear intent request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	CasFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sekas_cas_failures_total",
			Help: "Total number of conditional-write (CAS) failures",
		},
	)

	IntentsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sekas_intents_in_flight",
			Help: "Number of pending (uncommitted, uncleared) write intents",
		},
	)

	// Latch manager metrics
	LatchWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sekas_latch_wait_duration_seconds",
			Help:    "Time a write_intent caller waited to acquire a key latch",
			Buckets: prometheus.DefBuckets,
		},
	)

	LatchResolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sekas_latch_resolve_total",
			Help: "Total number of resolve_txn calls by outcome",
		},
		[]string{"outcome"},
	)

	// Root / allocator metrics
	TxnIDAllocTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sekas_txn_id_alloc_total",
			Help: "Total number of transaction IDs allocated by the root leader",
		},
	)

	TxnIDReservationBumpsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sekas_txn_id_reservation_bumps_total",
			Help: "Total number of max_txn_id reservation bumps persisted",
		},
	)

	RootLeaderGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sekas_root_is_leader",
			Help: "Whether this node currently holds the root leadership lease",
		},
	)

	// Heartbeat queue metrics
	HeartbeatQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sekas_heartbeat_queue_depth",
			Help: "Number of nodes currently scheduled in the heartbeat delay queue",
		},
	)

	HeartbeatTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sekas_heartbeat_ticks_total",
			Help: "Total number of heartbeat queue poll ticks processed",
		},
	)

	// Reconciler metrics
	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sekas_reconcile_duration_seconds",
			Help:    "Time taken for a reconcile tick in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconcileCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sekas_reconcile_cycles_total",
			Help: "Total number of reconcile cycles completed",
		},
	)

	ReconcileTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sekas_reconcile_tasks_total",
			Help: "Total number of reconcile tasks emitted by kind",
		},
		[]string{"kind"},
	)

	// Background job metrics
	JobsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sekas_jobs_active",
			Help: "Number of active background jobs by kind and state",
		},
		[]string{"kind", "state"},
	)

	JobStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sekas_job_step_duration_seconds",
			Help:    "Time taken for one advance_jobs step by job kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(GroupsTotal)
	prometheus.MustRegister(ShardsTotal)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(RaftApplyDuration)
	prometheus.MustRegister(EvalDuration)
	prometheus.MustRegister(CasFailuresTotal)
	prometheus.MustRegister(IntentsInFlight)
	prometheus.MustRegister(LatchWaitDuration)
	prometheus.MustRegister(LatchResolveTotal)
	prometheus.MustRegister(TxnIDAllocTotal)
	prometheus.MustRegister(TxnIDReservationBumpsTotal)
	prometheus.MustRegister(RootLeaderGauge)
	prometheus.MustRegister(HeartbeatQueueDepth)
	prometheus.MustRegister(HeartbeatTicksTotal)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(ReconcileCyclesTotal)
	prometheus.MustRegister(ReconcileTasksTotal)
	prometheus.MustRegister(JobsActive)
	prometheus.MustRegister(JobStepDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
