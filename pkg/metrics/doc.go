/*
Package metrics exposes Sekas's Prometheus metrics and a small health-check
HTTP surface.

Every metric is a package-level Prometheus collector registered once via
init(); callers update them directly (Set/Inc/Observe) rather than going
through a wrapper type, the same shape the Prometheus client library itself
encourages.

# Metric Families

Cluster:
  - sekas_nodes_total{status}: node count by lifecycle status
  - sekas_groups_total / sekas_shards_total: raft group / shard counts

Raft:
  - sekas_raft_is_leader{group_id}: 1 if this replica leads the group
  - sekas_raft_applied_index{group_id}: last applied log index
  - sekas_raft_apply_duration_seconds: time to apply one log entry

Intent evaluator (internal/eval):
  - sekas_eval_duration_seconds{op}: write_intent/commit_intent/clear_intent
    evaluation latency
  - sekas_cas_failures_total: conditional-write failures
  - sekas_intents_in_flight: pending, uncommitted write intents

Latch manager (internal/latch):
  - sekas_latch_wait_duration_seconds: time a writer waited on a key latch
  - sekas_latch_resolve_total{outcome}: resolve_txn calls by outcome

Root control plane (internal/root):
  - sekas_txn_id_alloc_total / sekas_txn_id_reservation_bumps_total
  - sekas_root_is_leader: whether this node holds the root lease
  - sekas_heartbeat_queue_depth / sekas_heartbeat_ticks_total
  - sekas_reconcile_duration_seconds / sekas_reconcile_cycles_total /
    sekas_reconcile_tasks_total{kind}
  - sekas_jobs_active{kind,state} / sekas_job_step_duration_seconds{kind}

# Usage

	import "github.com/sekas/sekas/pkg/metrics"

	metrics.NodesTotal.WithLabelValues("active").Set(5)
	metrics.CasFailuresTotal.Inc()

	timer := metrics.NewTimer()
	// ... evaluate a write_intent ...
	timer.ObserveDurationVec(metrics.EvalDuration, "write_intent")

Serving the registry:

	http.Handle("/metrics", metrics.Handler())
	http.Handle("/health", metrics.HealthHandler())
	http.Handle("/ready", metrics.ReadyHandler())
	http.Handle("/live", metrics.LivenessHandler())

# Health Checks

health.go tracks a small set of named components (raft, transport, ...) via
RegisterComponent/UpdateComponent; HealthHandler/ReadyHandler/LivenessHandler
serve a JSON HealthStatus derived from that set, independent of the
Prometheus registry above.
*/
package metrics
