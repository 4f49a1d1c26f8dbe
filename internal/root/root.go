// Package root implements the Root Leader, Txn-ID Allocator, Heartbeat
// Queue, Reconcile Scheduler, Background Jobs, and Node Lifecycle (spec
// §§4.5-4.9): the cluster-metadata control plane that runs on whichever
// node holds the root group's raft leadership.
//
// Grounded on original_source/src/server/src/root/mod.rs's Root/RootShared/
// RootCore/step_leader state machine, adapted to the teacher's reconciler
// idiom (a goroutine loop driven by a lease/leadership signal rather than a
// bare ticker) from cuemby-warren/pkg/reconciler/reconciler.go.
package root

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sekas/sekas/internal/replica"
	"github.com/sekas/sekas/pkg/log"
	"github.com/sekas/sekas/pkg/metrics"
	"github.com/sekas/sekas/pkg/sekaserr"
)

// Schema is the durable root-group metadata surface: node/group directory,
// job list, and txn-id persistence. A concrete implementation sits on top
// of the Group Engine serving the root group's shard; it is kept as an
// interface here so this package doesn't depend on that wiring directly.
type Schema interface {
	NodeStore
	JobStore
	SchedulerView

	TryBootstrapRoot(localAddr string, cpuNums uint32, clusterID []byte) error
	MaxTxnID() (uint64, error)
	PersistMaxTxnID(uint64) error
}

// Config configures the root control plane's tuning knobs.
type Config struct {
	LocalAddr string
	CPUNums   uint32
	ClusterID []byte
}

// Root is the cluster-metadata control plane instance, one per node,
// active only while its embedded root-group Replica holds the lease.
type Root struct {
	cfg     Config
	nodeID  uint64
	replica *replica.Replica
	schema  Schema
	driver  GroupDriver
	watch   *WatchHub
	queue   *HeartbeatQueue
	stats   *OngoingStats
	jobs    *Jobs
	life    *Lifecycle
	sched   *Scheduler
	logger  zerolog.Logger

	everBootstrapped bool

	mu    sync.Mutex
	alloc *TxnAllocator
}

// NewRoot constructs a Root control plane bound to the root group's
// Replica. schema/driver provide durable storage and cluster-mutation side
// effects; nodeID is this node's own id (0 if not yet joined), used to
// detect the begin_drain self-drain case. The caller is responsible for
// wiring a concrete Schema/GroupDriver implementation on top of the Group
// Engine serving the root group's shard.
func NewRoot(cfg Config, nodeID uint64, r *replica.Replica, schema Schema, driver GroupDriver) *Root {
	watch := NewWatchHub()
	queue := NewHeartbeatQueue()
	stats := NewOngoingStats()
	jobs := NewJobs(schema, driver)

	root := &Root{
		cfg:     cfg,
		nodeID:  nodeID,
		replica: r,
		schema:  schema,
		driver:  driver,
		watch:   watch,
		queue:   queue,
		stats:   stats,
		jobs:    jobs,
		logger:  log.WithComponent("root"),
	}

	emit := func(t Task) error {
		return root.submitTask(t)
	}
	root.sched = NewScheduler(schema, stats, queue, emit)
	root.life = NewLifecycle(schema, queue, watch, root.sched, root.currentLeaderNodeID)
	return root
}

// WatcherHub exposes the node-change notification hub.
func (r *Root) WatcherHub() *WatchHub { return r.watch }

// Lifecycle exposes node join/cordon/uncordon/drain operations.
func (r *Root) Lifecycle() *Lifecycle { return r.life }

// Schema exposes the durable metadata surface, for callers (the transport
// layer's admin RPCs) that need the raw NodeStore/JobStore/SchedulerView
// beyond what Lifecycle/Stats/SchedulerHandle project.
func (r *Root) Schema() Schema { return r.schema }

// Stats exposes OngoingStats for the Heartbeat CollectStats piggyback.
func (r *Root) Stats() *OngoingStats { return r.stats }

// SchedulerHandle exposes the Scheduler for the Heartbeat
// CollectScheduleState piggyback and admin diagnostics.
func (r *Root) SchedulerHandle() *Scheduler { return r.sched }

// NodeID returns this node's own id, 0 if not yet joined.
func (r *Root) NodeID() uint64 { return r.nodeID }

// Heartbeat records a live node's liveness timestamp (spec §4.6: a node
// heartbeats on its own schedule; this is the root side of that call).
func (r *Root) Heartbeat(nodeID uint64) error {
	n, ok, err := r.schema.GetNode(nodeID)
	if err != nil {
		return err
	}
	if !ok {
		return sekaserr.InvalidArgument("node %d not found", nodeID)
	}
	n.LastHeartbeat = time.Now()
	return r.schema.SaveNode(n)
}

// GroupReport is one group's replication-progress self-report, merged into
// OngoingStats by epoch/term monotonicity (spec §4.7).
type GroupReport struct {
	GroupID  uint64
	Epoch    uint64
	Incoming []uint64
	Outgoing []uint64
}

// Report merges a batch of GroupReports into OngoingStats.
func (r *Root) Report(updates []GroupReport) error {
	for _, u := range updates {
		r.stats.UpdateSchedStats(u.GroupID, u.Epoch, u.Incoming, u.Outgoing)
	}
	return nil
}

// AllocTxnID reserves n consecutive transaction ids from the live
// allocator, or NotLeader if this node does not currently hold the root
// lease (spec §4.5).
func (r *Root) AllocTxnID(n uint64) (uint64, error) {
	r.mu.Lock()
	a := r.alloc
	r.mu.Unlock()
	if a == nil {
		return 0, leaderUnavailable()
	}
	return a.Alloc(n)
}

// currentLeaderNodeID reports this node's id if it currently holds the
// root lease, or 0 — used by Lifecycle.BeginDrain's self-drain check.
func (r *Root) currentLeaderNodeID() uint64 {
	if _, ok := r.replica.OnLeader(); !ok {
		return 0
	}
	return r.nodeID
}

func (r *Root) submitTask(t Task) error {
	// Tasks are not sent to any group: this only records an AddReplica or
	// RemoveReplica as a +1/-1 job delta for the task's node in
	// OngoingStats. Other task kinds have no effect here.
	switch t.Kind {
	case AddReplica:
		r.stats.SetJobDelta(t.NodeID, 1)
	case RemoveReplica:
		r.stats.SetJobDelta(t.NodeID, -1)
	}
	return nil
}

// Run drives the root leadership loop until stop is closed: waits for this
// node's root-group Replica to hold the lease, steps leader duties, and on
// lease loss cleans up and waits to become leader again (spec §4.5).
func (r *Root) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		token, ok := r.replica.OnLeader()
		if !ok {
			select {
			case <-r.replica.LeaseChanged():
			case <-stop:
				return
			}
			continue
		}

		if err := r.stepLeader(token, stop); err != nil {
			r.logger.Error().Err(err).Msg("step root leader")
		}
	}
}

func (r *Root) stepLeader(token replica.LeaseToken, stop <-chan struct{}) error {
	if !r.everBootstrapped {
		if err := r.schema.TryBootstrapRoot(r.cfg.LocalAddr, r.cfg.CPUNums, r.cfg.ClusterID); err != nil {
			r.logger.Error().Err(err).Msg("bootstrap root cluster")
			panic("bootstrap cluster failure")
		}
		r.everBootstrapped = true
	}

	maxTxnID, err := r.schema.MaxTxnID()
	if err != nil {
		return err
	}
	alloc, err := NewTxnAllocator(maxTxnID, r.schema.PersistMaxTxnID)
	if err != nil {
		return err
	}

	bumperStop := make(chan struct{})
	alloc.RunBumper(bumperStop)

	jobsStop := make(chan struct{})
	go r.runJobs(jobsStop)

	r.mu.Lock()
	r.alloc = alloc
	r.mu.Unlock()
	metrics.RootLeaderGauge.Set(1)

	r.stats.Reset()
	r.queue.Enable(true)

	nodes, err := r.schema.ListNodes()
	if err == nil {
		tasks := make([]HeartbeatTask, len(nodes))
		for i, n := range nodes {
			tasks[i] = HeartbeatTask{NodeID: n.ID}
		}
		r.queue.TrySchedule(tasks, time.Now())
	}

	sched := r.sched
leaderLoop:
	for {
		if cur, ok := r.replica.OnLeader(); !ok || cur.Epoch != token.Epoch {
			break
		}
		select {
		case <-stop:
			break leaderLoop
		default:
		}
		next := sched.StepOne()
		time.Sleep(next)
		sched.WaitOneHeartbeatTick()
	}

	close(bumperStop)
	close(jobsStop)
	alloc.Stop()
	r.mu.Lock()
	r.alloc = nil
	r.mu.Unlock()
	r.queue.Enable(false)
	r.stats.Reset()
	metrics.RootLeaderGauge.Set(0)
	return nil
}

// runJobs drives the background job list while this node is root leader,
// backing off 3s on an advance error and otherwise blocking for a wake
// signal before the next step (spec §4.8, grounded on mod.rs's
// run_background_jobs).
func (r *Root) runJobs(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		if err := r.jobs.AdvanceJobs(); err != nil {
			r.logger.Warn().Err(err).Msg("advance background jobs")
			select {
			case <-time.After(3 * time.Second):
			case <-stop:
				return
			}
			continue
		}
		select {
		case <-stop:
			return
		default:
		}
		done := make(chan struct{})
		go func() {
			r.jobs.WaitMoreJobs()
			close(done)
		}()
		select {
		case <-done:
		case <-stop:
			return
		}
	}
}

func leaderUnavailable() error {
	return sekaserr.NotRootLeader(0, "")
}
