package root

import (
	"time"

	"github.com/sekas/sekas/pkg/log"
	"github.com/sekas/sekas/pkg/metrics"
	"github.com/sekas/sekas/pkg/types"
)

// TaskKind is one of the closed set of reconcile task kinds (spec §4.7).
type TaskKind int

const (
	AddReplica TaskKind = iota
	RemoveReplica
	TransferLeader
	ShedLeader
	ShedRoot
	SplitShard
	MoveShard
	PromoteLearner
)

func (k TaskKind) String() string {
	switch k {
	case AddReplica:
		return "add_replica"
	case RemoveReplica:
		return "remove_replica"
	case TransferLeader:
		return "transfer_leader"
	case ShedLeader:
		return "shed_leader"
	case ShedRoot:
		return "shed_root"
	case SplitShard:
		return "split_shard"
	case MoveShard:
		return "move_shard"
	case PromoteLearner:
		return "promote_learner"
	default:
		return "unknown"
	}
}

// Task is one unit of reconcile work, submitted to the relevant group via
// its group client once emitted.
type Task struct {
	Kind    TaskKind
	GroupID uint64
	NodeID  uint64 // ShedLeader / ShedRoot target, or AddReplica/MoveShard destination
	SrcNode uint64 // MoveShard source
	ShardID uint64
}

// SchedulerView is the read-only surface the scheduler needs from the
// schema/allocator to decide what work to emit, kept as an interface so the
// scheduler doesn't depend on a concrete schema implementation.
type SchedulerView interface {
	Groups() ([]types.Group, error)
	Nodes() ([]types.Node, error)
	NodeDelta(nodeID uint64) int64
}

// MinInterval/MaxInterval bound the adaptive per-tick cadence: a tick that
// emitted work re-checks soon, an idle cluster backs off (spec §4.7:
// "returned per-call duration (adaptive)").
const (
	MinInterval = 200 * time.Millisecond
	MaxInterval = 10 * time.Second
)

// Scheduler drives one reconcile tick at a time, grounded on the teacher's
// reconciler.go run loop generalized from a fixed-interval ticker to the
// adaptive step_one/heartbeat-sentinel cadence spec §4.7 requires.
type Scheduler struct {
	view  SchedulerView
	stats *OngoingStats
	queue *HeartbeatQueue
	emit  func(Task) error
}

// NewScheduler constructs a Scheduler. emit submits one task to its target
// group's client and reports whether it was accepted.
func NewScheduler(view SchedulerView, stats *OngoingStats, queue *HeartbeatQueue, emit func(Task) error) *Scheduler {
	return &Scheduler{view: view, stats: stats, queue: queue, emit: emit}
}

// StepOne produces and submits this tick's tasks, returning the interval to
// wait before the next tick.
func (s *Scheduler) StepOne() time.Duration {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconcileDuration)
	defer metrics.ReconcileCyclesTotal.Inc()

	logger := log.WithComponent("reconcile-scheduler")

	tasks, err := s.Plan()
	if err != nil {
		logger.Warn().Err(err).Msg("plan reconcile tick")
		return MaxInterval
	}
	if len(tasks) == 0 {
		return MaxInterval
	}

	for _, t := range tasks {
		if err := s.emit(t); err != nil {
			logger.Warn().Str("kind", t.Kind.String()).Uint64("group", t.GroupID).Err(err).Msg("submit reconcile task")
			continue
		}
		metrics.ReconcileTasksTotal.WithLabelValues(t.Kind.String()).Inc()
	}
	return MinInterval
}

// WaitOneHeartbeatTick blocks for one full heartbeat poll cycle, so the
// scheduler never races ahead of the liveness information it plans against
// (spec §4.7: "waits one heartbeat sentinel before the next").
func (s *Scheduler) WaitOneHeartbeatTick() {
	s.queue.WaitOneTick()
}

// SetupTask submits a single out-of-band task immediately, bypassing
// Plan() — used by node lifecycle operations that must react to an
// operator request (ShedRoot, ShedLeader) rather than wait for the next
// tick (spec §4.9).
func (s *Scheduler) SetupTask(t Task) {
	if err := s.emit(t); err != nil {
		log.WithComponent("reconcile-scheduler").Warn().Str("kind", t.Kind.String()).Err(err).Msg("submit out-of-band reconcile task")
		return
	}
	metrics.ReconcileTasksTotal.WithLabelValues(t.Kind.String()).Inc()
}

// NeedReconcile reports whether Plan currently yields at least one task,
// i.e. true while the cluster is not yet balanced. The Info RPC does not
// call it.
func (s *Scheduler) NeedReconcile() (bool, error) {
	tasks, err := s.Plan()
	if err != nil {
		return false, err
	}
	return len(tasks) > 0, nil
}

// Plan computes this tick's task set without submitting anything, so tests
// and the diagnostic surface can inspect it directly.
func (s *Scheduler) Plan() ([]Task, error) {
	groups, err := s.view.Groups()
	if err != nil {
		return nil, err
	}
	nodes, err := s.view.Nodes()
	if err != nil {
		return nil, err
	}

	active := make(map[uint64]bool, len(nodes))
	for _, n := range nodes {
		active[n.ID] = n.Status == types.Active
	}

	var tasks []Task
	for _, g := range groups {
		counts := make(map[uint64]int)
		for _, r := range g.Replicas {
			counts[r.NodeID]++
		}

		for _, r := range g.Replicas {
			if !active[r.NodeID] {
				// Replica lives on a node that's gone or cordoned away:
				// replace it on the least-loaded active node.
				dst, ok := s.leastLoadedNode(nodes, active)
				if ok {
					tasks = append(tasks, Task{Kind: AddReplica, GroupID: g.ID, NodeID: dst})
					tasks = append(tasks, Task{Kind: RemoveReplica, GroupID: g.ID, NodeID: r.NodeID})
				}
			}
		}
	}
	return tasks, nil
}

func (s *Scheduler) leastLoadedNode(nodes []types.Node, active map[uint64]bool) (uint64, bool) {
	var best uint64
	var bestLoad int64
	found := false
	for _, n := range nodes {
		if !active[n.ID] {
			continue
		}
		load := s.view.NodeDelta(n.ID)
		if !found || load < bestLoad {
			best, bestLoad, found = n.ID, load, true
		}
	}
	return best, found
}
