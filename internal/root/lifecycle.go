package root

import (
	"time"

	"github.com/sekas/sekas/pkg/sekaserr"
	"github.com/sekas/sekas/pkg/types"
)

// NodeStore is the schema surface node lifecycle operations need, kept as
// an interface for the same reason as JobStore/GroupDriver.
type NodeStore interface {
	NextNodeID() (uint64, error)
	GetNode(id uint64) (types.Node, bool, error)
	SaveNode(types.Node) error
	ListNodes() ([]types.Node, error)
}

// WatchNotifier fans out cluster-metadata change events to watchers (spec
// §4.9 supplement, grounded on original_source/root/mod.rs's watcher_hub
// notify_updates/notify_deletes calls).
type WatchNotifier interface {
	NotifyNodeUpdated(types.Node)
}

// Lifecycle implements node join/cordon/uncordon/drain (spec §4.9).
type Lifecycle struct {
	store   NodeStore
	queue   *HeartbeatQueue
	watch   WatchNotifier
	sched   *Scheduler
	rootIDF func() uint64 // current root leader's node id, or 0 if unknown
}

// NewLifecycle constructs a Lifecycle driver.
func NewLifecycle(store NodeStore, queue *HeartbeatQueue, watch WatchNotifier, sched *Scheduler, rootIDF func() uint64) *Lifecycle {
	return &Lifecycle{store: store, queue: queue, watch: watch, sched: sched, rootIDF: rootIDF}
}

// Join assigns a new node id, persists the node descriptor, schedules an
// immediate heartbeat, and notifies watchers (spec §4.9).
func (l *Lifecycle) Join(addr string, capacity uint32) (types.Node, error) {
	id, err := l.store.NextNodeID()
	if err != nil {
		return types.Node{}, err
	}
	n := types.Node{ID: id, Addr: addr, Capacity: capacity, Status: types.Active}
	if err := l.store.SaveNode(n); err != nil {
		return types.Node{}, err
	}
	l.queue.TrySchedule([]HeartbeatTask{{NodeID: id}}, time.Now())
	l.watch.NotifyNodeUpdated(n)
	return n, nil
}

// CordonNode transitions Active -> Cordoned.
func (l *Lifecycle) CordonNode(nodeID uint64) error {
	n, ok, err := l.store.GetNode(nodeID)
	if err != nil {
		return err
	}
	if !ok {
		return sekaserr.InvalidArgument("node %d not found", nodeID)
	}
	if n.Status != types.Active {
		return sekaserr.InvalidArgument("node %d already cordoned", nodeID)
	}
	n.Status = types.Cordoned
	return l.store.SaveNode(n)
}

// UncordonNode transitions {Cordoned, Drained, Decommissioned} -> Active.
func (l *Lifecycle) UncordonNode(nodeID uint64) error {
	n, ok, err := l.store.GetNode(nodeID)
	if err != nil {
		return err
	}
	if !ok {
		return sekaserr.InvalidArgument("node %d not found", nodeID)
	}
	switch n.Status {
	case types.Cordoned, types.Drained, types.Decommissioned:
	default:
		return sekaserr.InvalidArgument("node %d status does not support uncordon", nodeID)
	}
	n.Status = types.Active
	return l.store.SaveNode(n)
}

// BeginDrain transitions Cordoned -> Draining, enqueuing ShedLeader for the
// target. If the target is the current root leader, it instead enqueues
// ShedRoot and refuses, per spec §4.9 ("try again later").
func (l *Lifecycle) BeginDrain(nodeID uint64) error {
	if l.rootIDF() == nodeID {
		l.sched.SetupTask(Task{Kind: ShedRoot, NodeID: nodeID})
		return sekaserr.InvalidArgument("node is root leader, try again later")
	}

	n, ok, err := l.store.GetNode(nodeID)
	if err != nil {
		return err
	}
	if !ok {
		return sekaserr.InvalidArgument("node %d not found", nodeID)
	}
	if n.Status != types.Cordoned {
		return sekaserr.InvalidArgument("only a cordoned node can be drained")
	}
	n.Status = types.Draining
	if err := l.store.SaveNode(n); err != nil {
		return err
	}
	l.sched.SetupTask(Task{Kind: ShedLeader, NodeID: nodeID})
	return nil
}

// NodeStatus returns a node's current lifecycle status.
func (l *Lifecycle) NodeStatus(nodeID uint64) (types.NodeStatus, error) {
	n, ok, err := l.store.GetNode(nodeID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, sekaserr.InvalidArgument("node %d not found", nodeID)
	}
	return n.Status, nil
}

// NodeCount returns the number of known nodes, for the diagnostic nodes()
// surface (spec §4.9 supplement).
func (l *Lifecycle) NodeCount() (uint64, error) {
	nodes, err := l.store.ListNodes()
	if err != nil {
		return 0, err
	}
	return uint64(len(nodes)), nil
}
