package root

import (
	"sync"
	"time"

	"github.com/sekas/sekas/pkg/metrics"
)

// HeartbeatTask schedules a node for an outgoing heartbeat RPC (spec §4.6).
type HeartbeatTask struct {
	NodeID uint64
}

type heartbeatEntry struct {
	nodeID uint64
	when   time.Time
}

// HeartbeatQueue is a delay-queue keyed by node_id: at most one pending
// entry per node, keeping the earliest-scheduled deadline (spec §4.6).
type HeartbeatQueue struct {
	mu      sync.Mutex
	enabled bool
	byNode  map[uint64]*heartbeatEntry
	tickCh  chan struct{}
}

// NewHeartbeatQueue returns a disabled queue; Enable(true) must be called
// once this node becomes root leader.
func NewHeartbeatQueue() *HeartbeatQueue {
	return &HeartbeatQueue{byNode: make(map[uint64]*heartbeatEntry), tickCh: make(chan struct{})}
}

// WaitOneTick blocks until the next TryPoll call completes, the sentinel
// mechanism spec §4.6/§4.7 uses to synchronize "one full tick has elapsed"
// between the heartbeat loop and the reconcile loop.
func (q *HeartbeatQueue) WaitOneTick() {
	q.mu.Lock()
	ch := q.tickCh
	q.mu.Unlock()
	<-ch
}

// Enable toggles queue activity; disabling clears all pending entries (spec
// §4.6: "Disable clears all entries").
func (q *HeartbeatQueue) Enable(on bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enabled = on
	if !on {
		q.byNode = make(map[uint64]*heartbeatEntry)
	}
}

// TrySchedule inserts or reschedules-earlier each task's deadline. A no-op
// while disabled. Yields cooperatively every 10 insertions (spec §4.6) so a
// large fan-out heartbeat round doesn't starve other root work.
func (q *HeartbeatQueue) TrySchedule(tasks []HeartbeatTask, when time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.enabled {
		return
	}
	for i, t := range tasks {
		existing, ok := q.byNode[t.NodeID]
		if !ok || when.Before(existing.when) {
			q.byNode[t.NodeID] = &heartbeatEntry{nodeID: t.NodeID, when: when}
		}
		if (i+1)%10 == 0 {
			q.mu.Unlock()
			// Cooperative yield point; see spec §5.
			time.Sleep(0)
			q.mu.Lock()
		}
	}
	metrics.HeartbeatQueueDepth.Set(float64(len(q.byNode)))
}

// TryPoll drains every entry whose deadline has elapsed.
func (q *HeartbeatQueue) TryPoll() []HeartbeatTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.enabled {
		return nil
	}
	now := time.Now()
	var due []HeartbeatTask
	for id, e := range q.byNode {
		if !e.when.After(now) {
			due = append(due, HeartbeatTask{NodeID: e.nodeID})
			delete(q.byNode, id)
		}
	}
	metrics.HeartbeatTicksTotal.Inc()
	metrics.HeartbeatQueueDepth.Set(float64(len(q.byNode)))
	close(q.tickCh)
	q.tickCh = make(chan struct{})
	return due
}
