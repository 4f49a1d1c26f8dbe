package root

import "sync"

// groupDelta is one group's view of in-flight replica movement (spec
// §4.7: "SchedStats: per-group {epoch, incoming[], outgoing[]}").
type groupDelta struct {
	epoch    uint64
	incoming []uint64 // node ids gaining a replica
	outgoing []uint64 // node ids losing a replica
}

// OngoingStats merges two independently-updated projections of in-flight
// placement work: scheduler-issued moves not yet reflected in a heartbeat
// report, and background-job placement deltas. Both are consulted by the
// allocator so it doesn't pile more replicas onto a node that's already
// mid-move (spec §4.7).
type OngoingStats struct {
	mu         sync.Mutex
	schedStats map[uint64]groupDelta // group_id -> delta
	jobStats   map[uint64]int64      // node_id -> delta
}

// NewOngoingStats returns an empty OngoingStats.
func NewOngoingStats() *OngoingStats {
	return &OngoingStats{
		schedStats: make(map[uint64]groupDelta),
		jobStats:   make(map[uint64]int64),
	}
}

// Reset clears both projections, called on every root leadership
// acquisition and loss (spec §4.5 steps 4 and 6).
func (s *OngoingStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedStats = make(map[uint64]groupDelta)
	s.jobStats = make(map[uint64]int64)
}

// UpdateSchedStats records a group's incoming/outgoing replica moves at
// epoch. Only a strictly-greater epoch replaces an existing entry, so a
// stale report from a superseded reconcile task can't clobber a fresher one.
func (s *OngoingStats) UpdateSchedStats(groupID, epoch uint64, incoming, outgoing []uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.schedStats[groupID]
	if ok && existing.epoch >= epoch {
		return
	}
	s.schedStats[groupID] = groupDelta{epoch: epoch, incoming: incoming, outgoing: outgoing}
}

// SetJobDelta atomically sets a node's in-flight job-driven replica delta.
func (s *OngoingStats) SetJobDelta(nodeID uint64, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if delta == 0 {
		delete(s.jobStats, nodeID)
		return
	}
	s.jobStats[nodeID] = delta
}

// GetNodeDelta returns the sum of both projections for nodeID: the count of
// replicas this node is in the process of gaining (positive) or losing
// (negative), not yet reflected in a steady-state heartbeat report.
func (s *OngoingStats) GetNodeDelta(nodeID uint64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var delta int64
	for _, gd := range s.schedStats {
		for _, n := range gd.incoming {
			if n == nodeID {
				delta++
			}
		}
		for _, n := range gd.outgoing {
			if n == nodeID {
				delta--
			}
		}
	}
	delta += s.jobStats[nodeID]
	return delta
}
