package root

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sekas/sekas/pkg/types"
)

type fakeView struct {
	groups []types.Group
	nodes  []types.Node
	delta  map[uint64]int64
}

func (f *fakeView) Groups() ([]types.Group, error) { return f.groups, nil }
func (f *fakeView) Nodes() ([]types.Node, error)    { return f.nodes, nil }
func (f *fakeView) NodeDelta(nodeID uint64) int64   { return f.delta[nodeID] }

func TestPlanNoTasksWhenAllReplicasOnActiveNodes(t *testing.T) {
	view := &fakeView{
		groups: []types.Group{{ID: 1, Replicas: []types.Replica{{ID: 1, NodeID: 10}}}},
		nodes:  []types.Node{{ID: 10, Status: types.Active}},
		delta:  map[uint64]int64{},
	}
	stats := NewOngoingStats()
	queue := NewHeartbeatQueue()
	sched := NewScheduler(view, stats, queue, func(Task) error { return nil })

	tasks, err := sched.Plan()
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestPlanReplacesReplicaOnInactiveNode(t *testing.T) {
	view := &fakeView{
		groups: []types.Group{{ID: 1, Replicas: []types.Replica{{ID: 1, NodeID: 10}}}},
		nodes: []types.Node{
			{ID: 10, Status: types.Decommissioned},
			{ID: 20, Status: types.Active},
		},
		delta: map[uint64]int64{},
	}
	stats := NewOngoingStats()
	queue := NewHeartbeatQueue()
	sched := NewScheduler(view, stats, queue, func(Task) error { return nil })

	tasks, err := sched.Plan()
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, AddReplica, tasks[0].Kind)
	require.Equal(t, uint64(20), tasks[0].NodeID)
	require.Equal(t, RemoveReplica, tasks[1].Kind)
	require.Equal(t, uint64(10), tasks[1].NodeID)
}

func TestStepOneEmitsAndCountsTasks(t *testing.T) {
	view := &fakeView{
		groups: []types.Group{{ID: 1, Replicas: []types.Replica{{ID: 1, NodeID: 10}}}},
		nodes: []types.Node{
			{ID: 10, Status: types.Decommissioned},
			{ID: 20, Status: types.Active},
		},
		delta: map[uint64]int64{},
	}
	stats := NewOngoingStats()
	queue := NewHeartbeatQueue()

	var emitted []Task
	sched := NewScheduler(view, stats, queue, func(t Task) error {
		emitted = append(emitted, t)
		return nil
	})

	interval := sched.StepOne()
	require.Equal(t, MinInterval, interval)
	require.Len(t, emitted, 2)
}

func TestStepOneIdleReturnsMaxInterval(t *testing.T) {
	view := &fakeView{
		groups: []types.Group{{ID: 1, Replicas: []types.Replica{{ID: 1, NodeID: 10}}}},
		nodes:  []types.Node{{ID: 10, Status: types.Active}},
		delta:  map[uint64]int64{},
	}
	stats := NewOngoingStats()
	queue := NewHeartbeatQueue()
	sched := NewScheduler(view, stats, queue, func(Task) error { return nil })

	require.Equal(t, MaxInterval, sched.StepOne())
}
