package root

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sekas/sekas/pkg/types"
)

type fakeNodeStore struct {
	nodes  map[uint64]types.Node
	nextID uint64
}

func newFakeNodeStore() *fakeNodeStore {
	return &fakeNodeStore{nodes: make(map[uint64]types.Node)}
}

func (s *fakeNodeStore) NextNodeID() (uint64, error) {
	s.nextID++
	return s.nextID, nil
}

func (s *fakeNodeStore) GetNode(id uint64) (types.Node, bool, error) {
	n, ok := s.nodes[id]
	return n, ok, nil
}

func (s *fakeNodeStore) SaveNode(n types.Node) error {
	s.nodes[n.ID] = n
	return nil
}

func (s *fakeNodeStore) ListNodes() ([]types.Node, error) {
	out := make([]types.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out, nil
}

func newTestLifecycle() (*Lifecycle, *fakeNodeStore, *WatchHub) {
	store := newFakeNodeStore()
	queue := NewHeartbeatQueue()
	queue.Enable(true)
	watch := NewWatchHub()
	view := &fakeView{delta: map[uint64]int64{}}
	stats := NewOngoingStats()
	sched := NewScheduler(view, stats, queue, func(Task) error { return nil })
	life := NewLifecycle(store, queue, watch, sched, func() uint64 { return 0 })
	return life, store, watch
}

func TestJoinAssignsIDAndSchedulesHeartbeat(t *testing.T) {
	life, _, _ := newTestLifecycle()

	n, err := life.Join("10.0.0.1:7000", 4)
	require.NoError(t, err)
	require.Equal(t, uint64(1), n.ID)
	require.Equal(t, types.Active, n.Status)
	require.Len(t, life.queue.TryPoll(), 1)
}

func TestCordonRequiresActive(t *testing.T) {
	life, store, _ := newTestLifecycle()
	n, err := life.Join("a", 1)
	require.NoError(t, err)

	require.NoError(t, life.CordonNode(n.ID))
	got, _, _ := store.GetNode(n.ID)
	require.Equal(t, types.Cordoned, got.Status)

	require.Error(t, life.CordonNode(n.ID))
}

func TestUncordonFromValidStates(t *testing.T) {
	life, _, _ := newTestLifecycle()
	n, err := life.Join("a", 1)
	require.NoError(t, err)
	require.NoError(t, life.CordonNode(n.ID))
	require.NoError(t, life.UncordonNode(n.ID))

	require.Error(t, life.UncordonNode(n.ID), "already active, uncordon should fail")
}

func TestBeginDrainRequiresCordoned(t *testing.T) {
	life, _, _ := newTestLifecycle()
	n, err := life.Join("a", 1)
	require.NoError(t, err)

	require.Error(t, life.BeginDrain(n.ID))

	require.NoError(t, life.CordonNode(n.ID))
	require.NoError(t, life.BeginDrain(n.ID))
}

func TestBeginDrainSelfRefusesAndEnqueuesShedRoot(t *testing.T) {
	store := newFakeNodeStore()
	queue := NewHeartbeatQueue()
	queue.Enable(true)
	watch := NewWatchHub()
	view := &fakeView{delta: map[uint64]int64{}}
	stats := NewOngoingStats()

	var emitted []Task
	sched := NewScheduler(view, stats, queue, func(t Task) error {
		emitted = append(emitted, t)
		return nil
	})
	life := NewLifecycle(store, queue, watch, sched, func() uint64 { return 42 })

	err := life.BeginDrain(42)
	require.Error(t, err)
	require.Len(t, emitted, 1)
	require.Equal(t, ShedRoot, emitted[0].Kind)
}
