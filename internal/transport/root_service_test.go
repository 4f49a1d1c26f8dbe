package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/require"

	"github.com/sekas/sekas/internal/engine"
	"github.com/sekas/sekas/internal/replica"
	"github.com/sekas/sekas/internal/root"
	"github.com/sekas/sekas/pkg/types"
)

// fakeSchema is an in-memory stand-in for the Group-Engine-backed root.Schema
// implementation, the same role lifecycle_test.go's fakeNodeStore plays
// within internal/root itself.
type fakeSchema struct {
	mu    sync.Mutex
	nodes map[uint64]types.Node
	next  uint64
	jobs  []root.Job
}

func newFakeSchema() *fakeSchema {
	return &fakeSchema{nodes: make(map[uint64]types.Node)}
}

func (s *fakeSchema) NextNodeID() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next, nil
}

func (s *fakeSchema) GetNode(id uint64) (types.Node, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	return n, ok, nil
}

func (s *fakeSchema) SaveNode(n types.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.ID] = n
	return nil
}

func (s *fakeSchema) ListNodes() ([]types.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out, nil
}

func (s *fakeSchema) ListOngoing() ([]root.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]root.Job(nil), s.jobs...), nil
}

func (s *fakeSchema) Save(j root.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, j)
	return nil
}

func (s *fakeSchema) MoveToHistory(id uint64) error { return nil }

func (s *fakeSchema) Groups() ([]types.Group, error) { return nil, nil }

func (s *fakeSchema) Nodes() ([]types.Node, error) { return s.ListNodes() }

func (s *fakeSchema) NodeDelta(nodeID uint64) int64 { return 0 }

func (s *fakeSchema) TryBootstrapRoot(localAddr string, cpuNums uint32, clusterID []byte) error {
	return nil
}

func (s *fakeSchema) MaxTxnID() (uint64, error) { return 0, nil }

func (s *fakeSchema) PersistMaxTxnID(uint64) error { return nil }

type fakeGroupDriver struct{}

func (fakeGroupDriver) CreateShardReplica(groupID, shardID uint64) error { return nil }
func (fakeGroupDriver) TombstoneShard(shardID uint64) error              { return nil }
func (fakeGroupDriver) AllocateReplicaNode(groupID uint64) (uint64, error) {
	return 0, errors.New("not implemented")
}
func (fakeGroupDriver) CreateGroupReplica(groupID, nodeID uint64) error { return nil }
func (fakeGroupDriver) RemoveGroupReplica(groupID, nodeID uint64) error { return nil }
func (fakeGroupDriver) DeleteCollectionSchema(collectionID uint64) error { return nil }
func (fakeGroupDriver) DeleteDatabaseSchema(databaseID uint64) error     { return nil }

func openTestRoot(t *testing.T) (*root.Root, *fakeSchema) {
	t.Helper()

	dir := t.TempDir()
	eng, err := engine.Open(dir + "/engine.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	addr, tr := raft.NewInmemTransport("node1")
	r, err := replica.Open(replica.Config{
		GroupID:   0,
		LocalID:   raft.ServerID("node1"),
		DataDir:   dir,
		Transport: tr,
		Bootstrap: true,
		Peers:     []raft.Server{{ID: raft.ServerID("node1"), Address: addr}},
	}, eng)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := r.OnLeader()
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	schema := newFakeSchema()
	rt := root.NewRoot(root.Config{LocalAddr: "node1:7000"}, 1, r, schema, fakeGroupDriver{})
	return rt, schema
}

func TestRootServiceJoinThenInfo(t *testing.T) {
	rt, _ := openTestRoot(t)
	svc := NewRootService(rt)

	joinResp, err := svc.Join(context.Background(), &JoinNodeRequest{Addr: "node2:7000", Capacity: 4})
	require.NoError(t, err)
	require.Equal(t, "node2:7000", joinResp.Node.Addr)
	require.Equal(t, types.Active, joinResp.Node.Status)

	infoResp, err := svc.Info(context.Background(), &InfoRequest{})
	require.NoError(t, err)
	require.Len(t, infoResp.Nodes, 1)
	require.Equal(t, uint64(1), infoResp.RootLeader)
}

func TestRootServiceHeartbeatUnknownNode(t *testing.T) {
	rt, _ := openTestRoot(t)
	svc := NewRootService(rt)

	_, err := svc.Heartbeat(context.Background(), &HeartbeatRequest{NodeID: 99})
	require.Error(t, err)
}

func TestRootServiceHeartbeatCollectsStats(t *testing.T) {
	rt, _ := openTestRoot(t)
	svc := NewRootService(rt)

	joinResp, err := svc.Join(context.Background(), &JoinNodeRequest{Addr: "node2:7000", Capacity: 4})
	require.NoError(t, err)

	resp, err := svc.Heartbeat(context.Background(), &HeartbeatRequest{
		NodeID:     joinResp.Node.ID,
		Piggybacks: []PiggybackKind{CollectStats},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Stats)
}

func TestRootServiceCordonUncordon(t *testing.T) {
	rt, _ := openTestRoot(t)
	svc := NewRootService(rt)

	joinResp, err := svc.Join(context.Background(), &JoinNodeRequest{Addr: "node2:7000", Capacity: 4})
	require.NoError(t, err)

	_, err = svc.CordonNode(context.Background(), &CordonNodeRequest{NodeID: joinResp.Node.ID})
	require.NoError(t, err)

	_, err = svc.UncordonNode(context.Background(), &UncordonNodeRequest{NodeID: joinResp.Node.ID})
	require.NoError(t, err)
}

func TestRootServiceReportMergesIntoStats(t *testing.T) {
	rt, _ := openTestRoot(t)
	svc := NewRootService(rt)

	_, err := svc.Report(context.Background(), &ReportRequest{
		GroupUpdates: []GroupUpdate{{GroupID: 1, Epoch: 1, Incoming: []uint64{2}}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), rt.Stats().GetNodeDelta(2))
}

func TestRootServiceJobsReportsOngoingCount(t *testing.T) {
	rt, schema := openTestRoot(t)
	svc := NewRootService(rt)

	require.NoError(t, schema.Save(root.Job{}))

	resp, err := svc.Jobs(context.Background(), &JobsRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, resp.OngoingCount)
}
