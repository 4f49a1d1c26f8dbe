package schema

import (
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/require"

	"github.com/sekas/sekas/internal/engine"
	"github.com/sekas/sekas/internal/replica"
	"github.com/sekas/sekas/internal/root"
	"github.com/sekas/sekas/pkg/types"
)

func openTestStore(t *testing.T) *Store {
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

	return NewStore(eng, r)
}

func TestStoreNodeRoundTrip(t *testing.T) {
	s := openTestStore(t)

	id, err := s.NextNodeID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	n := types.Node{ID: id, Addr: "node2:7000", Capacity: 4, Status: types.Active}
	require.NoError(t, s.SaveNode(n))

	got, ok, err := s.GetNode(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "node2:7000", got.Addr)

	nodes, err := s.ListNodes()
	require.NoError(t, err)
	require.Len(t, nodes, 1)
}

func TestStoreTryBootstrapRootIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.TryBootstrapRoot("node1:7000", 4, []byte("cluster-1")))
	n, ok, err := s.GetNode(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "node1:7000", n.Addr)

	require.NoError(t, s.SaveNode(types.Node{ID: 1, Addr: "changed:7000", Status: types.Active}))
	require.NoError(t, s.TryBootstrapRoot("node1:7000", 4, []byte("cluster-1")))

	n, ok, err = s.GetNode(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "changed:7000", n.Addr, "second bootstrap call must not overwrite the existing node record")
}

func TestStoreMaxTxnIDPersist(t *testing.T) {
	s := openTestStore(t)

	max, err := s.MaxTxnID()
	require.NoError(t, err)
	require.Equal(t, uint64(0), max)

	require.NoError(t, s.PersistMaxTxnID(42))
	max, err = s.MaxTxnID()
	require.NoError(t, err)
	require.Equal(t, uint64(42), max)
}

func TestStoreJobLifecycle(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Save(root.Job{ID: 1, CreateCollection: &root.CreateCollectionJob{DatabaseID: 1, CollectionName: "c1"}}))
	ongoing, err := s.ListOngoing()
	require.NoError(t, err)
	require.Len(t, ongoing, 1)

	require.NoError(t, s.MoveToHistory(1))
	ongoing, err = s.ListOngoing()
	require.NoError(t, err)
	require.Len(t, ongoing, 0)
}

func TestStoreGroupReplicaBookkeeping(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.CreateShardReplica(1, 100))
	require.NoError(t, s.CreateGroupReplica(1, 7))

	groups, err := s.Groups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, []uint64{100}, groups[0].Shards)
	require.Len(t, groups[0].Replicas, 1)
	require.Equal(t, uint64(7), groups[0].Replicas[0].NodeID)

	require.NoError(t, s.RemoveGroupReplica(1, 7))
	groups, err = s.Groups()
	require.NoError(t, err)
	require.Len(t, groups[0].Replicas, 0)

	require.NoError(t, s.TombstoneShard(100))
	groups, err = s.Groups()
	require.NoError(t, err)
	require.Len(t, groups[0].Shards, 0)
}

func TestStoreAllocateReplicaNodePicksLeastLoaded(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveNode(types.Node{ID: 1, Addr: "n1:7000", Status: types.Active}))
	require.NoError(t, s.SaveNode(types.Node{ID: 2, Addr: "n2:7000", Status: types.Active}))
	require.NoError(t, s.CreateGroupReplica(1, 1))

	chosen, err := s.AllocateReplicaNode(2)
	require.NoError(t, err)
	require.Equal(t, uint64(2), chosen, "node 2 has no replicas yet and should be picked over loaded node 1")
}

func TestStoreAllocateReplicaNodeNoActiveNodes(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveNode(types.Node{ID: 1, Addr: "n1:7000", Status: types.Cordoned}))
	_, err := s.AllocateReplicaNode(1)
	require.Error(t, err)
}
