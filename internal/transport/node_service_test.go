package transport

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/require"

	"github.com/sekas/sekas/internal/engine"
	"github.com/sekas/sekas/internal/eval"
	"github.com/sekas/sekas/internal/group"
	"github.com/sekas/sekas/internal/replica"
)

func openTestHost(t *testing.T, groupID uint64) *group.Host {
	t.Helper()

	dir := t.TempDir()
	eng, err := engine.Open(dir + "/engine.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	addr, tr := raft.NewInmemTransport("node1")
	r, err := replica.Open(replica.Config{
		GroupID:   groupID,
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

	return group.NewHost(groupID, eng, r, 30*time.Second)
}

type fakeRegistry struct {
	hosts map[uint64]*group.Host
}

func (f *fakeRegistry) Group(groupID uint64) (*group.Host, bool) {
	h, ok := f.hosts[groupID]
	return h, ok
}

type fakeNodeDriver struct {
	createShardCalls []uint64
	tombstoneCalls   []uint64
	createGroupCalls []uint64
	removeGroupCalls []uint64
}

func (f *fakeNodeDriver) CreateShardReplica(groupID, shardID uint64) error {
	f.createShardCalls = append(f.createShardCalls, shardID)
	return nil
}

func (f *fakeNodeDriver) TombstoneShard(shardID uint64) error {
	f.tombstoneCalls = append(f.tombstoneCalls, shardID)
	return nil
}

func (f *fakeNodeDriver) CreateGroupReplica(groupID, nodeID uint64) error {
	f.createGroupCalls = append(f.createGroupCalls, nodeID)
	return nil
}

func (f *fakeNodeDriver) RemoveGroupReplica(groupID, nodeID uint64) error {
	f.removeGroupCalls = append(f.removeGroupCalls, nodeID)
	return nil
}

func TestNodeServiceExecuteThenGet(t *testing.T) {
	h := openTestHost(t, 1)
	driver := &fakeNodeDriver{}
	svc := NewNodeService(&fakeRegistry{hosts: map[uint64]*group.Host{1: h}}, driver)

	_, err := svc.Execute(context.Background(), &ExecuteRequest{
		GroupID: 1,
		Op: WriteOp{WriteIntent: &eval.WriteIntentRequest{
			ShardID:      1,
			StartVersion: 10,
			Puts:         []eval.Write{{Key: []byte("k"), Value: []byte("v")}},
		}},
	})
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), &ExecuteRequest{
		GroupID: 1,
		Op: WriteOp{CommitIntent: &eval.CommitIntentRequest{
			ShardID:       1,
			StartVersion:  10,
			CommitVersion: 11,
			Keys:          [][]byte{[]byte("k")},
		}},
	})
	require.NoError(t, err)

	resp, err := svc.Get(context.Background(), &ExecuteGetRequest{GroupID: 1, Get: GetRequest{ShardID: 1, Key: []byte("k")}})
	require.NoError(t, err)
	require.True(t, resp.Found)
	require.Equal(t, []byte("v"), resp.Value)
	require.Equal(t, uint64(11), resp.Version)
}

func TestNodeServiceUnknownGroup(t *testing.T) {
	svc := NewNodeService(&fakeRegistry{hosts: map[uint64]*group.Host{}}, &fakeNodeDriver{})
	_, err := svc.Get(context.Background(), &ExecuteGetRequest{GroupID: 99, Get: GetRequest{ShardID: 1, Key: []byte("k")}})
	require.Error(t, err)
}

func TestNodeServiceBatchAppliesInOrder(t *testing.T) {
	h := openTestHost(t, 1)
	svc := NewNodeService(&fakeRegistry{hosts: map[uint64]*group.Host{1: h}}, &fakeNodeDriver{})

	resp, err := svc.Batch(context.Background(), &BatchRequest{
		GroupID: 1,
		Ops: []WriteOp{
			{WriteIntent: &eval.WriteIntentRequest{ShardID: 1, StartVersion: 20, Puts: []eval.Write{{Key: []byte("a"), Value: []byte("1")}}}},
			{CommitIntent: &eval.CommitIntentRequest{ShardID: 1, StartVersion: 20, CommitVersion: 21, Keys: [][]byte{[]byte("a")}}},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.ApplyIndexes, 2)

	getResp, err := svc.Get(context.Background(), &ExecuteGetRequest{GroupID: 1, Get: GetRequest{ShardID: 1, Key: []byte("a")}})
	require.NoError(t, err)
	require.True(t, getResp.Found)
	require.Equal(t, []byte("1"), getResp.Value)
}

func TestNodeServiceShardMovesDelegateToDriver(t *testing.T) {
	driver := &fakeNodeDriver{}
	svc := NewNodeService(&fakeRegistry{hosts: map[uint64]*group.Host{}}, driver)

	_, err := svc.CreateShardReplica(context.Background(), &CreateShardReplicaRequest{GroupID: 1, ShardID: 5})
	require.NoError(t, err)
	_, err = svc.TombstoneShard(context.Background(), &TombstoneShardRequest{ShardID: 5})
	require.NoError(t, err)
	_, err = svc.CreateGroupReplica(context.Background(), &CreateGroupReplicaRequest{GroupID: 1, NodeID: 9})
	require.NoError(t, err)
	_, err = svc.RemoveGroupReplica(context.Background(), &RemoveGroupReplicaRequest{GroupID: 1, NodeID: 9})
	require.NoError(t, err)

	require.Equal(t, []uint64{5}, driver.createShardCalls)
	require.Equal(t, []uint64{5}, driver.tombstoneCalls)
	require.Equal(t, []uint64{9}, driver.createGroupCalls)
	require.Equal(t, []uint64{9}, driver.removeGroupCalls)
}
