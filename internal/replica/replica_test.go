package replica

import (
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/require"

	"github.com/sekas/sekas/internal/engine"
)

func openSingleNodeReplica(t *testing.T) (*Replica, *engine.Engine) {
	t.Helper()

	dir := t.TempDir()
	eng, err := engine.Open(dir + "/engine.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	addr, transport := raft.NewInmemTransport("node1")
	cfg := Config{
		GroupID:   1,
		LocalID:   raft.ServerID("node1"),
		DataDir:   dir,
		Transport: transport,
		Bootstrap: true,
		Peers: []raft.Server{
			{ID: raft.ServerID("node1"), Address: addr},
		},
	}

	r, err := Open(cfg, eng)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.raft.Shutdown().Error() })

	require.Eventually(t, func() bool {
		_, ok := r.OnLeader()
		return ok
	}, 5*time.Second, 10*time.Millisecond, "single-node group never became leader")

	return r, eng
}

func TestSingleNodeBecomesLeader(t *testing.T) {
	r, _ := openSingleNodeReplica(t)
	token, ok := r.OnLeader()
	require.True(t, ok)
	require.Equal(t, uint64(1), token.GroupID)
}

func TestProposeAppliesToEngine(t *testing.T) {
	r, eng := openSingleNodeReplica(t)
	token, ok := r.OnLeader()
	require.True(t, ok)

	wb := engine.NewWriteBatch()
	require.NoError(t, wb.Put(1, []byte("k1"), []byte("v1"), 10))

	idx, err := r.Propose(token, wb)
	require.NoError(t, err)
	require.Greater(t, idx, uint64(0))

	entry, ok, err := eng.Get(1, []byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), entry.Content)
	require.Equal(t, uint64(10), entry.Version)
}

func TestProposeRejectsStaleLeaseToken(t *testing.T) {
	r, _ := openSingleNodeReplica(t)
	token, ok := r.OnLeader()
	require.True(t, ok)

	stale := token
	stale.Epoch++

	wb := engine.NewWriteBatch()
	require.NoError(t, wb.Put(1, []byte("k1"), []byte("v1"), 10))

	_, err := r.Propose(stale, wb)
	require.Error(t, err)
}
