package transport

import (
	"github.com/sekas/sekas/internal/eval"
	"github.com/sekas/sekas/pkg/types"
)

// Node service (spec §6: "execute, batch, shard moves").

// WriteOp is one write_intent/commit_intent/clear_intent call, batched so a
// client can pipeline a multi-key transaction in a single RPC the way the
// teacher's Heartbeat batches per-task status updates in one request.
type WriteOp struct {
	WriteIntent  *eval.WriteIntentRequest  `json:"write_intent,omitempty"`
	CommitIntent *eval.CommitIntentRequest `json:"commit_intent,omitempty"`
	ClearIntent  *eval.ClearIntentRequest  `json:"clear_intent,omitempty"`
}

// ExecuteRequest carries a single WriteOp to a group's current leader.
type ExecuteRequest struct {
	GroupID uint64  `json:"group_id"`
	Epoch   uint64  `json:"epoch"`
	Op      WriteOp `json:"op"`
}

// ExecuteResponse carries an ApplyIndex field; NodeService.Execute leaves
// it 0, so no raft apply index is reported.
type ExecuteResponse struct {
	ApplyIndex uint64 `json:"apply_index"`
}

// BatchRequest pipelines several WriteOps against the same group under one
// lease token check (spec §5: the client coordinates cross-shard commits).
// Each op is still evaluated and proposed to raft on its own, in order.
type BatchRequest struct {
	GroupID uint64    `json:"group_id"`
	Epoch   uint64    `json:"epoch"`
	Ops     []WriteOp `json:"ops"`
}

// BatchResponse has one ApplyIndexes entry per applied op, in order;
// NodeService.Batch sets every entry to 0.
type BatchResponse struct {
	ApplyIndexes []uint64 `json:"apply_indexes"`
}

// GetRequest reads the most recent committed version of a key.
// StartVersion is carried on the wire but NodeService.Get does not consult
// it.
type GetRequest struct {
	ShardID      uint64 `json:"shard_id"`
	Key          []byte `json:"key"`
	StartVersion uint64 `json:"start_version,omitempty"`
}

// ExecuteGetRequest addresses a GetRequest to the group owning the shard.
type ExecuteGetRequest struct {
	GroupID uint64     `json:"group_id"`
	Get     GetRequest `json:"get"`
}

// GetResponse is the value found, or Found=false if the key has no
// committed version (or is tombstoned).
type GetResponse struct {
	Value   []byte `json:"value,omitempty"`
	Version uint64 `json:"version,omitempty"`
	Found   bool   `json:"found"`
}

// CreateShardReplicaRequest/TombstoneShardRequest/CreateGroupReplicaRequest/
// RemoveGroupReplicaRequest are the "shard moves" half of the Node service:
// the root.GroupDriver built by NewRootGroupDriver (server.go) sends these
// to the node that owns (or will own) the affected group.
type CreateShardReplicaRequest struct {
	GroupID uint64 `json:"group_id"`
	ShardID uint64 `json:"shard_id"`
}

type TombstoneShardRequest struct {
	ShardID uint64 `json:"shard_id"`
}

type CreateGroupReplicaRequest struct {
	GroupID uint64 `json:"group_id"`
	NodeID  uint64 `json:"node_id"`
}

type RemoveGroupReplicaRequest struct {
	GroupID uint64 `json:"group_id"`
	NodeID  uint64 `json:"node_id"`
}

// Empty is the shared nil-payload response for fire-and-forget admin RPCs.
type Empty struct{}

// Root service (spec §6: "join, alloc_replica, alloc_txn_id, report, watch,
// admin"; RPC contracts consumed per spec §6's closing paragraph).

// JoinNodeRequest is sent by a newly-starting node's join loop.
type JoinNodeRequest struct {
	Addr     string `json:"addr"`
	Capacity uint32 `json:"capacity"`
}

// JoinNodeResponse assigns the node its cluster identity.
type JoinNodeResponse struct {
	Node      types.Node `json:"node"`
	ClusterID []byte     `json:"cluster_id"`
}

// PiggybackKind is a closed set of extra data a Heartbeat call can request
// alongside the liveness signal, avoiding a separate round trip per kind.
type PiggybackKind int

const (
	SyncRoot PiggybackKind = iota
	CollectStats
	CollectScheduleState
	CollectGroupDetail
	CollectMovingShardState
)

// HeartbeatRequest is sent on the heartbeat interval by every live node.
type HeartbeatRequest struct {
	NodeID      uint64          `json:"node_id"`
	Piggybacks  []PiggybackKind `json:"piggybacks,omitempty"`
}

// HeartbeatResponse carries whichever piggyback payloads were requested;
// fields are populated only for the kinds present in the request.
type HeartbeatResponse struct {
	RootAddr      string        `json:"root_addr,omitempty"`
	Stats         *OngoingStats `json:"stats,omitempty"`
	ScheduleState []Task        `json:"schedule_state,omitempty"`
}

// OngoingStats is the wire projection of internal/root.OngoingStats used by
// the CollectStats piggyback.
type OngoingStats struct {
	NodeDeltas map[uint64]int64 `json:"node_deltas"`
}

// Task is the wire projection of internal/root.Task for CollectScheduleState.
type Task struct {
	Kind    string `json:"kind"`
	GroupID uint64 `json:"group_id,omitempty"`
	NodeID  uint64 `json:"node_id,omitempty"`
	SrcNode uint64 `json:"src_node,omitempty"`
	ShardID uint64 `json:"shard_id,omitempty"`
}

// GroupUpdate is one group's view of its own replication progress, as
// reported by a replica to the root leader (spec §4.7 stats merge).
type GroupUpdate struct {
	GroupID  uint64   `json:"group_id"`
	Epoch    uint64   `json:"epoch"`
	Incoming []uint64 `json:"incoming,omitempty"`
	Outgoing []uint64 `json:"outgoing,omitempty"`
}

// ReportRequest batches one or more GroupUpdates, merged by epoch/term
// monotonicity on the root side.
type ReportRequest struct {
	GroupUpdates []GroupUpdate `json:"group_updates"`
}

// AllocTxnIDRequest/Response is the root-allocator RPC (internal/root.Root.AllocTxnID).
type AllocTxnIDRequest struct {
	Count uint64 `json:"count"`
}

type AllocTxnIDResponse struct {
	StartVersion uint64 `json:"start_version"`
}

// CordonNodeRequest/UncordonNodeRequest/BeginDrainRequest are the node
// lifecycle admin RPCs (internal/root.Lifecycle).
type CordonNodeRequest struct{ NodeID uint64 `json:"node_id"` }
type UncordonNodeRequest struct{ NodeID uint64 `json:"node_id"` }
type BeginDrainRequest struct{ NodeID uint64 `json:"node_id"` }

// InfoRequest/InfoResponse back the `sekas info` admin command.
type InfoRequest struct{}

type InfoResponse struct {
	Nodes      []types.Node `json:"nodes"`
	RootLeader uint64       `json:"root_leader"`
}

// JobsRequest/JobsResponse back the `sekas jobs` admin command.
type JobsRequest struct{}

type JobsResponse struct {
	OngoingCount int `json:"ongoing_count"`
}

// WatchRequest subscribes to node-change notifications; the server streams
// WatchEvent values until the client cancels.
type WatchRequest struct{}

type WatchEvent struct {
	Node   types.Node `json:"node"`
	Delete bool       `json:"delete"`
}
