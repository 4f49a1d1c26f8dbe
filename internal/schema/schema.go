// Package schema implements root.Schema and root.GroupDriver directly on
// top of the root group's own Group Engine: spec.md treats the root group
// as "just another group running the same machinery" (internal/root's
// package doc), so its durable metadata — nodes, jobs, groups, collections,
// databases, the txn-id high-water mark — lives in the same versioned bbolt
// store every other group uses, on a set of reserved shard ids below
// types.FirstUserCollectionID.
//
// Grounded on cuemby-warren/pkg/storage/boltdb.go's bucket-per-entity,
// json.Marshal-per-record pattern, generalized from bbolt buckets to
// engine.Engine shards so the root group replicates this metadata through
// the same raft/Propose path as user data.
package schema

import (
	"encoding/binary"
	"encoding/json"
	"sort"

	"github.com/sekas/sekas/internal/engine"
	"github.com/sekas/sekas/internal/replica"
	"github.com/sekas/sekas/internal/root"
	"github.com/sekas/sekas/pkg/sekaserr"
	"github.com/sekas/sekas/pkg/types"
)

// Reserved shard ids for root-group metadata. All are below
// types.FirstUserCollectionID, so they can never collide with a
// user-created collection's shard ids.
const (
	shardNodes       uint64 = 1
	shardJobs        uint64 = 2
	shardJobHistory  uint64 = 3
	shardGroups      uint64 = 4
	shardCollections uint64 = 5
	shardDatabases   uint64 = 6
	shardMeta        uint64 = 7
)

var metaMaxTxnIDKey = []byte("max_txn_id")
var metaBootstrappedKey = []byte("bootstrapped")

// Store is the root group's concrete metadata backend: a thin layer over
// the Group Engine that knows how to encode/decode the handful of record
// types root.Schema and root.GroupDriver need, and how to replicate writes
// through the root group's Replica before returning.
type Store struct {
	eng *engine.Engine
	r   *replica.Replica
}

// NewStore builds a Store bound to the root group's own Engine/Replica —
// the same pair wired into the root group's group.Host, since the root
// group is itself just another group running the shared raft/engine
// machinery (internal/root's package doc).
func NewStore(eng *engine.Engine, r *replica.Replica) *Store {
	return &Store{eng: eng, r: r}
}

func (s *Store) propose(wb *engine.WriteBatch) error {
	if wb.Empty() {
		return nil
	}
	token, ok := s.r.OnLeader()
	if !ok {
		return sekaserr.NotRootLeader(0, "")
	}
	_, err := s.r.Propose(token, wb)
	return err
}

func encodeID(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func (s *Store) put(shard uint64, key []byte, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return sekaserr.InvalidData("marshal schema record: %v", err)
	}
	wb := engine.NewWriteBatch()
	if err := wb.Put(shard, key, raw, 1); err != nil {
		return err
	}
	return s.propose(wb)
}

func (s *Store) get(shard uint64, key []byte, out interface{}) (bool, error) {
	entry, ok, err := s.eng.Get(shard, key)
	if err != nil {
		return false, sekaserr.Io(err)
	}
	if !ok || entry.Tombstone {
		return false, nil
	}
	if err := json.Unmarshal(entry.Content, out); err != nil {
		return false, sekaserr.InvalidData("unmarshal schema record: %v", err)
	}
	return true, nil
}

func (s *Store) delete(shard uint64, key []byte) error {
	wb := engine.NewWriteBatch()
	if err := wb.Tombstone(shard, key, 1); err != nil {
		return err
	}
	return s.propose(wb)
}

func (s *Store) list(shard uint64, out func(content []byte) error) error {
	chains, err := s.eng.Snapshot(shard, engine.ModePrefix, nil, nil)
	if err != nil {
		return sekaserr.Io(err)
	}
	for _, c := range chains {
		if len(c.Entries) == 0 || c.Entries[0].Tombstone {
			continue
		}
		if err := out(c.Entries[0].Content); err != nil {
			return err
		}
	}
	return nil
}

// --- root.NodeStore ---

func (s *Store) NextNodeID() (uint64, error) {
	var counter struct{ Next uint64 }
	_, err := s.get(shardMeta, []byte("next_node_id"), &counter)
	if err != nil {
		return 0, err
	}
	counter.Next++
	if err := s.put(shardMeta, []byte("next_node_id"), counter); err != nil {
		return 0, err
	}
	return counter.Next, nil
}

func (s *Store) GetNode(id uint64) (types.Node, bool, error) {
	var n types.Node
	ok, err := s.get(shardNodes, encodeID(id), &n)
	return n, ok, err
}

func (s *Store) SaveNode(n types.Node) error {
	return s.put(shardNodes, encodeID(n.ID), n)
}

func (s *Store) ListNodes() ([]types.Node, error) {
	var out []types.Node
	err := s.list(shardNodes, func(raw []byte) error {
		var n types.Node
		if err := json.Unmarshal(raw, &n); err != nil {
			return sekaserr.InvalidData("unmarshal node: %v", err)
		}
		out = append(out, n)
		return nil
	})
	return out, err
}

// --- root.JobStore ---

func (s *Store) ListOngoing() ([]root.Job, error) {
	var out []root.Job
	err := s.list(shardJobs, func(raw []byte) error {
		var j root.Job
		if err := json.Unmarshal(raw, &j); err != nil {
			return sekaserr.InvalidData("unmarshal job: %v", err)
		}
		out = append(out, j)
		return nil
	})
	return out, err
}

func (s *Store) Save(j root.Job) error {
	return s.put(shardJobs, encodeID(j.ID), j)
}

func (s *Store) MoveToHistory(id uint64) error {
	var j root.Job
	ok, err := s.get(shardJobs, encodeID(id), &j)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := s.put(shardJobHistory, encodeID(id), j); err != nil {
		return err
	}
	return s.delete(shardJobs, encodeID(id))
}

// --- root.SchedulerView ---

func (s *Store) Groups() ([]types.Group, error) {
	var out []types.Group
	err := s.list(shardGroups, func(raw []byte) error {
		var g types.Group
		if err := json.Unmarshal(raw, &g); err != nil {
			return sekaserr.InvalidData("unmarshal group: %v", err)
		}
		out = append(out, g)
		return nil
	})
	return out, err
}

func (s *Store) Nodes() ([]types.Node, error) { return s.ListNodes() }

// NodeDelta reports 0: this Store has no separate pending-delta ledger, so
// the scheduler sees only committed replica counts (no in-flight job
// discount). A future job-aware placement pass would track deltas as jobs
// are submitted, mirroring OngoingStats.SetJobDelta on the heartbeat side.
func (s *Store) NodeDelta(nodeID uint64) int64 { return 0 }

// --- root.Schema bootstrap/txn-id ---

func (s *Store) TryBootstrapRoot(localAddr string, cpuNums uint32, clusterID []byte) error {
	var done struct{ Done bool }
	ok, err := s.get(shardMeta, metaBootstrappedKey, &done)
	if err != nil {
		return err
	}
	if ok && done.Done {
		return nil
	}
	n := types.Node{ID: 1, Addr: localAddr, Capacity: cpuNums, Status: types.Active}
	if err := s.put(shardNodes, encodeID(1), n); err != nil {
		return err
	}
	return s.put(shardMeta, metaBootstrappedKey, struct{ Done bool }{true})
}

func (s *Store) MaxTxnID() (uint64, error) {
	var v struct{ Max uint64 }
	_, err := s.get(shardMeta, metaMaxTxnIDKey, &v)
	return v.Max, err
}

func (s *Store) PersistMaxTxnID(max uint64) error {
	return s.put(shardMeta, metaMaxTxnIDKey, struct{ Max uint64 }{max})
}

// --- root.GroupDriver ---
//
// CreateShardReplica/TombstoneShard/CreateGroupReplica/RemoveGroupReplica
// only update this Store's own group/shard bookkeeping. Dispatching the
// move to the target node's Node service is transport.NewRootGroupDriver's
// job (server.go's rootGroupDriver wraps a Store with a *transport.Client
// so AllocateReplicaNode/DeleteCollectionSchema/DeleteDatabaseSchema still
// resolve here while the other four go out over the wire); a Store used
// directly as a root.GroupDriver (e.g. a single-node dev cluster with no
// remote moves to make) still needs these to exist and keep schema state
// consistent.

// CreateShardReplica records shardID under groupID's shard list. Placement
// itself has already been decided by the caller (a background job); this
// only updates the durable record of which group now owns the shard.
func (s *Store) CreateShardReplica(groupID, shardID uint64) error {
	var g types.Group
	ok, err := s.get(shardGroups, encodeID(groupID), &g)
	if err != nil {
		return err
	}
	if !ok {
		g = types.Group{ID: groupID}
	}
	for _, sh := range g.Shards {
		if sh == shardID {
			return nil
		}
	}
	g.Shards = append(g.Shards, shardID)
	return s.put(shardGroups, encodeID(groupID), g)
}

func (s *Store) TombstoneShard(shardID uint64) error {
	var g types.Group
	groups, err := s.Groups()
	if err != nil {
		return err
	}
	for _, grp := range groups {
		for i, sh := range grp.Shards {
			if sh == shardID {
				grp.Shards = append(grp.Shards[:i], grp.Shards[i+1:]...)
				g = grp
				return s.put(shardGroups, encodeID(g.ID), g)
			}
		}
	}
	return nil
}

// AllocateReplicaNode picks the Active node currently hosting the fewest
// group replicas — a direct least-loaded placement, grounded on the
// teacher's scheduler.go bin-packing intent without carrying over its
// container-resource-request machinery (spec has no workload sizing
// concept, only uniform replica slots).
func (s *Store) AllocateReplicaNode(groupID uint64) (uint64, error) {
	nodes, err := s.ListNodes()
	if err != nil {
		return 0, err
	}
	groups, err := s.Groups()
	if err != nil {
		return 0, err
	}
	load := make(map[uint64]int)
	for _, g := range groups {
		for _, rep := range g.Replicas {
			load[rep.NodeID]++
		}
	}
	var best *types.Node
	for i := range nodes {
		n := &nodes[i]
		if n.Status != types.Active {
			continue
		}
		if best == nil || load[n.ID] < load[best.ID] {
			best = n
		}
	}
	if best == nil {
		return 0, sekaserr.ResourceExhausted("no active node available for group %d replica", groupID)
	}
	return best.ID, nil
}

func (s *Store) CreateGroupReplica(groupID, nodeID uint64) error {
	return s.addReplicaToGroup(groupID, nodeID)
}

func (s *Store) RemoveGroupReplica(groupID, nodeID uint64) error {
	return s.removeReplicaFromGroup(groupID, nodeID)
}

func (s *Store) addReplicaToGroup(groupID, nodeID uint64) error {
	var g types.Group
	ok, err := s.get(shardGroups, encodeID(groupID), &g)
	if err != nil {
		return err
	}
	if !ok {
		g = types.Group{ID: groupID}
	}
	g.Replicas = append(g.Replicas, types.Replica{NodeID: nodeID, Role: types.Voter})
	return s.put(shardGroups, encodeID(groupID), g)
}

func (s *Store) removeReplicaFromGroup(groupID, nodeID uint64) error {
	var g types.Group
	ok, err := s.get(shardGroups, encodeID(groupID), &g)
	if err != nil || !ok {
		return err
	}
	out := g.Replicas[:0]
	for _, rep := range g.Replicas {
		if rep.NodeID != nodeID {
			out = append(out, rep)
		}
	}
	g.Replicas = out
	return s.put(shardGroups, encodeID(groupID), g)
}

func (s *Store) DeleteCollectionSchema(collectionID uint64) error {
	return s.delete(shardCollections, encodeID(collectionID))
}

func (s *Store) DeleteDatabaseSchema(databaseID uint64) error {
	return s.delete(shardDatabases, encodeID(databaseID))
}

// SaveCollection and SaveDatabase are not part of root.Schema/GroupDriver
// (those only need deletion, spec §4.9's decommission path); nothing in
// this repository calls them.
func (s *Store) SaveCollection(c types.Collection) error {
	return s.put(shardCollections, encodeID(c.ID), c)
}

func (s *Store) SaveDatabase(d types.Database) error {
	return s.put(shardDatabases, encodeID(d.ID), d)
}

func (s *Store) ListCollections() ([]types.Collection, error) {
	var out []types.Collection
	err := s.list(shardCollections, func(raw []byte) error {
		var c types.Collection
		if err := json.Unmarshal(raw, &c); err != nil {
			return sekaserr.InvalidData("unmarshal collection: %v", err)
		}
		out = append(out, c)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}
